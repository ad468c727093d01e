package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ymsk/slotline/internal/availability"
	"github.com/ymsk/slotline/internal/booking"
	"github.com/ymsk/slotline/internal/storage"
)

// BookingStore is the slice of the storage layer the handlers need.
type BookingStore interface {
	ListBookedStarts(ctx context.Context, start, end time.Time) ([]time.Time, error)
	Create(ctx context.Context, req booking.Request) (booking.Booking, error)
}

// Notifier hands off the post-commit confirmation. Implementations must not
// let delivery outcomes reach the response path.
type Notifier interface {
	Dispatch(b booking.Booking)
}

type BookingHandler struct {
	store           BookingStore
	notifier        Notifier
	logger          *slog.Logger
	lineOfficialURL string
	now             func() time.Time
}

func NewBookingHandler(store BookingStore, notifier Notifier, logger *slog.Logger, lineOfficialURL string) *BookingHandler {
	return &BookingHandler{
		store:           store,
		notifier:        notifier,
		logger:          logger,
		lineOfficialURL: lineOfficialURL,
		now:             time.Now,
	}
}

// rfc3339Milli matches the upstream wire format for slot instants.
const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

type slotItem struct {
	StartAt   string `json:"startAt"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

type slotsResponse struct {
	Day   string     `json:"day"`
	Slots []slotItem `json:"slots"`
}

type bookRequest struct {
	StartAt       string `json:"startAt"`
	Name          string `json:"name"`
	CustomerType  string `json:"customerType"`
	PaymentMethod string `json:"paymentMethod"`
}

type bookResponse struct {
	OK              bool   `json:"ok"`
	LineOfficialURL string `json:"lineOfficialUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Slots lists every slot of the requested civil day's business window, with
// booked and already-started slots flagged unavailable rather than omitted.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dayStr := strings.TrimSpace(r.URL.Query().Get("day"))
	if dayStr == "" {
		writeError(w, http.StatusBadRequest, "day is required (YYYY-MM-DD)")
		return
	}
	day, err := time.Parse("2006-01-02", dayStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	windowStart, windowEnd := availability.Window(day.Year(), day.Month(), day.Day())
	booked, err := h.store.ListBookedStarts(r.Context(), windowStart, windowEnd)
	if err != nil {
		h.logger.Error("booked slots load failed", "err", err, "day", dayStr)
		writeError(w, http.StatusInternalServerError, "failed to load booked slots")
		return
	}

	slots := availability.Resolve(availability.Slots(windowStart, windowEnd), booked, h.now().UTC())
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartAt:   s.StartAt.UTC().Format(rfc3339Milli),
			Label:     s.Label,
			Available: s.Available,
		})
	}

	writeJSON(w, http.StatusOK, slotsResponse{Day: dayStr, Slots: items})
}

// Create validates and commits a booking. The unique index on start_at
// decides races: the losers of a concurrent commit see 409, never a retry.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	validated, err := booking.Validate(booking.RawRequest{
		StartAt:       req.StartAt,
		Name:          req.Name,
		CustomerType:  req.CustomerType,
		PaymentMethod: req.PaymentMethod,
	}, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.store.Create(r.Context(), validated)
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			writeError(w, http.StatusConflict, storage.ErrSlotTaken.Error())
			return
		}
		h.logger.Error("booking insert failed", "err", err,
			"start_at", validated.StartAt.Format(time.RFC3339))
		writeError(w, http.StatusInternalServerError, "failed to create booking")
		return
	}

	// The booking is committed; confirmation delivery runs on its own and
	// cannot turn this response into a failure.
	h.notifier.Dispatch(b)

	h.logger.Info("booking created",
		"booking_id", b.ID,
		"start_at", b.StartAt.Format(time.RFC3339),
		"customer_type", string(b.CustomerType),
	)
	writeJSON(w, http.StatusOK, bookResponse{OK: true, LineOfficialURL: h.lineOfficialURL})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
