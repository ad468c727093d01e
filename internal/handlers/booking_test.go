package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ymsk/slotline/internal/booking"
	"github.com/ymsk/slotline/internal/storage"
)

// fakeStore keeps bookings in memory and rejects duplicate start instants
// the way the database unique index does.
type fakeStore struct {
	mu        sync.Mutex
	bookings  map[int64]booking.Booking
	listErr   error
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{bookings: map[int64]booking.Booking{}}
}

func (s *fakeStore) ListBookedStarts(_ context.Context, start, end time.Time) ([]time.Time, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var starts []time.Time
	for _, b := range s.bookings {
		if !b.StartAt.Before(start) && b.StartAt.Before(end) {
			starts = append(starts, b.StartAt)
		}
	}
	return starts, nil
}

func (s *fakeStore) Create(_ context.Context, req booking.Request) (booking.Booking, error) {
	if s.createErr != nil {
		return booking.Booking{}, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := req.StartAt.Unix()
	if _, taken := s.bookings[key]; taken {
		return booking.Booking{}, storage.ErrSlotTaken
	}
	b := booking.Booking{
		ID:            fmt.Sprintf("b-%d", key),
		StartAt:       req.StartAt,
		Name:          req.Name,
		CustomerType:  req.CustomerType,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	s.bookings[key] = b
	return b, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	dispatched []booking.Booking
}

func (n *fakeNotifier) Dispatch(b booking.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, b)
}

func newTestHandler(store BookingStore) (*BookingHandler, *fakeNotifier) {
	notifier := &fakeNotifier{}
	h := NewBookingHandler(store, notifier, slog.New(slog.DiscardHandler), "https://line.me/R/ti/p/@shop")
	// Fixed clock: 14:00 JST on 2026-02-14.
	h.now = func() time.Time { return time.Date(2026, 2, 14, 5, 0, 0, 0, time.UTC) }
	return h, notifier
}

func bookBody(startAt string) string {
	return fmt.Sprintf(`{"startAt":%q,"name":"Tanaka","customerType":"member","paymentMethod":"card"}`, startAt)
}

func TestSlots_FullDay(t *testing.T) {
	store := newFakeStore()
	// Book local 19:00 (10:00 UTC) directly through the store.
	_, err := store.Create(context.Background(), booking.Request{
		StartAt:       time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		Name:          "Sato",
		CustomerType:  booking.CustomerNew,
		PaymentMethod: booking.PaymentTransfer,
	})
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	h, _ := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?day=2026-02-14", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Day   string `json:"day"`
		Slots []struct {
			StartAt   string `json:"startAt"`
			Label     string `json:"label"`
			Available bool   `json:"available"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Day != "2026-02-14" {
		t.Fatalf("day = %q", resp.Day)
	}
	if len(resp.Slots) != 34 {
		t.Fatalf("expected 34 slots, got %d", len(resp.Slots))
	}
	if resp.Slots[0].StartAt != "2026-02-14T03:00:00.000Z" || resp.Slots[0].Label != "12:00" {
		t.Fatalf("first slot = %+v", resp.Slots[0])
	}
	last := resp.Slots[len(resp.Slots)-1]
	if last.StartAt != "2026-02-14T19:30:00.000Z" || last.Label != "04:30" {
		t.Fatalf("last slot = %+v", last)
	}

	for _, s := range resp.Slots {
		switch s.Label {
		case "19:00":
			if s.Available {
				t.Fatal("booked 19:00 slot must be unavailable")
			}
		case "12:00", "13:30":
			// Now is 14:00 local; earlier slots are in the past.
			if s.Available {
				t.Fatalf("past slot %s must be unavailable", s.Label)
			}
		case "14:30":
			if !s.Available {
				t.Fatal("future unbooked slot must be available")
			}
		}
	}
}

func TestSlots_BadDay(t *testing.T) {
	h, _ := newTestHandler(newFakeStore())

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing day: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?day=14-02-2026", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed day: status = %d", rec.Code)
	}
}

func TestSlots_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db gone")
	h, _ := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?day=2026-02-14", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreate_Success(t *testing.T) {
	store := newFakeStore()
	h, notifier := newTestHandler(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(bookBody("2026-02-14T14:30:00.000Z"))) // 23:30 JST today
	h.Create(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK              bool   `json:"ok"`
		LineOfficialURL string `json:"lineOfficialUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.OK || resp.LineOfficialURL != "https://line.me/R/ti/p/@shop" {
		t.Fatalf("response = %+v", resp)
	}
	if len(notifier.dispatched) != 1 || notifier.dispatched[0].Name != "Tanaka" {
		t.Fatalf("dispatched = %+v", notifier.dispatched)
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	h, notifier := newTestHandler(newFakeStore())

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing fields", `{"startAt":"2026-02-14T14:30:00Z"}`},
		{"bad customer type", `{"startAt":"2026-02-14T14:30:00Z","name":"A","customerType":"guest","paymentMethod":"card"}`},
		{"off-grid minute", bookBody("2026-02-14T14:15:00Z")},
		{"outside window", bookBody("2026-02-14T00:00:00Z")}, // 09:00 JST
		{"too far ahead", bookBody("2026-02-17T14:30:00Z")},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(tc.body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, body = %s", tc.name, rec.Code, rec.Body.String())
		}
	}
	if len(notifier.dispatched) != 0 {
		t.Fatal("rejected requests must not notify")
	}
}

func TestCreate_Conflict(t *testing.T) {
	store := newFakeStore()
	h, notifier := newTestHandler(store)

	first := httptest.NewRecorder()
	h.Create(first, httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(bookBody("2026-02-14T14:30:00Z"))))
	if first.Code != http.StatusOK {
		t.Fatalf("first booking: status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.Create(second, httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(bookBody("2026-02-14T14:30:00Z"))))
	if second.Code != http.StatusConflict {
		t.Fatalf("duplicate booking: status = %d, body = %s", second.Code, second.Body.String())
	}
	if len(notifier.dispatched) != 1 {
		t.Fatalf("only the winner notifies, got %d", len(notifier.dispatched))
	}
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	store := newFakeStore()
	h, notifier := newTestHandler(store)

	const attempts = 16
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
				strings.NewReader(bookBody("2026-02-14T14:30:00Z"))))
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	var ok, conflict, other int
	for code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		default:
			other++
		}
	}
	if ok != 1 || conflict != attempts-1 || other != 0 {
		t.Fatalf("ok=%d conflict=%d other=%d, want 1/%d/0", ok, conflict, other, attempts-1)
	}
	if len(store.bookings) != 1 {
		t.Fatalf("expected a single booking record, got %d", len(store.bookings))
	}
	if len(notifier.dispatched) != 1 {
		t.Fatalf("expected a single notification, got %d", len(notifier.dispatched))
	}
}

func TestCreate_StorageFailure(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db gone")
	h, _ := newTestHandler(store)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(bookBody("2026-02-14T14:30:00Z"))))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

// failingNotifier mimics a notifier whose delivery always fails; the booking
// response must not notice.
type failingNotifier struct{ calls int }

func (n *failingNotifier) Dispatch(booking.Booking) { n.calls++ }

func TestCreate_NotificationFailureDoesNotFailBooking(t *testing.T) {
	store := newFakeStore()
	notifier := &failingNotifier{}
	h := NewBookingHandler(store, notifier, slog.New(slog.DiscardHandler), "")
	h.now = func() time.Time { return time.Date(2026, 2, 14, 5, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book",
		strings.NewReader(bookBody("2026-02-14T14:30:00Z"))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; delivery failures must not fail the booking", rec.Code)
	}
	if notifier.calls != 1 {
		t.Fatalf("notifier calls = %d", notifier.calls)
	}
	if len(store.bookings) != 1 {
		t.Fatal("booking record must exist regardless of notification outcome")
	}
}

func TestMethodGuards(t *testing.T) {
	h, _ := newTestHandler(newFakeStore())

	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/slots?day=2026-02-14", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("slots POST: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/book", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("book GET: status = %d", rec.Code)
	}
}
