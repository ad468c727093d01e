package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ymsk/slotline/internal/availability"
	"github.com/ymsk/slotline/internal/booking"
)

// serviceLength is the billed call length. Slots are sold on a 30-minute
// grid but the call itself runs 20 minutes.
const serviceLength = 20 * time.Minute

// Confirmation renders the plain-text message the shop receives after a
// booking commits. The customer forwards it to the official LINE account to
// finalize the reservation.
func Confirmation(b booking.Booking, lineURL string) string {
	start := availability.Label(b.StartAt)
	end := availability.Label(b.StartAt.Add(serviceLength))
	return fmt.Sprintf(
		"New phone reservation\n"+
			"Payment: %s\n"+
			"Start: %s\n"+
			"End: %s\n"+
			"Customer: %s\n"+
			"Name: %s\n"+
			"\n"+
			"Copy this message and send it to the official LINE account to confirm:\n"+
			"%s",
		b.PaymentMethod, start, end, b.CustomerType, b.Name, lineURL,
	)
}

// Dispatcher delivers booking confirmations after commit. Delivery is
// strictly best-effort: the booking response has already been decided, so a
// failed or slow push is logged and nothing else.
type Dispatcher struct {
	pusher  Pusher
	to      string
	lineURL string
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(pusher Pusher, to string, lineURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		pusher:  pusher,
		to:      to,
		lineURL: lineURL,
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Dispatch sends the confirmation without blocking the caller. The push runs
// on a detached context so a cancelled request cannot abort it, and a recover
// guard keeps a misbehaving pusher away from the response path.
func (d *Dispatcher) Dispatch(b booking.Booking) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("confirmation dispatch panicked", "recover", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.pusher.Push(ctx, d.to, Confirmation(b, d.lineURL)); err != nil {
			d.logger.Warn("confirmation push failed",
				"err", err,
				"start_at", b.StartAt.Format(time.RFC3339),
			)
			return
		}
		d.logger.Info("confirmation pushed", "start_at", b.StartAt.Format(time.RFC3339))
	}()
}
