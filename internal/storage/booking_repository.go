package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ymsk/slotline/internal/booking"
	"github.com/ymsk/slotline/libs/db"
)

// ErrSlotTaken reports that another booking already holds the requested
// start instant. It is a legitimate concurrent-booking outcome, not a fault.
var ErrSlotTaken = errors.New("slot already booked")

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ListBookedStarts returns the start instants of all bookings in
// [start, end), ascending.
func (r *BookingRepository) ListBookedStarts(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at
		FROM bookings
		WHERE start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		starts = append(starts, at.UTC())
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return starts, nil
}

// Create inserts the booking. The unique index on start_at is the only guard
// against double booking: when many requests race for the same instant the
// database admits exactly one insert and the rest come back as ErrSlotTaken.
// Conflicts are terminal for the request; there is no retry here.
func (r *BookingRepository) Create(ctx context.Context, req booking.Request) (booking.Booking, error) {
	b := booking.Booking{
		ID:            uuid.NewString(),
		StartAt:       req.StartAt,
		Name:          req.Name,
		CustomerType:  req.CustomerType,
		PaymentMethod: req.PaymentMethod,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, start_at, name, customer_type, payment_method)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, b.ID, b.StartAt, b.Name, string(b.CustomerType), string(b.PaymentMethod)).Scan(&b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return booking.Booking{}, ErrSlotTaken
		}
		return booking.Booking{}, err
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
