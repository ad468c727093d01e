package booking

import "time"

type CustomerType string

const (
	CustomerNew    CustomerType = "new"
	CustomerMember CustomerType = "member"
)

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

// Request is a booking request that has passed validation.
type Request struct {
	StartAt       time.Time
	Name          string
	CustomerType  CustomerType
	PaymentMethod PaymentMethod
}

// Booking is a persisted reservation. StartAt is unique across all bookings;
// the database enforces that, and it is the only double-booking guard.
// Bookings are written once and never mutated.
type Booking struct {
	ID            string
	StartAt       time.Time
	Name          string
	CustomerType  CustomerType
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
}
