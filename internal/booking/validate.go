package booking

import (
	"errors"
	"strings"
	"time"

	"github.com/ymsk/slotline/internal/availability"
)

var (
	ErrMissingField         = errors.New("startAt, name, customerType and paymentMethod are required")
	ErrInvalidCustomerType  = errors.New("customerType must be new or member")
	ErrInvalidPaymentMethod = errors.New("paymentMethod must be card or transfer")
	ErrMalformedTime        = errors.New("startAt is not a valid timestamp")
	ErrGranularity          = errors.New("bookings start on 30-minute boundaries")
	ErrOutsideWindow        = errors.New("outside booking hours (12:00 to 05:00 next day)")
	ErrDayRange             = errors.New("bookings are limited to today and tomorrow")
)

// RawRequest is the wire shape of a booking request before validation.
type RawRequest struct {
	StartAt       string
	Name          string
	CustomerType  string
	PaymentMethod string
}

// Validate checks a raw request and returns the typed request or the first
// failing rule. All wall-clock rules run in the fixed business offset, and
// "today"/"tomorrow" are taken from now shifted into that offset; comparing
// raw UTC dates would be off by one for most of the business window.
func Validate(raw RawRequest, now time.Time) (Request, error) {
	startStr := strings.TrimSpace(raw.StartAt)
	name := strings.TrimSpace(raw.Name)
	if startStr == "" || name == "" || raw.CustomerType == "" || raw.PaymentMethod == "" {
		return Request{}, ErrMissingField
	}

	customerType := CustomerType(raw.CustomerType)
	if customerType != CustomerNew && customerType != CustomerMember {
		return Request{}, ErrInvalidCustomerType
	}
	paymentMethod := PaymentMethod(raw.PaymentMethod)
	if paymentMethod != PaymentCard && paymentMethod != PaymentTransfer {
		return Request{}, ErrInvalidPaymentMethod
	}

	startAt, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return Request{}, ErrMalformedTime
	}

	local := startAt.In(availability.Location)
	minute := local.Minute()
	if minute != 0 && minute != 30 {
		return Request{}, ErrGranularity
	}

	// 12:00 through 05:00 next day. 05:00 exactly is accepted even though
	// the slot listing stops at 04:30.
	hour := local.Hour()
	inWindow := (hour >= 12 && hour <= 23) ||
		(hour >= 0 && hour <= 4) ||
		(hour == 5 && minute == 0)
	if !inWindow {
		return Request{}, ErrOutsideWindow
	}

	nowLocal := now.In(availability.Location)
	day := civilDate(local)
	if day != civilDate(nowLocal) && day != civilDate(nowLocal.AddDate(0, 0, 1)) {
		return Request{}, ErrDayRange
	}

	return Request{
		StartAt:       startAt.UTC(),
		Name:          name,
		CustomerType:  customerType,
		PaymentMethod: paymentMethod,
	}, nil
}

func civilDate(t time.Time) string {
	return t.Format("2006-01-02")
}
