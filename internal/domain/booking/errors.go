package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDateRange        = errors.New("booking: invalid date range")
	ErrRoomUnavailable         = errors.New("booking: room unavailable")
	ErrCapacityExceeded        = errors.New("booking: room capacity exceeded")
	ErrDateOverlap             = errors.New("booking: dates overlap an existing booking")
	ErrServiceInactive         = errors.New("booking: service inactive")
	ErrAgeRestrictionViolation = errors.New("booking: guest age outside service restriction")
	ErrYogaSessionFull         = errors.New("booking: yoga session full")
	ErrInvalidStateTransition  = errors.New("booking: invalid state transition")
	ErrAlreadyCancelled        = errors.New("booking: already cancelled")
	ErrNotFound                = errors.New("booking: not found")
	ErrBookingCreationFailed   = errors.New("booking: creation failed")

	ErrConcurrentReservation     = errors.New("booking: concurrent reservation, please retry")
	ErrPaymentVerificationFailed = errors.New("booking: payment verification failed")
	ErrRefundFailed              = errors.New("booking: refund failed")
	ErrConcurrentUpdate          = errors.New("booking: concurrent update")
)

// ValidationError describes why a reservation was rejected. It unwraps to one
// of the sentinel kinds above so callers can match with errors.Is.
type ValidationError struct {
	Kind                error
	Detail              string
	ConflictingBookings []BookingID
	Guest               string
	Service             string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.ConflictingBookings) > 0 {
		ids := make([]string, len(e.ConflictingBookings))
		for i, id := range e.ConflictingBookings {
			ids[i] = string(id)
		}
		fmt.Fprintf(&b, " (conflicts: %s)", strings.Join(ids, ", "))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func Rejected(kind error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// CreationFailed hides the storage cause behind ErrBookingCreationFailed while
// keeping it reachable for logs.
func CreationFailed(cause error) error {
	if cause == nil {
		return ErrBookingCreationFailed
	}
	return fmt.Errorf("%w: %w", ErrBookingCreationFailed, cause)
}
