package policies

import (
	"context"

	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

// Notifier delivers booking messages to guests. Callers treat failures as
// non-fatal: a booking is never rolled back because a message was lost.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, booking *domainbooking.Booking, user *domainuser.User) error
	SendBookingCancellation(ctx context.Context, booking *domainbooking.Booking, user *domainuser.User) error
}
