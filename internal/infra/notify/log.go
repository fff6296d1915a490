package notify

import (
	"context"
	"log/slog"

	"resort/internal/app/policies"
	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

// Log writes rendered messages to the logger instead of sending them.
type Log struct {
	Logger *slog.Logger
}

func (l Log) SendBookingConfirmation(ctx context.Context, b *domainbooking.Booking, u *domainuser.User) error {
	l.write(ctx, confirmationMessage(b, u))
	return nil
}

func (l Log) SendBookingCancellation(ctx context.Context, b *domainbooking.Booking, u *domainuser.User) error {
	l.write(ctx, cancellationMessage(b, u))
	return nil
}

func (l Log) write(ctx context.Context, msg Message) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email", "to", msg.To, "subject", msg.Subject, "custom_id", msg.CustomID, "body", msg.Body)
}

var _ policies.Notifier = Log{}
