package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/notify"
	"resort/internal/app/outbox"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domainyoga "resort/internal/domain/yoga"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	Requester policies.Requester
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) Actor() policies.Requester { return c.Requester }

// CancelBookingHandler reverses a reservation. The booking is cancelled and its
// yoga seats are handed back in one unit of work. A captured payment is
// refunded inside that unit, keyed by booking id, so a replayed unit or a
// retried request never refunds twice.
type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentGateway
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Attempts   int
	Now        func() time.Time
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (BookingResult, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.String("booking.id", cmd.BookingID),
	))
	defer span.End()

	var refundRef string
	res, err := handlersupport.InUnit(ctx, h.UoWFactory, h.Attempts, func(ctx context.Context, unit uow.UnitOfWork) (BookingResult, error) {
		return h.cancel(ctx, unit, cmd, &refundRef)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return BookingResult{}, err
	}
	res.notices = []notify.Notice{{Kind: notify.KindCancellation, BookingID: domainbooking.BookingID(res.Booking.ID)}}
	return res, nil
}

func (h *CancelBookingHandler) cancel(ctx context.Context, unit uow.UnitOfWork, cmd CancelBookingCommand, refundRef *string) (BookingResult, error) {
	b, err := loadVisible(ctx, unit, cmd.BookingID, cmd.Requester)
	if err != nil {
		return BookingResult{}, err
	}
	now := h.now()
	paid := b.PaymentStatus == domainbooking.PaymentPaid
	seats, err := b.Cancel(cmd.Reason, now)
	if err != nil {
		return BookingResult{}, err
	}
	if paid {
		if err := h.refund(ctx, b, refundRef); err != nil {
			return BookingResult{}, err
		}
		if err := b.MarkRefunded(now); err != nil {
			return BookingResult{}, err
		}
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return BookingResult{}, err
	}
	if seats > 0 {
		err := unit.Yoga().ReleaseSeats(ctx, b.YogaSessionID, seats)
		if err != nil && !errors.Is(err, domainyoga.ErrNotFound) {
			return BookingResult{}, err
		}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b); err != nil {
		return BookingResult{}, err
	}
	return BookingResult{Booking: dto.MapBooking(b)}, nil
}

// refund asks the gateway once per Handle call; replays of the unit reuse the
// reference already obtained.
func (h *CancelBookingHandler) refund(ctx context.Context, b *domainbooking.Booking, ref *string) error {
	if *ref != "" {
		return nil
	}
	if h.Payments == nil {
		return fmt.Errorf("%w: %w", domainbooking.ErrRefundFailed, ErrPaymentsDisabled)
	}
	r, err := h.Payments.Refund(ctx, b.PaymentID, b.Pricing.Total, string(b.ID))
	if err != nil {
		return fmt.Errorf("%w: %w", domainbooking.ErrRefundFailed, err)
	}
	*ref = r
	return nil
}

// loadVisible hides bookings the requester may not see behind ErrNotFound.
func loadVisible(ctx context.Context, unit uow.UnitOfWork, id string, requester policies.Requester) (*domainbooking.Booking, error) {
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
	if err != nil {
		return nil, err
	}
	if !b.VisibleTo(requester.UserID, requester.IsAdmin()) {
		return nil, domainbooking.ErrNotFound
	}
	return b, nil
}

func (h *CancelBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CancelBookingCommand, BookingResult] = (*CancelBookingHandler)(nil)
