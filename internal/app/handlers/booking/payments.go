package booking

import (
	"context"
	"errors"
	"time"

	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/outbox"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

const (
	startPaymentKey       = "booking.payment.start"
	confirmPaymentKey     = "booking.payment.confirm"
	recordPaymentEventKey = "booking.payment.record"
)

var ErrPaymentsDisabled = errors.New("booking: payment gateway not configured")

type StartPaymentCommand struct {
	BookingID string `validate:"required"`
	Requester policies.Requester
}

func (c StartPaymentCommand) Key() string { return startPaymentKey }

func (c StartPaymentCommand) Actor() policies.Requester { return c.Requester }

type ConfirmPaymentCommand struct {
	BookingID string `validate:"required"`
	OrderID   string `validate:"required"`
	PaymentID string `validate:"required"`
	Signature string `validate:"required"`
	Requester policies.Requester
}

func (c ConfirmPaymentCommand) Key() string { return confirmPaymentKey }

func (c ConfirmPaymentCommand) Actor() policies.Requester { return c.Requester }

// PaymentOutcome is the settled state reported by the gateway.
type PaymentOutcome string

const (
	PaymentCaptured PaymentOutcome = "captured"
	PaymentFailed   PaymentOutcome = "failed"
)

// RecordPaymentEventCommand applies a gateway event received from the broker.
// The broker already authenticated the event, so no signature is checked.
type RecordPaymentEventCommand struct {
	BookingID string `validate:"required"`
	PaymentID string
	Outcome   PaymentOutcome `validate:"required,oneof=captured failed"`
}

func (c RecordPaymentEventCommand) Key() string { return recordPaymentEventKey }

type PaymentResult struct {
	Booking  dto.Booking `json:"booking"`
	Verified bool        `json:"verified"`
}

type PaymentsHandler struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Attempts   int
	Now        func() time.Time
}

// Start opens a gateway order for the booking total.
func (h *PaymentsHandler) Start(ctx context.Context, cmd StartPaymentCommand) (dto.PaymentOrder, error) {
	if h.Gateway == nil {
		return dto.PaymentOrder{}, ErrPaymentsDisabled
	}
	return handlersupport.InUnit(ctx, h.UoWFactory, h.Attempts, func(ctx context.Context, unit uow.UnitOfWork) (dto.PaymentOrder, error) {
		b, err := loadVisible(ctx, unit, cmd.BookingID, cmd.Requester)
		if err != nil {
			return dto.PaymentOrder{}, err
		}
		customer := policies.PaymentCustomer{ID: b.UserID}
		if u, err := unit.Users().ByID(ctx, domainuser.ID(b.UserID)); err == nil {
			customer.Name, customer.Email, customer.Phone = u.Name, u.Email, u.Phone
		}
		order, err := h.Gateway.CreateOrder(ctx, b.Pricing.Total, string(b.ID), customer)
		if err != nil {
			return dto.PaymentOrder{}, err
		}
		if err := b.AttachPaymentOrder(order.ID, h.now()); err != nil {
			return dto.PaymentOrder{}, err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return dto.PaymentOrder{}, err
		}
		return dto.PaymentOrder{BookingID: string(b.ID), OrderID: order.ID, Amount: dto.MapMoney(order.Amount)}, nil
	})
}

// Confirm checks the client-returned signature. A bad signature is recorded
// as a failed payment and reported through Verified=false so the failure
// survives the commit.
func (h *PaymentsHandler) Confirm(ctx context.Context, cmd ConfirmPaymentCommand) (PaymentResult, error) {
	if h.Gateway == nil {
		return PaymentResult{}, ErrPaymentsDisabled
	}
	return handlersupport.InUnit(ctx, h.UoWFactory, h.Attempts, func(ctx context.Context, unit uow.UnitOfWork) (PaymentResult, error) {
		b, err := loadVisible(ctx, unit, cmd.BookingID, cmd.Requester)
		if err != nil {
			return PaymentResult{}, err
		}
		now := h.now()
		verified := (b.PaymentOrderID == "" || b.PaymentOrderID == cmd.OrderID) &&
			h.Gateway.VerifySignature(cmd.OrderID, cmd.PaymentID, cmd.Signature)
		if verified {
			err = b.MarkPaid(cmd.PaymentID, now)
		} else {
			err = b.MarkPaymentFailed(now)
		}
		if err != nil {
			return PaymentResult{}, err
		}
		if err := h.persist(ctx, unit, b); err != nil {
			return PaymentResult{}, err
		}
		return PaymentResult{Booking: dto.MapBooking(b), Verified: verified}, nil
	})
}

// Record applies broker events. Replays of an already applied outcome are no-ops.
func (h *PaymentsHandler) Record(ctx context.Context, cmd RecordPaymentEventCommand) (PaymentResult, error) {
	return handlersupport.InUnit(ctx, h.UoWFactory, h.Attempts, func(ctx context.Context, unit uow.UnitOfWork) (PaymentResult, error) {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return PaymentResult{}, err
		}
		now := h.now()
		switch cmd.Outcome {
		case PaymentCaptured:
			err = b.MarkPaid(cmd.PaymentID, now)
		case PaymentFailed:
			if b.PaymentStatus == domainbooking.PaymentFailed {
				return PaymentResult{Booking: dto.MapBooking(b)}, nil
			}
			err = b.MarkPaymentFailed(now)
		default:
			err = domainbooking.ErrInvalidStateTransition
		}
		if err != nil {
			return PaymentResult{}, err
		}
		if err := h.persist(ctx, unit, b); err != nil {
			return PaymentResult{}, err
		}
		return PaymentResult{Booking: dto.MapBooking(b), Verified: cmd.Outcome == PaymentCaptured}, nil
	})
}

func (h *PaymentsHandler) persist(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking) error {
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b)
}

func (h *PaymentsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
