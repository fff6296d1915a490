package booking

import (
	"context"
	"errors"
	"time"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/outbox"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

const transitionBookingKey = "booking.transition"

type Transition string

const (
	TransitionConfirm  Transition = "confirm"
	TransitionCheckIn  Transition = "check_in"
	TransitionCheckOut Transition = "check_out"
)

var ErrUnknownTransition = errors.New("booking: unknown transition")

// TransitionBookingCommand moves a booking along the front-desk lifecycle.
type TransitionBookingCommand struct {
	BookingID string     `validate:"required"`
	Action    Transition `validate:"required,oneof=confirm check_in check_out"`
	Requester policies.Requester
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

func (c TransitionBookingCommand) Actor() policies.Requester { return c.Requester }

func (c TransitionBookingCommand) RequiredRole() domainuser.Role { return domainuser.RoleAdmin }

type TransitionBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Attempts   int
	Now        func() time.Time
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (BookingResult, error) {
	return handlersupport.InUnit(ctx, h.UoWFactory, h.Attempts, func(ctx context.Context, unit uow.UnitOfWork) (BookingResult, error) {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return BookingResult{}, err
		}
		now := time.Now().UTC()
		if h.Now != nil {
			now = h.Now().UTC()
		}
		switch cmd.Action {
		case TransitionConfirm:
			err = b.Confirm(now)
		case TransitionCheckIn:
			err = b.CheckIn(now)
		case TransitionCheckOut:
			err = b.CheckOut(now)
		default:
			err = ErrUnknownTransition
		}
		if err != nil {
			return BookingResult{}, err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return BookingResult{}, err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b); err != nil {
			return BookingResult{}, err
		}
		return BookingResult{Booking: dto.MapBooking(b)}, nil
	})
}

var _ commands.Handler[TransitionBookingCommand, BookingResult] = (*TransitionBookingHandler)(nil)
