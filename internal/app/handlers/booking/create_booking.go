package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/middleware"
	"resort/internal/app/notify"
	"resort/internal/app/outbox"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	"resort/internal/domain/guests"
	"resort/internal/domain/pricing"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/money"
	domainyoga "resort/internal/domain/yoga"
)

const createBookingKey = "booking.create"

var tracer = otel.Tracer("resort/internal/app/handlers/booking")

type GuestInput struct {
	Name   string `json:"name" validate:"required,max=120"`
	Age    int    `json:"age" validate:"gte=0,lte=120"`
	Gender string `json:"gender" validate:"omitempty,max=32"`
}

type ServiceInput struct {
	ServiceID string `json:"service_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=100"`
}

type TransportInput struct {
	Pickup       bool       `json:"pickup"`
	Drop         bool       `json:"drop"`
	FlightNumber string     `json:"flight_number" validate:"max=16"`
	ArrivalAt    *time.Time `json:"arrival_at"`
	DepartureAt  *time.Time `json:"departure_at"`
	Notes        string     `json:"notes" validate:"max=500"`
}

type CreateBookingCommand struct {
	CommandID        string
	Requester        policies.Requester
	RoomID           string         `validate:"required"`
	CheckIn          time.Time      `validate:"required"`
	CheckOut         time.Time      `validate:"required"`
	Guests           []GuestInput   `validate:"required,min=1,max=50,dive"`
	Services         []ServiceInput `validate:"max=20,dive"`
	YogaSessionID    string
	Transport        *TransportInput
	IncludeFood      bool
	IncludeBreakfast bool
	SpecialRequests  string `validate:"max=1000"`
	IdempotencyKeyV  string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &BookingResult{} }

func (c CreateBookingCommand) Actor() policies.Requester { return c.Requester }

// BookingResult carries the booking snapshot plus notices for the guest.
type BookingResult struct {
	Booking dto.Booking `json:"booking"`
	notices []notify.Notice
}

func (r BookingResult) Notices() []notify.Notice { return r.notices }

// CreateBookingHandler validates, prices and stores a reservation in one unit
// of work. The room guard is taken first so that the overlap check and the
// insert cannot interleave with another reservation for the same room.
type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Validator  AvailabilityValidator
	Pricing    pricing.Calculator
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Attempts   int
	Now        func() time.Time
	NewID      func() string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (BookingResult, error) {
	ctx, span := tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("room.id", cmd.RoomID),
		attribute.Int("booking.guests", len(cmd.Guests)),
		attribute.Bool("booking.yoga", cmd.YogaSessionID != ""),
	))
	defer span.End()

	res, err := handlersupport.InUnit(ctx, h.UoWFactory, h.Attempts, func(ctx context.Context, unit uow.UnitOfWork) (BookingResult, error) {
		return h.reserve(ctx, unit, cmd)
	})
	if err != nil {
		err = classifyCreateError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return BookingResult{}, err
	}
	span.SetAttributes(attribute.String("booking.id", res.Booking.ID))
	res.notices = []notify.Notice{{Kind: notify.KindConfirmation, BookingID: domainbooking.BookingID(res.Booking.ID)}}
	return res, nil
}

func (h *CreateBookingHandler) reserve(ctx context.Context, unit uow.UnitOfWork, cmd CreateBookingCommand) (BookingResult, error) {
	roomID := domainrooms.RoomID(cmd.RoomID)
	if err := unit.Rooms().Guard(ctx, roomID); err != nil && !errors.Is(err, domainrooms.ErrNotFound) {
		return BookingResult{}, err
	}

	manifest, err := guests.NewManifest(toGuests(cmd.Guests))
	if err != nil {
		return BookingResult{}, err
	}
	selections := toSelections(cmd.Services)

	checked, err := h.Validator.Validate(ctx, unit, AvailabilityRequest{
		RoomID:        roomID,
		CheckIn:       cmd.CheckIn,
		CheckOut:      cmd.CheckOut,
		Guests:        manifest,
		Services:      selections,
		YogaSessionID: domainyoga.SessionID(cmd.YogaSessionID),
	})
	if err != nil {
		return BookingResult{}, err
	}

	input := pricing.Input{
		Range:            checked.Range,
		Guests:           manifest,
		PricePerNight:    checked.Room.PricePerNight,
		IncludeFood:      cmd.IncludeFood,
		IncludeBreakfast: cmd.IncludeBreakfast,
		Services:         checked.Services,
	}
	if cmd.IncludeBreakfast {
		unitPrice, err := breakfastPrice(ctx, unit)
		if err != nil {
			return BookingResult{}, err
		}
		input.BreakfastUnitPrice = unitPrice
	}
	transport := toTransport(cmd.Transport)
	input.Transport = pricing.Transport{Pickup: transport.Pickup, Drop: transport.Drop}
	if checked.Yoga != nil {
		price := checked.Yoga.Price
		input.YogaSessionPrice = &price
	}
	quote, err := h.Pricing.Quote(input)
	if err != nil {
		return BookingResult{}, err
	}

	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:               domainbooking.BookingID(h.bookingID(cmd)),
		RoomID:           checked.Room.ID,
		UserID:           cmd.Requester.UserID,
		Range:            checked.Range,
		Guests:           manifest,
		Services:         selections,
		YogaSessionID:    domainyoga.SessionID(cmd.YogaSessionID),
		Transport:        transport,
		IncludeFood:      cmd.IncludeFood,
		IncludeBreakfast: cmd.IncludeBreakfast,
		SpecialRequests:  cmd.SpecialRequests,
		Pricing:          quote,
		CreatedAt:        h.now(),
	})
	if err != nil {
		return BookingResult{}, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return BookingResult{}, err
	}
	if b.YogaSessionID != "" {
		if err := unit.Yoga().ReserveSeats(ctx, b.YogaSessionID, b.YogaSeats); err != nil {
			if errors.Is(err, domainyoga.ErrSessionFull) {
				return BookingResult{}, domainbooking.Rejected(domainbooking.ErrYogaSessionFull, "seats were taken while booking")
			}
			return BookingResult{}, err
		}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b); err != nil {
		return BookingResult{}, err
	}
	return BookingResult{Booking: dto.MapBooking(b)}, nil
}

func breakfastPrice(ctx context.Context, unit uow.UnitOfWork) (*money.Money, error) {
	svc, err := unit.Services().ActiveByCategory(ctx, domaincatalog.CategoryBreakfast)
	if err != nil {
		if errors.Is(err, domaincatalog.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	price := svc.Price
	return &price, nil
}

// classifyCreateError keeps rejections that explain themselves and hides
// everything else behind ErrBookingCreationFailed.
func classifyCreateError(err error) error {
	var rejected *domainbooking.ValidationError
	switch {
	case errors.As(err, &rejected):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case uow.IsTransient(err):
		return fmt.Errorf("%w: %w", domainbooking.ErrConcurrentReservation, err)
	case errors.Is(err, guests.ErrEmptyManifest), errors.Is(err, guests.ErrInvalidAge), errors.Is(err, guests.ErrNameRequired):
		return err
	default:
		return domainbooking.CreationFailed(err)
	}
}

func toGuests(in []GuestInput) []guests.Guest {
	out := make([]guests.Guest, 0, len(in))
	for _, g := range in {
		out = append(out, guests.Guest{Name: g.Name, Age: g.Age, Gender: g.Gender})
	}
	return out
}

func toSelections(in []ServiceInput) []domainbooking.ServiceSelection {
	out := make([]domainbooking.ServiceSelection, 0, len(in))
	for _, s := range in {
		qty := s.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, domainbooking.ServiceSelection{ServiceID: domaincatalog.ServiceID(s.ServiceID), Quantity: qty})
	}
	return out
}

func toTransport(in *TransportInput) domainbooking.Transport {
	if in == nil {
		return domainbooking.Transport{}
	}
	return domainbooking.Transport{
		Pickup:       in.Pickup,
		Drop:         in.Drop,
		FlightNumber: in.FlightNumber,
		ArrivalAt:    in.ArrivalAt,
		DepartureAt:  in.DepartureAt,
		Notes:        in.Notes,
	}
}

func (h *CreateBookingHandler) bookingID(cmd CreateBookingCommand) string {
	if cmd.CommandID != "" {
		return cmd.CommandID
	}
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateBookingCommand, BookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
