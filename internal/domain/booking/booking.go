package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"resort/internal/domain/catalog"
	"resort/internal/domain/guests"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rooms"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/events"
	"resort/internal/domain/yoga"
)

var (
	ErrUserRequired  = errors.New("booking: user id required")
	ErrRoomRequired  = errors.New("booking: room id required")
	ErrPricingAbsent = errors.New("booking: priced quote required")
)

type BookingID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
)

// BlockingStatuses hold room-nights; bookings in any other status free them.
func BlockingStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCheckedIn}
}

func (s Status) Blocks() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type ServiceSelection struct {
	ServiceID catalog.ServiceID
	Quantity  int
}

type Transport struct {
	Pickup       bool
	Drop         bool
	FlightNumber string
	ArrivalAt    *time.Time
	DepartureAt  *time.Time
	Notes        string
}

type Booking struct {
	ID               BookingID
	RoomID           rooms.RoomID
	UserID           string
	Range            daterange.DateRange
	Guests           guests.Manifest
	Services         []ServiceSelection
	YogaSessionID    yoga.SessionID
	YogaSeats        int
	Transport        Transport
	IncludeFood      bool
	IncludeBreakfast bool
	SpecialRequests  string
	Pricing          pricing.Result
	Status           Status
	PaymentStatus    PaymentStatus
	PaymentOrderID   string
	PaymentID        string
	CancelReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CancelledAt      *time.Time
	Version          int64
	events.EventRecorder
}

// OverlapQuery selects bookings whose stay intersects Range. An empty RoomID
// matches every room.
type OverlapQuery struct {
	RoomID   rooms.RoomID
	Range    daterange.DateRange
	Statuses []Status
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	FindOverlapping(ctx context.Context, query OverlapQuery) ([]*Booking, error)
}

type CreateParams struct {
	ID               BookingID
	RoomID           rooms.RoomID
	UserID           string
	Range            daterange.DateRange
	Guests           guests.Manifest
	Services         []ServiceSelection
	YogaSessionID    yoga.SessionID
	Transport        Transport
	IncludeFood      bool
	IncludeBreakfast bool
	SpecialRequests  string
	Pricing          pricing.Result
	CreatedAt        time.Time
}

// NewBooking creates a pending, unpaid booking holding the priced quote.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrUserRequired
	}
	if params.RoomID == "" {
		return nil, ErrRoomRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, ErrInvalidDateRange
	}
	if params.Guests.Total() == 0 {
		return nil, guests.ErrEmptyManifest
	}
	if params.Pricing.Total.Currency == "" {
		return nil, ErrPricingAbsent
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:               params.ID,
		RoomID:           params.RoomID,
		UserID:           params.UserID,
		Range:            params.Range,
		Guests:           append(guests.Manifest(nil), params.Guests...),
		Services:         append([]ServiceSelection(nil), params.Services...),
		YogaSessionID:    params.YogaSessionID,
		Transport:        params.Transport,
		IncludeFood:      params.IncludeFood,
		IncludeBreakfast: params.IncludeBreakfast,
		SpecialRequests:  strings.TrimSpace(params.SpecialRequests),
		Pricing:          params.Pricing.Copy(),
		Status:           StatusPending,
		PaymentStatus:    PaymentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if b.YogaSessionID != "" {
		b.YogaSeats = b.Guests.Total()
	}
	b.Record(BookingCreated{
		BookingID: b.ID,
		RoomID:    b.RoomID,
		UserID:    b.UserID,
		Range:     b.Range,
		Guests:    b.Guests.Total(),
		Total:     b.Pricing.Total,
		At:        now,
	})
	return b, nil
}

// VisibleTo reports whether the requester may read or cancel the booking.
func (b *Booking) VisibleTo(userID string, admin bool) bool {
	return admin || (userID != "" && b.UserID == userID)
}

func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	b.Status = StatusConfirmed
	b.touch(now)
	b.Record(BookingConfirmed{BookingID: b.ID, RoomID: b.RoomID, Range: b.Range, Total: b.Pricing.Total, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckIn(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidStateTransition
	}
	b.Status = StatusCheckedIn
	b.touch(now)
	b.Record(GuestCheckedIn{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckOut(now time.Time) error {
	if b.Status != StatusCheckedIn {
		return ErrInvalidStateTransition
	}
	b.Status = StatusCheckedOut
	b.touch(now)
	b.Record(GuestCheckedOut{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

// Cancel moves a pending or confirmed booking to cancelled. It returns the
// number of yoga seats to release.
func (b *Booking) Cancel(reason string, now time.Time) (int, error) {
	switch b.Status {
	case StatusPending, StatusConfirmed:
	case StatusCancelled:
		return 0, ErrAlreadyCancelled
	default:
		return 0, ErrInvalidStateTransition
	}
	b.Status = StatusCancelled
	b.CancelReason = strings.TrimSpace(reason)
	b.touch(now)
	at := b.UpdatedAt
	b.CancelledAt = &at
	b.Record(BookingCancelled{BookingID: b.ID, RoomID: b.RoomID, Reason: b.CancelReason, At: at})
	if b.YogaSessionID == "" {
		return 0, nil
	}
	return b.YogaSeats, nil
}

func (b *Booking) AttachPaymentOrder(orderID string, now time.Time) error {
	if b.Status == StatusCancelled || b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentRefunded {
		return ErrInvalidStateTransition
	}
	b.PaymentOrderID = orderID
	b.touch(now)
	return nil
}

// MarkPaid records a captured payment and confirms a pending booking.
func (b *Booking) MarkPaid(paymentID string, now time.Time) error {
	if b.Status == StatusCancelled || b.PaymentStatus == PaymentRefunded {
		return ErrInvalidStateTransition
	}
	if b.PaymentStatus == PaymentPaid {
		return nil
	}
	b.PaymentStatus = PaymentPaid
	b.PaymentID = paymentID
	b.touch(now)
	b.Record(PaymentCaptured{BookingID: b.ID, PaymentID: paymentID, Amount: b.Pricing.Total, At: b.UpdatedAt})
	if b.Status == StatusPending {
		return b.Confirm(now)
	}
	return nil
}

func (b *Booking) MarkPaymentFailed(now time.Time) error {
	if b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentRefunded {
		return ErrInvalidStateTransition
	}
	b.PaymentStatus = PaymentFailed
	b.touch(now)
	b.Record(PaymentDeclined{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) MarkRefunded(now time.Time) error {
	if b.PaymentStatus != PaymentPaid {
		return ErrInvalidStateTransition
	}
	b.PaymentStatus = PaymentRefunded
	b.touch(now)
	b.Record(RefundIssued{BookingID: b.ID, PaymentID: b.PaymentID, Amount: b.Pricing.Total, At: b.UpdatedAt})
	return nil
}

func (b *Booking) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	b.UpdatedAt = now.UTC()
}
