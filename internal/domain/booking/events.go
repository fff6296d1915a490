package booking

import (
	"time"

	"resort/internal/domain/rooms"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID BookingID
	RoomID    rooms.RoomID
	UserID    string
	Range     daterange.DateRange
	Guests    int
	Total     money.Money
	At        time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID
	RoomID    rooms.RoomID
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID
	RoomID    rooms.RoomID
	Reason    string
	At        time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type GuestCheckedIn struct {
	BookingID BookingID
	At        time.Time
}

func (e GuestCheckedIn) EventName() string     { return "booking.checked_in" }
func (e GuestCheckedIn) AggregateID() string   { return string(e.BookingID) }
func (e GuestCheckedIn) OccurredAt() time.Time { return e.At }

type GuestCheckedOut struct {
	BookingID BookingID
	At        time.Time
}

func (e GuestCheckedOut) EventName() string     { return "booking.checked_out" }
func (e GuestCheckedOut) AggregateID() string   { return string(e.BookingID) }
func (e GuestCheckedOut) OccurredAt() time.Time { return e.At }

type PaymentCaptured struct {
	BookingID BookingID
	PaymentID string
	Amount    money.Money
	At        time.Time
}

func (e PaymentCaptured) EventName() string     { return "booking.payment_captured" }
func (e PaymentCaptured) AggregateID() string   { return string(e.BookingID) }
func (e PaymentCaptured) OccurredAt() time.Time { return e.At }

type PaymentDeclined struct {
	BookingID BookingID
	At        time.Time
}

func (e PaymentDeclined) EventName() string     { return "booking.payment_failed" }
func (e PaymentDeclined) AggregateID() string   { return string(e.BookingID) }
func (e PaymentDeclined) OccurredAt() time.Time { return e.At }

type RefundIssued struct {
	BookingID BookingID
	PaymentID string
	Amount    money.Money
	At        time.Time
}

func (e RefundIssued) EventName() string     { return "booking.payment_refunded" }
func (e RefundIssued) AggregateID() string   { return string(e.BookingID) }
func (e RefundIssued) OccurredAt() time.Time { return e.At }
