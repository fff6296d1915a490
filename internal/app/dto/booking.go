package dto

import (
	"time"

	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/guests"
	"resort/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type GuestDTO struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Gender  string `json:"gender,omitempty"`
	IsChild bool   `json:"is_child"`
}

type ServiceSelectionDTO struct {
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

type TransportDTO struct {
	Pickup       bool       `json:"pickup"`
	Drop         bool       `json:"drop"`
	FlightNumber string     `json:"flight_number,omitempty"`
	ArrivalAt    *time.Time `json:"arrival_at,omitempty"`
	DepartureAt  *time.Time `json:"departure_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

type Booking struct {
	ID               string                `json:"id"`
	RoomID           string                `json:"room_id"`
	UserID           string                `json:"user_id"`
	CheckIn          time.Time             `json:"check_in"`
	CheckOut         time.Time             `json:"check_out"`
	Guests           []GuestDTO            `json:"guests"`
	Services         []ServiceSelectionDTO `json:"services,omitempty"`
	YogaSessionID    string                `json:"yoga_session_id,omitempty"`
	YogaSeats        int                   `json:"yoga_seats,omitempty"`
	Transport        *TransportDTO         `json:"transport,omitempty"`
	IncludeFood      bool                  `json:"include_food"`
	IncludeBreakfast bool                  `json:"include_breakfast"`
	SpecialRequests  string                `json:"special_requests,omitempty"`
	Pricing          Pricing               `json:"pricing"`
	Status           string                `json:"status"`
	PaymentStatus    string                `json:"payment_status"`
	PaymentOrderID   string                `json:"payment_order_id,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	CancelledAt      *time.Time            `json:"cancelled_at,omitempty"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapGuests(list guests.Manifest) []GuestDTO {
	out := make([]GuestDTO, 0, len(list))
	for _, g := range list {
		out = append(out, GuestDTO{Name: g.Name, Age: g.Age, Gender: g.Gender, IsChild: g.IsChild()})
	}
	return out
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:               string(b.ID),
		RoomID:           string(b.RoomID),
		UserID:           b.UserID,
		CheckIn:          b.Range.CheckIn,
		CheckOut:         b.Range.CheckOut,
		Guests:           MapGuests(b.Guests),
		YogaSessionID:    string(b.YogaSessionID),
		YogaSeats:        b.YogaSeats,
		IncludeFood:      b.IncludeFood,
		IncludeBreakfast: b.IncludeBreakfast,
		SpecialRequests:  b.SpecialRequests,
		Pricing:          MapPricing(b.Pricing),
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentOrderID:   b.PaymentOrderID,
		CancelReason:     b.CancelReason,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		CancelledAt:      b.CancelledAt,
	}
	for _, s := range b.Services {
		out.Services = append(out.Services, ServiceSelectionDTO{ServiceID: string(s.ServiceID), Quantity: s.Quantity})
	}
	if t := b.Transport; t.Pickup || t.Drop {
		out.Transport = &TransportDTO{
			Pickup:       t.Pickup,
			Drop:         t.Drop,
			FlightNumber: t.FlightNumber,
			ArrivalAt:    t.ArrivalAt,
			DepartureAt:  t.DepartureAt,
			Notes:        t.Notes,
		}
	}
	return out
}
