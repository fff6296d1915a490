package dto

import (
	"time"

	domainrooms "resort/internal/domain/rooms"
)

type Room struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type,omitempty"`
	Description   string   `json:"description,omitempty"`
	Capacity      int      `json:"capacity"`
	PricePerNight MoneyDTO `json:"price_per_night"`
	Amenities     []string `json:"amenities,omitempty"`
}

func MapRoom(r *domainrooms.Room) Room {
	return Room{
		ID:            string(r.ID),
		Name:          r.Name,
		Type:          r.Type,
		Description:   r.Description,
		Capacity:      r.Capacity,
		PricePerNight: MapMoney(r.PricePerNight),
		Amenities:     append([]string(nil), r.Amenities...),
	}
}

type Availability struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Nights   int       `json:"nights"`
	Rooms    []Room    `json:"rooms"`
}

type RoomOccupancy struct {
	RoomID          string  `json:"room_id"`
	Name            string  `json:"name"`
	BookedNights    int     `json:"booked_nights"`
	AvailableNights int     `json:"available_nights"`
	OccupancyRate   float64 `json:"occupancy_rate"`
}

type OccupancyReport struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Rooms         []RoomOccupancy `json:"rooms"`
	OccupancyRate float64         `json:"occupancy_rate"`
}

type PaymentOrder struct {
	BookingID string   `json:"booking_id"`
	OrderID   string   `json:"order_id"`
	Amount    MoneyDTO `json:"amount"`
}
