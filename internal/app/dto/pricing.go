package dto

import (
	"resort/internal/domain/pricing"
)

type ServiceLine struct {
	ServiceID string   `json:"service_id"`
	Name      string   `json:"name"`
	Unit      string   `json:"unit"`
	UnitPrice MoneyDTO `json:"unit_price"`
	Quantity  int      `json:"quantity"`
	Total     MoneyDTO `json:"total"`
}

type PricingBreakdown struct {
	Nights       int `json:"nights"`
	Adults       int `json:"adults"`
	Children     int `json:"children"`
	PayingGuests int `json:"paying_guests"`
	TotalGuests  int `json:"total_guests"`
}

type Pricing struct {
	RoomPrice      MoneyDTO         `json:"room_price"`
	FoodPrice      MoneyDTO         `json:"food_price"`
	BreakfastPrice MoneyDTO         `json:"breakfast_price"`
	ServicesPrice  MoneyDTO         `json:"services_price"`
	Services       []ServiceLine    `json:"services,omitempty"`
	TransportPrice MoneyDTO         `json:"transport_price"`
	YogaPrice      MoneyDTO         `json:"yoga_price"`
	TotalAmount    MoneyDTO         `json:"total_amount"`
	Breakdown      PricingBreakdown `json:"breakdown"`
}

func MapPricing(p pricing.Result) Pricing {
	out := Pricing{
		RoomPrice:      MapMoney(p.RoomPrice),
		FoodPrice:      MapMoney(p.FoodPrice),
		BreakfastPrice: MapMoney(p.BreakfastPrice),
		ServicesPrice:  MapMoney(p.ServicesPrice),
		TransportPrice: MapMoney(p.TransportPrice),
		YogaPrice:      MapMoney(p.YogaPrice),
		TotalAmount:    MapMoney(p.Total),
		Breakdown: PricingBreakdown{
			Nights:       p.Breakdown.Nights,
			Adults:       p.Breakdown.Adults,
			Children:     p.Breakdown.Children,
			PayingGuests: p.Breakdown.PayingGuests,
			TotalGuests:  p.Breakdown.TotalGuests,
		},
	}
	for _, l := range p.Services {
		out.Services = append(out.Services, ServiceLine{
			ServiceID: string(l.ServiceID),
			Name:      l.Name,
			Unit:      string(l.Unit),
			UnitPrice: MapMoney(l.UnitPrice),
			Quantity:  l.Quantity,
			Total:     MapMoney(l.Total),
		})
	}
	return out
}
