package pricing

import (
	"errors"
	"fmt"
	"math"

	"resort/internal/domain/catalog"
	"resort/internal/domain/guests"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

var (
	ErrInvalidNights  = errors.New("pricing: stay must cover at least one night")
	ErrCurrencyUnset  = errors.New("pricing: currency must be defined")
	ErrNoGuests       = errors.New("pricing: guest manifest is empty")
	ErrServiceMissing = errors.New("pricing: service selection without service")
)

// Rates holds the flat tariffs not stored in the catalog.
type Rates struct {
	Currency          string
	FoodPerGuestNight int64
	BreakfastFallback int64
	PickupLeg         int64
	DropLeg           int64
}

func DefaultRates() Rates {
	return Rates{
		Currency:          money.DefaultCurrency,
		FoodPerGuestNight: 150,
		BreakfastFallback: 200,
		PickupLeg:         1500,
		DropLeg:           1500,
	}
}

type Transport struct {
	Pickup bool
	Drop   bool
}

type ServiceRequest struct {
	Service  *catalog.Service
	Quantity int
}

type Input struct {
	Range            daterange.DateRange
	Guests           guests.Manifest
	PricePerNight    money.Money
	IncludeFood      bool
	IncludeBreakfast bool
	// BreakfastUnitPrice comes from an active breakfast service; nil selects the fallback rate.
	BreakfastUnitPrice *money.Money
	Services           []ServiceRequest
	Transport          Transport
	// YogaSessionPrice is the per-seat price of the selected session, nil when none.
	YogaSessionPrice *money.Money
}

type ServiceLine struct {
	ServiceID catalog.ServiceID `json:"service_id"`
	Name      string            `json:"name"`
	Unit      catalog.PriceUnit `json:"unit"`
	UnitPrice money.Money       `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	Total     money.Money       `json:"total"`
}

type Breakdown struct {
	Nights       int `json:"nights"`
	Adults       int `json:"adults"`
	Children     int `json:"children"`
	PayingGuests int `json:"paying_guests"`
	TotalGuests  int `json:"total_guests"`
}

// Result is the priced quote persisted with the booking. Total always equals
// the sum of the component prices.
type Result struct {
	RoomPrice      money.Money   `json:"room_price"`
	FoodPrice      money.Money   `json:"food_price"`
	BreakfastPrice money.Money   `json:"breakfast_price"`
	ServicesPrice  money.Money   `json:"services_price"`
	Services       []ServiceLine `json:"services"`
	TransportPrice money.Money   `json:"transport_price"`
	YogaPrice      money.Money   `json:"yoga_price"`
	Total          money.Money   `json:"total_amount"`
	Breakdown      Breakdown     `json:"breakdown"`
}

func (r Result) Copy() Result {
	clone := r
	clone.Services = append([]ServiceLine(nil), r.Services...)
	return clone
}

// Components lists the addends of Total in a fixed order.
func (r Result) Components() []money.Money {
	return []money.Money{r.RoomPrice, r.FoodPrice, r.BreakfastPrice, r.ServicesPrice, r.TransportPrice, r.YogaPrice}
}

// Calculator prices stays against a fixed set of rates.
type Calculator struct {
	Rates Rates
}

func NewCalculator(rates Rates) Calculator {
	return Calculator{Rates: rates}
}

func (c Calculator) Quote(in Input) (Result, error) {
	return Calculate(in, c.Rates)
}

// Calculate is a pure function of its inputs; it performs no I/O.
func Calculate(in Input, rates Rates) (Result, error) {
	currency := rates.Currency
	if currency == "" {
		currency = in.PricePerNight.Currency
	}
	if len(currency) != 3 {
		return Result{}, ErrCurrencyUnset
	}
	if in.Range.Validate() != nil {
		return Result{}, ErrInvalidNights
	}
	nights := in.Range.Nights()
	if nights < 1 {
		return Result{}, ErrInvalidNights
	}
	if in.Guests.Total() == 0 {
		return Result{}, ErrNoGuests
	}

	breakdown := Breakdown{
		Nights:       nights,
		Adults:       in.Guests.Adults(),
		Children:     in.Guests.Children(),
		PayingGuests: in.Guests.Paying(),
		TotalGuests:  in.Guests.Total(),
	}
	zero := money.Zero(currency)
	res := Result{
		FoodPrice:      zero,
		BreakfastPrice: zero,
		ServicesPrice:  zero,
		TransportPrice: zero,
		YogaPrice:      zero,
		Breakdown:      breakdown,
	}

	res.RoomPrice = in.PricePerNight.Multiply(int64(nights))
	guestNights := int64(breakdown.PayingGuests) * int64(nights)
	if in.IncludeFood {
		res.FoodPrice = money.Money{Amount: rates.FoodPerGuestNight, Currency: currency}.Multiply(guestNights)
	}
	if in.IncludeBreakfast {
		unit := money.Money{Amount: rates.BreakfastFallback, Currency: currency}
		if in.BreakfastUnitPrice != nil {
			unit = *in.BreakfastUnitPrice
		}
		res.BreakfastPrice = unit.Multiply(guestNights)
	}

	services := zero
	for _, req := range in.Services {
		if req.Service == nil {
			return Result{}, ErrServiceMissing
		}
		qty := req.Quantity
		if qty < 1 {
			qty = 1
		}
		line := ServiceLine{
			ServiceID: req.Service.ID,
			Name:      req.Service.Name,
			Unit:      req.Service.Unit,
			UnitPrice: req.Service.Price,
			Quantity:  qty,
			Total:     ServicePrice(req.Service, qty, breakdown.TotalGuests, nights),
		}
		next, err := services.Add(line.Total)
		if err != nil {
			return Result{}, fmt.Errorf("pricing: service %s: %w", req.Service.ID, err)
		}
		services = next
		res.Services = append(res.Services, line)
	}
	res.ServicesPrice = services

	if in.Transport.Pickup {
		res.TransportPrice.Amount += rates.PickupLeg
	}
	if in.Transport.Drop {
		res.TransportPrice.Amount += rates.DropLeg
	}
	if in.YogaSessionPrice != nil {
		res.YogaPrice = in.YogaSessionPrice.Multiply(int64(breakdown.TotalGuests))
	}

	total, err := money.Sum(currency, res.Components()...)
	if err != nil {
		return Result{}, err
	}
	res.Total = total
	return res, nil
}

// ServicePrice prices one service selection by its unit.
func ServicePrice(s *catalog.Service, quantity, totalGuests, nights int) money.Money {
	qty := int64(quantity)
	switch s.Unit {
	case catalog.PerPerson:
		return s.Price.Multiply(int64(totalGuests) * qty)
	case catalog.PerDay:
		return s.Price.Multiply(qty * int64(nights))
	default:
		return s.Price.Multiply(qty)
	}
}

// OccupancyRate returns booked/available as a percentage rounded to two decimals.
func OccupancyRate(booked, available int) float64 {
	if available <= 0 || booked <= 0 {
		return 0
	}
	pct := float64(booked) / float64(available) * 100
	return math.Round(pct*100) / 100
}
