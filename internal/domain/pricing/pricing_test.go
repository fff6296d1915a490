package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resort/internal/domain/catalog"
	"resort/internal/domain/guests"
	"resort/internal/domain/pricing"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
)

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	checkIn, err := time.Parse(time.DateOnly, in)
	require.NoError(t, err)
	checkOut, err := time.Parse(time.DateOnly, out)
	require.NoError(t, err)
	dr, err := daterange.New(checkIn, checkOut)
	require.NoError(t, err)
	return dr
}

func inr(amount int64) money.Money {
	return money.Must(amount, "INR")
}

func TestCalculateChildrenUnderFiveEatFree(t *testing.T) {
	res, err := pricing.Calculate(pricing.Input{
		Range:         stay(t, "2024-06-10", "2024-06-12"),
		Guests:        guests.Manifest{{Name: "Kid", Age: 3}, {Name: "Parent", Age: 30}},
		PricePerNight: inr(2000),
		IncludeFood:   true,
	}, pricing.DefaultRates())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Breakdown.PayingGuests)
	assert.Equal(t, 2, res.Breakdown.Nights)
	assert.Equal(t, int64(300), res.FoodPrice.Amount)
	assert.Equal(t, int64(4000), res.RoomPrice.Amount)
	assert.Equal(t, int64(4300), res.Total.Amount)
	assert.Equal(t, "INR", res.Total.Currency)
}

func TestCalculateTotalIsSumOfComponents(t *testing.T) {
	spa := &catalog.Service{ID: "spa", Name: "Spa", Price: inr(800), Unit: catalog.PerPerson, Active: true}
	kayak := &catalog.Service{ID: "kayak", Name: "Kayak", Price: inr(300), Unit: catalog.PerDay, Active: true}
	yogaPrice := inr(250)
	breakfast := inr(180)

	res, err := pricing.Calculate(pricing.Input{
		Range:              stay(t, "2024-06-10", "2024-06-13"),
		Guests:             guests.Manifest{{Name: "A", Age: 40}, {Name: "B", Age: 38}, {Name: "C", Age: 9}, {Name: "D", Age: 2}},
		PricePerNight:      inr(3500),
		IncludeFood:        true,
		IncludeBreakfast:   true,
		BreakfastUnitPrice: &breakfast,
		Services: []pricing.ServiceRequest{
			{Service: spa, Quantity: 1},
			{Service: kayak, Quantity: 2},
		},
		Transport:        pricing.Transport{Pickup: true, Drop: true},
		YogaSessionPrice: &yogaPrice,
	}, pricing.DefaultRates())
	require.NoError(t, err)

	var sum int64
	for _, c := range res.Components() {
		sum += c.Amount
	}
	assert.Equal(t, sum, res.Total.Amount)

	assert.Equal(t, int64(3500*3), res.RoomPrice.Amount)
	assert.Equal(t, int64(150*3*3), res.FoodPrice.Amount)
	assert.Equal(t, int64(180*3*3), res.BreakfastPrice.Amount)
	assert.Equal(t, int64(800*4+300*2*3), res.ServicesPrice.Amount)
	assert.Equal(t, int64(3000), res.TransportPrice.Amount)
	assert.Equal(t, int64(250*4), res.YogaPrice.Amount)
	require.Len(t, res.Services, 2)
	assert.Equal(t, int64(3200), res.Services[0].Total.Amount)
	assert.Equal(t, 2, res.Breakdown.Adults)
	assert.Equal(t, 2, res.Breakdown.Children)
}

func TestCalculateBreakfastFallsBackToDefaultRate(t *testing.T) {
	res, err := pricing.Calculate(pricing.Input{
		Range:            stay(t, "2024-06-10", "2024-06-11"),
		Guests:           guests.Manifest{{Name: "A", Age: 25}, {Name: "B", Age: 27}},
		PricePerNight:    inr(1000),
		IncludeBreakfast: true,
	}, pricing.DefaultRates())
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.BreakfastPrice.Amount)
}

func TestCalculatePartialDayCountsAsNight(t *testing.T) {
	in := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)
	dr, err := daterange.New(in, in.Add(26*time.Hour))
	require.NoError(t, err)

	res, err := pricing.Calculate(pricing.Input{
		Range:         dr,
		Guests:        guests.Manifest{{Name: "A", Age: 25}},
		PricePerNight: inr(1000),
	}, pricing.DefaultRates())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Breakdown.Nights)
	assert.Equal(t, int64(2000), res.Total.Amount)
}

func TestCalculateRejectsEmptyStay(t *testing.T) {
	in := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := pricing.Calculate(pricing.Input{
		Range:         daterange.DateRange{CheckIn: in, CheckOut: in},
		Guests:        guests.Manifest{{Name: "A", Age: 25}},
		PricePerNight: inr(1000),
	}, pricing.DefaultRates())
	assert.ErrorIs(t, err, pricing.ErrInvalidNights)
}

func TestServicePriceByUnit(t *testing.T) {
	cases := []struct {
		unit catalog.PriceUnit
		want int64
	}{
		{catalog.PerPerson, 100 * 3 * 2},
		{catalog.PerDay, 100 * 2 * 4},
		{catalog.PerSession, 100 * 2},
		{catalog.FlatRate, 100 * 2},
		{catalog.PriceUnit("mystery"), 100 * 2},
	}
	for _, tc := range cases {
		t.Run(string(tc.unit), func(t *testing.T) {
			svc := &catalog.Service{Price: inr(100), Unit: tc.unit}
			assert.Equal(t, tc.want, pricing.ServicePrice(svc, 2, 3, 4).Amount)
		})
	}
}

func TestOccupancyRateRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 33.33, pricing.OccupancyRate(1, 3))
	assert.Equal(t, 66.67, pricing.OccupancyRate(2, 3))
	assert.Equal(t, 100.0, pricing.OccupancyRate(5, 5))
	assert.Equal(t, 0.0, pricing.OccupancyRate(3, 0))
}
