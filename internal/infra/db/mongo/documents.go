package mongo

import (
	"time"

	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	"resort/internal/domain/guests"
	"resort/internal/domain/pricing"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoney(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type roomDocument struct {
	ID            string        `bson:"_id"`
	Name          string        `bson:"name"`
	Type          string        `bson:"type"`
	Description   string        `bson:"description"`
	Capacity      int           `bson:"capacity"`
	PricePerNight moneyDocument `bson:"price_per_night"`
	Amenities     []string      `bson:"amenities"`
	Available     bool          `bson:"available"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
	Version       int64         `bson:"version"`
}

func newRoomDocument(r *domainrooms.Room) roomDocument {
	return roomDocument{
		ID:            string(r.ID),
		Name:          r.Name,
		Type:          r.Type,
		Description:   r.Description,
		Capacity:      r.Capacity,
		PricePerNight: newMoney(r.PricePerNight),
		Amenities:     r.Amenities,
		Available:     r.Available,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		Version:       r.Version,
	}
}

func (d roomDocument) toAggregate() *domainrooms.Room {
	return &domainrooms.Room{
		ID:            domainrooms.RoomID(d.ID),
		Name:          d.Name,
		Type:          d.Type,
		Description:   d.Description,
		Capacity:      d.Capacity,
		PricePerNight: d.PricePerNight.toMoney(),
		Amenities:     d.Amenities,
		Available:     d.Available,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}
}

type ageDocument struct {
	MinAge *int `bson:"min_age,omitempty"`
	MaxAge *int `bson:"max_age,omitempty"`
}

type serviceDocument struct {
	ID          string        `bson:"_id"`
	Name        string        `bson:"name"`
	Category    string        `bson:"category"`
	Description string        `bson:"description"`
	Price       moneyDocument `bson:"price"`
	Unit        string        `bson:"unit"`
	Active      bool          `bson:"active"`
	Age         *ageDocument  `bson:"age_restriction,omitempty"`
}

func newServiceDocument(s *domaincatalog.Service) serviceDocument {
	doc := serviceDocument{
		ID:          string(s.ID),
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Price:       newMoney(s.Price),
		Unit:        string(s.Unit),
		Active:      s.Active,
	}
	if s.AgeRestriction != nil {
		doc.Age = &ageDocument{MinAge: s.AgeRestriction.MinAge, MaxAge: s.AgeRestriction.MaxAge}
	}
	return doc
}

func (d serviceDocument) toAggregate() *domaincatalog.Service {
	svc := &domaincatalog.Service{
		ID:          domaincatalog.ServiceID(d.ID),
		Name:        d.Name,
		Category:    d.Category,
		Description: d.Description,
		Price:       d.Price.toMoney(),
		Unit:        domaincatalog.PriceUnit(d.Unit),
		Active:      d.Active,
	}
	if d.Age != nil {
		svc.AgeRestriction = &domaincatalog.AgeRestriction{MinAge: d.Age.MinAge, MaxAge: d.Age.MaxAge}
	}
	return svc
}

type sessionDocument struct {
	ID          string        `bson:"_id"`
	Title       string        `bson:"title"`
	Instructor  string        `bson:"instructor"`
	StartsAt    time.Time     `bson:"starts_at"`
	DurationMin int64         `bson:"duration_min"`
	Capacity    int           `bson:"capacity"`
	BookedSeats int           `bson:"booked_seats"`
	Price       moneyDocument `bson:"price"`
	Active      bool          `bson:"active"`
	Version     int64         `bson:"version"`
}

func newSessionDocument(s *domainyoga.Session) sessionDocument {
	return sessionDocument{
		ID:          string(s.ID),
		Title:       s.Title,
		Instructor:  s.Instructor,
		StartsAt:    s.StartsAt.UTC(),
		DurationMin: int64(s.Duration / time.Minute),
		Capacity:    s.Capacity,
		BookedSeats: s.BookedSeats,
		Price:       newMoney(s.Price),
		Active:      s.Active,
		Version:     s.Version,
	}
}

func (d sessionDocument) toAggregate() *domainyoga.Session {
	return &domainyoga.Session{
		ID:          domainyoga.SessionID(d.ID),
		Title:       d.Title,
		Instructor:  d.Instructor,
		StartsAt:    d.StartsAt.UTC(),
		Duration:    time.Duration(d.DurationMin) * time.Minute,
		Capacity:    d.Capacity,
		BookedSeats: d.BookedSeats,
		Price:       d.Price.toMoney(),
		Active:      d.Active,
		Version:     d.Version,
	}
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Phone     string    `bson:"phone"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:        string(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func (d userDocument) toAggregate() *domainuser.User {
	return &domainuser.User{
		ID:        domainuser.ID(d.ID),
		Email:     d.Email,
		Name:      d.Name,
		Phone:     d.Phone,
		Role:      domainuser.Role(d.Role),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type guestDocument struct {
	Name   string `bson:"name"`
	Age    int    `bson:"age"`
	Gender string `bson:"gender,omitempty"`
}

type selectionDocument struct {
	ServiceID string `bson:"service_id"`
	Quantity  int    `bson:"quantity"`
}

type transportDocument struct {
	Pickup       bool       `bson:"pickup"`
	Drop         bool       `bson:"drop"`
	FlightNumber string     `bson:"flight_number,omitempty"`
	ArrivalAt    *time.Time `bson:"arrival_at,omitempty"`
	DepartureAt  *time.Time `bson:"departure_at,omitempty"`
	Notes        string     `bson:"notes,omitempty"`
}

type serviceLineDocument struct {
	ServiceID string        `bson:"service_id"`
	Name      string        `bson:"name"`
	Unit      string        `bson:"unit"`
	UnitPrice moneyDocument `bson:"unit_price"`
	Quantity  int           `bson:"quantity"`
	Total     moneyDocument `bson:"total"`
}

type pricingDocument struct {
	RoomPrice      moneyDocument         `bson:"room_price"`
	FoodPrice      moneyDocument         `bson:"food_price"`
	BreakfastPrice moneyDocument         `bson:"breakfast_price"`
	ServicesPrice  moneyDocument         `bson:"services_price"`
	Services       []serviceLineDocument `bson:"services"`
	TransportPrice moneyDocument         `bson:"transport_price"`
	YogaPrice      moneyDocument         `bson:"yoga_price"`
	Total          moneyDocument         `bson:"total_amount"`
	Nights         int                   `bson:"nights"`
	Adults         int                   `bson:"adults"`
	Children       int                   `bson:"children"`
	PayingGuests   int                   `bson:"paying_guests"`
	TotalGuests    int                   `bson:"total_guests"`
}

func newPricingDocument(r pricing.Result) pricingDocument {
	lines := make([]serviceLineDocument, len(r.Services))
	for i, l := range r.Services {
		lines[i] = serviceLineDocument{
			ServiceID: string(l.ServiceID),
			Name:      l.Name,
			Unit:      string(l.Unit),
			UnitPrice: newMoney(l.UnitPrice),
			Quantity:  l.Quantity,
			Total:     newMoney(l.Total),
		}
	}
	return pricingDocument{
		RoomPrice:      newMoney(r.RoomPrice),
		FoodPrice:      newMoney(r.FoodPrice),
		BreakfastPrice: newMoney(r.BreakfastPrice),
		ServicesPrice:  newMoney(r.ServicesPrice),
		Services:       lines,
		TransportPrice: newMoney(r.TransportPrice),
		YogaPrice:      newMoney(r.YogaPrice),
		Total:          newMoney(r.Total),
		Nights:         r.Breakdown.Nights,
		Adults:         r.Breakdown.Adults,
		Children:       r.Breakdown.Children,
		PayingGuests:   r.Breakdown.PayingGuests,
		TotalGuests:    r.Breakdown.TotalGuests,
	}
}

func (d pricingDocument) toResult() pricing.Result {
	lines := make([]pricing.ServiceLine, len(d.Services))
	for i, l := range d.Services {
		lines[i] = pricing.ServiceLine{
			ServiceID: domaincatalog.ServiceID(l.ServiceID),
			Name:      l.Name,
			Unit:      domaincatalog.PriceUnit(l.Unit),
			UnitPrice: l.UnitPrice.toMoney(),
			Quantity:  l.Quantity,
			Total:     l.Total.toMoney(),
		}
	}
	return pricing.Result{
		RoomPrice:      d.RoomPrice.toMoney(),
		FoodPrice:      d.FoodPrice.toMoney(),
		BreakfastPrice: d.BreakfastPrice.toMoney(),
		ServicesPrice:  d.ServicesPrice.toMoney(),
		Services:       lines,
		TransportPrice: d.TransportPrice.toMoney(),
		YogaPrice:      d.YogaPrice.toMoney(),
		Total:          d.Total.toMoney(),
		Breakdown: pricing.Breakdown{
			Nights:       d.Nights,
			Adults:       d.Adults,
			Children:     d.Children,
			PayingGuests: d.PayingGuests,
			TotalGuests:  d.TotalGuests,
		},
	}
}

type bookingDocument struct {
	ID               string              `bson:"_id"`
	RoomID           string              `bson:"room_id"`
	UserID           string              `bson:"user_id"`
	CheckIn          time.Time           `bson:"check_in"`
	CheckOut         time.Time           `bson:"check_out"`
	Guests           []guestDocument     `bson:"guests"`
	Services         []selectionDocument `bson:"services"`
	YogaSessionID    string              `bson:"yoga_session_id,omitempty"`
	YogaSeats        int                 `bson:"yoga_seats"`
	Transport        transportDocument   `bson:"transport"`
	IncludeFood      bool                `bson:"include_food"`
	IncludeBreakfast bool                `bson:"include_breakfast"`
	SpecialRequests  string              `bson:"special_requests,omitempty"`
	Pricing          pricingDocument     `bson:"pricing"`
	Status           string              `bson:"status"`
	PaymentStatus    string              `bson:"payment_status"`
	PaymentOrderID   string              `bson:"payment_order_id,omitempty"`
	PaymentID        string              `bson:"payment_id,omitempty"`
	CancelReason     string              `bson:"cancel_reason,omitempty"`
	CreatedAt        time.Time           `bson:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at"`
	CancelledAt      *time.Time          `bson:"cancelled_at,omitempty"`
	Version          int64               `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	gs := make([]guestDocument, len(b.Guests))
	for i, g := range b.Guests {
		gs[i] = guestDocument{Name: g.Name, Age: g.Age, Gender: g.Gender}
	}
	sel := make([]selectionDocument, len(b.Services))
	for i, s := range b.Services {
		sel[i] = selectionDocument{ServiceID: string(s.ServiceID), Quantity: s.Quantity}
	}
	return bookingDocument{
		ID:       string(b.ID),
		RoomID:   string(b.RoomID),
		UserID:   b.UserID,
		CheckIn:  b.Range.CheckIn.UTC(),
		CheckOut: b.Range.CheckOut.UTC(),
		Guests:   gs,
		Services: sel,

		YogaSessionID: string(b.YogaSessionID),
		YogaSeats:     b.YogaSeats,
		Transport: transportDocument{
			Pickup:       b.Transport.Pickup,
			Drop:         b.Transport.Drop,
			FlightNumber: b.Transport.FlightNumber,
			ArrivalAt:    b.Transport.ArrivalAt,
			DepartureAt:  b.Transport.DepartureAt,
			Notes:        b.Transport.Notes,
		},
		IncludeFood:      b.IncludeFood,
		IncludeBreakfast: b.IncludeBreakfast,
		SpecialRequests:  b.SpecialRequests,
		Pricing:          newPricingDocument(b.Pricing),
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentOrderID:   b.PaymentOrderID,
		PaymentID:        b.PaymentID,
		CancelReason:     b.CancelReason,
		CreatedAt:        b.CreatedAt.UTC(),
		UpdatedAt:        b.UpdatedAt.UTC(),
		CancelledAt:      b.CancelledAt,
		Version:          b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	gs := make(guests.Manifest, len(d.Guests))
	for i, g := range d.Guests {
		gs[i] = guests.Guest{Name: g.Name, Age: g.Age, Gender: g.Gender}
	}
	sel := make([]domainbooking.ServiceSelection, len(d.Services))
	for i, s := range d.Services {
		sel[i] = domainbooking.ServiceSelection{ServiceID: domaincatalog.ServiceID(s.ServiceID), Quantity: s.Quantity}
	}
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(d.ID),
		RoomID:        domainrooms.RoomID(d.RoomID),
		UserID:        d.UserID,
		Range:         daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Guests:        gs,
		Services:      sel,
		YogaSessionID: domainyoga.SessionID(d.YogaSessionID),
		YogaSeats:     d.YogaSeats,
		Transport: domainbooking.Transport{
			Pickup:       d.Transport.Pickup,
			Drop:         d.Transport.Drop,
			FlightNumber: d.Transport.FlightNumber,
			ArrivalAt:    d.Transport.ArrivalAt,
			DepartureAt:  d.Transport.DepartureAt,
			Notes:        d.Transport.Notes,
		},
		IncludeFood:      d.IncludeFood,
		IncludeBreakfast: d.IncludeBreakfast,
		SpecialRequests:  d.SpecialRequests,
		Pricing:          d.Pricing.toResult(),
		Status:           domainbooking.Status(d.Status),
		PaymentStatus:    domainbooking.PaymentStatus(d.PaymentStatus),
		PaymentOrderID:   d.PaymentOrderID,
		PaymentID:        d.PaymentID,
		CancelReason:     d.CancelReason,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		CancelledAt:      d.CancelledAt,
		Version:          d.Version,
	}
}
