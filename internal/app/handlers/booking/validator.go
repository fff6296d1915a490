package booking

import (
	"context"
	"errors"
	"time"

	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	"resort/internal/domain/guests"
	"resort/internal/domain/pricing"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/daterange"
	domainyoga "resort/internal/domain/yoga"
)

// AvailabilityRequest is what the validator needs to know about a prospective booking.
type AvailabilityRequest struct {
	RoomID        domainrooms.RoomID
	CheckIn       time.Time
	CheckOut      time.Time
	Guests        guests.Manifest
	Services      []domainbooking.ServiceSelection
	YogaSessionID domainyoga.SessionID
}

// Availability holds the entities resolved while validating, ready for pricing.
type Availability struct {
	Range    daterange.DateRange
	Room     *domainrooms.Room
	Services []pricing.ServiceRequest
	Yoga     *domainyoga.Session
}

// AvailabilityValidator runs the reservation checks in a fixed order and stops
// at the first failure. Every rejection is a *domainbooking.ValidationError.
type AvailabilityValidator struct {
	Now                  func() time.Time
	RequireFutureCheckIn bool
}

func (v AvailabilityValidator) Validate(ctx context.Context, unit uow.UnitOfWork, req AvailabilityRequest) (Availability, error) {
	dr, err := daterange.New(req.CheckIn, req.CheckOut)
	if err != nil {
		return Availability{}, domainbooking.Rejected(domainbooking.ErrInvalidDateRange, "check-out must be after check-in")
	}
	if v.RequireFutureCheckIn && dr.StartsBefore(v.now()) {
		return Availability{}, domainbooking.Rejected(domainbooking.ErrInvalidDateRange, "check-in date is in the past")
	}

	room, err := unit.Rooms().ByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, domainrooms.ErrNotFound) {
			return Availability{}, domainbooking.Rejected(domainbooking.ErrRoomUnavailable, "room %s does not exist", req.RoomID)
		}
		return Availability{}, err
	}
	if !room.Available {
		return Availability{}, domainbooking.Rejected(domainbooking.ErrRoomUnavailable, "room %s is not open for booking", room.ID)
	}

	partySize := req.Guests.Total()
	if !room.Fits(partySize) {
		return Availability{}, domainbooking.Rejected(domainbooking.ErrCapacityExceeded, "%d guests for a room of %d", partySize, room.Capacity)
	}

	conflicts, err := unit.Bookings().FindOverlapping(ctx, domainbooking.OverlapQuery{
		RoomID:   room.ID,
		Range:    dr,
		Statuses: domainbooking.BlockingStatuses(),
	})
	if err != nil {
		return Availability{}, err
	}
	if len(conflicts) > 0 {
		ids := make([]domainbooking.BookingID, 0, len(conflicts))
		for _, c := range conflicts {
			ids = append(ids, c.ID)
		}
		return Availability{}, &domainbooking.ValidationError{
			Kind:                domainbooking.ErrDateOverlap,
			Detail:              "room is already booked for part of the stay",
			ConflictingBookings: ids,
		}
	}

	selected, err := v.checkServices(ctx, unit, req)
	if err != nil {
		return Availability{}, err
	}

	var session *domainyoga.Session
	if req.YogaSessionID != "" {
		session, err = unit.Yoga().ByID(ctx, req.YogaSessionID)
		if err != nil {
			if errors.Is(err, domainyoga.ErrNotFound) {
				return Availability{}, domainbooking.Rejected(domainbooking.ErrYogaSessionFull, "yoga session %s does not exist", req.YogaSessionID)
			}
			return Availability{}, err
		}
		if !session.CanSeat(partySize) {
			return Availability{}, domainbooking.Rejected(domainbooking.ErrYogaSessionFull, "%d seats left, %d requested", session.FreeSeats(), partySize)
		}
	}

	return Availability{Range: dr, Room: room, Services: selected, Yoga: session}, nil
}

func (v AvailabilityValidator) checkServices(ctx context.Context, unit uow.UnitOfWork, req AvailabilityRequest) ([]pricing.ServiceRequest, error) {
	out := make([]pricing.ServiceRequest, 0, len(req.Services))
	for _, sel := range req.Services {
		svc, err := unit.Services().ByID(ctx, sel.ServiceID)
		if err != nil {
			if errors.Is(err, domaincatalog.ErrNotFound) {
				return nil, &domainbooking.ValidationError{
					Kind:    domainbooking.ErrServiceInactive,
					Detail:  "service does not exist",
					Service: string(sel.ServiceID),
				}
			}
			return nil, err
		}
		if !svc.Active {
			return nil, &domainbooking.ValidationError{
				Kind:    domainbooking.ErrServiceInactive,
				Detail:  "service " + svc.Name + " is not offered right now",
				Service: svc.Name,
			}
		}
		for _, g := range req.Guests {
			if !svc.AgeRestriction.Allows(g.Age) {
				return nil, &domainbooking.ValidationError{
					Kind:    domainbooking.ErrAgeRestrictionViolation,
					Detail:  g.Name + " does not meet the age limits of " + svc.Name,
					Guest:   g.Name,
					Service: svc.Name,
				}
			}
		}
		out = append(out, pricing.ServiceRequest{Service: svc, Quantity: sel.Quantity})
	}
	return out, nil
}

func (v AvailabilityValidator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
