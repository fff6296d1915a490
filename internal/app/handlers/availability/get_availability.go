package availability

import (
	"context"
	"time"

	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/queries"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/daterange"
)

const getAvailabilityKey = "availability.rooms"

// GetAvailabilityQuery asks which rooms can host Capacity guests for the
// whole stay. RoomID narrows the search to a single room.
type GetAvailabilityQuery struct {
	RoomID   string
	CheckIn  time.Time `validate:"required"`
	CheckOut time.Time `validate:"required"`
	Capacity int       `validate:"gte=0,lte=50"`
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

type GetAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, domainbooking.Rejected(domainbooking.ErrInvalidDateRange, "check-out must be after check-in")
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	filter := domainrooms.Filter{AvailableOnly: true, MinCapacity: q.Capacity}
	if q.RoomID != "" {
		filter.IDs = []domainrooms.RoomID{domainrooms.RoomID(q.RoomID)}
	}
	candidates, err := unit.Rooms().List(execCtx, filter)
	if err != nil {
		return dto.Availability{}, err
	}

	blocked, err := blockedRooms(execCtx, unit, dr)
	if err != nil {
		return dto.Availability{}, err
	}

	out := dto.Availability{
		CheckIn:  dr.CheckIn,
		CheckOut: dr.CheckOut,
		Nights:   dr.Nights(),
		Rooms:    make([]dto.Room, 0, len(candidates)),
	}
	for _, room := range candidates {
		if _, taken := blocked[room.ID]; taken {
			continue
		}
		out.Rooms = append(out.Rooms, dto.MapRoom(room))
	}
	return out, nil
}

// blockedRooms returns rooms holding at least one blocking booking in dr.
func blockedRooms(ctx context.Context, unit uow.UnitOfWork, dr daterange.DateRange) (map[domainrooms.RoomID]struct{}, error) {
	overlapping, err := unit.Bookings().FindOverlapping(ctx, domainbooking.OverlapQuery{
		Range:    dr,
		Statuses: domainbooking.BlockingStatuses(),
	})
	if err != nil {
		return nil, err
	}
	out := make(map[domainrooms.RoomID]struct{}, len(overlapping))
	for _, b := range overlapping {
		out[b.RoomID] = struct{}{}
	}
	return out, nil
}

var _ queries.Handler[GetAvailabilityQuery, dto.Availability] = (*GetAvailabilityHandler)(nil)
