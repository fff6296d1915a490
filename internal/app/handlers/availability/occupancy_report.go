package availability

import (
	"context"
	"time"

	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/policies"
	"resort/internal/app/queries"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/pricing"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/daterange"
	domainuser "resort/internal/domain/user"
)

const occupancyReportKey = "availability.occupancy"

type OccupancyReportQuery struct {
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required"`
	Requester policies.Requester
}

func (q OccupancyReportQuery) Key() string { return occupancyReportKey }

func (q OccupancyReportQuery) Actor() policies.Requester { return q.Requester }

func (q OccupancyReportQuery) RequiredRole() domainuser.Role { return domainuser.RoleAdmin }

type OccupancyReportHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle counts booked room-nights per room inside [From, To). Only the part
// of a stay that falls inside the window is counted.
func (h *OccupancyReportHandler) Handle(ctx context.Context, q OccupancyReportQuery) (dto.OccupancyReport, error) {
	window, err := daterange.New(q.From, q.To)
	if err != nil {
		return dto.OccupancyReport{}, domainbooking.Rejected(domainbooking.ErrInvalidDateRange, "report window must end after it starts")
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.OccupancyReport{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	rooms, err := unit.Rooms().List(execCtx, domainrooms.Filter{})
	if err != nil {
		return dto.OccupancyReport{}, err
	}
	overlapping, err := unit.Bookings().FindOverlapping(execCtx, domainbooking.OverlapQuery{
		Range:    window,
		Statuses: occupyingStatuses(),
	})
	if err != nil {
		return dto.OccupancyReport{}, err
	}

	booked := make(map[domainrooms.RoomID]int, len(rooms))
	for _, b := range overlapping {
		if part, ok := b.Range.Intersect(window); ok {
			booked[b.RoomID] += part.Nights()
		}
	}

	nights := window.Nights()
	report := dto.OccupancyReport{
		From:  window.CheckIn,
		To:    window.CheckOut,
		Rooms: make([]dto.RoomOccupancy, 0, len(rooms)),
	}
	var totalBooked, totalAvailable int
	for _, room := range rooms {
		n := booked[room.ID]
		if n > nights {
			n = nights
		}
		report.Rooms = append(report.Rooms, dto.RoomOccupancy{
			RoomID:          string(room.ID),
			Name:            room.Name,
			BookedNights:    n,
			AvailableNights: nights,
			OccupancyRate:   pricing.OccupancyRate(n, nights),
		})
		totalBooked += n
		totalAvailable += nights
	}
	report.OccupancyRate = pricing.OccupancyRate(totalBooked, totalAvailable)
	return report, nil
}

// occupyingStatuses adds checked-out stays to the blocking ones: they no
// longer hold the room but did occupy it.
func occupyingStatuses() []domainbooking.Status {
	return append(domainbooking.BlockingStatuses(), domainbooking.StatusCheckedOut)
}

var _ queries.Handler[OccupancyReportQuery, dto.OccupancyReport] = (*OccupancyReportHandler)(nil)
