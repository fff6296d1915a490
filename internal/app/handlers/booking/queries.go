package booking

import (
	"context"
	"sort"

	"resort/internal/app/dto"
	handlersupport "resort/internal/app/handlers/support"
	"resort/internal/app/policies"
	"resort/internal/app/queries"
	"resort/internal/app/uow"
)

const (
	getBookingKey     = "booking.get"
	listMyBookingsKey = "me.bookings.list"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	Requester policies.Requester
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Actor() policies.Requester { return q.Requester }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := loadVisible(execCtx, unit, q.BookingID, q.Requester)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

type ListMyBookingsQuery struct {
	Requester policies.Requester
}

func (q ListMyBookingsQuery) Key() string { return listMyBookingsKey }

func (q ListMyBookingsQuery) Actor() policies.Requester { return q.Requester }

type ListMyBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle lists the requester's bookings, newest first.
func (h *ListMyBookingsHandler) Handle(ctx context.Context, q ListMyBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Bookings().ListByUser(execCtx, q.Requester.UserID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	items := make([]dto.Booking, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, dto.MapBooking(b))
	}
	return dto.BookingCollection{Items: items}, nil
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]               = (*GetBookingHandler)(nil)
	_ queries.Handler[ListMyBookingsQuery, dto.BookingCollection] = (*ListMyBookingsHandler)(nil)
)
