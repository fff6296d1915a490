package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"resort/internal/app/dto"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/queries"
)

type MeHTTP interface {
	ListBookings(c *gin.Context)
}

type MeHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h MeHandler) ListBookings(c *gin.Context) {
	query := bookingapp.ListMyBookingsQuery{Requester: currentRequester(c)}
	result, err := queries.Ask[bookingapp.ListMyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MeHTTP = MeHandler{}
