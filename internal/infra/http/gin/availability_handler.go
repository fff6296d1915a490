package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"resort/internal/app/dto"
	availabilityapp "resort/internal/app/handlers/availability"
	"resort/internal/app/queries"
)

type AvailabilityHTTP interface {
	Rooms(c *gin.Context)
	Occupancy(c *gin.Context)
}

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Rooms(c *gin.Context) {
	checkIn, err := parseDate(c.Query("check_in"))
	if err != nil {
		badRequest(c, "check_in must be YYYY-MM-DD")
		return
	}
	checkOut, err := parseDate(c.Query("check_out"))
	if err != nil {
		badRequest(c, "check_out must be YYYY-MM-DD")
		return
	}
	capacity := 0
	if raw := c.Query("capacity"); raw != "" {
		if capacity, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "capacity must be a number")
			return
		}
	}
	q := availabilityapp.GetAvailabilityQuery{
		RoomID:   c.Query("room_id"),
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Capacity: capacity,
	}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Occupancy(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		badRequest(c, "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		badRequest(c, "to must be YYYY-MM-DD")
		return
	}
	q := availabilityapp.OccupancyReportQuery{From: from, To: to, Requester: currentRequester(c)}
	result, err := queries.Ask[availabilityapp.OccupancyReportQuery, dto.OccupancyReport](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
