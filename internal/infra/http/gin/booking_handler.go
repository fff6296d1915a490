package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/queries"
	domainbooking "resort/internal/domain/booking"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Cancel(c *gin.Context)
	Confirm(c *gin.Context)
	CheckIn(c *gin.Context)
	CheckOut(c *gin.Context)
	StartPayment(c *gin.Context)
	VerifyPayment(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	RoomID           string                     `json:"room_id" binding:"required"`
	CheckIn          string                     `json:"check_in" binding:"required"`
	CheckOut         string                     `json:"check_out" binding:"required"`
	Guests           []bookingapp.GuestInput    `json:"guests" binding:"required,min=1"`
	Services         []bookingapp.ServiceInput  `json:"services"`
	YogaSessionID    string                     `json:"yoga_session_id"`
	Transport        *bookingapp.TransportInput `json:"transport"`
	IncludeFood      bool                       `json:"include_food"`
	IncludeBreakfast bool                       `json:"include_breakfast"`
	SpecialRequests  string                     `json:"special_requests"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	checkIn, err := parseDate(req.CheckIn)
	if err != nil {
		badRequest(c, "check_in: "+err.Error())
		return
	}
	checkOut, err := parseDate(req.CheckOut)
	if err != nil {
		badRequest(c, "check_out: "+err.Error())
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		CommandID:        uuid.NewString(),
		Requester:        currentRequester(c),
		RoomID:           req.RoomID,
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		Guests:           req.Guests,
		Services:         req.Services,
		YogaSessionID:    req.YogaSessionID,
		Transport:        req.Transport,
		IncludeFood:      req.IncludeFood,
		IncludeBreakfast: req.IncludeBreakfast,
		SpecialRequests:  req.SpecialRequests,
		IdempotencyKeyV:  c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, bookingapp.BookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id"), Requester: currentRequester(c)}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), Requester: currentRequester(c), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, bookingapp.BookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Confirm(c *gin.Context)  { h.transition(c, bookingapp.TransitionConfirm) }
func (h BookingHandler) CheckIn(c *gin.Context)  { h.transition(c, bookingapp.TransitionCheckIn) }
func (h BookingHandler) CheckOut(c *gin.Context) { h.transition(c, bookingapp.TransitionCheckOut) }

func (h BookingHandler) transition(c *gin.Context, action bookingapp.Transition) {
	cmd := bookingapp.TransitionBookingCommand{BookingID: c.Param("id"), Action: action, Requester: currentRequester(c)}
	result, err := commands.Dispatch[bookingapp.TransitionBookingCommand, bookingapp.BookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) StartPayment(c *gin.Context) {
	cmd := bookingapp.StartPaymentCommand{BookingID: c.Param("id"), Requester: currentRequester(c)}
	order, err := commands.Dispatch[bookingapp.StartPaymentCommand, dto.PaymentOrder](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// VerifyPayment answers 402 when the signature does not match. The failed
// attempt is already stored on the booking at that point.
func (h BookingHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := bookingapp.ConfirmPaymentCommand{
		BookingID: c.Param("id"),
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Requester: currentRequester(c),
	}
	result, err := commands.Dispatch[bookingapp.ConfirmPaymentCommand, bookingapp.PaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if !result.Verified {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   domainbooking.ErrPaymentVerificationFailed.Error(),
			"code":    "payment_verification_failed",
			"booking": result.Booking,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and returns UTC midnight.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

var _ BookingHTTP = BookingHandler{}
