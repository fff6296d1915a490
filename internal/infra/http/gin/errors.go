package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/middleware"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainyoga "resort/internal/domain/yoga"
	"resort/internal/infra/validation"
)

type errorBody struct {
	Error               string            `json:"error"`
	Code                string            `json:"code"`
	Detail              string            `json:"detail,omitempty"`
	Fields              map[string]string `json:"fields,omitempty"`
	ConflictingBookings []string          `json:"conflicting_bookings,omitempty"`
	Guest               string            `json:"guest,omitempty"`
	Service             string            `json:"service,omitempty"`
}

type errorKind struct {
	err    error
	status int
	code   string
}

// Order matters: the first sentinel err matches wins.
var errorKinds = []errorKind{
	{domainbooking.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"},
	{domainbooking.ErrRoomUnavailable, http.StatusUnprocessableEntity, "room_unavailable"},
	{domainbooking.ErrCapacityExceeded, http.StatusUnprocessableEntity, "capacity_exceeded"},
	{domainbooking.ErrServiceInactive, http.StatusUnprocessableEntity, "service_inactive"},
	{domainbooking.ErrAgeRestrictionViolation, http.StatusUnprocessableEntity, "age_restriction_violation"},
	{domainbooking.ErrDateOverlap, http.StatusConflict, "date_overlap"},
	{domainbooking.ErrYogaSessionFull, http.StatusConflict, "yoga_session_full"},
	{domainbooking.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
	{domainbooking.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainbooking.ErrConcurrentReservation, http.StatusConflict, "concurrent_reservation"},
	{domainbooking.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{domainbooking.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainrooms.ErrNotFound, http.StatusNotFound, "not_found"},
	{domaincatalog.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainyoga.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainbooking.ErrPaymentVerificationFailed, http.StatusPaymentRequired, "payment_verification_failed"},
	{domainbooking.ErrRefundFailed, http.StatusBadGateway, "refund_failed"},
	{bookingapp.ErrPaymentsDisabled, http.StatusServiceUnavailable, "payments_disabled"},
	{policies.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{policies.ErrForbidden, http.StatusForbidden, "forbidden"},
	{middleware.ErrIdempotencyKeyReused, http.StatusUnprocessableEntity, "idempotency_key_reused"},
}

// respondError writes the mapped status. Unknown errors and creation failures
// are logged and answered with a generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	_ = c.Error(err)

	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request", Code: "invalid_request", Fields: verr.Fields})
		return
	}
	if uow.IsTransient(err) {
		writeKind(c, errorKind{domainbooking.ErrConcurrentReservation, http.StatusConflict, "concurrent_reservation"}, nil)
		return
	}
	// the storage cause may itself match a kind below; it must not leak
	if errors.Is(err, domainbooking.ErrBookingCreationFailed) {
		internalError(c, logger, err)
		return
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			var rejected *domainbooking.ValidationError
			errors.As(err, &rejected)
			writeKind(c, kind, rejected)
			return
		}
	}
	internalError(c, logger, err)
}

func internalError(c *gin.Context, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(c.Request.Context(), "request failed", "route", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
}

func writeKind(c *gin.Context, kind errorKind, rejected *domainbooking.ValidationError) {
	body := errorBody{Error: kind.err.Error(), Code: kind.code}
	if rejected != nil {
		body.Detail = rejected.Detail
		body.Guest = rejected.Guest
		body.Service = rejected.Service
		for _, id := range rejected.ConflictingBookings {
			body.ConflictingBookings = append(body.ConflictingBookings, string(id))
		}
	}
	c.JSON(kind.status, body)
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request", Code: "invalid_request", Detail: detail})
}
