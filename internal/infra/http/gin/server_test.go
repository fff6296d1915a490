package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	availabilityapp "resort/internal/app/handlers/availability"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/middleware"
	"resort/internal/app/outbox"
	"resort/internal/app/policies"
	"resort/internal/app/queries"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	"resort/internal/domain/pricing"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/money"
	"resort/internal/infra/config"
	"resort/internal/infra/obs"
	"resort/internal/infra/payments"
	"resort/internal/infra/storage/memory"
	"resort/internal/infra/validation"
)

const sandboxSecret = "test-secret"

type harness struct {
	router  *gin.Engine
	sandbox *payments.Sandbox
}

// newHarness wires the router over a seeded memory store. wrap, when given,
// decorates the factory the handlers see.
func newHarness(t *testing.T, wrap ...func(uow.UoWFactory) uow.UoWFactory) harness {
	t.Helper()
	store := memory.Factory{Store: memory.NewStore()}
	_, err := uow.Run(context.Background(), store, uow.TxOptions{}, 1, func(ctx context.Context, unit uow.UnitOfWork) (struct{}, error) {
		room, err := domainrooms.NewRoom(domainrooms.CreateParams{
			ID: "room-1", Name: "Garden Cottage", Capacity: 2, PricePerNight: money.Must(3000, "INR"), Available: true,
		})
		require.NoError(t, err)
		return struct{}{}, unit.Rooms().Save(ctx, room)
	})
	require.NoError(t, err)
	var factory uow.UoWFactory = store
	for _, w := range wrap {
		factory = w(factory)
	}

	sandbox, err := payments.NewSandbox(sandboxSecret)
	require.NoError(t, err)
	box := memory.NewOutbox()
	encoder := outbox.JSONEventEncoder{}
	pay := &bookingapp.PaymentsHandler{UoWFactory: factory, Gateway: sandbox, Outbox: box, Encoder: encoder, Attempts: 1}

	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: factory,
		Pricing:    pricing.NewCalculator(pricing.DefaultRates()),
		Outbox:     box,
		Encoder:    encoder,
		Attempts:   1,
	})
	commands.RegisterHandler(bus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: factory, Payments: sandbox, Outbox: box, Encoder: encoder, Attempts: 1,
	})
	commands.RegisterHandler(bus, bookingapp.TransitionBookingCommand{}.Key(), &bookingapp.TransitionBookingHandler{
		UoWFactory: factory, Outbox: box, Encoder: encoder, Attempts: 1,
	})
	commands.RegisterHandler(bus, bookingapp.StartPaymentCommand{}.Key(), commands.HandlerFunc[bookingapp.StartPaymentCommand, dto.PaymentOrder](pay.Start))
	commands.RegisterHandler(bus, bookingapp.ConfirmPaymentCommand{}.Key(), commands.HandlerFunc[bookingapp.ConfirmPaymentCommand, bookingapp.PaymentResult](pay.Confirm))

	v := validation.New()
	cmds := middleware.ChainCommands(bus,
		middleware.Validation(v),
		middleware.Authorization(policies.RoleAuthorizer{}),
		middleware.Idempotency(memory.NewIdempotencyStore(), nil),
		middleware.Transaction(factory, nil, 2),
		middleware.OutboxFlush(box),
	)

	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler(qbus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: factory})
	queries.RegisterHandler(qbus, bookingapp.ListMyBookingsQuery{}.Key(), &bookingapp.ListMyBookingsHandler{UoWFactory: factory})
	queries.RegisterHandler(qbus, availabilityapp.GetAvailabilityQuery{}.Key(), &availabilityapp.GetAvailabilityHandler{UoWFactory: factory})
	queries.RegisterHandler(qbus, availabilityapp.OccupancyReportQuery{}.Key(), &availabilityapp.OccupancyReportHandler{UoWFactory: factory})
	qs := middleware.ChainQueries(qbus, middleware.QueryValidation(v), middleware.QueryAuthorization(policies.RoleAuthorizer{}))

	router := NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, nil, Handlers{
		Booking:      BookingHandler{Commands: cmds, Queries: qs},
		Availability: AvailabilityHandler{Queries: qs},
		Me:           MeHandler{Queries: qs},
	})
	return harness{router: router, sandbox: sandbox}
}

type call struct {
	method, path string
	body         any
	user, role   string
	idemKey      string
}

func (h harness) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set(userIDHeader, c.user)
	}
	if c.role != "" {
		req.Header.Set(userRoleHeader, c.role)
	}
	if c.idemKey != "" {
		req.Header.Set("Idempotency-Key", c.idemKey)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func stayRequest(in, out string) map[string]any {
	return map[string]any{
		"room_id":   "room-1",
		"check_in":  in,
		"check_out": out,
		"guests":    []map[string]any{{"name": "Asha", "age": 34}, {"name": "Kiran", "age": 4}},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type bookingEnvelope struct {
	Booking dto.Booking `json:"booking"`
}

func TestCreateBookingAndReadItBack(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[bookingEnvelope](t, rec).Booking
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "guest-1", created.UserID)
	assert.Equal(t, int64(6000), created.Pricing.RoomPrice.Amount)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/bookings/" + created.ID, user: "guest-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[dto.Booking](t, rec).ID)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/bookings/" + created.ID, user: "guest-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "other guests cannot see the booking")

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/me/bookings", user: "guest-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)
}

func TestCreateBookingRejectsOverlapWithConflicts(t *testing.T) {
	h := newHarness(t)
	first := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-13"), user: "guest-1"})
	require.Equal(t, http.StatusCreated, first.Code)
	firstID := decode[bookingEnvelope](t, first).Booking.ID

	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-12", "2031-03-14"), user: "guest-2"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "date_overlap", body.Code)
	assert.Equal(t, []string{firstID}, body.ConflictingBookings)

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-13", "2031-03-14"), user: "guest-2"})
	assert.Equal(t, http.StatusCreated, rec.Code, "checking in on another stay's check-out day is allowed")
}

func TestCreateBookingErrors(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-12", "2031-03-10"), user: "guest-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date_range", decode[errorBody](t, rec).Code)

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("tomorrow", "2031-03-10"), user: "guest-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	crowd := stayRequest("2031-03-10", "2031-03-12")
	crowd["guests"] = []map[string]any{{"name": "A", "age": 30}, {"name": "B", "age": 31}, {"name": "C", "age": 32}}
	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: crowd, user: "guest-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "capacity_exceeded", decode[errorBody](t, rec).Code)
}

func TestCreateBookingStorageFailureIsGeneric(t *testing.T) {
	cause := fmt.Errorf("bookings collection: %w", domainbooking.ErrNotFound)
	h := newHarness(t, func(inner uow.UoWFactory) uow.UoWFactory {
		return brokenSaves{UoWFactory: inner, err: cause}
	})

	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1"})
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, errorBody{Error: "internal error", Code: "internal"}, body)
	assert.NotContains(t, rec.Body.String(), "bookings collection")
}

func TestCreateBookingReplaysIdempotentRequest(t *testing.T) {
	h := newHarness(t)
	req := call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1", idemKey: "idem-1"}

	first := h.do(t, req)
	require.Equal(t, http.StatusCreated, first.Code)
	second := h.do(t, req)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode[bookingEnvelope](t, first).Booking.ID, decode[bookingEnvelope](t, second).Booking.ID)
}

func TestLifecycleTransitionsRequireAdmin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[bookingEnvelope](t, rec).Booking.ID

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/confirm", user: "guest-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/check-in", user: "admin-1", role: "admin"})
	assert.Equal(t, http.StatusConflict, rec.Code, "pending bookings cannot check in")

	for _, step := range []string{"confirm", "check-in", "check-out"} {
		rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/" + step, user: "admin-1", role: "ADMIN"})
		require.Equal(t, http.StatusOK, rec.Code, step)
	}
	assert.Equal(t, "checked_out", decode[bookingEnvelope](t, rec).Booking.Status)

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/cancel", user: "guest-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelTwiceIsRejected(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[bookingEnvelope](t, rec).Booking.ID

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/cancel", body: map[string]string{"reason": "plans changed"}, user: "guest-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[bookingEnvelope](t, rec).Booking.Status)

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/cancel", user: "guest-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_cancelled", decode[errorBody](t, rec).Code)
}

func TestPaymentVerification(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[bookingEnvelope](t, rec).Booking.ID

	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/payments", user: "guest-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[dto.PaymentOrder](t, rec)
	require.NotEmpty(t, order.OrderID)

	bad := map[string]string{"order_id": order.OrderID, "payment_id": "pay-1", "signature": "forged"}
	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/payments/verify", body: bad, user: "guest-1"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_verification_failed")

	good := map[string]string{"order_id": order.OrderID, "payment_id": "pay-2", "signature": h.sandbox.Sign(order.OrderID, "pay-2")}
	rec = h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings/" + id + "/payments/verify", body: good, user: "guest-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Booking  dto.Booking `json:"booking"`
		Verified bool        `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Verified)
	assert.Equal(t, "paid", res.Booking.PaymentStatus)
	assert.Equal(t, "confirmed", res.Booking.Status)
}

func TestAvailabilityEndpoints(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, call{method: http.MethodPost, path: "/api/v1/bookings", body: stayRequest("2031-03-10", "2031-03-12"), user: "guest-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/availability?check_in=2031-03-11&check_out=2031-03-13", user: "guest-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[dto.Availability](t, rec).Rooms)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/availability?check_in=2031-03-12&check_out=2031-03-13", user: "guest-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.Availability](t, rec).Rooms, 1)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/availability?check_in=soon&check_out=2031-03-13"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/availability/occupancy?from=2031-03-01&to=2031-03-31", user: "guest-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, call{method: http.MethodGet, path: "/api/v1/availability/occupancy?from=2031-03-01&to=2031-03-31", user: "admin-1", role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[dto.OccupancyReport](t, rec)
	require.Len(t, report.Rooms, 1)
	assert.Equal(t, 2, report.Rooms[0].BookedNights)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2031-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2031, 3, 10, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2031-03-10T23:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2031, 3, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("10/03/2031")
	assert.Error(t, err)
}

type brokenSaves struct {
	uow.UoWFactory
	err error
}

func (f brokenSaves) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return brokenSaveUnit{UnitOfWork: unit, err: f.err}, nil
}

type brokenSaveUnit struct {
	uow.UnitOfWork
	err error
}

func (u brokenSaveUnit) Bookings() domainbooking.Repository {
	return brokenBookings{Repository: u.UnitOfWork.Bookings(), err: u.err}
}

type brokenBookings struct {
	domainbooking.Repository
	err error
}

func (r brokenBookings) Save(context.Context, *domainbooking.Booking) error { return r.err }
