package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resort/internal/app/notify"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	"resort/internal/domain/pricing"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/money"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
	"resort/internal/infra/payments"
	"resort/internal/infra/storage/memory"
)

var (
	fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	guest    = policies.Requester{UserID: "u-guest", Role: domainuser.RoleGuest}
	stranger = policies.Requester{UserID: "u-other", Role: domainuser.RoleGuest}
	admin    = policies.Requester{UserID: "u-admin", Role: domainuser.RoleAdmin}
)

type fixture struct {
	factory  memory.Factory
	outbox   *memory.Outbox
	gateway  *payments.Sandbox
	create   *CreateBookingHandler
	cancel   *CancelBookingHandler
	payments *PaymentsHandler
	moves    *TransitionBookingHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	factory := memory.Factory{Store: memory.NewStore()}
	seedCatalog(t, factory)

	box := memory.NewOutbox()
	gw, err := payments.NewSandbox("test-secret")
	require.NoError(t, err)
	now := func() time.Time { return fixedNow }

	return &fixture{
		factory: factory,
		outbox:  box,
		gateway: gw,
		create: &CreateBookingHandler{
			UoWFactory: factory,
			Validator:  AvailabilityValidator{Now: now, RequireFutureCheckIn: true},
			Pricing:    pricing.NewCalculator(pricing.DefaultRates()),
			Outbox:     box,
			Attempts:   2,
			Now:        now,
		},
		cancel:   &CancelBookingHandler{UoWFactory: factory, Payments: gw, Outbox: box, Attempts: 2, Now: now},
		payments: &PaymentsHandler{UoWFactory: factory, Gateway: gw, Outbox: box, Attempts: 2, Now: now},
		moves:    &TransitionBookingHandler{UoWFactory: factory, Outbox: box, Attempts: 2, Now: now},
	}
}

func seedCatalog(t *testing.T, factory memory.Factory) {
	t.Helper()
	ctx := context.Background()
	_, err := uow.Run(ctx, factory, uow.TxOptions{}, 1, func(ctx context.Context, unit uow.UnitOfWork) (struct{}, error) {
		for _, params := range []domainrooms.CreateParams{
			{ID: "r-garden", Name: "Garden Cottage", Capacity: 4, PricePerNight: inr(2000), Available: true},
			{ID: "r-hill", Name: "Hill View", Capacity: 2, PricePerNight: inr(3000), Available: true},
			{ID: "r-closed", Name: "Under Repair", Capacity: 4, PricePerNight: inr(1000), Available: false},
		} {
			room, err := domainrooms.NewRoom(params)
			require.NoError(t, err)
			require.NoError(t, unit.Rooms().Save(ctx, room))
		}
		minAge := 12
		for _, svc := range []*domaincatalog.Service{
			{ID: "s-spa", Name: "Spa", Category: "wellness", Price: inr(500), Unit: domaincatalog.PerPerson, Active: true},
			{ID: "s-kayak", Name: "Kayaking", Category: "adventure", Price: inr(800), Unit: domaincatalog.PerSession, Active: true,
				AgeRestriction: &domaincatalog.AgeRestriction{MinAge: &minAge}},
			{ID: "s-old", Name: "Cooking Class", Category: "food", Price: inr(400), Unit: domaincatalog.FlatRate, Active: false},
		} {
			require.NoError(t, unit.Services().Save(ctx, svc))
		}
		require.NoError(t, unit.Yoga().Save(ctx, &domainyoga.Session{
			ID: "y-sunrise", Title: "Sunrise Flow", Capacity: 3, Price: inr(300), Active: true,
		}))
		for _, params := range []domainuser.CreateParams{
			{ID: "u-guest", Email: "guest@example.com", Name: "Asha", Role: domainuser.RoleGuest},
			{ID: "u-other", Email: "other@example.com", Name: "Ravi", Role: domainuser.RoleGuest},
		} {
			u, err := domainuser.NewUser(params)
			require.NoError(t, err)
			require.NoError(t, unit.Users().Save(ctx, u))
		}
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func inr(amount int64) money.Money {
	return money.Must(amount, money.DefaultCurrency)
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func stayCommand(room, in, out string, party ...GuestInput) CreateBookingCommand {
	if len(party) == 0 {
		party = []GuestInput{{Name: "Asha", Age: 30}}
	}
	return CreateBookingCommand{
		Requester: guest,
		RoomID:    room,
		CheckIn:   day(in),
		CheckOut:  day(out),
		Guests:    party,
	}
}

func TestCreateBookingPricesAndStores(t *testing.T) {
	f := newFixture(t)
	cmd := stayCommand("r-garden", "2024-06-10", "2024-06-12",
		GuestInput{Name: "Kid", Age: 3}, GuestInput{Name: "Parent", Age: 30})
	cmd.IncludeFood = true

	res, err := f.create.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Booking.ID)
	assert.Equal(t, string(domainbooking.StatusPending), res.Booking.Status)
	assert.Equal(t, string(domainbooking.PaymentPending), res.Booking.PaymentStatus)
	assert.Equal(t, int64(4000), res.Booking.Pricing.RoomPrice.Amount)
	assert.Equal(t, int64(300), res.Booking.Pricing.FoodPrice.Amount)
	assert.Equal(t, int64(4300), res.Booking.Pricing.TotalAmount.Amount)
	assert.True(t, res.Booking.Guests[0].IsChild)
	assert.Equal(t, []notify.Notice{{Kind: notify.KindConfirmation, BookingID: domainbooking.BookingID(res.Booking.ID)}}, res.Notices())

	require.NoError(t, f.outbox.Flush(context.Background()))
	assert.Equal(t, []string{"booking.created"}, f.outbox.Flushed())
}

func TestCreateBookingOverlapRejectedAdjacentAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	_, err = f.create.Handle(ctx, stayCommand("r-garden", "2024-06-11", "2024-06-13"))
	require.ErrorIs(t, err, domainbooking.ErrDateOverlap)
	var rejected *domainbooking.ValidationError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, []domainbooking.BookingID{domainbooking.BookingID(first.Booking.ID)}, rejected.ConflictingBookings)

	_, err = f.create.Handle(ctx, stayCommand("r-garden", "2024-06-12", "2024-06-14"))
	require.NoError(t, err)

	_, err = f.create.Handle(ctx, stayCommand("r-hill", "2024-06-11", "2024-06-13"))
	require.NoError(t, err)
}

func TestCreateBookingValidationOrder(t *testing.T) {
	cases := []struct {
		name string
		cmd  func() CreateBookingCommand
		want error
	}{
		{
			name: "check-out before check-in",
			cmd:  func() CreateBookingCommand { return stayCommand("r-garden", "2024-06-12", "2024-06-10") },
			want: domainbooking.ErrInvalidDateRange,
		},
		{
			name: "check-in in the past",
			cmd:  func() CreateBookingCommand { return stayCommand("r-garden", "2024-05-20", "2024-05-22") },
			want: domainbooking.ErrInvalidDateRange,
		},
		{
			name: "unknown room",
			cmd:  func() CreateBookingCommand { return stayCommand("r-missing", "2024-06-10", "2024-06-12") },
			want: domainbooking.ErrRoomUnavailable,
		},
		{
			name: "room closed",
			cmd:  func() CreateBookingCommand { return stayCommand("r-closed", "2024-06-10", "2024-06-12") },
			want: domainbooking.ErrRoomUnavailable,
		},
		{
			name: "too many guests",
			cmd: func() CreateBookingCommand {
				return stayCommand("r-hill", "2024-06-10", "2024-06-12",
					GuestInput{Name: "A", Age: 30}, GuestInput{Name: "B", Age: 31}, GuestInput{Name: "C", Age: 4})
			},
			want: domainbooking.ErrCapacityExceeded,
		},
		{
			name: "inactive service",
			cmd: func() CreateBookingCommand {
				cmd := stayCommand("r-garden", "2024-06-10", "2024-06-12")
				cmd.Services = []ServiceInput{{ServiceID: "s-spa"}, {ServiceID: "s-old"}}
				return cmd
			},
			want: domainbooking.ErrServiceInactive,
		},
		{
			name: "age restricted service",
			cmd: func() CreateBookingCommand {
				cmd := stayCommand("r-garden", "2024-06-10", "2024-06-12",
					GuestInput{Name: "Parent", Age: 40}, GuestInput{Name: "Mira", Age: 9})
				cmd.Services = []ServiceInput{{ServiceID: "s-kayak"}}
				return cmd
			},
			want: domainbooking.ErrAgeRestrictionViolation,
		},
		{
			name: "yoga session too small",
			cmd: func() CreateBookingCommand {
				cmd := stayCommand("r-garden", "2024-06-10", "2024-06-12",
					GuestInput{Name: "A", Age: 30}, GuestInput{Name: "B", Age: 31},
					GuestInput{Name: "C", Age: 8}, GuestInput{Name: "D", Age: 6})
				cmd.YogaSessionID = "y-sunrise"
				return cmd
			},
			want: domainbooking.ErrYogaSessionFull,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.create.Handle(context.Background(), tc.cmd())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			var rejected *domainbooking.ValidationError
			assert.True(t, errors.As(err, &rejected))
		})
	}
}

func TestCreateBookingNamesOffendingGuest(t *testing.T) {
	f := newFixture(t)
	cmd := stayCommand("r-garden", "2024-06-10", "2024-06-12",
		GuestInput{Name: "Parent", Age: 40}, GuestInput{Name: "Mira", Age: 9})
	cmd.Services = []ServiceInput{{ServiceID: "s-kayak"}}

	_, err := f.create.Handle(context.Background(), cmd)
	var rejected *domainbooking.ValidationError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "Mira", rejected.Guest)
	assert.Equal(t, "Kayaking", rejected.Service)
}

func TestCreateBookingPricesServicesTransportAndYoga(t *testing.T) {
	f := newFixture(t)
	cmd := stayCommand("r-garden", "2024-06-10", "2024-06-13",
		GuestInput{Name: "A", Age: 30}, GuestInput{Name: "B", Age: 28})
	cmd.Services = []ServiceInput{{ServiceID: "s-spa"}, {ServiceID: "s-kayak", Quantity: 2}}
	cmd.Transport = &TransportInput{Pickup: true}
	cmd.IncludeBreakfast = true
	cmd.YogaSessionID = "y-sunrise"

	res, err := f.create.Handle(context.Background(), cmd)
	require.NoError(t, err)

	p := res.Booking.Pricing
	assert.Equal(t, int64(6000), p.RoomPrice.Amount)
	assert.Equal(t, int64(1200), p.BreakfastPrice.Amount)
	assert.Equal(t, int64(1000+1600), p.ServicesPrice.Amount)
	assert.Equal(t, int64(1500), p.TransportPrice.Amount)
	assert.Equal(t, int64(600), p.YogaPrice.Amount)
	assert.Equal(t, int64(6000+1200+2600+1500+600), p.TotalAmount.Amount)
	assert.Equal(t, 2, res.Booking.YogaSeats)

	assert.Equal(t, 2, bookedSeats(t, f, "y-sunrise"))
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	f := newFixture(t)
	const attempts = 12

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		overlaps  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.create.Handle(context.Background(), stayCommand("r-garden", "2024-07-01", "2024-07-04"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domainbooking.ErrDateOverlap):
				overlaps++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, overlaps)
}

func TestConcurrentYogaReservationsStayWithinCapacity(t *testing.T) {
	f := newFixture(t)
	rooms := []string{"r-garden", "r-hill", "r-garden", "r-hill"}
	dates := [][2]string{{"2024-07-01", "2024-07-02"}, {"2024-07-01", "2024-07-02"}, {"2024-08-01", "2024-08-02"}, {"2024-08-01", "2024-08-02"}}

	var wg sync.WaitGroup
	results := make([]error, len(rooms))
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := stayCommand(rooms[i], dates[i][0], dates[i][1])
			cmd.YogaSessionID = "y-sunrise"
			_, results[i] = f.create.Handle(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domainbooking.ErrYogaSessionFull)
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 3, bookedSeats(t, f, "y-sunrise"))
}

func TestCancelBookingReleasesSeatsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cmd := stayCommand("r-garden", "2024-06-10", "2024-06-12",
		GuestInput{Name: "A", Age: 30}, GuestInput{Name: "B", Age: 2})
	cmd.YogaSessionID = "y-sunrise"
	created, err := f.create.Handle(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, 2, bookedSeats(t, f, "y-sunrise"))

	_, err = f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: stranger})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)

	res, err := f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest, Reason: "plans changed"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCancelled), res.Booking.Status)
	assert.Equal(t, "plans changed", res.Booking.CancelReason)
	assert.NotNil(t, res.Booking.CancelledAt)
	assert.Equal(t, notify.KindCancellation, res.Notices()[0].Kind)
	assert.Equal(t, 0, bookedSeats(t, f, "y-sunrise"))

	_, err = f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	assert.ErrorIs(t, err, domainbooking.ErrAlreadyCancelled)
	assert.Equal(t, 0, bookedSeats(t, f, "y-sunrise"))

	_, err = f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	assert.NoError(t, err, "cancelled bookings no longer block the room")
}

func TestCancelBookingRejectsCheckedInStay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	for _, action := range []Transition{TransitionConfirm, TransitionCheckIn} {
		_, err := f.moves.Handle(ctx, TransitionBookingCommand{BookingID: created.Booking.ID, Action: action, Requester: admin})
		require.NoError(t, err)
	}

	_, err = f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: admin})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidStateTransition)

	got, err := (&GetBookingHandler{UoWFactory: f.factory}).Handle(ctx, GetBookingQuery{BookingID: created.Booking.ID, Requester: admin})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCheckedIn), got.Status)
	assert.Nil(t, got.CancelledAt)
}

func TestTransitionsFollowLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	_, err = f.moves.Handle(ctx, TransitionBookingCommand{BookingID: created.Booking.ID, Action: TransitionCheckOut, Requester: admin})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidStateTransition)

	want := map[Transition]domainbooking.Status{
		TransitionConfirm:  domainbooking.StatusConfirmed,
		TransitionCheckIn:  domainbooking.StatusCheckedIn,
		TransitionCheckOut: domainbooking.StatusCheckedOut,
	}
	for _, action := range []Transition{TransitionConfirm, TransitionCheckIn, TransitionCheckOut} {
		res, err := f.moves.Handle(ctx, TransitionBookingCommand{BookingID: created.Booking.ID, Action: action, Requester: admin})
		require.NoError(t, err)
		assert.Equal(t, string(want[action]), res.Booking.Status)
	}
}

func TestPaymentFlowConfirmsAndRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	order, err := f.payments.Start(ctx, StartPaymentCommand{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)
	assert.Equal(t, created.Booking.Pricing.TotalAmount, order.Amount)

	paid, err := f.payments.Confirm(ctx, ConfirmPaymentCommand{
		BookingID: created.Booking.ID,
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: f.gateway.Sign(order.OrderID, "pay_1"),
		Requester: guest,
	})
	require.NoError(t, err)
	assert.True(t, paid.Verified)
	assert.Equal(t, string(domainbooking.PaymentPaid), paid.Booking.PaymentStatus)
	assert.Equal(t, string(domainbooking.StatusConfirmed), paid.Booking.Status)

	cancelled, err := f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentRefunded), cancelled.Booking.PaymentStatus)
	refund, ok := f.gateway.Refunded("pay_1")
	require.True(t, ok)
	assert.Equal(t, created.Booking.Pricing.TotalAmount.Amount, refund.Amount)
}

func TestCancelKeepsBookingWhenRefundFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	_, err = f.payments.Record(ctx, RecordPaymentEventCommand{BookingID: created.Booking.ID, PaymentID: "pay_9", Outcome: PaymentCaptured})
	require.NoError(t, err)

	f.gateway.DeclineRefunds = true
	_, err = f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	require.ErrorIs(t, err, domainbooking.ErrRefundFailed)

	got, err := (&GetBookingHandler{UoWFactory: f.factory}).Handle(ctx, GetBookingQuery{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), got.Status)
	assert.Equal(t, string(domainbooking.PaymentPaid), got.PaymentStatus)
}

func TestCancelRefundsOnceWhenCommitConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	_, err = f.payments.Record(ctx, RecordPaymentEventCommand{BookingID: created.Booking.ID, PaymentID: "pay_4", Outcome: PaymentCaptured})
	require.NoError(t, err)

	flaky := &conflictingFactory{inner: f.factory, conflicts: 1}
	gw := &countingGateway{PaymentGateway: f.gateway}
	cancel := &CancelBookingHandler{UoWFactory: flaky, Payments: gw, Outbox: f.outbox, Attempts: 2, Now: f.cancel.Now}

	res, err := cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentRefunded), res.Booking.PaymentStatus)
	assert.Equal(t, 2, flaky.begun)
	assert.Equal(t, 1, gw.refunds)
	assert.Equal(t, 1, f.gateway.Issued())
}

func TestCancelRetriedAfterConflictsDoesNotRefundAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	_, err = f.payments.Record(ctx, RecordPaymentEventCommand{BookingID: created.Booking.ID, PaymentID: "pay_5", Outcome: PaymentCaptured})
	require.NoError(t, err)

	flaky := &conflictingFactory{inner: f.factory, conflicts: 2}
	cancel := &CancelBookingHandler{UoWFactory: flaky, Payments: f.gateway, Outbox: f.outbox, Attempts: 2, Now: f.cancel.Now}
	_, err = cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	require.ErrorIs(t, err, uow.ErrTransientConflict)

	// the client retries; the gateway recognises the booking's refund key
	res, err := f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentRefunded), res.Booking.PaymentStatus)
	assert.Equal(t, 1, f.gateway.Issued())
}

func TestCancelPaidBookingWithoutGatewayFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	_, err = f.payments.Record(ctx, RecordPaymentEventCommand{BookingID: created.Booking.ID, PaymentID: "pay_6", Outcome: PaymentCaptured})
	require.NoError(t, err)

	f.cancel.Payments = nil
	_, err = f.cancel.Handle(ctx, CancelBookingCommand{BookingID: created.Booking.ID, Requester: guest})
	require.ErrorIs(t, err, domainbooking.ErrRefundFailed)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)

	got, err := (&GetBookingHandler{UoWFactory: f.factory}).Handle(ctx, GetBookingQuery{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), got.Status)
	assert.Equal(t, string(domainbooking.PaymentPaid), got.PaymentStatus)

	unpaid, err := f.create.Handle(ctx, stayCommand("r-hill", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	res, err := f.cancel.Handle(ctx, CancelBookingCommand{BookingID: unpaid.Booking.ID, Requester: guest})
	require.NoError(t, err, "nothing to refund on an unpaid booking")
	assert.Equal(t, string(domainbooking.StatusCancelled), res.Booking.Status)
}

func TestCreateBookingHidesStorageFailure(t *testing.T) {
	f := newFixture(t)
	diskFull := errors.New("disk full")
	f.create.UoWFactory = &conflictingFactory{inner: f.factory, saveErr: diskFull}

	_, err := f.create.Handle(context.Background(), stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.ErrorIs(t, err, domainbooking.ErrBookingCreationFailed)
	assert.ErrorIs(t, err, diskFull)
	assert.False(t, errors.Is(err, domainbooking.ErrConcurrentReservation))
}

func TestCreateBookingReportsRepeatedConflict(t *testing.T) {
	f := newFixture(t)
	flaky := &conflictingFactory{inner: f.factory, conflicts: 2}
	f.create.UoWFactory = flaky

	_, err := f.create.Handle(context.Background(), stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.ErrorIs(t, err, domainbooking.ErrConcurrentReservation)
	assert.False(t, errors.Is(err, domainbooking.ErrBookingCreationFailed))
	assert.Equal(t, 2, flaky.begun)

	mine, err := (&ListMyBookingsHandler{UoWFactory: f.factory}).Handle(context.Background(), ListMyBookingsQuery{Requester: guest})
	require.NoError(t, err)
	assert.Empty(t, mine.Items)
}

func TestCreateBookingSurvivesSingleConflict(t *testing.T) {
	f := newFixture(t)
	f.create.UoWFactory = &conflictingFactory{inner: f.factory, conflicts: 1}

	res, err := f.create.Handle(context.Background(), stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusPending), res.Booking.Status)
}

func TestConfirmPaymentWithBadSignatureMarksFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)
	order, err := f.payments.Start(ctx, StartPaymentCommand{BookingID: created.Booking.ID, Requester: guest})
	require.NoError(t, err)

	res, err := f.payments.Confirm(ctx, ConfirmPaymentCommand{
		BookingID: created.Booking.ID,
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: "deadbeef",
		Requester: guest,
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, string(domainbooking.PaymentFailed), res.Booking.PaymentStatus)
	assert.Equal(t, string(domainbooking.StatusPending), res.Booking.Status)
}

func TestRecordPaymentEventIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := f.payments.Record(ctx, RecordPaymentEventCommand{BookingID: created.Booking.ID, PaymentID: "pay_7", Outcome: PaymentCaptured})
		require.NoError(t, err)
		assert.Equal(t, string(domainbooking.PaymentPaid), res.Booking.PaymentStatus)
		assert.Equal(t, string(domainbooking.StatusConfirmed), res.Booking.Status)
	}
}

func TestStartPaymentWithoutGateway(t *testing.T) {
	h := &PaymentsHandler{}
	_, err := h.Start(context.Background(), StartPaymentCommand{BookingID: "x", Requester: guest})
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
}

func TestBookingQueriesRespectOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.create.Handle(ctx, stayCommand("r-garden", "2024-06-10", "2024-06-12"))
	require.NoError(t, err)

	f.create.Now = func() time.Time { return fixedNow.Add(time.Hour) }
	second, err := f.create.Handle(ctx, stayCommand("r-hill", "2024-06-20", "2024-06-22"))
	require.NoError(t, err)

	get := &GetBookingHandler{UoWFactory: f.factory}
	_, err = get.Handle(ctx, GetBookingQuery{BookingID: first.Booking.ID, Requester: stranger})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
	got, err := get.Handle(ctx, GetBookingQuery{BookingID: first.Booking.ID, Requester: admin})
	require.NoError(t, err)
	assert.Equal(t, first.Booking.ID, got.ID)

	list := &ListMyBookingsHandler{UoWFactory: f.factory}
	mine, err := list.Handle(ctx, ListMyBookingsQuery{Requester: guest})
	require.NoError(t, err)
	require.Len(t, mine.Items, 2)
	assert.Equal(t, second.Booking.ID, mine.Items[0].ID)
	assert.Equal(t, first.Booking.ID, mine.Items[1].ID)

	theirs, err := list.Handle(ctx, ListMyBookingsQuery{Requester: stranger})
	require.NoError(t, err)
	assert.Empty(t, theirs.Items)
}

func bookedSeats(t *testing.T, f *fixture, id domainyoga.SessionID) int {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	sess, err := unit.Yoga().ByID(context.Background(), id)
	require.NoError(t, err)
	return sess.BookedSeats
}

// conflictingFactory wraps the shared store. Its first conflicts commits fail
// with ErrTransientConflict and, when saveErr is set, every booking save fails.
type conflictingFactory struct {
	inner     uow.UoWFactory
	saveErr   error
	mu        sync.Mutex
	conflicts int
	begun     int
}

func (f *conflictingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.begun++
	f.mu.Unlock()
	return &conflictingUnit{UnitOfWork: unit, f: f}, nil
}

type conflictingUnit struct {
	uow.UnitOfWork
	f *conflictingFactory
}

func (u *conflictingUnit) Bookings() domainbooking.Repository {
	if u.f.saveErr == nil {
		return u.UnitOfWork.Bookings()
	}
	return failingBookings{Repository: u.UnitOfWork.Bookings(), err: u.f.saveErr}
}

func (u *conflictingUnit) Commit(ctx context.Context) error {
	u.f.mu.Lock()
	conflict := u.f.conflicts > 0
	if conflict {
		u.f.conflicts--
	}
	u.f.mu.Unlock()
	if conflict {
		_ = u.UnitOfWork.Rollback(ctx)
		return uow.ErrTransientConflict
	}
	return u.UnitOfWork.Commit(ctx)
}

type failingBookings struct {
	domainbooking.Repository
	err error
}

func (r failingBookings) Save(context.Context, *domainbooking.Booking) error { return r.err }

type countingGateway struct {
	policies.PaymentGateway
	refunds int
}

func (g *countingGateway) Refund(ctx context.Context, paymentID string, amount money.Money, key string) (string, error) {
	g.refunds++
	return g.PaymentGateway.Refund(ctx, paymentID, amount, key)
}
