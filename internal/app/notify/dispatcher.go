package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"resort/internal/app/handlers/support"
	"resort/internal/app/policies"
	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

type Kind string

const (
	KindConfirmation Kind = "booking_confirmation"
	KindCancellation Kind = "booking_cancellation"
)

// Notice asks for a message about a committed booking change.
type Notice struct {
	Kind      Kind
	BookingID domainbooking.BookingID
}

// Source is implemented by command results that want messages sent.
type Source interface {
	Notices() []Notice
}

var errUnknownKind = errors.New("notify: unknown notice kind")

// Dispatcher sends notices best effort. Failures are logged and counted,
// never returned.
type Dispatcher struct {
	Notifier  policies.Notifier
	UoW       uow.UoWFactory
	Logger    *slog.Logger
	Timeout   time.Duration
	Async     bool
	OnFailure func(kind Kind)

	wg sync.WaitGroup
}

func (d *Dispatcher) Dispatch(ctx context.Context, notices []Notice) {
	if d.Notifier == nil || len(notices) == 0 {
		return
	}
	// The request may finish before delivery does.
	base := context.WithoutCancel(ctx)
	if !d.Async {
		d.deliverAll(base, notices)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliverAll(base, notices)
	}()
}

// Wait blocks until in-flight asynchronous deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliverAll(ctx context.Context, notices []Notice) {
	for _, n := range notices {
		if err := d.deliver(ctx, n); err != nil {
			d.logger().WarnContext(ctx, "notification not delivered",
				"kind", n.Kind,
				"booking_id", n.BookingID,
				"error", err,
			)
			if d.OnFailure != nil {
				d.OnFailure(n.Kind)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notice) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, u, err := d.load(ctx, n.BookingID)
	if err != nil {
		return err
	}
	switch n.Kind {
	case KindConfirmation:
		return d.Notifier.SendBookingConfirmation(ctx, b, u)
	case KindCancellation:
		return d.Notifier.SendBookingCancellation(ctx, b, u)
	default:
		return errUnknownKind
	}
}

func (d *Dispatcher) load(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, *domainuser.User, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, d.UoW)
	if err != nil {
		return nil, nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, id)
	if err != nil {
		return nil, nil, err
	}
	u, err := unit.Users().ByID(execCtx, domainuser.ID(b.UserID))
	if err != nil {
		return nil, nil, err
	}
	return b, u, nil
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
