package memory

import (
	"context"
	"errors"

	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

var (
	// ErrFactoryMisconfigured indicates a factory without a store.
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit         = errors.New("memory: write attempted in read-only unit")
)

// Factory opens units over a shared Store.
type Factory struct {
	Store *Store
}

// Begin starts a unit. Write units take per-key locks as they touch rooms,
// bookings and yoga sessions and keep them until Commit or Rollback, so two
// units reserving the same room run one after the other. Read-only units
// take no locks and see committed state only.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		held:     make(map[string]struct{}),
		rooms:    make(map[domainrooms.RoomID]*domainrooms.Room),
		services: make(map[domaincatalog.ServiceID]*domaincatalog.Service),
		sessions: make(map[domainyoga.SessionID]*domainyoga.Session),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		users:    make(map[domainuser.ID]*domainuser.User),
	}, nil
}

// Unit stages writes until Commit. It is not safe for concurrent use.
type Unit struct {
	store    *Store
	readOnly bool
	closed   bool
	held     map[string]struct{}
	order    []string

	rooms    map[domainrooms.RoomID]*domainrooms.Room
	services map[domaincatalog.ServiceID]*domaincatalog.Service
	sessions map[domainyoga.SessionID]*domainyoga.Session
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	users    map[domainuser.ID]*domainuser.User
}

func (u *Unit) Rooms() domainrooms.Repository { return roomRepo{u} }
func (u *Unit) Services() domaincatalog.Repository { return serviceRepo{u} }
func (u *Unit) Yoga() domainyoga.Repository { return yogaRepo{u} }
func (u *Unit) Bookings() domainbooking.Repository { return bookingRepo{u} }
func (u *Unit) Users() domainuser.Repository { return userRepo{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.closed {
		return ErrUnitClosed
	}
	defer u.finish()
	if u.readOnly {
		return nil
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range u.rooms {
		r.Version++
		s.rooms[id] = r
	}
	for id, svc := range u.services {
		s.services[id] = svc
	}
	for id, sess := range u.sessions {
		sess.Version++
		s.sessions[id] = sess
	}
	for id, b := range u.bookings {
		b.Version++
		s.bookings[id] = b
	}
	for id, usr := range u.users {
		s.users[id] = usr
	}
	return nil
}

// Rollback discards staged writes. Calling it after Commit is a no-op.
func (u *Unit) Rollback(ctx context.Context) error {
	if u.closed {
		return nil
	}
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.closed = true
	for i := len(u.order) - 1; i >= 0; i-- {
		u.store.locks.release(u.order[i])
	}
	u.order = nil
	u.held = map[string]struct{}{}
}

func (u *Unit) lock(ctx context.Context, key string) error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return nil
	}
	if _, ok := u.held[key]; ok {
		return nil
	}
	if err := u.store.locks.acquire(ctx, key); err != nil {
		return err
	}
	u.held[key] = struct{}{}
	u.order = append(u.order, key)
	return nil
}

func (u *Unit) writable() error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
