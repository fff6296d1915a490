package memory

import (
	"context"
	"sync"

	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

// Store holds committed state. Units read through it and apply their staged
// writes on commit.
type Store struct {
	mu       sync.RWMutex
	rooms    map[domainrooms.RoomID]*domainrooms.Room
	services map[domaincatalog.ServiceID]*domaincatalog.Service
	sessions map[domainyoga.SessionID]*domainyoga.Session
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	users    map[domainuser.ID]*domainuser.User

	locks *keyedLocks
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[domainrooms.RoomID]*domainrooms.Room),
		services: make(map[domaincatalog.ServiceID]*domaincatalog.Service),
		sessions: make(map[domainyoga.SessionID]*domainyoga.Session),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		users:    make(map[domainuser.ID]*domainuser.User),
		locks:    newKeyedLocks(),
	}
}

// keyedLocks hands out one exclusive lock per key. Acquisition honours ctx so
// a unit stuck behind another one can still be cancelled.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[string]chan struct{})}
}

func (l *keyedLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *keyedLocks) acquire(ctx context.Context, key string) error {
	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *keyedLocks) release(key string) {
	select {
	case <-l.slot(key):
	default:
	}
}

func roomKey(id domainrooms.RoomID) string         { return "room:" + string(id) }
func bookingKey(id domainbooking.BookingID) string { return "booking:" + string(id) }
func sessionKey(id domainyoga.SessionID) string    { return "yoga:" + string(id) }

func cloneRoom(r *domainrooms.Room) *domainrooms.Room {
	c := *r
	c.Amenities = append([]string(nil), r.Amenities...)
	return &c
}

func cloneService(s *domaincatalog.Service) *domaincatalog.Service {
	c := *s
	if s.AgeRestriction != nil {
		ar := *s.AgeRestriction
		c.AgeRestriction = &ar
	}
	return &c
}

func cloneSession(s *domainyoga.Session) *domainyoga.Session {
	c := *s
	return &c
}

func cloneUser(u *domainuser.User) *domainuser.User {
	c := *u
	return &c
}

// cloneBooking copies b without its pending events.
func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	c := *b
	c.ClearEvents()
	c.Guests = append(c.Guests[:0:0], b.Guests...)
	c.Services = append([]domainbooking.ServiceSelection(nil), b.Services...)
	c.Pricing = b.Pricing.Copy()
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}
