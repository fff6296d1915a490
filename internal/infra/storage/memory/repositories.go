package memory

import (
	"context"
	"sort"

	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

type roomRepo struct{ u *Unit }

func (r roomRepo) ByID(ctx context.Context, id domainrooms.RoomID) (*domainrooms.Room, error) {
	if room, ok := r.u.rooms[id]; ok {
		return cloneRoom(room), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domainrooms.ErrNotFound
	}
	return cloneRoom(room), nil
}

// List returns matching rooms ordered by id.
func (r roomRepo) List(ctx context.Context, filter domainrooms.Filter) ([]*domainrooms.Room, error) {
	s := r.u.store
	s.mu.RLock()
	merged := make(map[domainrooms.RoomID]*domainrooms.Room, len(s.rooms))
	for id, room := range s.rooms {
		merged[id] = room
	}
	s.mu.RUnlock()
	for id, room := range r.u.rooms {
		merged[id] = room
	}

	out := make([]*domainrooms.Room, 0, len(merged))
	for _, room := range merged {
		if filter.Matches(room) {
			out = append(out, cloneRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r roomRepo) Save(ctx context.Context, room *domainrooms.Room) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, roomKey(room.ID)); err != nil {
		return err
	}
	r.u.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (r roomRepo) Guard(ctx context.Context, id domainrooms.RoomID) error {
	if err := r.u.lock(ctx, roomKey(id)); err != nil {
		return err
	}
	_, err := r.ByID(ctx, id)
	return err
}

type serviceRepo struct{ u *Unit }

func (r serviceRepo) ByID(ctx context.Context, id domaincatalog.ServiceID) (*domaincatalog.Service, error) {
	if svc, ok := r.u.services[id]; ok {
		return cloneService(svc), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, domaincatalog.ErrNotFound
	}
	return cloneService(svc), nil
}

func (r serviceRepo) ActiveByCategory(ctx context.Context, category string) (*domaincatalog.Service, error) {
	s := r.u.store
	s.mu.RLock()
	candidates := make(map[domaincatalog.ServiceID]*domaincatalog.Service, len(s.services))
	for id, svc := range s.services {
		candidates[id] = svc
	}
	s.mu.RUnlock()
	for id, svc := range r.u.services {
		candidates[id] = svc
	}

	var found *domaincatalog.Service
	for _, svc := range candidates {
		if !svc.Active || svc.Category != category {
			continue
		}
		if found == nil || svc.ID < found.ID {
			found = svc
		}
	}
	if found == nil {
		return nil, domaincatalog.ErrNotFound
	}
	return cloneService(found), nil
}

func (r serviceRepo) Save(ctx context.Context, svc *domaincatalog.Service) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.services[svc.ID] = cloneService(svc)
	return nil
}

type yogaRepo struct{ u *Unit }

func (r yogaRepo) ByID(ctx context.Context, id domainyoga.SessionID) (*domainyoga.Session, error) {
	if sess, ok := r.u.sessions[id]; ok {
		return cloneSession(sess), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domainyoga.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (r yogaRepo) Save(ctx context.Context, sess *domainyoga.Session) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, sessionKey(sess.ID)); err != nil {
		return err
	}
	r.u.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (r yogaRepo) ReserveSeats(ctx context.Context, id domainyoga.SessionID, seats int) error {
	return r.adjust(ctx, id, func(sess *domainyoga.Session) error { return sess.Reserve(seats) })
}

func (r yogaRepo) ReleaseSeats(ctx context.Context, id domainyoga.SessionID, seats int) error {
	return r.adjust(ctx, id, func(sess *domainyoga.Session) error { return sess.Release(seats) })
}

func (r yogaRepo) adjust(ctx context.Context, id domainyoga.SessionID, apply func(*domainyoga.Session) error) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, sessionKey(id)); err != nil {
		return err
	}
	sess, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := apply(sess); err != nil {
		return err
	}
	r.u.sessions[id] = sess
	return nil
}

type bookingRepo struct{ u *Unit }

// ByID locks the booking in write units so a later Save cannot lose a race.
func (r bookingRepo) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if err := r.u.lock(ctx, bookingKey(id)); err != nil {
		return nil, err
	}
	if b, ok := r.u.bookings[id]; ok {
		return cloneBooking(b), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r bookingRepo) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, bookingKey(b.ID)); err != nil {
		return err
	}
	r.u.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r bookingRepo) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	return r.collect(func(b *domainbooking.Booking) bool { return b.UserID == userID }), nil
}

func (r bookingRepo) FindOverlapping(ctx context.Context, q domainbooking.OverlapQuery) ([]*domainbooking.Booking, error) {
	return r.collect(func(b *domainbooking.Booking) bool {
		if q.RoomID != "" && b.RoomID != q.RoomID {
			return false
		}
		if len(q.Statuses) > 0 && !statusIn(b.Status, q.Statuses) {
			return false
		}
		return b.Range.Overlaps(q.Range)
	}), nil
}

// collect merges committed bookings with staged ones, ordered by check-in.
func (r bookingRepo) collect(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	s := r.u.store
	s.mu.RLock()
	merged := make(map[domainbooking.BookingID]*domainbooking.Booking, len(s.bookings))
	for id, b := range s.bookings {
		merged[id] = b
	}
	s.mu.RUnlock()
	for id, b := range r.u.bookings {
		merged[id] = b
	}

	out := make([]*domainbooking.Booking, 0)
	for _, b := range merged {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out
}

func statusIn(status domainbooking.Status, set []domainbooking.Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

type userRepo struct{ u *Unit }

func (r userRepo) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	if usr, ok := r.u.users[id]; ok {
		return cloneUser(usr), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	usr, ok := s.users[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return cloneUser(usr), nil
}

func (r userRepo) Save(ctx context.Context, usr *domainuser.User) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.users[usr.ID] = cloneUser(usr)
	return nil
}
