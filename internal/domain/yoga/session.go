package yoga

import (
	"context"
	"errors"
	"time"

	"resort/internal/domain/shared/money"
)

var (
	ErrNotFound        = errors.New("yoga: session not found")
	ErrSessionFull     = errors.New("yoga: not enough free seats")
	ErrInvalidSeats    = errors.New("yoga: seat count must be positive")
	ErrInvalidCapacity = errors.New("yoga: capacity must be at least 1")
)

type SessionID string

type Session struct {
	ID          SessionID
	Title       string
	Instructor  string
	StartsAt    time.Time
	Duration    time.Duration
	Capacity    int
	BookedSeats int
	Price       money.Money
	Active      bool
	Version     int64
}

type Repository interface {
	ByID(ctx context.Context, id SessionID) (*Session, error)
	Save(ctx context.Context, session *Session) error
	// ReserveSeats atomically adds seats when they fit within capacity and
	// returns ErrSessionFull otherwise.
	ReserveSeats(ctx context.Context, id SessionID, seats int) error
	// ReleaseSeats atomically removes seats, never dropping below zero.
	ReleaseSeats(ctx context.Context, id SessionID, seats int) error
}

func (s *Session) FreeSeats() int {
	free := s.Capacity - s.BookedSeats
	if free < 0 {
		return 0
	}
	return free
}

func (s *Session) CanSeat(seats int) bool {
	return s.Active && seats > 0 && s.FreeSeats() >= seats
}

// Reserve applies a seat increment in memory. Stores use it under their own locks.
func (s *Session) Reserve(seats int) error {
	if seats <= 0 {
		return ErrInvalidSeats
	}
	if s.BookedSeats+seats > s.Capacity {
		return ErrSessionFull
	}
	s.BookedSeats += seats
	return nil
}

func (s *Session) Release(seats int) error {
	if seats <= 0 {
		return ErrInvalidSeats
	}
	s.BookedSeats -= seats
	if s.BookedSeats < 0 {
		s.BookedSeats = 0
	}
	return nil
}

// Validate checks a session before it is added to the schedule.
func (s *Session) Validate() error {
	if s.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if s.BookedSeats < 0 || s.BookedSeats > s.Capacity {
		return ErrInvalidSeats
	}
	return s.Price.Validate()
}
