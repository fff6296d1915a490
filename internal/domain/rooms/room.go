package rooms

import (
	"context"
	"errors"
	"strings"
	"time"

	"resort/internal/domain/shared/money"
)

var (
	ErrNotFound         = errors.New("rooms: not found")
	ErrNameRequired     = errors.New("rooms: name is required")
	ErrInvalidCapacity  = errors.New("rooms: capacity must be at least 1")
	ErrInvalidTariff    = errors.New("rooms: price per night must be non-negative")
	ErrConcurrentUpdate = errors.New("rooms: concurrent update")
)

type RoomID string

type Room struct {
	ID            RoomID
	Name          string
	Type          string
	Description   string
	Capacity      int
	PricePerNight money.Money
	Amenities     []string
	Available     bool
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter narrows room listings. Zero values disable a criterion.
type Filter struct {
	IDs           []RoomID
	MinCapacity   int
	AvailableOnly bool
}

type Repository interface {
	ByID(ctx context.Context, id RoomID) (*Room, error)
	List(ctx context.Context, filter Filter) ([]*Room, error)
	Save(ctx context.Context, room *Room) error
	// Guard serializes reservations for one room inside the current unit of
	// work. Two units guarding the same room cannot both commit.
	Guard(ctx context.Context, id RoomID) error
}

type CreateParams struct {
	ID            RoomID
	Name          string
	Type          string
	Description   string
	Capacity      int
	PricePerNight money.Money
	Amenities     []string
	Available     bool
	Now           time.Time
}

func NewRoom(params CreateParams) (*Room, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if params.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if err := params.PricePerNight.Validate(); err != nil {
		return nil, ErrInvalidTariff
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Room{
		ID:            params.ID,
		Name:          name,
		Type:          strings.TrimSpace(params.Type),
		Description:   strings.TrimSpace(params.Description),
		Capacity:      params.Capacity,
		PricePerNight: params.PricePerNight,
		Amenities:     append([]string(nil), params.Amenities...),
		Available:     params.Available,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Fits reports whether the room can host the given party size.
func (r *Room) Fits(guests int) bool {
	return guests >= 1 && guests <= r.Capacity
}

// Matches applies the filter to a single room.
func (f Filter) Matches(r *Room) bool {
	if r == nil {
		return false
	}
	if f.AvailableOnly && !r.Available {
		return false
	}
	if f.MinCapacity > 0 && r.Capacity < f.MinCapacity {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == r.ID {
				return true
			}
		}
		return false
	}
	return true
}
