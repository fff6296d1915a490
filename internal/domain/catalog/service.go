package catalog

import (
	"context"
	"errors"
	"strings"

	"resort/internal/domain/shared/money"
)

var (
	ErrNotFound       = errors.New("catalog: service not found")
	ErrNameRequired   = errors.New("catalog: name is required")
	ErrInvalidUnit    = errors.New("catalog: unknown price unit")
	ErrInvalidAgeSpan = errors.New("catalog: min age must not exceed max age")
)

type ServiceID string

// PriceUnit controls how a service line scales with party size and stay length.
type PriceUnit string

const (
	PerPerson  PriceUnit = "per_person"
	PerDay     PriceUnit = "per_day"
	PerSession PriceUnit = "per_session"
	FlatRate   PriceUnit = "flat_rate"
)

// CategoryBreakfast marks the service whose price overrides the breakfast fallback rate.
const CategoryBreakfast = "breakfast"

// AgeRestriction bounds are inclusive; nil means unbounded.
type AgeRestriction struct {
	MinAge *int
	MaxAge *int
}

func (a *AgeRestriction) Allows(age int) bool {
	if a == nil {
		return true
	}
	if a.MinAge != nil && age < *a.MinAge {
		return false
	}
	if a.MaxAge != nil && age > *a.MaxAge {
		return false
	}
	return true
}

type Service struct {
	ID             ServiceID
	Name           string
	Category       string
	Description    string
	Price          money.Money
	Unit           PriceUnit
	Active         bool
	AgeRestriction *AgeRestriction
}

type Repository interface {
	ByID(ctx context.Context, id ServiceID) (*Service, error)
	// ActiveByCategory returns the first active service of a category or ErrNotFound.
	ActiveByCategory(ctx context.Context, category string) (*Service, error)
	Save(ctx context.Context, service *Service) error
}

func ParseUnit(raw string) (PriceUnit, error) {
	switch unit := PriceUnit(strings.ToLower(strings.TrimSpace(raw))); unit {
	case PerPerson, PerDay, PerSession, FlatRate:
		return unit, nil
	default:
		return "", ErrInvalidUnit
	}
}

// Validate checks catalog invariants before a service is stored.
func (s *Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrNameRequired
	}
	if _, err := ParseUnit(string(s.Unit)); err != nil {
		return err
	}
	if err := s.Price.Validate(); err != nil {
		return err
	}
	if r := s.AgeRestriction; r != nil && r.MinAge != nil && r.MaxAge != nil && *r.MinAge > *r.MaxAge {
		return ErrInvalidAgeSpan
	}
	return nil
}
