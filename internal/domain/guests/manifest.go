package guests

import (
	"errors"
	"strings"
)

var (
	ErrEmptyManifest = errors.New("guests: at least one guest is required")
	ErrInvalidAge    = errors.New("guests: age must be between 0 and 120")
	ErrNameRequired  = errors.New("guests: guest name is required")
)

const (
	// AdultAge is the first age counted as an adult in the breakdown.
	AdultAge = 18
	// FreeBelowAge is the age under which a guest stays free of meal charges.
	FreeBelowAge = 5
	maxAge       = 120
)

// Guest is a person covered by a booking. Child status is always derived from
// Age; client-supplied flags are not trusted.
type Guest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender,omitempty"`
}

func (g Guest) IsChild() bool {
	return g.Age < AdultAge
}

func (g Guest) Pays() bool {
	return g.Age >= FreeBelowAge
}

// Manifest is the immutable guest list of a booking.
type Manifest []Guest

func NewManifest(list []Guest) (Manifest, error) {
	if len(list) == 0 {
		return nil, ErrEmptyManifest
	}
	out := make(Manifest, 0, len(list))
	for _, g := range list {
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return nil, ErrNameRequired
		}
		if g.Age < 0 || g.Age > maxAge {
			return nil, ErrInvalidAge
		}
		out = append(out, g)
	}
	return out, nil
}

func (m Manifest) Total() int {
	return len(m)
}

func (m Manifest) Adults() int {
	n := 0
	for _, g := range m {
		if !g.IsChild() {
			n++
		}
	}
	return n
}

func (m Manifest) Children() int {
	return len(m) - m.Adults()
}

// Paying counts guests aged FreeBelowAge or more.
func (m Manifest) Paying() int {
	n := 0
	for _, g := range m {
		if g.Pays() {
			n++
		}
	}
	return n
}
