package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired    = errors.New("user: id is required")
	ErrEmailRequired = errors.New("user: email is required")
	ErrNameRequired  = errors.New("user: name is required")
	ErrInvalidRole   = errors.New("user: invalid role")
	ErrNotFound      = errors.New("user: not found")
)

type ID string

type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

// User is the contact profile a booking notification is addressed to.
// Credentials live with the upstream identity provider.
type User struct {
	ID        ID
	Email     string
	Name      string
	Phone     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	Save(ctx context.Context, user *User) error
}

type CreateParams struct {
	ID        ID
	Email     string
	Name      string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	role, err := ParseRole(string(params.Role))
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &User{
		ID:        ID(id),
		Email:     email,
		Name:      name,
		Phone:     strings.TrimSpace(params.Phone),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ParseRole defaults an empty role to guest.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "guest":
		return RoleGuest, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
