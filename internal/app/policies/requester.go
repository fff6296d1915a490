package policies

import (
	"context"
	"errors"

	domainuser "resort/internal/domain/user"
)

var (
	ErrUnauthenticated = errors.New("policies: requester identity missing")
	ErrForbidden       = errors.New("policies: requester lacks required role")
)

// Requester is the identity asserted by the upstream gateway for a call.
type Requester struct {
	UserID string          `json:"user_id"`
	Role   domainuser.Role `json:"role"`
}

func (r Requester) IsAdmin() bool {
	return r.Role == domainuser.RoleAdmin
}

// RoleRestricted is implemented by messages that only some roles may send.
type RoleRestricted interface {
	RequiredRole() domainuser.Role
	Actor() Requester
}

// RoleAuthorizer enforces RoleRestricted and requires an identity on every
// message that exposes an Actor.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, message any) error {
	actor, ok := message.(interface{ Actor() Requester })
	if !ok {
		return nil
	}
	requester := actor.Actor()
	if requester.UserID == "" {
		return ErrUnauthenticated
	}
	restricted, ok := message.(RoleRestricted)
	if !ok {
		return nil
	}
	if required := restricted.RequiredRole(); required != "" && requester.Role != required {
		return ErrForbidden
	}
	return nil
}
