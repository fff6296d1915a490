package uow

import (
	"context"
	"errors"

	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

// ErrTransientConflict marks a unit that lost a write race and may succeed if
// replayed from the start.
var ErrTransientConflict = errors.New("uow: transient write conflict")

// UnitOfWork coordinates repositories inside one transaction boundary.
type UnitOfWork interface {
	Rooms() domainrooms.Repository
	Services() domaincatalog.Repository
	Yoga() domainyoga.Repository
	Bookings() domainbooking.Repository
	Users() domainuser.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// IsTransient reports whether err is worth replaying the whole unit for.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientConflict)
}
