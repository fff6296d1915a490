package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

const writeConflictCode = 112

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrReadOnlyUnit            = errors.New("mongo: write attempted in read-only unit")
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Transactions need a replica set or sharded cluster.
type Factory struct {
	DB *mongo.Database
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{db: f.DB, session: session, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool
	done     bool
}

func (u *Unit) Rooms() domainrooms.Repository {
	return roomRepository{u: u, col: u.db.Collection(roomsCollection)}
}

func (u *Unit) Services() domaincatalog.Repository {
	return serviceRepository{u: u, col: u.db.Collection(servicesCollection)}
}

func (u *Unit) Yoga() domainyoga.Repository {
	return yogaRepository{u: u, col: u.db.Collection(yogaCollection)}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return bookingRepository{u: u, col: u.db.Collection(bookingsCollection)}
}

func (u *Unit) Users() domainuser.Repository {
	return userRepository{u: u, col: u.db.Collection(usersCollection)}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return u.session.AbortTransaction(ctx)
	}
	return translate(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// sc binds ctx to the unit's session so every repository call joins the
// transaction even when the caller did not go through uow.Bind.
func (u *Unit) sc(ctx context.Context) context.Context {
	if mongo.SessionFromContext(ctx) == u.session {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

func (u *Unit) writable() error {
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

// translate maps write conflicts to uow.ErrTransientConflict so the unit is replayed.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(writeConflictCode)) {
		return fmt.Errorf("%w: %v", uow.ErrTransientConflict, err)
	}
	return err
}
