package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext returns the unit bound by Bind or the Transaction middleware.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}
