package support

import (
	"context"

	"resort/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit already bound to ctx, or opens a
// read-only one. cleanup is nil when the unit is borrowed.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}

// InUnit runs fn in the unit bound to ctx, or in a new committed unit with
// up to attempts replays on transient conflicts.
func InUnit[R any](ctx context.Context, factory uow.UoWFactory, attempts int, fn func(ctx context.Context, unit uow.UnitOfWork) (R, error)) (R, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	return uow.Run(ctx, factory, uow.TxOptions{}, attempts, fn)
}
