package uow

import "context"

type contextInjector interface {
	InjectContext(context.Context) context.Context
}

// Bind returns ctx carrying unit, plus any store-specific session state.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(contextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

// Run executes fn inside a fresh unit and commits it. A transient conflict
// from fn or from Commit replays everything, up to attempts runs in total.
func Run[R any](ctx context.Context, factory UoWFactory, opts TxOptions, attempts int, fn func(ctx context.Context, unit UnitOfWork) (R, error)) (R, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		res R
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return res, err
		}
		res, err = runOnce(ctx, factory, opts, fn)
		if err == nil || !IsTransient(err) {
			return res, err
		}
	}
	return res, err
}

func runOnce[R any](ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) (R, error)) (R, error) {
	var zero R
	if factory == nil {
		return zero, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return zero, err
	}
	execCtx := Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	res, err := fn(execCtx, unit)
	if err != nil {
		return zero, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return zero, err
	}
	committed = true
	return res, nil
}
