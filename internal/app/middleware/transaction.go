package middleware

import (
	"context"

	"resort/internal/app/commands"
	"resort/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command inside its own unit of work. A command that
// loses a write race is replayed from scratch until attempts are exhausted.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, attempts int) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			return uow.Run(ctx, factory, opts, attempts, func(ctx context.Context, _ uow.UnitOfWork) (any, error) {
				return next.Dispatch(ctx, cmd)
			})
		})
	}
}
