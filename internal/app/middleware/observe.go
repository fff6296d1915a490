package middleware

import (
	"context"
	"log/slog"
	"time"

	"resort/internal/app/commands"
)

// CommandObserver receives one call per dispatched command.
type CommandObserver interface {
	ObserveCommand(key string, elapsed time.Duration, err error)
}

// Observe times commands, reports them to observer and logs failures.
func Observe(observer CommandObserver, logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			started := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			elapsed := time.Since(started)
			if observer != nil {
				observer.ObserveCommand(cmd.Key(), elapsed, err)
			}
			if err != nil {
				logger.DebugContext(ctx, "command failed", "command", cmd.Key(), "duration", elapsed, "error", err)
			}
			return res, err
		})
	}
}
