package middleware

import (
	"context"
	"fmt"

	"resort/internal/app/commands"
	"resort/internal/app/outbox"
)

// OutboxFlush hands the booking events a command recorded to the relay once
// the handler succeeds, while the surrounding unit is still open. A rejected
// reservation or failed cancellation must not publish anything, so records of
// a failed dispatch are dropped when box buffers them outside the store.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	discarder, _ := box.(outbox.Discarder)
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				if discarder != nil {
					_ = discarder.Discard(ctx)
				}
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, fmt.Errorf("outbox flush after %s: %w", cmd.Key(), err)
			}
			return res, nil
		})
	}
}
