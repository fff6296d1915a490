package middleware

import (
	"context"

	"resort/internal/app/commands"
	"resort/internal/app/notify"
)

// NoticeDispatcher delivers post-commit notices. It must not fail the command.
type NoticeDispatcher interface {
	Dispatch(ctx context.Context, notices []notify.Notice)
}

// Notifications hands notices carried by successful results to d. Place it
// outside Transaction so nothing is sent for a unit that did not commit.
func Notifications(d NoticeDispatcher) CommandMiddleware {
	if d == nil {
		panic("middleware: notice dispatcher required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if src, ok := res.(notify.Source); ok {
				if notices := src.Notices(); len(notices) > 0 {
					d.Dispatch(ctx, notices)
				}
			}
			return res, nil
		})
	}
}
