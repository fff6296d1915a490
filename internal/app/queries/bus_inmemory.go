package queries

import (
	"context"
	"fmt"
	"sort"
)

type queryHandler func(ctx context.Context, q Query) (any, error)

// InMemoryBus routes read requests such as booking lookups, availability
// searches and occupancy reports to the handler registered for their key.
// Registration happens at startup, before the first Ask.
type InMemoryBus struct {
	handlers map[string]queryHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]queryHandler)}
}

func (b *InMemoryBus) RegisterRaw(key string, handler queryHandler) {
	if key == "" {
		panic("queries: empty key registration")
	}
	if handler == nil {
		panic("queries: nil handler for " + key)
	}
	if _, dup := b.handlers[key]; dup {
		panic("queries: duplicate registration for " + key)
	}
	b.handlers[key] = handler
}

// Ask skips the handler when the caller already gave up; an abandoned
// availability search should not scan every room.
func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	h, ok := b.handlers[query.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, query.Key())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h(ctx, query)
}

// Keys lists registered query keys in lexical order.
func (b *InMemoryBus) Keys() []string {
	keys := make([]string, 0, len(b.handlers))
	for k := range b.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func RegisterHandler[Q Query, R any](bus *InMemoryBus, key string, handler Handler[Q, R]) {
	if bus == nil {
		panic("queries: nil bus")
	}
	if handler == nil {
		panic("queries: nil handler for " + key)
	}
	bus.RegisterRaw(key, func(ctx context.Context, raw Query) (any, error) {
		q, ok := any(raw).(Q)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, key)
		}
		return handler.Handle(ctx, q)
	})
}
