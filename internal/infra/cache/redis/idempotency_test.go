package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resort/internal/app/middleware"
)

// Requires a reachable server: REDIS_TEST_ADDR=localhost:6379 go test ./...
func TestIdempotencyStoreAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewIdempotencyStore(ctx, Options{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	key := "booking.create:" + uuid.NewString()
	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	first := middleware.IdempotencyRecord{Key: key, Command: "booking.create", Payload: []byte(`{"id":"b-1"}`), OccurredAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: key, Command: "booking.create", Payload: []byte(`{"id":"b-2"}`)}))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.Payload, got.Payload)
	assert.True(t, first.OccurredAt.Equal(got.OccurredAt))
}
