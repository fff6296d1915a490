package memory

import (
	"context"
	"sync"
	"time"

	"resort/internal/app/middleware"
)

// IdempotencyStore keeps command results in process memory. Records older
// than TTL are treated as absent and dropped on the next write.
type IdempotencyStore struct {
	TTL time.Duration
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok || s.expired(rec) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, old := range s.items {
		if s.expired(old) {
			delete(s.items, key)
		}
	}
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	if s.TTL <= 0 {
		return false
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().Sub(rec.OccurredAt) > s.TTL
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
