package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"resort/internal/app/middleware"
)

const keyPrefix = "resort:idemp:"

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// IdempotencyStore keeps command results in Redis with a per-key TTL.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(ctx context.Context, opts Options) (*IdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}, nil
}

type record struct {
	Command    string    `json:"command"`
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: key, Command: rec.Command, Payload: rec.Payload, OccurredAt: rec.OccurredAt}, true, nil
}

// Save keeps the first stored result when two requests race on one key.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := json.Marshal(record{Command: rec.Command, Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, keyPrefix+rec.Key, raw, s.ttl).Err()
}

func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *IdempotencyStore) Close() error {
	return s.client.Close()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
