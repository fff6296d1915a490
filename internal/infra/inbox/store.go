package inbox

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store records which broker events a consumer has already applied.
type Store struct {
	col      *mongo.Collection
	consumer string
}

func NewStore(ctx context.Context, db *mongo.Database, consumer string) (*Store, error) {
	col := db.Collection("app_inbox")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &Store{col: col, consumer: consumer}, nil
}

// Seen claims eventID for this consumer and reports whether it was claimed before.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

// Forget releases a claim so a redelivered event is processed again.
func (s *Store) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}

// Memory is the in-process inbox used with the memory store.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Seen(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return true, nil
	}
	m.seen[eventID] = struct{}{}
	return false, nil
}

func (m *Memory) Forget(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, eventID)
	return nil
}
