package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one outbox record claimed for delivery.
type Entry struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Queue hands committed records to the worker one at a time. Claim returns
// nil when nothing is due.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Entry, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

type PublishObserver interface {
	ObservePublish(err error)
}

// Worker relays outbox records to the broker as CloudEvents, partitioned by
// aggregate id so events of one booking stay ordered.
type Worker struct {
	Queue       Queue
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Observer    PublishObserver
	Logger      *slog.Logger
	Now         func() time.Time
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger().Warn("outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes every due record and returns once the queue is empty.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sent, err := w.processOnce(ctx)
		if err != nil || !sent {
			return err
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	entry, err := w.Queue.Claim(ctx, w.workerID())
	if err != nil || entry == nil {
		return false, err
	}
	topic := w.topicFor(entry.Name)
	payload, headers, err := w.formatPayload(entry)
	if err == nil {
		err = w.Producer.Publish(ctx, topic, entry.Aggregate, payload, headers)
	}
	if w.Observer != nil {
		w.Observer.ObservePublish(err)
	}
	if err != nil {
		w.logger().Warn("outbox publish failed", "event", entry.Name, "id", entry.ID, "attempts", entry.Attempts+1, "error", err)
		return true, w.Queue.MarkFailed(ctx, entry.ID, w.nextRetry(entry.Attempts), err.Error())
	}
	return true, w.Queue.MarkSent(ctx, entry.ID)
}

func (w *Worker) formatPayload(entry *Entry) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(entry.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              entry.ID,
		"type":            entry.Name + ".v1",
		"source":          w.source(),
		"subject":         entry.Aggregate,
		"time":            entry.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := entry.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_id":        entry.ID,
		"ce_type":      entry.Name + ".v1",
	}
	for k, v := range entry.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return "outbox-worker"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://resort"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
