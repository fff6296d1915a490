package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "resort/internal/app/outbox"
	"resort/internal/app/uow"
	infraoutbox "resort/internal/infra/outbox"
)

type outboxEntry struct {
	record   appoutbox.EventRecord
	attempts int
	next     time.Time
	claimed  bool
	sent     bool
	lastErr  string
}

type pendingRecord struct {
	unit   uow.UnitOfWork
	record appoutbox.EventRecord
}

// Outbox buffers records per unit of work until Flush. Flushed records are
// queued for the relay worker and kept for inspection after they are sent.
// Flush and Discard called without a bound unit act on every buffered record.
type Outbox struct {
	mu      sync.Mutex
	pending []pendingRecord
	flushed []*outboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	unit, _ := uow.FromContext(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, pendingRecord{unit: unit, record: record})
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range o.take(ctx) {
		o.flushed = append(o.flushed, &outboxEntry{record: rec})
	}
	return nil
}

// Discard drops the records buffered by the unit bound to ctx.
func (o *Outbox) Discard(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.take(ctx)
	return nil
}

// take removes and returns the records owned by ctx's unit, in order.
func (o *Outbox) take(ctx context.Context) []appoutbox.EventRecord {
	unit, bound := uow.FromContext(ctx)
	var taken []appoutbox.EventRecord
	kept := o.pending[:0]
	for _, p := range o.pending {
		if !bound || p.unit == unit {
			taken = append(taken, p.record)
			continue
		}
		kept = append(kept, p)
	}
	o.pending = kept
	return taken
}

// Pending counts records buffered but not yet flushed.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Flushed returns the names of flushed events in order.
func (o *Outbox) Flushed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.flushed))
	for _, e := range o.flushed {
		names = append(names, e.record.Name)
	}
	return names
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for _, e := range o.flushed {
		if e.sent || e.claimed || now.Before(e.next) {
			continue
		}
		e.claimed = true
		rec := e.record
		return &infraoutbox.Entry{
			ID:         rec.ID,
			Name:       rec.Name,
			Payload:    rec.Payload,
			OccurredAt: rec.OccurredAt,
			Aggregate:  rec.Aggregate,
			Headers:    rec.Headers,
			Attempts:   e.attempts,
		}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.sent, e.claimed = true, false
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.claimed = false
		e.attempts++
		e.next = next
		e.lastErr = errMsg
	}
	return nil
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, e := range o.flushed {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Queue = (*Outbox)(nil)
)

var (
	_ appoutbox.Outbox    = (*Outbox)(nil)
	_ appoutbox.Discarder = (*Outbox)(nil)
)
