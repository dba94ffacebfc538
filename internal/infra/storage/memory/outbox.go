package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	appoutbox "motorent/internal/app/outbox"
	infraoutbox "motorent/internal/infra/outbox"
)

// ErrOutboxEntryNotFound is returned when a worker acknowledges an unknown event.
var ErrOutboxEntryNotFound = errors.New("memory: outbox entry not found")

// Outbox stages events until Flush and then serves them to the outbox worker.
// Delivered entries are dropped.
type Outbox struct {
	mu      sync.Mutex
	staged  []appoutbox.EventRecord
	entries []*infraoutbox.EventDocument
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staged = append(o.staged, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	for _, rec := range o.staged {
		doc := infraoutbox.NewDocument(rec, now)
		o.entries = append(o.entries, &doc)
	}
	o.staged = nil
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	for _, doc := range o.entries {
		ready := (doc.State == infraoutbox.StateNew || doc.State == infraoutbox.StateFailed) && !doc.NextAttempt.After(now)
		if !ready {
			continue
		}
		doc.State = infraoutbox.StateClaimed
		doc.ClaimedBy = workerID
		doc.ClaimedAt = now
		out := *doc
		return &out, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, doc := range o.entries {
		if doc.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return nil
		}
	}
	return ErrOutboxEntryNotFound
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, doc := range o.entries {
		if doc.ID == id {
			doc.State = infraoutbox.StateFailed
			doc.NextAttempt = next.UTC()
			doc.LastError = errMsg
			doc.Attempts++
			return nil
		}
	}
	return ErrOutboxEntryNotFound
}

// Pending lists undelivered entries in insertion order.
func (o *Outbox) Pending() []infraoutbox.EventDocument {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]infraoutbox.EventDocument, 0, len(o.entries))
	for _, doc := range o.entries {
		out = append(out, *doc)
	}
	return out
}

var (
	_ appoutbox.Outbox   = (*Outbox)(nil)
	_ infraoutbox.Source = (*Outbox)(nil)
)
