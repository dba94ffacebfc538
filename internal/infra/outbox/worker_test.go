package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "motorent/internal/app/outbox"
)

type fakeSource struct {
	mu     sync.Mutex
	queue  []*EventDocument
	sent   []string
	failed map[string]time.Time
	err    error
}

func (f *fakeSource) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	doc := f.queue[0]
	f.queue = f.queue[1:]
	doc.ClaimedBy = workerID
	return doc, nil
}

func (f *fakeSource) MarkSent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSource) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[string]time.Time{}
	}
	f.failed[id] = next
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type recordingProducer struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func pendingDoc(id, name string) *EventDocument {
	doc := NewDocument(appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"DraftID":"d1"}`),
		OccurredAt: fixedNow,
		Aggregate:  "d1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}, fixedNow)
	return &doc
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	src := &fakeSource{queue: []*EventDocument{
		pendingDoc("e1", "listing.draft_submitted"),
		pendingDoc("e2", "availability.dates_selected"),
	}}
	prod := &recordingProducer{}
	w := &Worker{Store: src, Producer: prod, TopicPrefix: "dev.", ID: "w1"}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"e1", "e2"}, src.sent)

	require.Len(t, prod.msgs, 2)
	assert.Equal(t, "dev.listing.events.v1", prod.msgs[0].topic)
	assert.Equal(t, "dev.availability.events.v1", prod.msgs[1].topic)
	assert.Equal(t, "d1", prod.msgs[0].key)
	assert.Equal(t, "application/cloudevents+json", prod.msgs[0].headers["content-type"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(prod.msgs[0].payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "e1", evt["id"])
	assert.Equal(t, "listing.draft_submitted.v1", evt["type"])
	assert.Equal(t, "app://motorent", evt["source"])
	assert.Equal(t, "00-abc-def-01", evt["traceparent"])
	assert.Equal(t, map[string]any{"DraftID": "d1"}, evt["data"])
}

func TestDrainSchedulesRetryOnPublishFailure(t *testing.T) {
	doc := pendingDoc("e1", "listing.draft_started")
	doc.Attempts = 1
	src := &fakeSource{queue: []*EventDocument{doc}}
	prod := &recordingProducer{err: errors.New("broker down")}
	w := &Worker{
		Store:    src,
		Producer: prod,
		Backoff:  []time.Duration{time.Second, 10 * time.Second},
		Now:      func() time.Time { return fixedNow },
	}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, src.sent)
	assert.Equal(t, fixedNow.Add(10*time.Second), src.failed["e1"])
}

func TestDrainRejectsUndecodablePayload(t *testing.T) {
	doc := pendingDoc("e1", "listing.draft_started")
	doc.Payload = []byte("not-json")
	src := &fakeSource{queue: []*EventDocument{doc}}
	prod := &recordingProducer{}
	w := &Worker{Store: src, Producer: prod, Now: func() time.Time { return fixedNow }}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prod.msgs)
	assert.Equal(t, fixedNow.Add(5*time.Second), src.failed["e1"])
}

func TestDrainHonoursBatchSize(t *testing.T) {
	src := &fakeSource{}
	for _, id := range []string{"a", "b", "c"} {
		src.queue = append(src.queue, pendingDoc(id, "listing.draft_started"))
	}
	w := &Worker{Store: src, Producer: &recordingProducer{}, BatchSize: 2}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, src.queue, 1)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &Worker{}
	assert.ErrorIs(t, w.Run(context.Background()), ErrWorkerNotConfigured)
	_, err := w.Drain(context.Background())
	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
}

func TestRunStopsOnCancelAndSurvivesClaimErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("mongo unavailable")}
	w := &Worker{Store: src, Producer: &recordingProducer{}, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogProducerNeverFails(t *testing.T) {
	assert.NoError(t, LogProducer{}.Publish(context.Background(), "t", "k", []byte(`{}`), nil))
}
