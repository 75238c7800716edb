package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type sequenceClock struct {
	mu    sync.Mutex
	times []time.Time
	index int
}

func (c *sequenceClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index >= len(c.times) {
		return c.times[len(c.times)-1]
	}
	now := c.times[c.index]
	c.index++

	return now
}

// fakeStore implements Store over a slice and records mark calls.
type fakeStore struct {
	mu           sync.Mutex
	pending      []Record
	fetchErr     error
	fetchCalls   int
	processed    []uuid.UUID
	failed       map[uuid.UUID]string
	markProcErr  error
	markFailErr  error
	pendingCount int
	failedCount  int
	countCalls   int
}

func newFakeStore(records ...Record) *fakeStore {
	return &fakeStore{pending: records, failed: make(map[uuid.UUID]string)}
}

func (s *fakeStore) FetchPending(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	batch := s.pending[:limit]
	s.pending = s.pending[limit:]

	return batch, nil
}

func (s *fakeStore) FetchFailed(context.Context, int) ([]Record, error) {
	return nil, nil
}

func (s *fakeStore) FetchProcessed(context.Context, *time.Time, int) ([]Record, error) {
	return nil, nil
}

func (s *fakeStore) MarkProcessed(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markProcErr != nil {
		return s.markProcErr
	}
	s.processed = append(s.processed, id)

	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markFailErr != nil {
		return s.markFailErr
	}
	s.failed[id] = message

	return nil
}

func (s *fakeStore) Requeue(context.Context, uuid.UUID) error {
	return nil
}

func (s *fakeStore) CountPending(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++

	return s.pendingCount, nil
}

func (s *fakeStore) CountFailed(context.Context) (int, error) {
	return s.failedCount, nil
}

type captureMetrics struct {
	mu        sync.Mutex
	processed int
	failed    int
	pending   int
	samples   int
}

func (*captureMetrics) ObserveCycleDuration(time.Duration) {}

func (m *captureMetrics) AddProcessed(count int) {
	m.mu.Lock()
	m.processed += count
	m.mu.Unlock()
}

func (m *captureMetrics) AddFailed(count int) {
	m.mu.Lock()
	m.failed += count
	m.mu.Unlock()
}

func (m *captureMetrics) SetPending(count int) {
	m.mu.Lock()
	m.pending = count
	m.samples++
	m.mu.Unlock()
}

func (m *captureMetrics) SetFailed(int) {}

func passthroughCodec() *Codec {
	codec := NewCodec()
	codec.Register("test.event.v1", func(record Record) (Message, error) {
		return Message{EventType: record.EventType, Payload: record.Payload}, nil
	})

	return codec
}

func testRecord(eventType string) Record {
	return Record{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    json.RawMessage(`{"ok":true}`),
		OccurredAt: time.Now().UTC(),
	}
}

func TestDispatcherProcessOnceSuccess(t *testing.T) {
	record := testRecord("test.event.v1")
	store := newFakeStore(record)

	var published []Message
	publisher := PublisherFunc(func(_ context.Context, msg Message) error {
		published = append(published, msg)
		return nil
	})

	d := NewDispatcher(store, publisher, passthroughCodec())
	result, err := d.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	if len(store.processed) != 1 || store.processed[0] != record.ID {
		t.Fatalf("expected record marked processed")
	}
	if len(store.failed) != 0 {
		t.Fatalf("expected no failures")
	}
}

func TestDispatcherProcessOncePublishFailure(t *testing.T) {
	record := testRecord("test.event.v1")
	store := newFakeStore(record)

	publisher := PublisherFunc(func(context.Context, Message) error {
		return errors.New("bus unavailable")
	})

	d := NewDispatcher(store, publisher, passthroughCodec())
	result, err := d.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}
	if msg, ok := store.failed[record.ID]; !ok || msg != "bus unavailable" {
		t.Fatalf("expected failure message recorded, got %q", msg)
	}
	if len(store.processed) != 0 {
		t.Fatalf("expected no processed marks")
	}
}

func TestDispatcherBatchIsolation(t *testing.T) {
	bad := testRecord("test.event.v1")
	good := testRecord("test.event.v1")
	store := newFakeStore(bad, good)

	calls := 0
	failFirst := PublisherFunc(func(context.Context, Message) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		return nil
	})

	d := NewDispatcher(store, failFirst, passthroughCodec())
	result, err := d.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := store.failed[bad.ID]; !ok {
		t.Fatalf("expected first record marked failed")
	}
	if len(store.processed) != 1 || store.processed[0] != good.ID {
		t.Fatalf("expected second record marked processed")
	}
}

func TestDispatcherUnknownEventType(t *testing.T) {
	record := testRecord("test.unknown.v9")
	store := newFakeStore(record)

	published := 0
	publisher := PublisherFunc(func(context.Context, Message) error {
		published++
		return nil
	})

	d := NewDispatcher(store, publisher, passthroughCodec())
	result, err := d.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}
	if published != 0 {
		t.Fatalf("expected no publish for unknown event type")
	}
	if _, ok := store.failed[record.ID]; !ok {
		t.Fatalf("expected record marked failed")
	}
}

func TestDispatcherEmptyBatchIsNotAnError(t *testing.T) {
	store := newFakeStore()
	d := NewDispatcher(store, PublisherFunc(func(context.Context, Message) error { return nil }), passthroughCodec())

	result, err := d.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDispatcherProcessOnceFetchError(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("connection reset")

	d := NewDispatcher(store, PublisherFunc(func(context.Context, Message) error { return nil }), passthroughCodec())
	if _, err := d.ProcessOnce(context.Background()); !errors.Is(err, store.fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestDispatcherRunSurvivesCycleFailure(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("connection reset")

	d := NewDispatcher(
		store,
		PublisherFunc(func(context.Context, Message) error { return nil }),
		passthroughCodec(),
		WithProcessingInterval(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	deadline := time.After(time.Second)
	for {
		store.mu.Lock()
		calls := store.fetchCalls
		store.mu.Unlock()
		if calls >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("dispatcher did not keep polling after cycle failures")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	d := NewDispatcher(
		store,
		PublisherFunc(func(context.Context, Message) error { return nil }),
		passthroughCodec(),
		WithProcessingInterval(time.Minute),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("dispatcher did not stop promptly on cancel")
	}
}

func TestDispatcherStopsMidBatchOnCancel(t *testing.T) {
	records := []Record{testRecord("test.event.v1"), testRecord("test.event.v1")}
	store := newFakeStore(records...)

	ctx, cancel := context.WithCancel(context.Background())
	publisher := PublisherFunc(func(context.Context, Message) error {
		cancel()
		return nil
	})

	d := NewDispatcher(store, publisher, passthroughCodec())
	result, err := d.ProcessOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected in-flight record to complete, got %+v", result)
	}
	if len(store.processed) != 1 {
		t.Fatalf("expected exactly one processed mark, got %d", len(store.processed))
	}
}

func TestDispatcherMarkProcessedFailureIsNotFatal(t *testing.T) {
	record := testRecord("test.event.v1")
	store := newFakeStore(record)
	store.markProcErr = errors.New("store down")

	d := NewDispatcher(store, PublisherFunc(func(context.Context, Message) error { return nil }), passthroughCodec())
	result, err := d.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if result.Processed != 0 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDispatcherMetrics(t *testing.T) {
	good := testRecord("test.event.v1")
	bad := testRecord("test.unknown.v9")
	store := newFakeStore(good, bad)

	metrics := &captureMetrics{}
	d := NewDispatcher(
		store,
		PublisherFunc(func(context.Context, Message) error { return nil }),
		passthroughCodec(),
		WithMetrics(metrics),
	)

	if _, err := d.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}
	if metrics.processed != 1 || metrics.failed != 1 {
		t.Fatalf("unexpected metrics: processed=%d failed=%d", metrics.processed, metrics.failed)
	}
}

func TestDispatcherBacklogGaugeDisabledByDefault(t *testing.T) {
	store := newFakeStore()
	store.pendingCount = 7
	metrics := &captureMetrics{}

	d := NewDispatcher(store, PublisherFunc(func(context.Context, Message) error { return nil }), passthroughCodec(), WithMetrics(metrics))
	if _, err := d.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}
	if metrics.samples != 0 {
		t.Fatalf("expected no gauge samples, got %d", metrics.samples)
	}
}

func TestDispatcherBacklogGaugeSampled(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &sequenceClock{times: []time.Time{now, now, now.Add(time.Second)}}

	store := newFakeStore()
	store.pendingCount = 42
	metrics := &captureMetrics{}

	d := NewDispatcher(
		store,
		PublisherFunc(func(context.Context, Message) error { return nil }),
		passthroughCodec(),
		WithMetrics(metrics),
		WithClock(clock),
		WithGaugeInterval(time.Second),
	)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := d.ProcessOnce(ctx); err != nil {
			t.Fatalf("process once: %v", err)
		}
	}

	if metrics.samples != 2 {
		t.Fatalf("expected 2 gauge samples, got %d", metrics.samples)
	}
	if metrics.pending != 42 {
		t.Fatalf("expected pending gauge 42, got %d", metrics.pending)
	}
}

func TestNewDispatcherNilDependenciesPanic(t *testing.T) {
	codec := passthroughCodec()
	publisher := PublisherFunc(func(context.Context, Message) error { return nil })

	assertPanics := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	assertPanics("nil store", func() { NewDispatcher(nil, publisher, codec) })
	assertPanics("nil publisher", func() { NewDispatcher(newFakeStore(), nil, codec) })
	assertPanics("nil codec", func() { NewDispatcher(newFakeStore(), publisher, nil) })
}
