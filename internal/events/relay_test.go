package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/pool"
)

func TestRelayDispatchesInOrderToTypeThenCatchAll(t *testing.T) {
	t.Parallel()

	relay, p := newTestRelay(t, nil)
	rec := &recorder{}
	relay.Subscribe(TypeKeywordRegistered, "typed", rec.named("typed"))
	relay.SubscribeAll("all", rec.named("all"))

	relay.Flush([]Event{
		sampleEvent(t, "e1", TypeKeywordRegistered),
		sampleEvent(t, "e2", TypeNewsCollected),
	})
	require.NoError(t, p.Shutdown(context.Background()))

	require.Equal(t, []string{"typed:e1", "all:e1", "all:e2"}, rec.calls())
}

func TestRelayIsolatesFailingAndPanickingHandlers(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	relay, p := newTestRelay(t, obs)
	rec := &recorder{}
	relay.Subscribe(TypeUserKeywordAdded, "fails", HandlerFunc(func(context.Context, Event) error {
		return errors.New("downstream unavailable")
	}))
	relay.Subscribe(TypeUserKeywordAdded, "panics", HandlerFunc(func(context.Context, Event) error {
		panic("nil map")
	}))
	relay.Subscribe(TypeUserKeywordAdded, "ok", rec.named("ok"))

	relay.Flush([]Event{
		sampleEvent(t, "e1", TypeUserKeywordAdded),
		sampleEvent(t, "e2", TypeUserKeywordAdded),
	})
	require.NoError(t, p.Shutdown(context.Background()))

	require.Equal(t, []string{"ok:e1", "ok:e2"}, rec.calls())
	require.Equal(t, 4, obs.failures())
}

func TestRelayDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	relay, p := newTestRelay(t, nil)
	rec := &recorder{}
	relay.SubscribeAll("all", rec.named("all"))

	relay.Flush([]Event{{ID: "bad"}, sampleEvent(t, "good", TypeUserRegistered)})
	require.NoError(t, p.Shutdown(context.Background()))

	require.Equal(t, []string{"all:good"}, rec.calls())
}

func TestRelayCountsDroppedBatchesWhenPoolSaturated(t *testing.T) {
	t.Parallel()

	p, err := pool.New(pool.Config{Name: "events", CoreWorkers: 1, QueueCapacity: 0})
	require.NoError(t, err)
	obs := &countingObserver{}
	relay := NewRelay(p, Config{Observer: obs})

	release := make(chan struct{})
	require.NoError(t, p.Submit(func(context.Context) { <-release }))

	start := time.Now()
	relay.Flush([]Event{sampleEvent(t, "e1", TypeNewsCollected), sampleEvent(t, "e2", TypeNewsCollected)})
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, 2, obs.droppedEvents())

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestHandlerReceivesDeadline(t *testing.T) {
	t.Parallel()

	p, err := pool.New(pool.Config{CoreWorkers: 1, QueueCapacity: 4})
	require.NoError(t, err)
	relay := NewRelay(p, Config{HandlerTimeout: 10 * time.Millisecond})

	got := make(chan error, 1)
	relay.Subscribe(TypeKeywordRegistered, "slow", HandlerFunc(func(ctx context.Context, _ Event) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}))
	relay.Flush([]Event{sampleEvent(t, "e1", TypeKeywordRegistered)})

	select {
	case err := <-got:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("handler deadline never fired")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestCommitAndFlushOnlyAfterCommit(t *testing.T) {
	t.Parallel()

	evt := sampleEvent(t, "e1", TypeKeywordRegistered)

	tests := []struct {
		name      string
		fnErr     error
		commitErr error
		wantFlush bool
	}{
		{name: "committed", wantFlush: true},
		{name: "fn fails", fnErr: errors.New("duplicate")},
		{name: "commit fails", commitErr: errors.New("serialization failure")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			flusher := &captureFlusher{}
			txr := &fakeTransactor{commitErr: tc.commitErr}
			err := CommitAndFlush(context.Background(), txr, flusher, func(context.Context, news.Tx) ([]Event, error) {
				if tc.fnErr != nil {
					return []Event{evt}, tc.fnErr
				}
				return []Event{evt}, nil
			})
			if tc.wantFlush {
				require.NoError(t, err)
				require.Equal(t, [][]Event{{evt}}, flusher.batches)
				return
			}
			require.Error(t, err)
			require.Empty(t, flusher.batches)
		})
	}
}

func TestFactoryStampsEnvelope(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFactory(staticIDs{id: "evt-1"}, fixedClock{now: now})

	evt, err := f.New("kw-1", TypeKeywordRegistered, KeywordRegistered{KeywordID: "kw-1", Text: "election"})
	require.NoError(t, err)
	require.Equal(t, "evt-1", evt.ID)
	require.Equal(t, "kw-1", evt.AggregateID)
	require.Equal(t, now, evt.OccurredAt)
	require.Equal(t, Version, evt.Version)

	_, err = f.New("kw-1", Type("BOGUS"), nil)
	require.ErrorContains(t, err, "unknown event type")

	_, err = Factory{}.New("kw-1", TypeKeywordRegistered, nil)
	require.Error(t, err)
}

func newTestRelay(t *testing.T, obs Observer) (*Relay, *pool.Pool) {
	t.Helper()
	p, err := pool.New(pool.Config{Name: "events", CoreWorkers: 2, QueueCapacity: 8})
	require.NoError(t, err)
	return NewRelay(p, Config{Observer: obs}), p
}

func sampleEvent(t *testing.T, id string, eventType Type) Event {
	t.Helper()
	return Event{
		ID:          id,
		AggregateID: "agg-1",
		OccurredAt:  time.Unix(1700000000, 0).UTC(),
		Type:        eventType,
		Version:     Version,
	}
}

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) named(name string) Handler {
	return HandlerFunc(func(_ context.Context, evt Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, name+":"+evt.ID)
		return nil
	})
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

type countingObserver struct {
	mu      sync.Mutex
	failed  int
	dropped int
}

func (o *countingObserver) HandlerFailed(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *countingObserver) EventsDropped(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped += count
}

func (o *countingObserver) failures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failed
}

func (o *countingObserver) droppedEvents() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

type captureFlusher struct {
	batches [][]Event
}

func (f *captureFlusher) Flush(events []Event) {
	f.batches = append(f.batches, events)
}

type fakeTransactor struct {
	commitErr error
}

func (f *fakeTransactor) WithinTx(ctx context.Context, fn func(context.Context, news.Tx) error) error {
	if err := fn(ctx, nil); err != nil {
		return err
	}
	return f.commitErr
}

type staticIDs struct {
	id string
}

func (s staticIDs) NewID() (string, error) {
	return s.id, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}
