package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{CoreWorkers: 0})
	require.Error(t, err)

	_, err = New(Config{CoreWorkers: 2, MaxWorkers: 1})
	require.ErrorContains(t, err, "max workers")

	_, err = New(Config{CoreWorkers: 1, QueueCapacity: -1})
	require.ErrorContains(t, err, "queue capacity")

	p, err := New(Config{CoreWorkers: 3})
	require.NoError(t, err)
	require.Equal(t, 3, p.cfg.MaxWorkers)
	require.Equal(t, defaultIdleTimeout, p.cfg.IdleTimeout)
}

func TestSubmitRunsTasks(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Name: "test", CoreWorkers: 2, MaxWorkers: 4, QueueCapacity: 16})
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		count atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(context.Context) {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	require.Equal(t, int32(10), count.Load())
	require.NoError(t, p.Shutdown(context.Background()))
}

// TestSubmitFailsFastWhenSaturated fills the core worker, the queue and the
// extra worker budget, then expects the next submission to be rejected.
func TestSubmitFailsFastWhenSaturated(t *testing.T) {
	t.Parallel()

	var rejected atomic.Int32
	p, err := New(Config{
		Name:          "collect",
		CoreWorkers:   1,
		MaxWorkers:    2,
		QueueCapacity: 1,
		OnReject:      func(string) { rejected.Add(1) },
	})
	require.NoError(t, err)

	release := make(chan struct{})
	blocking := func(context.Context) { <-release }

	require.NoError(t, p.Submit(blocking)) // core worker
	require.NoError(t, p.Submit(blocking)) // queued
	require.NoError(t, p.Submit(blocking)) // extra worker

	start := time.Now()
	err = p.Submit(blocking)
	require.ErrorIs(t, err, ErrSaturated)
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, int32(1), rejected.Load())

	stats := p.Stats()
	require.Equal(t, 2, stats.Workers)
	require.Equal(t, 1, stats.Queued)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestExtraWorkersRetireWhenIdle(t *testing.T) {
	t.Parallel()

	p, err := New(Config{
		CoreWorkers:   1,
		MaxWorkers:    3,
		QueueCapacity: 0,
		IdleTimeout:   20 * time.Millisecond,
	})
	require.NoError(t, err)

	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func(context.Context) { <-release }))
	}
	require.Equal(t, 3, p.Stats().Workers)
	close(release)

	require.Eventually(t, func() bool {
		return p.Stats().Workers == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	p, err := New(Config{CoreWorkers: 1, QueueCapacity: 4})
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, p.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task after panic never ran")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownDrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	p, err := New(Config{CoreWorkers: 1, QueueCapacity: 8})
	require.NoError(t, err)

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(context.Context) {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	require.Equal(t, int32(5), count.Load())

	err = p.Submit(func(context.Context) {})
	require.ErrorIs(t, err, ErrClosed)
}

func TestShutdownDeadlineCancelsRunningTasks(t *testing.T) {
	t.Parallel()

	p, err := New(Config{CoreWorkers: 1})
	require.NoError(t, err)

	canceled := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = p.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("running task was not canceled")
	}
}
