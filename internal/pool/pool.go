// Package pool implements a bounded goroutine pool with fail-fast submission.
//
// A Pool keeps CoreWorkers goroutines alive, queues up to QueueCapacity tasks
// behind them, and grows to MaxWorkers only when the queue is full. Extra
// workers exit after IdleTimeout without work. When both the queue and the
// worker budget are exhausted, Submit returns ErrSaturated immediately instead
// of blocking the caller.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrSaturated is returned when neither the queue nor the worker budget
	// can accept another task.
	ErrSaturated = errors.New("pool saturated")
	// ErrClosed is returned for submissions after Shutdown.
	ErrClosed = errors.New("pool closed")
)

const defaultIdleTimeout = 60 * time.Second

// Task is a unit of work. The context is canceled when Shutdown gives up
// waiting for the drain.
type Task func(ctx context.Context)

// Config sizes a Pool.
type Config struct {
	Name          string
	CoreWorkers   int
	MaxWorkers    int
	QueueCapacity int
	IdleTimeout   time.Duration
	Logger        *zap.Logger
	// OnReject is invoked once per rejected submission (e.g. to bump a metric).
	OnReject func(name string)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers int
	Busy    int
	Queued  int
}

// Pool is safe for concurrent use.
type Pool struct {
	cfg    Config
	logger *zap.Logger
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers int
	closed  bool

	busy atomic.Int64
	wg   sync.WaitGroup
}

// New validates cfg and returns an idle Pool. Workers start lazily on Submit.
func New(cfg Config) (*Pool, error) {
	if cfg.CoreWorkers <= 0 {
		return nil, fmt.Errorf("core workers must be > 0")
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = cfg.CoreWorkers
	}
	if cfg.MaxWorkers < cfg.CoreWorkers {
		return nil, fmt.Errorf("max workers (%d) must be >= core workers (%d)", cfg.MaxWorkers, cfg.CoreWorkers)
	}
	if cfg.QueueCapacity < 0 {
		return nil, fmt.Errorf("queue capacity must be >= 0")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "pool"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		logger: logger.With(zap.String("pool", cfg.Name)),
		tasks:  make(chan Task, cfg.QueueCapacity),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Name returns the configured pool name.
func (p *Pool) Name() string {
	return p.cfg.Name
}

// Submit schedules task without blocking. It returns ErrSaturated when the
// pool is full and ErrClosed after Shutdown.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%s: %w", p.cfg.Name, ErrClosed)
	}
	if p.workers < p.cfg.CoreWorkers {
		p.startWorker(task, true)
		return nil
	}
	select {
	case p.tasks <- task:
		return nil
	default:
	}
	if p.workers < p.cfg.MaxWorkers {
		p.startWorker(task, false)
		return nil
	}
	if p.cfg.OnReject != nil {
		p.cfg.OnReject(p.cfg.Name)
	}
	return fmt.Errorf("%s: %w", p.cfg.Name, ErrSaturated)
}

// Stats reports the current worker and queue occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	return Stats{
		Workers: workers,
		Busy:    int(p.busy.Load()),
		Queued:  len(p.tasks),
	}
}

// Shutdown stops accepting work and waits for queued and running tasks to
// finish. If ctx ends first, running tasks see their context canceled and
// Shutdown returns the context error. Subsequent calls only wait.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("pool drain timed out", zap.Int("queued", len(p.tasks)), zap.Int64("busy", p.busy.Load()))
		return fmt.Errorf("%s drain: %w", p.cfg.Name, ctx.Err())
	}
}

// startWorker must be called with p.mu held.
func (p *Pool) startWorker(first Task, core bool) {
	p.workers++
	p.wg.Add(1)
	go p.work(first, core)
}

func (p *Pool) work(first Task, core bool) {
	defer p.wg.Done()
	defer p.exit()

	p.run(first)
	for {
		if core {
			task, ok := <-p.tasks
			if !ok {
				return
			}
			p.run(task)
			continue
		}
		idle := time.NewTimer(p.cfg.IdleTimeout)
		select {
		case task, ok := <-p.tasks:
			idle.Stop()
			if !ok {
				return
			}
			p.run(task)
		case <-idle.C:
			return
		}
	}
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *Pool) run(task Task) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task(p.ctx)
}
