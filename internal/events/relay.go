package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/pool"
)

// Config controls handler execution for the Relay.
//   - HandlerTimeout: per-handler deadline (default 30s).
//   - Logger: optional structured logger.
//   - Observer: optional metrics hook.
type Config struct {
	HandlerTimeout time.Duration
	Logger         *zap.Logger
	Observer       Observer
}

const (
	defaultHandlerTimeout = 30 * time.Second
	dropLogInterval       = 5 * time.Second
)

// Submitter schedules work on a bounded pool; *pool.Pool satisfies it.
type Submitter interface {
	Submit(task pool.Task) error
}

type namedHandler struct {
	name    string
	handler Handler
}

// Relay dispatches committed events to registered handlers on its own pool.
// Events of one Flush call are delivered in order by a single task; a failing
// or panicking handler never affects the other handlers or events.
type Relay struct {
	cfg         Config
	submitter   Submitter
	logger      *zap.Logger
	dropLimiter rateLimiter
	dropped     atomic.Int64

	mu       sync.RWMutex
	byType   map[Type][]namedHandler
	catchAll []namedHandler
}

// NewRelay builds a Relay that schedules dispatch on submitter.
func NewRelay(submitter Submitter, cfg Config) *Relay {
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		cfg:         cfg,
		submitter:   submitter,
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
		byType:      make(map[Type][]namedHandler),
	}
}

// Subscribe registers h for one event type. Handlers run in registration order.
func (r *Relay) Subscribe(eventType Type, name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[eventType] = append(r.byType[eventType], namedHandler{name: name, handler: h})
}

// SubscribeAll registers h for every event type. Catch-all handlers run after
// the type-specific ones.
func (r *Relay) SubscribeAll(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catchAll = append(r.catchAll, namedHandler{name: name, handler: h})
}

// Flush hands a committed batch to the event pool. It never blocks; when the
// pool is saturated the batch is dropped and a rate-limited warning is logged.
func (r *Relay) Flush(events []Event) {
	if r == nil || len(events) == 0 {
		return
	}
	batch := make([]Event, 0, len(events))
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			r.logger.Warn("discarding invalid event", zap.String("event_id", evt.ID), zap.Error(err))
			continue
		}
		batch = append(batch, evt)
	}
	if len(batch) == 0 {
		return
	}
	err := r.submitter.Submit(func(ctx context.Context) {
		r.dispatch(ctx, batch)
	})
	if err == nil {
		return
	}
	if r.cfg.Observer != nil {
		r.cfg.Observer.EventsDropped(len(batch))
	}
	r.dropped.Add(int64(len(batch)))
	if r.dropLimiter.Allow(time.Now()) {
		count := r.dropped.Swap(0)
		r.logger.Warn("events dropped", zap.Int64("dropped", count), zap.Error(err))
	}
}

func (r *Relay) dispatch(ctx context.Context, batch []Event) {
	for _, evt := range batch {
		for _, nh := range r.handlersFor(evt.Type) {
			if err := r.invoke(ctx, evt, nh); err != nil {
				if r.cfg.Observer != nil {
					r.cfg.Observer.HandlerFailed(string(evt.Type), nh.name)
				}
				r.logger.Warn("event handler failed",
					zap.String("event_type", string(evt.Type)),
					zap.String("event_id", evt.ID),
					zap.String("handler", nh.name),
					zap.Error(err),
				)
			}
		}
	}
}

func (r *Relay) handlersFor(eventType Type) []namedHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]namedHandler, 0, len(r.byType[eventType])+len(r.catchAll))
	out = append(out, r.byType[eventType]...)
	return append(out, r.catchAll...)
}

func (r *Relay) invoke(ctx context.Context, evt Event, nh namedHandler) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.HandlerTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = &HandlerError{EventType: evt.Type, Handler: nh.name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if herr := nh.handler.Handle(ctx, evt); herr != nil {
		return &HandlerError{EventType: evt.Type, Handler: nh.name, Err: herr}
	}
	return nil
}

// Transactor runs fn inside one unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx news.Tx) error) error
}

// CommitAndFlush runs fn in a transaction and flushes the events it returns
// only after the commit succeeds. Events from a rolled back unit are dropped.
func CommitAndFlush(
	ctx context.Context,
	txr Transactor,
	flusher Flusher,
	fn func(ctx context.Context, tx news.Tx) ([]Event, error),
) error {
	var pending []Event
	err := txr.WithinTx(ctx, func(ctx context.Context, tx news.Tx) error {
		evts, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		pending = evts
		return nil
	})
	if err != nil {
		return err
	}
	if flusher != nil && len(pending) > 0 {
		flusher.Flush(pending)
	}
	return nil
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
