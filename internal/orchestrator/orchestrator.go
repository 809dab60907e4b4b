// Package orchestrator schedules keyword collection tasks on the bounded
// collection pool, for all keywords or for one on demand.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/pool"
)

// Skip reasons added by the orchestrator.
const (
	ReasonNoPlatforms = "no platform enabled"
	ReasonInFlight    = "in flight"
)

// Collector runs one keyword cycle. *collector.Task satisfies it.
type Collector interface {
	Collect(ctx context.Context, text string) news.Outcome
}

// PlatformChecker reports whether any platform is enabled.
type PlatformChecker interface {
	HasEnabled() bool
}

// Submitter schedules work without blocking. *pool.Pool satisfies it.
type Submitter interface {
	Submit(task pool.Task) error
}

// KeywordLister loads every known keyword.
type KeywordLister interface {
	FindAllKeywords(ctx context.Context) ([]news.Keyword, error)
}

// SummaryObserver receives one call per finished CollectAll.
type SummaryObserver interface {
	ObserveSummary(summary news.Summary)
}

// Config wires optional collaborators.
type Config struct {
	Logger   *zap.Logger
	Observer SummaryObserver
}

// Orchestrator fans keyword tasks out onto the collection pool. At most one
// task per keyword text is in flight at any time.
type Orchestrator struct {
	keywords  KeywordLister
	platforms PlatformChecker
	collector Collector
	pool      Submitter
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New builds an Orchestrator.
func New(keywords KeywordLister, platforms PlatformChecker, c Collector, p Submitter, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		keywords:  keywords,
		platforms: platforms,
		collector: c,
		pool:      p,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		inFlight:  make(map[string]struct{}),
	}
}

// CollectAll runs one task per distinct keyword and delivers the summary on
// the returned channel once every task has finished. It never blocks the
// caller; the channel is buffered and receives exactly one value.
func (o *Orchestrator) CollectAll(ctx context.Context) <-chan news.Summary {
	result := make(chan news.Summary, 1)
	started := time.Now()

	keywords, err := o.keywords.FindAllKeywords(ctx)
	if err != nil {
		o.logger.Error("load keywords failed", zap.Error(err))
		result <- o.finish(news.Summary{StartedAt: started})
		return result
	}
	texts := distinctTexts(keywords)
	if len(texts) == 0 {
		result <- o.finish(news.Summary{StartedAt: started})
		return result
	}
	if !o.platforms.HasEnabled() {
		outcomes := make([]news.Outcome, 0, len(texts))
		for _, text := range texts {
			outcomes = append(outcomes, news.Skipped(text, ReasonNoPlatforms))
		}
		result <- o.finish(news.Summary{Outcomes: outcomes, StartedAt: started})
		return result
	}

	pending := make([]<-chan news.Outcome, 0, len(texts))
	for _, text := range texts {
		pending = append(pending, o.submit(ctx, text))
	}
	go func() {
		outcomes := make([]news.Outcome, 0, len(pending))
		for _, ch := range pending {
			outcomes = append(outcomes, <-ch)
		}
		result <- o.finish(news.Summary{Outcomes: outcomes, StartedAt: started})
	}()
	return result
}

// CollectOne runs a single task for text. A missing keyword is reported as
// skipped by the task itself.
func (o *Orchestrator) CollectOne(ctx context.Context, text string) <-chan news.Outcome {
	if !o.platforms.HasEnabled() {
		return ready(news.Skipped(text, ReasonNoPlatforms))
	}
	return o.submit(ctx, text)
}

// KeywordRegisteredHandler triggers an immediate collection for every newly
// registered keyword. The handler returns without waiting for the outcome.
func (o *Orchestrator) KeywordRegisteredHandler() events.Handler {
	return events.HandlerFunc(func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(events.KeywordRegistered)
		if !ok {
			return fmt.Errorf("unexpected payload %T", evt.Payload)
		}
		// The collection outlives the handler deadline.
		ch := o.CollectOne(context.WithoutCancel(ctx), payload.Text)
		go func() {
			out := <-ch
			if out.Status == news.StatusFailed {
				o.logger.Warn("first collection failed",
					zap.String("keyword", payload.Text), zap.Error(out.Err))
			}
		}()
		return nil
	})
}

// submit hands one keyword task to the pool. The returned channel always
// receives exactly one outcome.
func (o *Orchestrator) submit(ctx context.Context, text string) <-chan news.Outcome {
	if !o.acquire(text) {
		o.logger.Debug("keyword already in flight", zap.String("keyword", text))
		out := news.Skipped(text, ReasonInFlight)
		out.Err = news.ErrKeywordInFlight
		return ready(out)
	}
	ch := make(chan news.Outcome, 1)
	err := o.pool.Submit(func(poolCtx context.Context) {
		runCtx, cancel := mergeCancel(ctx, poolCtx)
		defer cancel()
		ch <- o.run(runCtx, text)
	})
	if err != nil {
		o.release(text)
		o.logger.Warn("keyword task rejected", zap.String("keyword", text), zap.Error(err))
		return ready(news.Failed(text, fmt.Errorf("submit %q: %w", text, err)))
	}
	return ch
}

// run releases the keyword before the outcome is published, so a caller that
// has received the outcome can immediately schedule the keyword again.
func (o *Orchestrator) run(ctx context.Context, text string) (out news.Outcome) {
	defer o.release(text)
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("keyword task panicked", zap.String("keyword", text), zap.Any("panic", rec))
			out = news.Failed(text, fmt.Errorf("collect %q: panic: %v", text, rec))
		}
	}()
	return o.collector.Collect(ctx, text)
}

func (o *Orchestrator) acquire(text string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[text]; busy {
		return false
	}
	o.inFlight[text] = struct{}{}
	return true
}

func (o *Orchestrator) release(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, text)
}

func (o *Orchestrator) finish(summary news.Summary) news.Summary {
	summary.FinishedAt = time.Now()
	if o.cfg.Observer != nil {
		o.cfg.Observer.ObserveSummary(summary)
	}
	o.logger.Info("collection cycle finished",
		zap.Int("keywords", len(summary.Outcomes)),
		zap.Int("collected", summary.Count(news.StatusCollected)),
		zap.Int("skipped", summary.Count(news.StatusSkipped)),
		zap.Int("failed", summary.Count(news.StatusFailed)),
		zap.Int("items", summary.Items()),
		zap.Duration("dur", summary.Duration()),
	)
	return summary
}

func distinctTexts(keywords []news.Keyword) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw.Text == "" {
			continue
		}
		if _, dup := seen[kw.Text]; dup {
			continue
		}
		seen[kw.Text] = struct{}{}
		out = append(out, kw.Text)
	}
	return out
}

func ready(out news.Outcome) <-chan news.Outcome {
	ch := make(chan news.Outcome, 1)
	ch <- out
	return ch
}

// mergeCancel returns a context carrying a's values that is canceled when
// either a or b is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
