// Package collector runs one keyword's collection cycle: a concurrent fetch
// across every enabled platform followed by a transactional persist of the
// results and a single cursor advance.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const (
	defaultFetchTimeout  = 10 * time.Second
	defaultMaxConcurrent = 15
)

// Fetch results reported to the Observer.
const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// SourceLister yields the currently enabled sources in a stable order.
type SourceLister interface {
	Enabled() []news.PlatformSource
}

// Limiter throttles requests per platform.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// FetchObserver receives per-platform fetch measurements.
type FetchObserver interface {
	ObserveFetch(platform news.Platform, result string, items int, d time.Duration)
}

// FanOutConfig tunes the fan-out.
//   - FetchTimeout bounds each platform call, including rate-limit waits.
//   - MaxConcurrent caps in-flight platform calls across all keywords.
type FanOutConfig struct {
	FetchTimeout  time.Duration
	MaxConcurrent int64
	Limiter       Limiter
	Observer      FetchObserver
	Logger        *zap.Logger
}

// TaggedItem is a raw item annotated with the platform that produced it.
type TaggedItem struct {
	Platform news.Platform `json:"platform"`
	news.RawItem
}

// Batch is the merged result of one fan-out.
type Batch struct {
	Items []TaggedItem
	// PerPlatform counts items by platform, including zero for failed ones.
	PerPlatform map[news.Platform]int
}

// Len returns the number of items.
func (b Batch) Len() int {
	return len(b.Items)
}

// FanOut queries every enabled platform concurrently. Failures are isolated
// per platform and never reach the caller.
type FanOut struct {
	sources SourceLister
	cfg     FanOutConfig
	sem     *semaphore.Weighted
	logger  *zap.Logger
}

// NewFanOut builds a FanOut over sources.
func NewFanOut(sources SourceLister, cfg FanOutConfig) *FanOut {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		sources: sources,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:  logger.Named("fanout"),
	}
}

// HasEnabled reports whether at least one platform is enabled.
func (f *FanOut) HasEnabled() bool {
	return len(f.sources.Enabled()) > 0
}

// Fetch queries every enabled platform for the keyword's next page and
// concatenates the successful results in registry order. It returns once every
// platform has answered, failed or timed out.
func (f *FanOut) Fetch(ctx context.Context, keyword news.Keyword, pageSize int) Batch {
	sources := f.sources.Enabled()
	batch := Batch{PerPlatform: make(map[news.Platform]int, len(sources))}
	if len(sources) == 0 {
		return batch
	}

	results := make([][]news.RawItem, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.fetchOne(ctx, src, keyword, pageSize)
		}()
	}
	wg.Wait()

	for i, src := range sources {
		batch.PerPlatform[src.Platform()] = len(results[i])
		for _, item := range results[i] {
			batch.Items = append(batch.Items, TaggedItem{Platform: src.Platform(), RawItem: item})
		}
	}
	return batch
}

// fetchOne never returns an error: failures are logged and become an empty
// contribution.
func (f *FanOut) fetchOne(ctx context.Context, src news.PlatformSource, keyword news.Keyword, size int) []news.RawItem {
	platform := src.Platform()
	start := time.Now()
	items, err := f.guardedFetch(ctx, src, keyword, size)
	d := time.Since(start)

	result := ResultOK
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		result = ResultTimeout
	case err != nil:
		result = ResultError
	case len(items) == 0:
		result = ResultEmpty
	}
	if f.cfg.Observer != nil {
		f.cfg.Observer.ObserveFetch(platform, result, len(items), d)
	}
	if err != nil {
		f.logger.Warn("platform fetch failed",
			zap.String("keyword", keyword.Text),
			zap.String("platform", string(platform)),
			zap.Int("cursor", keyword.Cursor),
			zap.Duration("dur", d),
			zap.Error(err),
		)
		return nil
	}
	return items
}

func (f *FanOut) guardedFetch(
	ctx context.Context,
	src news.PlatformSource,
	keyword news.Keyword,
	size int,
) ([]news.RawItem, error) {
	platform := src.Platform()
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, &news.PlatformFetchError{Platform: platform, Err: err}
	}
	defer f.sem.Release(1)

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(fetchCtx, string(platform)); err != nil {
			return nil, &news.PlatformFetchError{Platform: platform, Err: err}
		}
	}

	type reply struct {
		items []news.RawItem
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- reply{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		items, err := src.Fetch(fetchCtx, keyword.Text, keyword.Cursor, size)
		done <- reply{items: items, err: err}
	}()

	// Sources that ignore ctx are abandoned at the deadline.
	select {
	case r := <-done:
		if r.err != nil {
			return nil, &news.PlatformFetchError{Platform: platform, Err: r.err}
		}
		return r.items, nil
	case <-fetchCtx.Done():
		return nil, &news.PlatformFetchError{Platform: platform, Err: fetchCtx.Err()}
	}
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, keyword news.Keyword, pageSize int) Batch

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, keyword news.Keyword, pageSize int) Batch {
	return f(ctx, keyword, pageSize)
}
