package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/hash/sha256"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const defaultPageSize = 10

// Skip reasons.
const (
	ReasonNotFound = "keyword not found"
	ReasonNoItems  = "no items fetched"
)

// Fetcher produces the merged batch for a keyword's next page.
type Fetcher interface {
	Fetch(ctx context.Context, keyword news.Keyword, pageSize int) Batch
}

// Archiver stores the raw batch of a committed cycle.
type Archiver interface {
	Archive(ctx context.Context, keywordID string, cursor int, payload any) (string, error)
}

// OutcomeObserver receives one call per finished cycle.
type OutcomeObserver interface {
	ObserveOutcome(status news.Status, d time.Duration)
}

// TaskConfig wires optional collaborators into a Task.
type TaskConfig struct {
	PageSize int
	Flusher  events.Flusher
	Archiver Archiver
	Observer OutcomeObserver
	Logger   *zap.Logger
}

// Task is the keyword collection cycle shared by scheduled and on-demand
// collection.
type Task struct {
	store   news.Store
	fetcher Fetcher
	ids     news.IDGenerator
	clock   news.Clock
	factory events.Factory
	cfg     TaskConfig
	logger  *zap.Logger
}

// NewTask builds a Task.
func NewTask(store news.Store, fetcher Fetcher, ids news.IDGenerator, clock news.Clock, cfg TaskConfig) *Task {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		store:   store,
		fetcher: fetcher,
		ids:     ids,
		clock:   clock,
		factory: events.NewFactory(ids, clock),
		cfg:     cfg,
		logger:  logger.Named("collector"),
	}
}

// archiveRecord is the JSON document written to the raw archive.
type archiveRecord struct {
	KeywordID string       `json:"keyword_id"`
	Keyword   string       `json:"keyword"`
	Cursor    int          `json:"cursor"`
	FetchedAt time.Time    `json:"fetched_at"`
	Items     []TaggedItem `json:"items"`
}

// Collect runs one cycle for the keyword with the given text. It always
// returns an outcome: panics and store failures become failed outcomes.
func (t *Task) Collect(ctx context.Context, text string) (out news.Outcome) {
	start := time.Now()
	logger := t.logger.With(zap.String("keyword", text))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("collection panicked", zap.Any("panic", rec), zap.Stack("stack"))
			out = news.Failed(text, fmt.Errorf("collect %q: panic: %v", text, rec))
		}
		if t.cfg.Observer != nil {
			t.cfg.Observer.ObserveOutcome(out.Status, time.Since(start))
		}
	}()

	kw, err := t.store.FindKeywordByText(ctx, text)
	if errors.Is(err, news.ErrKeywordNotFound) {
		logger.Debug("keyword vanished before collection")
		return news.Skipped(text, ReasonNotFound)
	}
	if err != nil {
		perr := &news.PersistenceError{Op: "find keyword", Err: err}
		logger.Error("keyword lookup failed", zap.Error(perr))
		return news.Failed(text, perr)
	}
	logger = logger.With(zap.String("keyword_id", kw.ID), zap.Int("cursor", kw.Cursor))

	batch := t.fetcher.Fetch(ctx, kw, t.cfg.PageSize)
	if batch.Len() == 0 {
		logger.Debug("no items fetched; cursor unchanged")
		out = news.Skipped(text, ReasonNoItems)
		out.KeywordID = kw.ID
		out.Cursor = kw.Cursor
		return out
	}

	advanced := kw.Advanced()
	inserted := 0
	err = events.CommitAndFlush(ctx, t.store, t.cfg.Flusher, func(ctx context.Context, tx news.Tx) ([]events.Event, error) {
		n, err := t.saveItems(ctx, tx, kw, batch)
		if err != nil {
			return nil, err
		}
		inserted = n
		if err := tx.UpdateCursor(ctx, advanced, kw.Cursor); err != nil {
			return nil, &news.PersistenceError{Op: "advance cursor", Err: err}
		}
		evt, err := t.factory.New(kw.ID, events.TypeNewsCollected, events.NewsCollected{
			KeywordID: kw.ID,
			Text:      kw.Text,
			Cursor:    advanced.Cursor,
			Fetched:   batch.Len(),
			Inserted:  inserted,
			Platforms: batch.PerPlatform,
		})
		if err != nil {
			return nil, err
		}
		return []events.Event{evt}, nil
	})
	if errors.Is(err, news.ErrKeywordNotFound) {
		logger.Debug("keyword deleted during collection; batch discarded", zap.Int("fetched", batch.Len()))
		out = news.Skipped(text, ReasonNotFound)
		out.KeywordID = kw.ID
		out.Cursor = kw.Cursor
		return out
	}
	if err != nil {
		var perr *news.PersistenceError
		if !errors.As(err, &perr) {
			err = &news.PersistenceError{Op: "commit", Err: err}
		}
		logger.Error("collection cycle rolled back", zap.Int("fetched", batch.Len()), zap.Error(err))
		out = news.Failed(text, err)
		out.KeywordID = kw.ID
		out.Cursor = kw.Cursor
		return out
	}

	t.archive(ctx, logger, advanced, kw.Cursor, batch)
	logger.Info("keyword collected",
		zap.Int("fetched", batch.Len()),
		zap.Int("inserted", inserted),
		zap.Int("next_cursor", advanced.Cursor),
	)
	return news.Collected(advanced, batch.Len(), inserted)
}

func (t *Task) saveItems(ctx context.Context, tx news.Tx, kw news.Keyword, batch Batch) (int, error) {
	now := t.clock.Now()
	inserted := 0
	for _, raw := range batch.Items {
		id, err := t.ids.NewID()
		if err != nil {
			return 0, &news.PersistenceError{Op: "save item", Err: err}
		}
		created, err := tx.SaveItem(ctx, news.Item{
			ID:          id,
			KeywordID:   kw.ID,
			Platform:    raw.Platform,
			Title:       raw.Title,
			Body:        raw.Body,
			Summary:     raw.Summary,
			URL:         raw.URL,
			ContentHash: sha256.Digest(raw.URL),
			CreatedAt:   now,
		})
		if err != nil {
			return 0, &news.PersistenceError{Op: "save item", Err: err}
		}
		if created {
			inserted++
		}
	}
	return inserted, nil
}

// archive writes the batch that produced the page at cursor. Failures are
// logged only.
func (t *Task) archive(ctx context.Context, logger *zap.Logger, kw news.Keyword, cursor int, batch Batch) {
	if t.cfg.Archiver == nil {
		return
	}
	uri, err := t.cfg.Archiver.Archive(ctx, kw.ID, cursor, archiveRecord{
		KeywordID: kw.ID,
		Keyword:   kw.Text,
		Cursor:    cursor,
		FetchedAt: t.clock.Now(),
		Items:     batch.Items,
	})
	if err != nil {
		logger.Warn("archive raw batch failed", zap.Error(err))
		return
	}
	logger.Debug("raw batch archived", zap.String("uri", uri))
}
