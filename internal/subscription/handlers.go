package subscription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// KeywordLifecycle keeps collection keywords in line with subscriptions.
type KeywordLifecycle struct {
	store   news.Store
	flusher events.Flusher
	ids     news.IDGenerator
	clock   news.Clock
	factory events.Factory
	logger  *zap.Logger
}

// NewKeywordLifecycle builds the lifecycle handlers.
func NewKeywordLifecycle(
	store news.Store,
	flusher events.Flusher,
	ids news.IDGenerator,
	clock news.Clock,
	logger *zap.Logger,
) *KeywordLifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordLifecycle{
		store:   store,
		flusher: flusher,
		ids:     ids,
		clock:   clock,
		factory: events.NewFactory(ids, clock),
		logger:  logger.Named("keywords"),
	}
}

// EnsureKeyword creates the collection keyword for text unless it exists and
// raises KeywordRegistered after the creating transaction commits.
func (k *KeywordLifecycle) EnsureKeyword(ctx context.Context, text string) (news.Keyword, bool, error) {
	var (
		kw      news.Keyword
		created bool
	)
	err := events.CommitAndFlush(ctx, k.store, k.flusher, func(ctx context.Context, tx news.Tx) ([]events.Event, error) {
		existing, err := tx.FindKeywordByText(ctx, text)
		if err == nil {
			kw = existing
			return nil, nil
		}
		if !errors.Is(err, news.ErrKeywordNotFound) {
			return nil, fmt.Errorf("find keyword: %w", err)
		}
		id, err := k.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate keyword id: %w", err)
		}
		kw = news.NewKeyword(id, text, k.clock.Now())
		if !kw.Valid() {
			return nil, ErrInvalidKeyword
		}
		if err := tx.CreateKeyword(ctx, kw); err != nil {
			return nil, fmt.Errorf("create keyword: %w", err)
		}
		evt, err := k.factory.New(kw.ID, events.TypeKeywordRegistered, events.KeywordRegistered{KeywordID: kw.ID, Text: kw.Text})
		if err != nil {
			return nil, err
		}
		created = true
		return []events.Event{evt}, nil
	})
	if errors.Is(err, news.ErrKeywordExists) {
		// Lost a creation race; the winner raised the event.
		found, ferr := k.store.FindKeywordByText(ctx, text)
		return found, false, ferr
	}
	if err != nil {
		return news.Keyword{}, false, err
	}
	if created {
		k.logger.Info("keyword registered", zap.String("keyword", kw.Text), zap.String("keyword_id", kw.ID))
	}
	return kw, created, nil
}

// PruneKeywords deletes the keywords among texts that no user subscribes to
// any more, together with their items. It returns the deleted keyword ids.
func (k *KeywordLifecycle) PruneKeywords(ctx context.Context, texts []string) ([]string, error) {
	var deleted []string
	err := k.store.WithinTx(ctx, func(ctx context.Context, tx news.Tx) error {
		deleted = deleted[:0]
		for _, text := range texts {
			n, err := tx.CountKeywordSubscribers(ctx, text)
			if err != nil {
				return fmt.Errorf("count subscribers: %w", err)
			}
			if n > 0 {
				continue
			}
			kw, err := tx.FindKeywordByText(ctx, text)
			if errors.Is(err, news.ErrKeywordNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("find keyword: %w", err)
			}
			deleted = append(deleted, kw.ID)
		}
		if len(deleted) == 0 {
			return nil
		}
		if err := tx.DeleteKeywords(ctx, deleted); err != nil {
			return fmt.Errorf("delete keywords: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		k.logger.Info("unsubscribed keywords deleted", zap.Strings("keyword_ids", deleted))
	}
	return deleted, nil
}

// KeywordAddedHandler reacts to USER_KEYWORD_ADDED.
func (k *KeywordLifecycle) KeywordAddedHandler() events.Handler {
	return events.HandlerFunc(func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(events.UserKeywordAdded)
		if !ok {
			return fmt.Errorf("unexpected payload %T", evt.Payload)
		}
		_, _, err := k.EnsureKeyword(ctx, payload.Text)
		return err
	})
}

// KeywordRemovedHandler reacts to USER_KEYWORD_REMOVED.
func (k *KeywordLifecycle) KeywordRemovedHandler() events.Handler {
	return events.HandlerFunc(func(ctx context.Context, evt events.Event) error {
		payload, ok := evt.Payload.(events.UserKeywordRemoved)
		if !ok {
			return fmt.Errorf("unexpected payload %T", evt.Payload)
		}
		_, err := k.PruneKeywords(ctx, payload.Texts)
		return err
	})
}
