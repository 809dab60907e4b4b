// Package feed answers personalized feed queries: the items collected for the
// keywords a user subscribes to, restricted to the user's platforms.
package feed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// MaxPageSize bounds a single feed page.
const MaxPageSize = 100

var (
	// ErrInvalidPage is returned for a negative page or a size outside [1, MaxPageSize].
	ErrInvalidPage = errors.New("invalid feed page")
	// ErrUnavailable wraps storage failures. Callers may retry.
	ErrUnavailable = errors.New("feed temporarily unavailable")
)

// Store is the read side the query needs.
type Store interface {
	FindUser(ctx context.Context, id string) (news.User, error)
	FindKeywordsByTexts(ctx context.Context, texts []string) ([]news.Keyword, error)
	FindByKeywordsAndPlatforms(
		ctx context.Context,
		keywordIDs []string,
		platforms []news.Platform,
		page int,
		size int,
	) ([]news.Item, error)
}

// Query serves feed pages.
type Query struct {
	store  Store
	logger *zap.Logger
}

// New builds a Query.
func New(store Store, logger *zap.Logger) *Query {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{store: store, logger: logger.Named("feed")}
}

// GetFeed returns page (0-based) of the user's feed, newest first. An unknown
// user yields news.ErrUserNotFound. A user whose keyword or platform set
// matches nothing gets an empty page.
func (q *Query) GetFeed(ctx context.Context, userID string, page, size int) ([]news.FeedEntry, error) {
	if page < 0 || size < 1 || size > MaxPageSize {
		return nil, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, page, size)
	}
	user, err := q.store.FindUser(ctx, userID)
	if errors.Is(err, news.ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, q.unavailable("find user", err)
	}
	texts := user.KeywordTexts()
	if len(texts) == 0 || len(user.Platforms) == 0 {
		return []news.FeedEntry{}, nil
	}

	keywords, err := q.store.FindKeywordsByTexts(ctx, texts)
	if err != nil {
		return nil, q.unavailable("find keywords", err)
	}
	if len(keywords) == 0 {
		return []news.FeedEntry{}, nil
	}
	textByID := make(map[string]string, len(keywords))
	ids := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		textByID[kw.ID] = kw.Text
		ids = append(ids, kw.ID)
	}

	items, err := q.store.FindByKeywordsAndPlatforms(ctx, ids, user.Platforms, page, size)
	if err != nil {
		return nil, q.unavailable("find items", err)
	}
	out := make([]news.FeedEntry, 0, len(items))
	for _, item := range items {
		out = append(out, news.FeedEntry{Item: item, MatchedKeyword: textByID[item.KeywordID]})
	}
	return out, nil
}

func (q *Query) unavailable(op string, err error) error {
	q.logger.Error("feed query failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
