package subscription

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// Service loads a user, applies one aggregate change and saves it in a single
// transaction. Events are flushed only after that transaction commits.
type Service struct {
	store   news.Store
	flusher events.Flusher
	agg     Aggregate
	logger  *zap.Logger
}

// NewService builds a Service.
func NewService(store news.Store, flusher events.Flusher, agg Aggregate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, flusher: flusher, agg: agg, logger: logger.Named("subscription")}
}

// Register creates a user.
func (s *Service) Register(ctx context.Context, nickname string) (news.User, error) {
	var created news.User
	err := events.CommitAndFlush(ctx, s.store, s.flusher, func(ctx context.Context, tx news.Tx) ([]events.Event, error) {
		user, evts, err := s.agg.NewUser(nickname)
		if err != nil {
			return nil, err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		created = user
		return evts, nil
	})
	if err != nil {
		return news.User{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", created.ID))
	return created, nil
}

// User returns the stored user.
func (s *Service) User(ctx context.Context, id string) (news.User, error) {
	user, err := s.store.FindUser(ctx, id)
	if err != nil {
		return news.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// AddKeyword subscribes the user to text.
func (s *Service) AddKeyword(ctx context.Context, userID, text string) (news.User, error) {
	return s.changeKeywords(ctx, userID, func(u news.User) (news.User, []events.Event, error) {
		return s.agg.AddKeyword(u, text)
	})
}

// RemoveKeywords unsubscribes the user from texts.
func (s *Service) RemoveKeywords(ctx context.Context, userID string, texts []string) (news.User, error) {
	return s.changeKeywords(ctx, userID, func(u news.User) (news.User, []events.Event, error) {
		return s.agg.RemoveKeywords(u, texts)
	})
}

// SyncKeywords replaces the user's keyword set.
func (s *Service) SyncKeywords(ctx context.Context, userID string, texts []string) (news.User, error) {
	return s.changeKeywords(ctx, userID, func(u news.User) (news.User, []events.Event, error) {
		return s.agg.SyncKeywords(u, texts)
	})
}

// SetKeywordActive toggles one subscription.
func (s *Service) SetKeywordActive(ctx context.Context, userID, text string, active bool) (news.User, error) {
	return s.changeKeywords(ctx, userID, func(u news.User) (news.User, []events.Event, error) {
		return s.agg.SetKeywordActive(u, text, active)
	})
}

// SyncPlatforms replaces the user's platform set.
func (s *Service) SyncPlatforms(ctx context.Context, userID string, names []string) (news.User, error) {
	var saved news.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx news.Tx) error {
		user, err := tx.FindUserForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		next := s.agg.SyncPlatforms(user, names)
		if err := tx.SaveUserPlatforms(ctx, userID, next.Platforms); err != nil {
			return fmt.Errorf("save platforms: %w", err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return news.User{}, err
	}
	return saved, nil
}

func (s *Service) changeKeywords(
	ctx context.Context,
	userID string,
	change func(news.User) (news.User, []events.Event, error),
) (news.User, error) {
	var saved news.User
	err := events.CommitAndFlush(ctx, s.store, s.flusher, func(ctx context.Context, tx news.Tx) ([]events.Event, error) {
		user, err := tx.FindUserForUpdate(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		next, evts, err := change(user)
		if err != nil {
			return nil, err
		}
		if err := tx.SaveUserKeywords(ctx, userID, next.Keywords); err != nil {
			return nil, fmt.Errorf("save keywords: %w", err)
		}
		saved = next
		return evts, nil
	})
	if err != nil {
		return news.User{}, err
	}
	return saved, nil
}
