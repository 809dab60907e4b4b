// Package subscription owns the user aggregate: keyword and platform
// subscriptions, the events they raise, and the handlers that keep the
// collection keyword set in line with what users subscribe to.
package subscription

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// MaxKeywords is the per-user subscription limit.
const MaxKeywords = 50

// Aggregate rule violations.
var (
	ErrTooManyKeywords      = fmt.Errorf("a user may subscribe to at most %d keywords", MaxKeywords)
	ErrDuplicateKeyword     = errors.New("keyword already subscribed")
	ErrKeywordNotSubscribed = errors.New("keyword not subscribed")
	ErrInvalidKeyword       = errors.New("keyword text is empty")
	ErrInvalidNickname      = errors.New("nickname is empty")
)

// Aggregate applies subscription changes to a user value. Every operation
// returns the new user state together with the events it raised; the input
// user is never modified.
type Aggregate struct {
	ids     news.IDGenerator
	clock   news.Clock
	factory events.Factory
}

// NewAggregate builds an Aggregate.
func NewAggregate(ids news.IDGenerator, clock news.Clock) Aggregate {
	return Aggregate{ids: ids, clock: clock, factory: events.NewFactory(ids, clock)}
}

// NewUser creates a user with no subscriptions.
func (a Aggregate) NewUser(nickname string) (news.User, []events.Event, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return news.User{}, nil, ErrInvalidNickname
	}
	id, err := a.ids.NewID()
	if err != nil {
		return news.User{}, nil, fmt.Errorf("generate user id: %w", err)
	}
	user := news.User{ID: id, Nickname: nickname, CreatedAt: a.clock.Now()}
	evt, err := a.factory.New(id, events.TypeUserRegistered, events.UserRegistered{UserID: id, Nickname: nickname})
	if err != nil {
		return news.User{}, nil, err
	}
	return user, []events.Event{evt}, nil
}

// AddKeyword subscribes the user to text. New subscriptions start active.
func (a Aggregate) AddKeyword(user news.User, text string) (news.User, []events.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return user, nil, ErrInvalidKeyword
	}
	if indexOf(user, text) >= 0 {
		return user, nil, fmt.Errorf("%q: %w", text, ErrDuplicateKeyword)
	}
	if len(user.Keywords) >= MaxKeywords {
		return user, nil, ErrTooManyKeywords
	}
	next := user.Clone()
	next.Keywords = append(next.Keywords, news.UserKeyword{Text: text, Active: true, CreatedAt: a.clock.Now()})
	evt, err := a.factory.New(user.ID, events.TypeUserKeywordAdded, events.UserKeywordAdded{UserID: user.ID, Text: text})
	if err != nil {
		return user, nil, err
	}
	return next, []events.Event{evt}, nil
}

// RemoveKeywords unsubscribes every text. All texts must be subscribed.
func (a Aggregate) RemoveKeywords(user news.User, texts []string) (news.User, []events.Event, error) {
	texts = normalize(texts)
	if len(texts) == 0 {
		return user, nil, nil
	}
	for _, text := range texts {
		if indexOf(user, text) < 0 {
			return user, nil, fmt.Errorf("%q: %w", text, ErrKeywordNotSubscribed)
		}
	}
	next := user.Clone()
	next.Keywords = slices.DeleteFunc(next.Keywords, func(uk news.UserKeyword) bool {
		return slices.Contains(texts, uk.Text)
	})
	evt, err := a.factory.New(user.ID, events.TypeUserKeywordRemoved, events.UserKeywordRemoved{UserID: user.ID, Texts: texts})
	if err != nil {
		return user, nil, err
	}
	return next, []events.Event{evt}, nil
}

// SyncKeywords replaces the subscription set with texts as a diff: one added
// event per new text, one removed event listing every dropped text. Existing
// subscriptions keep their active flag.
func (a Aggregate) SyncKeywords(user news.User, texts []string) (news.User, []events.Event, error) {
	texts = normalize(texts)
	if len(texts) > MaxKeywords {
		return user, nil, ErrTooManyKeywords
	}
	var removed []string
	for _, uk := range user.Keywords {
		if !slices.Contains(texts, uk.Text) {
			removed = append(removed, uk.Text)
		}
	}

	next := user
	var out []events.Event
	if len(removed) > 0 {
		var evts []events.Event
		var err error
		next, evts, err = a.RemoveKeywords(next, removed)
		if err != nil {
			return user, nil, err
		}
		out = append(out, evts...)
	}
	for _, text := range texts {
		if indexOf(next, text) >= 0 {
			continue
		}
		var evts []events.Event
		var err error
		next, evts, err = a.AddKeyword(next, text)
		if err != nil {
			return user, nil, err
		}
		out = append(out, evts...)
	}
	return next, out, nil
}

// SetKeywordActive sets the active flag of one subscription. Setting the
// current value is a no-op without events.
func (a Aggregate) SetKeywordActive(user news.User, text string, active bool) (news.User, []events.Event, error) {
	text = strings.TrimSpace(text)
	idx := indexOf(user, text)
	if idx < 0 {
		return user, nil, fmt.Errorf("%q: %w", text, ErrKeywordNotSubscribed)
	}
	if user.Keywords[idx].Active == active {
		return user, nil, nil
	}
	next := user.Clone()
	next.Keywords[idx].Active = active
	evt, err := a.factory.New(user.ID, events.TypeUserKeywordActivated, events.UserKeywordActivated{
		UserID: user.ID,
		Text:   text,
		Active: active,
	})
	if err != nil {
		return user, nil, err
	}
	return next, []events.Event{evt}, nil
}

// SyncPlatforms replaces the platform set. Unknown names are discarded.
func (a Aggregate) SyncPlatforms(user news.User, names []string) news.User {
	next := user.Clone()
	next.Platforms = news.ParsePlatforms(names)
	return next
}

func indexOf(user news.User, text string) int {
	return slices.IndexFunc(user.Keywords, func(uk news.UserKeyword) bool { return uk.Text == text })
}

// normalize trims texts and drops blanks and duplicates, keeping order.
func normalize(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
