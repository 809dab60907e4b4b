package subscription

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) { return fmt.Sprintf("id-%d", s.n.Add(1)), nil }

type fixedClock struct{}

func (fixedClock) Now() time.Time { return t0 }

func newAggregate() Aggregate {
	return NewAggregate(&seqIDs{}, fixedClock{})
}

func userWith(texts ...string) news.User {
	u := news.User{ID: "u1", Nickname: "reader"}
	for _, text := range texts {
		u.Keywords = append(u.Keywords, news.UserKeyword{Text: text, Active: true, CreatedAt: t0})
	}
	return u
}

func types(evts []events.Event) []events.Type {
	out := make([]events.Type, 0, len(evts))
	for _, evt := range evts {
		out = append(out, evt.Type)
	}
	return out
}

func TestNewUser(t *testing.T) {
	t.Parallel()

	agg := newAggregate()
	user, evts, err := agg.NewUser("  reader ")
	require.NoError(t, err)
	require.Equal(t, "reader", user.Nickname)
	require.NotEmpty(t, user.ID)
	require.Equal(t, t0, user.CreatedAt)
	require.Len(t, evts, 1)
	require.Equal(t, events.UserRegistered{UserID: user.ID, Nickname: "reader"}, evts[0].Payload)

	_, _, err = agg.NewUser("   ")
	require.ErrorIs(t, err, ErrInvalidNickname)
}

func TestAddKeyword(t *testing.T) {
	t.Parallel()

	agg := newAggregate()
	user := userWith("election")

	next, evts, err := agg.AddKeyword(user, " rates ")
	require.NoError(t, err)
	require.Equal(t, []string{"election", "rates"}, next.KeywordTexts())
	require.True(t, next.Keywords[1].Active)
	require.Equal(t, []string{"election"}, user.KeywordTexts(), "input must not change")
	require.Equal(t, events.UserKeywordAdded{UserID: "u1", Text: "rates"}, evts[0].Payload)
	require.Equal(t, "u1", evts[0].AggregateID)

	_, _, err = agg.AddKeyword(user, "election")
	require.ErrorIs(t, err, ErrDuplicateKeyword)

	_, _, err = agg.AddKeyword(user, " ")
	require.ErrorIs(t, err, ErrInvalidKeyword)
}

func TestAddKeywordEnforcesLimit(t *testing.T) {
	t.Parallel()

	texts := make([]string, MaxKeywords)
	for i := range texts {
		texts[i] = fmt.Sprintf("kw-%d", i)
	}
	user := userWith(texts...)

	_, evts, err := newAggregate().AddKeyword(user, "one more")
	require.ErrorIs(t, err, ErrTooManyKeywords)
	require.Empty(t, evts)
}

func TestRemoveKeywords(t *testing.T) {
	t.Parallel()

	agg := newAggregate()
	user := userWith("election", "rates", "chips")

	next, evts, err := agg.RemoveKeywords(user, []string{"rates", "chips", "rates"})
	require.NoError(t, err)
	require.Equal(t, []string{"election"}, next.KeywordTexts())
	require.Len(t, evts, 1)
	require.Equal(t, events.UserKeywordRemoved{UserID: "u1", Texts: []string{"rates", "chips"}}, evts[0].Payload)

	_, _, err = agg.RemoveKeywords(user, []string{"election", "missing"})
	require.ErrorIs(t, err, ErrKeywordNotSubscribed)

	same, evts, err := agg.RemoveKeywords(user, nil)
	require.NoError(t, err)
	require.Empty(t, evts)
	require.Equal(t, user, same)
}

func TestSyncKeywordsRaisesDiff(t *testing.T) {
	t.Parallel()

	agg := newAggregate()
	user := userWith("election", "rates")
	user.Keywords[0].Active = false

	next, evts, err := agg.SyncKeywords(user, []string{"election", "chips", "budget", "chips"})
	require.NoError(t, err)
	require.Equal(t, []string{"election", "chips", "budget"}, next.KeywordTexts())
	require.False(t, next.Keywords[0].Active, "kept subscriptions keep their flag")
	require.Equal(t, []events.Type{
		events.TypeUserKeywordRemoved,
		events.TypeUserKeywordAdded,
		events.TypeUserKeywordAdded,
	}, types(evts))
	require.Equal(t, []string{"rates"}, evts[0].Payload.(events.UserKeywordRemoved).Texts)
}

func TestSyncKeywordsUnchangedRaisesNothing(t *testing.T) {
	t.Parallel()

	user := userWith("election", "rates")
	next, evts, err := newAggregate().SyncKeywords(user, []string{"rates", "election"})
	require.NoError(t, err)
	require.Empty(t, evts)
	require.Equal(t, []string{"election", "rates"}, next.KeywordTexts())
}

func TestSyncKeywordsRejectsMoreThanLimit(t *testing.T) {
	t.Parallel()

	texts := make([]string, MaxKeywords+1)
	for i := range texts {
		texts[i] = fmt.Sprintf("kw-%d", i)
	}
	_, _, err := newAggregate().SyncKeywords(userWith(), texts)
	require.ErrorIs(t, err, ErrTooManyKeywords)
}

func TestSetKeywordActive(t *testing.T) {
	t.Parallel()

	agg := newAggregate()
	user := userWith("election")

	same, evts, err := agg.SetKeywordActive(user, "election", true)
	require.NoError(t, err)
	require.Empty(t, evts)
	require.Equal(t, user, same)

	next, evts, err := agg.SetKeywordActive(user, "election", false)
	require.NoError(t, err)
	require.False(t, next.Keywords[0].Active)
	require.True(t, user.Keywords[0].Active)
	require.Equal(t, events.UserKeywordActivated{UserID: "u1", Text: "election", Active: false}, evts[0].Payload)

	_, _, err = agg.SetKeywordActive(user, "rates", true)
	require.ErrorIs(t, err, ErrKeywordNotSubscribed)
}

func TestSyncPlatforms(t *testing.T) {
	t.Parallel()

	user := userWith()
	next := newAggregate().SyncPlatforms(user, []string{"naver", "bogus", "GOOGLE", "Naver"})
	require.Equal(t, []news.Platform{news.PlatformNaver, news.PlatformGoogle}, next.Platforms)
	require.Empty(t, user.Platforms)
}
