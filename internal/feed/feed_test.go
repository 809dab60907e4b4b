package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/storage/memory"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	keywords map[string]news.Keyword
	n        int
}

func newFixture(t *testing.T, texts ...string) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), keywords: make(map[string]news.Keyword)}
	for i, text := range texts {
		kw := news.NewKeyword(fmt.Sprintf("kw-%d", i), text, t0)
		require.NoError(t, f.store.CreateKeyword(context.Background(), kw))
		f.keywords[text] = kw
	}
	return f
}

func (f *fixture) item(t *testing.T, text string, platform news.Platform, age time.Duration) news.Item {
	t.Helper()
	f.n++
	item := news.Item{
		ID:          fmt.Sprintf("item-%d", f.n),
		KeywordID:   f.keywords[text].ID,
		Platform:    platform,
		Title:       fmt.Sprintf("%s %d", text, f.n),
		URL:         fmt.Sprintf("https://news.example/%d", f.n),
		ContentHash: fmt.Sprintf("h%d", f.n),
		CreatedAt:   t0.Add(-age),
	}
	_, err := f.store.SaveItem(context.Background(), item)
	require.NoError(t, err)
	return item
}

func (f *fixture) user(t *testing.T, id string, platforms []news.Platform, texts ...string) {
	t.Helper()
	u := news.User{ID: id, Nickname: id, Platforms: platforms}
	for _, text := range texts {
		u.Keywords = append(u.Keywords, news.UserKeyword{Text: text, Active: true})
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
}

func ids(entries []news.FeedEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestGetFeedFiltersByKeywordAndPlatform(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "election", "rates", "chips")
	a := f.item(t, "election", news.PlatformNaver, 3*time.Minute)
	b := f.item(t, "rates", news.PlatformGoogle, time.Minute)
	f.item(t, "rates", news.PlatformDaum, 0)
	f.item(t, "chips", news.PlatformNaver, 0)
	f.user(t, "u1", []news.Platform{news.PlatformNaver, news.PlatformGoogle}, "election", "rates", "unknown")

	got, err := New(f.store, nil).GetFeed(context.Background(), "u1", 0, 10)
	require.NoError(t, err)
	require.Equal(t, []string{b.ID, a.ID}, ids(got))
	require.Equal(t, "rates", got[0].MatchedKeyword)
	require.Equal(t, "election", got[1].MatchedKeyword)
}

func TestGetFeedPaginates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "election")
	var want []string
	for i := range 5 {
		item := f.item(t, "election", news.PlatformNaver, time.Duration(i)*time.Minute)
		want = append(want, item.ID)
	}
	f.user(t, "u1", []news.Platform{news.PlatformNaver}, "election")
	q := New(f.store, nil)

	first, err := q.GetFeed(context.Background(), "u1", 0, 2)
	require.NoError(t, err)
	require.Equal(t, want[:2], ids(first))

	last, err := q.GetFeed(context.Background(), "u1", 2, 2)
	require.NoError(t, err)
	require.Equal(t, want[4:], ids(last))

	past, err := q.GetFeed(context.Background(), "u1", 3, 2)
	require.NoError(t, err)
	require.Empty(t, past)
}

func TestGetFeedEmptySetsYieldEmptyPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "election")
	f.item(t, "election", news.PlatformNaver, 0)
	f.user(t, "no-platforms", nil, "election")
	f.user(t, "no-keywords", []news.Platform{news.PlatformNaver})
	f.user(t, "no-match", []news.Platform{news.PlatformNaver}, "budget")
	q := New(f.store, nil)

	for _, id := range []string{"no-platforms", "no-keywords", "no-match"} {
		got, err := q.GetFeed(context.Background(), id, 0, 10)
		require.NoError(t, err, id)
		require.NotNil(t, got, id)
		require.Empty(t, got, id)
	}
}

func TestGetFeedErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "election")
	f.user(t, "u1", []news.Platform{news.PlatformNaver}, "election")
	q := New(f.store, nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		page, size int
	}{
		{name: "negative page", page: -1, size: 10},
		{name: "zero size", page: 0, size: 0},
		{name: "oversized", page: 0, size: MaxPageSize + 1},
	}
	for _, tc := range tests {
		_, err := q.GetFeed(ctx, "u1", tc.page, tc.size)
		require.ErrorIs(t, err, ErrInvalidPage, tc.name)
	}

	_, err := q.GetFeed(ctx, "ghost", 0, 10)
	require.ErrorIs(t, err, news.ErrUserNotFound)

	boom := errors.New("connection reset")
	f.store.FailOn("FindByKeywordsAndPlatforms", boom)
	_, err = q.GetFeed(ctx, "u1", 0, 10)
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, boom)
}
