// Package memory provides in-memory implementations of the persistence and
// blob capabilities for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

type state struct {
	keywords map[string]news.Keyword
	byText   map[string]string
	items    []news.Item
	itemKeys map[string]struct{}
	users    map[string]news.User
}

func newState() *state {
	return &state{
		keywords: make(map[string]news.Keyword),
		byText:   make(map[string]string),
		itemKeys: make(map[string]struct{}),
		users:    make(map[string]news.User),
	}
}

func (s *state) clone() *state {
	out := &state{
		keywords: make(map[string]news.Keyword, len(s.keywords)),
		byText:   make(map[string]string, len(s.byText)),
		items:    slices.Clone(s.items),
		itemKeys: make(map[string]struct{}, len(s.itemKeys)),
		users:    make(map[string]news.User, len(s.users)),
	}
	for k, v := range s.keywords {
		out.keywords[k] = v
	}
	for k, v := range s.byText {
		out.byText[k] = v
	}
	for k := range s.itemKeys {
		out.itemKeys[k] = struct{}{}
	}
	for k, v := range s.users {
		out.users[k] = v.Clone()
	}
	return out
}

// Store is an in-memory news.Store. Transactions run serially against a copy
// of the state that replaces the committed state only when fn succeeds.
type Store struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	state  *state
	writes int
	fail   map[string]error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{state: newState(), fail: make(map[string]error)}
}

var (
	_ news.Store = (*Store)(nil)
	_ news.Tx    = (*view)(nil)
)

// FailOn makes every later call of op return err. A nil err clears it.
// Ops are the method names, e.g. "SaveItem" or "UpdateCursor".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Writes counts write calls, committed or not.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Items returns every committed item in insertion order.
func (s *Store) Items() []news.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.items)
}

// WithinTx implements news.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx news.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &view{store: s, state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// Ping implements news.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements news.Store.
func (s *Store) Close() {}

// Writes outside WithinTx commit immediately.
func (s *Store) autocommit(ctx context.Context, fn func(v *view) error) error {
	return s.WithinTx(ctx, func(_ context.Context, tx news.Tx) error {
		return fn(tx.(*view))
	})
}

// snapshot returns a read view of the committed state. Committed states are
// never mutated, so the view stays valid without holding the lock.
func (s *Store) snapshot(op string) (*view, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail[op]; err != nil {
		return nil, err
	}
	return &view{store: s, state: s.state}, nil
}

// FindAllKeywords implements news.KeywordStore.
func (s *Store) FindAllKeywords(ctx context.Context) ([]news.Keyword, error) {
	v, err := s.snapshot("FindAllKeywords")
	if err != nil {
		return nil, err
	}
	return v.findAllKeywords(ctx)
}

// FindKeywordByText implements news.KeywordStore.
func (s *Store) FindKeywordByText(ctx context.Context, text string) (news.Keyword, error) {
	v, err := s.snapshot("FindKeywordByText")
	if err != nil {
		return news.Keyword{}, err
	}
	return v.findKeywordByText(ctx, text)
}

// FindKeywordsByTexts implements news.KeywordStore.
func (s *Store) FindKeywordsByTexts(ctx context.Context, texts []string) ([]news.Keyword, error) {
	v, err := s.snapshot("FindKeywordsByTexts")
	if err != nil {
		return nil, err
	}
	return v.findKeywordsByTexts(ctx, texts)
}

// UpdateCursor implements news.KeywordStore.
func (s *Store) UpdateCursor(ctx context.Context, keyword news.Keyword, expected int) error {
	return s.autocommit(ctx, func(v *view) error { return v.UpdateCursor(ctx, keyword, expected) })
}

// CreateKeyword implements news.KeywordStore.
func (s *Store) CreateKeyword(ctx context.Context, keyword news.Keyword) error {
	return s.autocommit(ctx, func(v *view) error { return v.CreateKeyword(ctx, keyword) })
}

// DeleteKeywords implements news.KeywordStore.
func (s *Store) DeleteKeywords(ctx context.Context, ids []string) error {
	return s.autocommit(ctx, func(v *view) error { return v.DeleteKeywords(ctx, ids) })
}

// SaveItem implements news.ItemStore.
func (s *Store) SaveItem(ctx context.Context, item news.Item) (bool, error) {
	var created bool
	err := s.autocommit(ctx, func(v *view) error {
		var err error
		created, err = v.SaveItem(ctx, item)
		return err
	})
	return created, err
}

// FindByKeywordsAndPlatforms implements news.ItemStore.
func (s *Store) FindByKeywordsAndPlatforms(
	ctx context.Context,
	keywordIDs []string,
	platforms []news.Platform,
	page, size int,
) ([]news.Item, error) {
	v, err := s.snapshot("FindByKeywordsAndPlatforms")
	if err != nil {
		return nil, err
	}
	return v.findByKeywordsAndPlatforms(ctx, keywordIDs, platforms, page, size)
}

// CreateUser implements news.UserStore.
func (s *Store) CreateUser(ctx context.Context, user news.User) error {
	return s.autocommit(ctx, func(v *view) error { return v.CreateUser(ctx, user) })
}

// FindUser implements news.UserStore.
func (s *Store) FindUser(ctx context.Context, id string) (news.User, error) {
	v, err := s.snapshot("FindUser")
	if err != nil {
		return news.User{}, err
	}
	return v.findUser(ctx, id)
}

// FindUserForUpdate implements news.UserStore. Outside a transaction there
// is nothing to lock.
func (s *Store) FindUserForUpdate(ctx context.Context, id string) (news.User, error) {
	v, err := s.snapshot("FindUserForUpdate")
	if err != nil {
		return news.User{}, err
	}
	return v.findUser(ctx, id)
}

// SaveUserKeywords implements news.UserStore.
func (s *Store) SaveUserKeywords(ctx context.Context, userID string, keywords []news.UserKeyword) error {
	return s.autocommit(ctx, func(v *view) error { return v.SaveUserKeywords(ctx, userID, keywords) })
}

// SaveUserPlatforms implements news.UserStore.
func (s *Store) SaveUserPlatforms(ctx context.Context, userID string, platforms []news.Platform) error {
	return s.autocommit(ctx, func(v *view) error { return v.SaveUserPlatforms(ctx, userID, platforms) })
}

// CountKeywordSubscribers implements news.UserStore.
func (s *Store) CountKeywordSubscribers(ctx context.Context, text string) (int, error) {
	v, err := s.snapshot("CountKeywordSubscribers")
	if err != nil {
		return 0, err
	}
	return v.countKeywordSubscribers(ctx, text)
}

// view is a news.Tx over one state. A transaction's view owns its state
// exclusively; a snapshot view only reads.
type view struct {
	store *Store
	state *state
}

func (v *view) check(op string, write bool) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if write {
		v.store.writes++
	}
	return v.store.fail[op]
}

func (v *view) FindAllKeywords(ctx context.Context) ([]news.Keyword, error) {
	if err := v.check("FindAllKeywords", false); err != nil {
		return nil, err
	}
	return v.findAllKeywords(ctx)
}

func (v *view) findAllKeywords(context.Context) ([]news.Keyword, error) {
	out := make([]news.Keyword, 0, len(v.state.keywords))
	for _, kw := range v.state.keywords {
		out = append(out, kw)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) FindKeywordByText(ctx context.Context, text string) (news.Keyword, error) {
	if err := v.check("FindKeywordByText", false); err != nil {
		return news.Keyword{}, err
	}
	return v.findKeywordByText(ctx, text)
}

func (v *view) findKeywordByText(_ context.Context, text string) (news.Keyword, error) {
	id, ok := v.state.byText[text]
	if !ok {
		return news.Keyword{}, news.ErrKeywordNotFound
	}
	return v.state.keywords[id], nil
}

func (v *view) FindKeywordsByTexts(ctx context.Context, texts []string) ([]news.Keyword, error) {
	if err := v.check("FindKeywordsByTexts", false); err != nil {
		return nil, err
	}
	return v.findKeywordsByTexts(ctx, texts)
}

func (v *view) findKeywordsByTexts(_ context.Context, texts []string) ([]news.Keyword, error) {
	out := make([]news.Keyword, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))
	for _, text := range texts {
		id, ok := v.state.byText[text]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, v.state.keywords[id])
	}
	return out, nil
}

func (v *view) UpdateCursor(_ context.Context, keyword news.Keyword, expected int) error {
	if err := v.check("UpdateCursor", true); err != nil {
		return err
	}
	stored, ok := v.state.keywords[keyword.ID]
	if !ok {
		return news.ErrKeywordNotFound
	}
	if stored.Cursor != expected || keyword.Cursor < expected {
		return news.ErrCursorConflict
	}
	stored.Cursor = keyword.Cursor
	v.state.keywords[keyword.ID] = stored
	return nil
}

func (v *view) CreateKeyword(_ context.Context, keyword news.Keyword) error {
	if err := v.check("CreateKeyword", true); err != nil {
		return err
	}
	if !keyword.Valid() {
		return fmt.Errorf("invalid keyword %q", keyword.Text)
	}
	if _, ok := v.state.byText[keyword.Text]; ok {
		return news.ErrKeywordExists
	}
	if _, ok := v.state.keywords[keyword.ID]; ok {
		return news.ErrKeywordExists
	}
	v.state.keywords[keyword.ID] = keyword
	v.state.byText[keyword.Text] = keyword.ID
	return nil
}

func (v *view) DeleteKeywords(_ context.Context, ids []string) error {
	if err := v.check("DeleteKeywords", true); err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		kw, ok := v.state.keywords[id]
		if !ok {
			continue
		}
		drop[id] = struct{}{}
		delete(v.state.keywords, id)
		delete(v.state.byText, kw.Text)
	}
	if len(drop) == 0 {
		return nil
	}
	kept := v.state.items[:0:0]
	for _, item := range v.state.items {
		if _, gone := drop[item.KeywordID]; gone {
			delete(v.state.itemKeys, itemKey(item))
			continue
		}
		kept = append(kept, item)
	}
	v.state.items = kept
	return nil
}

func itemKey(item news.Item) string {
	return item.KeywordID + "\x00" + item.ContentHash
}

func (v *view) SaveItem(_ context.Context, item news.Item) (bool, error) {
	if err := v.check("SaveItem", true); err != nil {
		return false, err
	}
	if _, ok := v.state.keywords[item.KeywordID]; !ok {
		return false, fmt.Errorf("save item: %w", news.ErrKeywordNotFound)
	}
	key := itemKey(item)
	if _, dup := v.state.itemKeys[key]; dup {
		return false, nil
	}
	v.state.itemKeys[key] = struct{}{}
	v.state.items = append(v.state.items, item)
	return true, nil
}

func (v *view) FindByKeywordsAndPlatforms(
	ctx context.Context,
	keywordIDs []string,
	platforms []news.Platform,
	page, size int,
) ([]news.Item, error) {
	if err := v.check("FindByKeywordsAndPlatforms", false); err != nil {
		return nil, err
	}
	return v.findByKeywordsAndPlatforms(ctx, keywordIDs, platforms, page, size)
}

func (v *view) findByKeywordsAndPlatforms(
	_ context.Context,
	keywordIDs []string,
	platforms []news.Platform,
	page, size int,
) ([]news.Item, error) {
	if len(keywordIDs) == 0 || len(platforms) == 0 || size <= 0 || page < 0 {
		return nil, nil
	}
	matched := make([]int, 0)
	for i, item := range v.state.items {
		if slices.Contains(keywordIDs, item.KeywordID) && slices.Contains(platforms, item.Platform) {
			matched = append(matched, i)
		}
	}
	// Newest first; later inserts win ties.
	sort.SliceStable(matched, func(a, b int) bool {
		ia, ib := v.state.items[matched[a]], v.state.items[matched[b]]
		if !ia.CreatedAt.Equal(ib.CreatedAt) {
			return ia.CreatedAt.After(ib.CreatedAt)
		}
		return matched[a] > matched[b]
	})
	start := page * size
	if start >= len(matched) {
		return nil, nil
	}
	end := min(start+size, len(matched))
	out := make([]news.Item, 0, end-start)
	for _, idx := range matched[start:end] {
		out = append(out, v.state.items[idx])
	}
	return out, nil
}

func (v *view) CreateUser(_ context.Context, user news.User) error {
	if err := v.check("CreateUser", true); err != nil {
		return err
	}
	if _, ok := v.state.users[user.ID]; ok {
		return news.ErrUserExists
	}
	v.state.users[user.ID] = user.Clone()
	return nil
}

func (v *view) FindUser(ctx context.Context, id string) (news.User, error) {
	if err := v.check("FindUser", false); err != nil {
		return news.User{}, err
	}
	return v.findUser(ctx, id)
}

// FindUserForUpdate needs no lock: WithinTx already runs one unit at a time.
func (v *view) FindUserForUpdate(ctx context.Context, id string) (news.User, error) {
	if err := v.check("FindUserForUpdate", false); err != nil {
		return news.User{}, err
	}
	return v.findUser(ctx, id)
}

func (v *view) findUser(_ context.Context, id string) (news.User, error) {
	user, ok := v.state.users[id]
	if !ok {
		return news.User{}, news.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (v *view) SaveUserKeywords(_ context.Context, userID string, keywords []news.UserKeyword) error {
	if err := v.check("SaveUserKeywords", true); err != nil {
		return err
	}
	user, ok := v.state.users[userID]
	if !ok {
		return news.ErrUserNotFound
	}
	user.Keywords = slices.Clone(keywords)
	v.state.users[userID] = user
	return nil
}

func (v *view) SaveUserPlatforms(_ context.Context, userID string, platforms []news.Platform) error {
	if err := v.check("SaveUserPlatforms", true); err != nil {
		return err
	}
	user, ok := v.state.users[userID]
	if !ok {
		return news.ErrUserNotFound
	}
	user.Platforms = slices.Clone(platforms)
	v.state.users[userID] = user
	return nil
}

func (v *view) CountKeywordSubscribers(ctx context.Context, text string) (int, error) {
	if err := v.check("CountKeywordSubscribers", false); err != nil {
		return 0, err
	}
	return v.countKeywordSubscribers(ctx, text)
}

func (v *view) countKeywordSubscribers(_ context.Context, text string) (int, error) {
	n := 0
	for _, user := range v.state.users {
		for _, kw := range user.Keywords {
			if kw.Text == text {
				n++
				break
			}
		}
	}
	return n, nil
}
