// Package news defines the domain values and capability interfaces shared by
// the collection, subscription and feed subsystems.
package news

import (
	"strings"
	"time"
)

// Keyword is a collection target. Cursor counts the pages already retrieved
// and is the page offset handed to the next fetch.
type Keyword struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Cursor    int       `json:"cursor"`
	CreatedAt time.Time `json:"created_at"`
}

// NewKeyword builds a Keyword with a zero cursor. The text is trimmed; an
// empty result is rejected by the caller via Valid.
func NewKeyword(id, text string, now time.Time) Keyword {
	return Keyword{
		ID:        id,
		Text:      strings.TrimSpace(text),
		CreatedAt: now,
	}
}

// Valid reports whether the keyword can be persisted.
func (k Keyword) Valid() bool {
	return k.ID != "" && k.Text != "" && k.Cursor >= 0
}

// Advanced returns a copy with the cursor moved one page forward.
func (k Keyword) Advanced() Keyword {
	k.Cursor++
	return k
}

// RawItem is what a platform adapter returns before the item is tagged and persisted.
type RawItem struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Item is a persisted news article. Items are append-only.
type Item struct {
	ID          string    `json:"id"`
	KeywordID   string    `json:"keyword_id"`
	Platform    Platform  `json:"platform"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedEntry is one row of a personalized feed.
type FeedEntry struct {
	Item
	// MatchedKeyword is the keyword text the item was collected for.
	MatchedKeyword string `json:"matched_keyword"`
}

// UserKeyword is a user's subscription to a keyword text.
type UserKeyword struct {
	Text      string    `json:"text"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// User owns keyword and platform subscriptions.
type User struct {
	ID        string        `json:"id"`
	Nickname  string        `json:"nickname"`
	Keywords  []UserKeyword `json:"keywords"`
	Platforms []Platform    `json:"platforms"`
	CreatedAt time.Time     `json:"created_at"`
}

// KeywordTexts returns the subscribed keyword texts in subscription order.
func (u User) KeywordTexts() []string {
	out := make([]string, 0, len(u.Keywords))
	for _, kw := range u.Keywords {
		out = append(out, kw.Text)
	}
	return out
}

// Clone returns a deep copy so callers can derive new states without aliasing.
func (u User) Clone() User {
	u.Keywords = append([]UserKeyword(nil), u.Keywords...)
	u.Platforms = append([]Platform(nil), u.Platforms...)
	return u
}
