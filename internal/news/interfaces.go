package news

import (
	"context"
	"io"
	"time"
)

// KeywordStore persists keyword records.
type KeywordStore interface {
	FindAllKeywords(ctx context.Context) ([]Keyword, error)
	// FindKeywordByText returns ErrKeywordNotFound when absent.
	FindKeywordByText(ctx context.Context, text string) (Keyword, error)
	// FindKeywordsByTexts returns the stored keywords whose text is in texts.
	FindKeywordsByTexts(ctx context.Context, texts []string) ([]Keyword, error)
	// UpdateCursor stores keyword.Cursor only if the stored cursor still equals
	// expected; otherwise it returns ErrCursorConflict.
	UpdateCursor(ctx context.Context, keyword Keyword, expected int) error
	// CreateKeyword returns ErrKeywordExists when the text is taken.
	CreateKeyword(ctx context.Context, keyword Keyword) error
	// DeleteKeywords removes keywords and their items.
	DeleteKeywords(ctx context.Context, ids []string) error
}

// ItemStore persists collected items.
type ItemStore interface {
	// SaveItem reports false when an item with the same keyword and content
	// hash already exists.
	SaveItem(ctx context.Context, item Item) (bool, error)
	// FindByKeywordsAndPlatforms returns items newest first.
	FindByKeywordsAndPlatforms(
		ctx context.Context,
		keywordIDs []string,
		platforms []Platform,
		page int,
		size int,
	) ([]Item, error)
}

// UserStore persists users and their subscription edges.
type UserStore interface {
	// CreateUser returns ErrUserExists for a duplicate id.
	CreateUser(ctx context.Context, user User) error
	// FindUser returns ErrUserNotFound when absent.
	FindUser(ctx context.Context, id string) (User, error)
	// FindUserForUpdate is FindUser that first locks the user for the rest of
	// the enclosing transaction, so read-modify-write cycles cannot interleave.
	FindUserForUpdate(ctx context.Context, id string) (User, error)
	SaveUserKeywords(ctx context.Context, userID string, keywords []UserKeyword) error
	SaveUserPlatforms(ctx context.Context, userID string, platforms []Platform) error
	CountKeywordSubscribers(ctx context.Context, text string) (int, error)
}

// Tx is the set of repositories available inside a unit of work.
type Tx interface {
	KeywordStore
	ItemStore
	UserStore
}

// Store is the persistence capability. Reads outside WithinTx see committed
// state only; writes inside fn commit together or not at all.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// PlatformSource is one pluggable news source.
type PlatformSource interface {
	Platform() Platform
	Enabled() bool
	// Fetch returns up to size items for the page at offset.
	Fetch(ctx context.Context, keyword string, offset, size int) ([]RawItem, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
