// Package postgres provides the Postgres-backed news.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const foreignKeyViolation = "23503"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	dbtx
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements news.Store on Postgres. Calls made on the Store itself run
// in autocommit mode; WithinTx hands fn a view bound to one transaction.
type Store struct {
	queries
	pool   Pool
	raw    *pgxpool.Pool
	logger *zap.Logger
}

var (
	_ news.Store = (*Store)(nil)
	_ news.Tx    = queries{}
)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.raw = pool
	return store, nil
}

// NewWithPool builds a store over an existing pool (primarily for testing).
func NewWithPool(pool Pool, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		queries: queries{db: pool},
		pool:    pool,
		logger:  logger.Named("postgres"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() (uint, error) {
	if s.raw == nil {
		return 0, errors.New("migrate: store was not opened from a DSN")
	}
	version, err := Migrate(s.raw)
	if err != nil {
		return 0, err
	}
	s.logger.Info("schema migrated", zap.Uint("version", version))
	return version, nil
}

// WithinTx runs fn in one transaction, committing only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx news.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, queries{db: tx}); err != nil {
		return err
	}
	done = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

type queries struct {
	db dbtx
}

const keywordColumns = `id, text, page_cursor, created_at`

func scanKeyword(row pgx.Row) (news.Keyword, error) {
	var kw news.Keyword
	err := row.Scan(&kw.ID, &kw.Text, &kw.Cursor, &kw.CreatedAt)
	return kw, err
}

func (q queries) FindAllKeywords(ctx context.Context) ([]news.Keyword, error) {
	return q.keywords(ctx, `SELECT `+keywordColumns+` FROM keywords ORDER BY created_at, id`)
}

func (q queries) FindKeywordByText(ctx context.Context, text string) (news.Keyword, error) {
	kw, err := scanKeyword(q.db.QueryRow(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE text = $1`, text))
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Keyword{}, news.ErrKeywordNotFound
	}
	if err != nil {
		return news.Keyword{}, fmt.Errorf("find keyword: %w", err)
	}
	return kw, nil
}

func (q queries) FindKeywordsByTexts(ctx context.Context, texts []string) ([]news.Keyword, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return q.keywords(ctx,
		`SELECT `+keywordColumns+` FROM keywords WHERE text = ANY($1) ORDER BY created_at, id`, texts)
}

func (q queries) keywords(ctx context.Context, sql string, args ...any) ([]news.Keyword, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()
	var out []news.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}
	return out, nil
}

func (q queries) UpdateCursor(ctx context.Context, keyword news.Keyword, expected int) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE keywords SET page_cursor = $1 WHERE id = $2 AND page_cursor = $3`,
		keyword.Cursor, keyword.ID, expected)
	if err != nil {
		return fmt.Errorf("update cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrCursorConflict
	}
	return nil
}

func (q queries) CreateKeyword(ctx context.Context, keyword news.Keyword) error {
	if !keyword.Valid() {
		return fmt.Errorf("invalid keyword %q", keyword.Text)
	}
	tag, err := q.db.Exec(ctx, `
INSERT INTO keywords (id, text, page_cursor, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING`,
		keyword.ID, keyword.Text, keyword.Cursor, keyword.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrKeywordExists
	}
	return nil
}

func (q queries) DeleteKeywords(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM keywords WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	return nil
}

func (q queries) SaveItem(ctx context.Context, item news.Item) (bool, error) {
	tag, err := q.db.Exec(ctx, `
INSERT INTO items (id, keyword_id, platform, title, body, summary, url, content_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (keyword_id, content_hash) DO NOTHING`,
		item.ID,
		item.KeywordID,
		string(item.Platform),
		item.Title,
		item.Body,
		item.Summary,
		item.URL,
		item.ContentHash,
		item.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, fmt.Errorf("save item: %w", news.ErrKeywordNotFound)
		}
		return false, fmt.Errorf("insert item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q queries) FindByKeywordsAndPlatforms(
	ctx context.Context,
	keywordIDs []string,
	platforms []news.Platform,
	page, size int,
) ([]news.Item, error) {
	if len(keywordIDs) == 0 || len(platforms) == 0 || size <= 0 || page < 0 {
		return nil, nil
	}
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, string(p))
	}
	rows, err := q.db.Query(ctx, `
SELECT id, keyword_id, platform, title, body, summary, url, content_hash, created_at
FROM items
WHERE keyword_id = ANY($1) AND platform = ANY($2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`,
		keywordIDs, names, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var out []news.Item
	for rows.Next() {
		var (
			item     news.Item
			platform string
		)
		if err := rows.Scan(
			&item.ID,
			&item.KeywordID,
			&platform,
			&item.Title,
			&item.Body,
			&item.Summary,
			&item.URL,
			&item.ContentHash,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Platform = news.Platform(platform)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func (q queries) CreateUser(ctx context.Context, user news.User) error {
	tag, err := q.db.Exec(ctx, `
INSERT INTO users (id, nickname, created_at)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`,
		user.ID, user.Nickname, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrUserExists
	}
	if err := q.insertUserKeywords(ctx, user.ID, user.Keywords); err != nil {
		return err
	}
	return q.insertUserPlatforms(ctx, user.ID, user.Platforms)
}

func (q queries) FindUser(ctx context.Context, id string) (news.User, error) {
	var user news.User
	err := q.db.QueryRow(ctx, `SELECT id, nickname, created_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Nickname, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.User{}, news.ErrUserNotFound
	}
	if err != nil {
		return news.User{}, fmt.Errorf("find user: %w", err)
	}

	rows, err := q.db.Query(ctx,
		`SELECT text, active, created_at FROM user_keywords WHERE user_id = $1 ORDER BY position`, id)
	if err != nil {
		return news.User{}, fmt.Errorf("query user keywords: %w", err)
	}
	user.Keywords, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (news.UserKeyword, error) {
		var uk news.UserKeyword
		err := row.Scan(&uk.Text, &uk.Active, &uk.CreatedAt)
		return uk, err
	})
	if err != nil {
		return news.User{}, fmt.Errorf("scan user keywords: %w", err)
	}

	rows, err = q.db.Query(ctx,
		`SELECT platform FROM user_platforms WHERE user_id = $1 ORDER BY position`, id)
	if err != nil {
		return news.User{}, fmt.Errorf("query user platforms: %w", err)
	}
	user.Platforms, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (news.Platform, error) {
		var name string
		err := row.Scan(&name)
		return news.Platform(name), err
	})
	if err != nil {
		return news.User{}, fmt.Errorf("scan user platforms: %w", err)
	}
	return user, nil
}

func (q queries) FindUserForUpdate(ctx context.Context, id string) (news.User, error) {
	if err := q.lockUser(ctx, id); err != nil {
		return news.User{}, err
	}
	return q.FindUser(ctx, id)
}

// lockUser serializes subscription writes for one user.
func (q queries) lockUser(ctx context.Context, userID string) error {
	var id string
	err := q.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func (q queries) SaveUserKeywords(ctx context.Context, userID string, keywords []news.UserKeyword) error {
	if err := q.lockUser(ctx, userID); err != nil {
		return err
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM user_keywords WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user keywords: %w", err)
	}
	return q.insertUserKeywords(ctx, userID, keywords)
}

func (q queries) insertUserKeywords(ctx context.Context, userID string, keywords []news.UserKeyword) error {
	for i, uk := range keywords {
		if _, err := q.db.Exec(ctx, `
INSERT INTO user_keywords (user_id, text, active, position, created_at)
VALUES ($1, $2, $3, $4, $5)`,
			userID, uk.Text, uk.Active, i, uk.CreatedAt); err != nil {
			return fmt.Errorf("insert user keyword: %w", err)
		}
	}
	return nil
}

func (q queries) SaveUserPlatforms(ctx context.Context, userID string, platforms []news.Platform) error {
	if err := q.lockUser(ctx, userID); err != nil {
		return err
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM user_platforms WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user platforms: %w", err)
	}
	return q.insertUserPlatforms(ctx, userID, platforms)
}

func (q queries) insertUserPlatforms(ctx context.Context, userID string, platforms []news.Platform) error {
	for i, p := range platforms {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO user_platforms (user_id, platform, position) VALUES ($1, $2, $3)`,
			userID, string(p), i); err != nil {
			return fmt.Errorf("insert user platform: %w", err)
		}
	}
	return nil
}

func (q queries) CountKeywordSubscribers(ctx context.Context, text string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT count(DISTINCT user_id) FROM user_keywords WHERE text = $1`, text).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}
