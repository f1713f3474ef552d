// Package sqlite provides a SQLite-backed visitor state store.
//
// It exists for hosts where assignments must survive process restarts;
// the in-memory store remains the default. Semantics match
// repository.Store: expired rows are never returned and are reaped by
// a background janitor.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/cohort/internal/adapters/repository"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Default store configuration constants.
const (
	defaultJanitorInterval = 5 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS visitor_state (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visitor_state_expires_at ON visitor_state (expires_at);
`

// Store persists visitor state in SQLite.
type Store struct {
	sqlDB *sql.DB

	janitorInterval time.Duration
	now             func() time.Time
	stopCh          chan struct{}
	doneCh          chan struct{}
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithJanitorInterval sets how often expired rows are deleted.
func WithJanitorInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.janitorInterval = interval
		}
	}
}

// WithNowFunc overrides the store clock for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite visitor state store and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		sqlDB:           sqlDB,
		janitorInterval: defaultJanitorInterval,
		now:             time.Now,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	go s.janitor()

	return s, nil
}

// Close stops the janitor and closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh
	return s.sqlDB.Close()
}

// Set writes value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return repository.ErrInvalidTTL
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO visitor_state (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key,
		url.QueryEscape(value),
		toMillis(s.now().Add(ttl)),
	)
	if err != nil {
		return fmt.Errorf("set visitor state: %w", err)
	}
	return nil
}

// Get returns the live value under key, or repository.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT value FROM visitor_state WHERE key = ? AND expires_at > ?`,
		key,
		toMillis(s.now()),
	)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("get visitor state: %w", err)
	}

	decoded, err := url.QueryUnescape(value)
	if err != nil {
		// Corrupt row: drop it so the caller re-creates state.
		_, _ = s.sqlDB.ExecContext(ctx, `DELETE FROM visitor_state WHERE key = ?`, key)
		return "", repository.ErrNotFound
	}
	return decoded, nil
}

// Remove deletes the key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM visitor_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove visitor state: %w", err)
	}
	return nil
}

// Keys returns all live keys with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT key FROM visitor_state
		  WHERE key LIKE ? ESCAPE '\' AND expires_at > ?
		  ORDER BY key ASC`,
		escaped+"%",
		toMillis(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("list visitor state keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list visitor state keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visitor state keys: %w", err)
	}
	return keys, nil
}

// Len returns the number of live entries.
func (s *Store) Len(ctx context.Context) int {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM visitor_state WHERE expires_at > ?`,
		toMillis(s.now()),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0
	}
	return n
}

// janitor periodically deletes expired rows.
func (s *Store) janitor() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			_, _ = s.sqlDB.Exec(`DELETE FROM visitor_state WHERE expires_at <= ?`, toMillis(s.now()))
		}
	}
}

var _ repository.Store = (*Store)(nil)
