package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS markdown_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS markdown_cache_expires_at ON markdown_cache (expires_at);
`

// SQLite is a Store that survives restarts. expires_at is a unix
// millisecond timestamp; 0 never expires.
type SQLite struct {
	db         *sql.DB
	maxEntries int

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// OpenSQLite opens (or creates) the cache database at path.
// Use ":memory:" for a throwaway database.
//
// A background goroutine runs every 5 minutes until Close is called. It
// deletes expired rows and, when maxEntries > 0, the oldest rows beyond
// maxEntries.
func OpenSQLite(ctx context.Context, path string, maxEntries int) (*SQLite, error) {
	s, err := openSQLite(ctx, path, maxEntries, time.Now)
	if err != nil {
		return nil, err
	}
	go s.cleanupLoop(5 * time.Minute)
	return s, nil
}

func openSQLite(ctx context.Context, path string, maxEntries int, now func() time.Time) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLite{
		db:         db,
		maxEntries: maxEntries,
		now:        now,
		stop:       make(chan struct{}),
	}, nil
}

// Get returns the value stored under key if it exists and has not expired.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM markdown_cache WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if expiresAt != 0 && s.now().UnixMilli() > expiresAt {
		return "", false, nil
	}
	return value, true, nil
}

// Put upserts value under key.
func (s *SQLite) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markdown_cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache put %q: %w", key, err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM markdown_cache WHERE expires_at != 0 AND expires_at < ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Trim deletes the oldest rows beyond maxEntries and returns how many were
// removed. It is a no-op when maxEntries <= 0.
func (s *SQLite) Trim(ctx context.Context) (int64, error) {
	if s.maxEntries <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM markdown_cache WHERE rowid IN (
			SELECT rowid FROM markdown_cache ORDER BY rowid DESC LIMIT -1 OFFSET ?
		)`, s.maxEntries,
	)
	if err != nil {
		return 0, fmt.Errorf("cache trim: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored rows, expired or not.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markdown_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return n, nil
}

// Close stops the cleanup goroutine and closes the underlying database.
func (s *SQLite) Close() error {
	s.once.Do(func() { close(s.stop) })
	return s.db.Close()
}

func (s *SQLite) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SQLite) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.Purge(ctx)
	if err != nil {
		slog.Warn("sqlite cache purge failed", "error", err)
		return
	}
	trimmed, err := s.Trim(ctx)
	if err != nil {
		slog.Warn("sqlite cache trim failed", "error", err)
		return
	}
	if expired+trimmed > 0 {
		slog.Debug("sqlite cache swept", "expired", expired, "trimmed", trimmed)
	}
}
