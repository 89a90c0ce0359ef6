package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	secure     INTEGER NOT NULL DEFAULT 0
)`

// SQLiteBackend persists entries in a single SQLite table. expires_at is unix
// milliseconds; zero means no expiry. Expired rows are purged on read.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	b, err := NewSQLiteBackend(ctx, db, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLiteBackend wraps an open database and ensures the schema exists.
func NewSQLiteBackend(ctx context.Context, db *sql.DB, now func() time.Time) (*SQLiteBackend, error) {
	if db == nil {
		return nil, errors.New("sqlite backend requires a database")
	}
	if now == nil {
		now = time.Now
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &SQLiteBackend{db: db, now: now}, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt int64
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM credentials WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if expiresAt > 0 && b.now().UnixMilli() >= expiresAt {
		if _, err := b.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return "", false, nil
	}
	return value, true, nil
}

func (b *SQLiteBackend) SetMany(ctx context.Context, entries map[string]Entry) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := b.now()
	for key, e := range entries {
		var expiresAt int64
		if e.TTL > 0 {
			expiresAt = now.Add(e.TTL).UnixMilli()
		}
		secure := 0
		if e.Secure {
			secure = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO credentials (key, value, expires_at, secure) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, secure = excluded.secure`,
			key, e.Value, expiresAt, secure,
		); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Secure reports the secure flag recorded for key.
func (b *SQLiteBackend) Secure(ctx context.Context, key string) (bool, error) {
	var secure int
	err := b.db.QueryRowContext(ctx, `SELECT secure FROM credentials WHERE key = ?`, key).Scan(&secure)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return secure == 1, nil
}

// Close closes the underlying database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
