package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite implements Store on a single-file SQLite database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the kv_state table at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps ":memory:" databases on a single connection and
	// serialises revision bumps.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv_state (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		revision INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		"SELECT value, revision FROM kv_state WHERE key = ?", key,
	).Scan(&e.Value, &e.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("select %q: %w", key, err)
	}
	return e, nil
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	var rev uint64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kv_state (key, value, revision, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			revision = kv_state.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`,
		key, value, time.Now().Unix(),
	).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("upsert %q: %w", key, err)
	}
	return rev, nil
}

func (s *SQLite) Swap(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var (
		res sql.Result
		err error
	)
	if revision == 0 {
		res, err = s.db.ExecContext(ctx,
			"INSERT INTO kv_state (key, value, revision, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT(key) DO NOTHING",
			key, value, time.Now().Unix())
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE kv_state SET value = ?, revision = revision + 1, updated_at = ? WHERE key = ? AND revision = ?",
			value, time.Now().Unix(), key, revision)
	}
	if err != nil {
		return 0, fmt.Errorf("swap %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("swap %q: %w", key, err)
	}
	if n == 0 {
		return 0, ErrConflict
	}
	return revision + 1, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
