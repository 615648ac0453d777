package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lovetingyuan/bili-live/internal/db"
)

// Postgres implements Store on the kv_state table through the prepared
// statements registered by package db.
type Postgres struct {
	pool *db.Pool
}

// NewPostgres wraps an open pool. The pool is closed by Close.
func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, key string) (Entry, error) {
	var (
		e   Entry
		rev int64
	)
	err := p.pool.QueryRow(ctx, "kv_get", key).Scan(&e.Value, &rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("kv_get %q: %w", key, err)
	}
	e.Revision = uint64(rev)
	return e, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	var rev int64
	if err := p.pool.QueryRow(ctx, "kv_put", key, value).Scan(&rev); err != nil {
		return 0, fmt.Errorf("kv_put %q: %w", key, err)
	}
	return uint64(rev), nil
}

func (p *Postgres) Swap(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var err error
	var affected int64
	if revision == 0 {
		tag, execErr := p.pool.Exec(ctx, "kv_create", key, value)
		err, affected = execErr, tag.RowsAffected()
	} else {
		tag, execErr := p.pool.Exec(ctx, "kv_swap", key, value, int64(revision))
		err, affected = execErr, tag.RowsAffected()
	}
	if err != nil {
		return 0, fmt.Errorf("swap %q: %w", key, err)
	}
	if affected == 0 {
		return 0, ErrConflict
	}
	return revision + 1, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.HealthCheck(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
