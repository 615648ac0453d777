// Package store persists the small named blobs the checker carries between
// cycles: the tracked ID list and the last-known live set.
//
// Every backend stores opaque bytes under a key together with a revision that
// increases on each write. Swap performs a compare-and-set on that revision so
// two overlapping cycles cannot silently overwrite each other.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned by Swap when the stored revision moved on.
	ErrConflict = errors.New("store: revision conflict")
)

// Entry is a stored value and the revision it was read at.
type Entry struct {
	Value    []byte
	Revision uint64
}

// Store is the key-value contract every backend implements.
type Store interface {
	// Get returns the current entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Put writes value unconditionally and returns the new revision.
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	// Swap writes value only if the stored revision equals revision.
	// Revision 0 means the key must not exist yet.
	Swap(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value stored under key into a T. When the key is
// absent, def is returned with revision 0 and nothing is written.
func GetJSON[T any](ctx context.Context, s Store, key string, def T) (T, uint64, error) {
	entry, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, 0, nil
	}
	if err != nil {
		return def, 0, fmt.Errorf("get %q: %w", key, err)
	}

	var out T
	if err := json.Unmarshal(entry.Value, &out); err != nil {
		return def, 0, fmt.Errorf("decode %q: %w", key, err)
	}
	return out, entry.Revision, nil
}

// PutJSON encodes v and writes it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %q: %w", key, err)
	}
	rev, err := s.Put(ctx, key, data)
	if err != nil {
		return 0, fmt.Errorf("put %q: %w", key, err)
	}
	return rev, nil
}

// SwapJSON encodes v and writes it under key if revision still matches.
func SwapJSON(ctx context.Context, s Store, key string, v any, revision uint64) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %q: %w", key, err)
	}
	rev, err := s.Swap(ctx, key, data, revision)
	if err != nil {
		return 0, fmt.Errorf("swap %q: %w", key, err)
	}
	return rev, nil
}

// GetString returns a raw string value, or def when the key is absent.
func GetString(ctx context.Context, s Store, key, def string) (string, error) {
	entry, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get %q: %w", key, err)
	}
	return string(entry.Value), nil
}
