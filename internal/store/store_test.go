package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			rev, err := s.Put(ctx, "k", []byte("one"))
			require.NoError(t, err)
			assert.Equal(t, uint64(1), rev)

			rev, err = s.Put(ctx, "k", []byte("two"))
			require.NoError(t, err)
			assert.Equal(t, uint64(2), rev)

			e, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "two", string(e.Value))
			assert.Equal(t, uint64(2), e.Revision)

			require.NoError(t, s.Ping(ctx))
		})
	}
}

func TestStoreSwap(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			rev, err := s.Swap(ctx, "k", []byte("a"), 0)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), rev)

			_, err = s.Swap(ctx, "k", []byte("b"), 0)
			require.ErrorIs(t, err, ErrConflict, "create must fail once the key exists")

			rev, err = s.Swap(ctx, "k", []byte("b"), 1)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), rev)

			_, err = s.Swap(ctx, "k", []byte("stale"), 1)
			require.ErrorIs(t, err, ErrConflict)

			e, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "b", string(e.Value))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	type record struct {
		Name string `json:"name"`
	}

	ctx := t.Context()
	s := NewMemory()

	got, rev, err := GetJSON(ctx, s, "rec", map[string]record{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, rev)

	_, err = s.Get(ctx, "rec")
	require.ErrorIs(t, err, ErrNotFound, "reading a default must not write it")

	_, err = PutJSON(ctx, s, "rec", map[string]record{"1": {Name: "a"}})
	require.NoError(t, err)

	got, rev, err = GetJSON(ctx, s, "rec", map[string]record{})
	require.NoError(t, err)
	assert.Equal(t, map[string]record{"1": {Name: "a"}}, got)
	assert.Equal(t, uint64(1), rev)

	_, err = SwapJSON(ctx, s, "rec", map[string]record{}, 0)
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.Put(ctx, "bad", []byte("{"))
	require.NoError(t, err)
	_, _, err = GetJSON(ctx, s, "bad", map[string]record{})
	require.Error(t, err)
}

func TestGetString(t *testing.T) {
	ctx := t.Context()
	s := NewMemory()

	v, err := GetString(ctx, s, "up_ids", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	_, err = s.Put(ctx, "up_ids", []byte("1,2"))
	require.NoError(t, err)

	v, err = GetString(ctx, s, "up_ids", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "1,2", v)
}
