package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetExpire(t *testing.T) {
	c := New(true)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	etag := c.Set("inspect", []byte(`{"a":1}`), time.Minute)
	data, got, ok := c.Get("inspect")
	assert.True(t, ok)
	assert.Equal(t, etag, got)
	assert.JSONEq(t, `{"a":1}`, string(data))

	now = now.Add(2 * time.Minute)
	_, _, ok = c.Get("inspect")
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := New(true)
	c.Set("inspect", []byte("x"), time.Minute)
	c.Invalidate("inspect")
	_, _, ok := c.Get("inspect")
	assert.False(t, ok)
}

func TestDisabledCache(t *testing.T) {
	c := New(false)
	etag := c.Set("k", []byte("x"), time.Minute)
	assert.Equal(t, ComputeETag([]byte("x")), etag)
	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("x"))
	assert.True(t, CheckETagMatch(etag, etag))
	assert.True(t, CheckETagMatch("*", etag))
	assert.False(t, CheckETagMatch("", etag))
	assert.False(t, CheckETagMatch(`W/"other"`, etag))
}
