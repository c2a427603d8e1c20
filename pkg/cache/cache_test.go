package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New[string](ttl)
	c.now = clock.now
	return c, clock
}

func TestCache_GetSetExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	clock.t = clock.t.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry must expire exactly at its ttl")
}

func TestCache_SetWithTTLOverridesDefault(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.SetWithTTL("short", "x", time.Second)
	c.Set("long", "y")

	clock.t = clock.t.Add(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("long")
	assert.True(t, ok)
}

func TestCache_GetOrSet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := c.GetOrSet("k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)

	v, err = c.GetOrSet("k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrSetDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrSet("k", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Size())
}

func TestCache_InvalidatePrefixAndPrune(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("room:list", "a")
	c.Set("room:create", "b")
	c.SetWithTTL("other", "c", time.Second)

	c.InvalidatePrefix("room:")
	assert.Equal(t, 1, c.Size())

	clock.t = clock.t.Add(time.Hour)
	assert.Equal(t, 1, c.Prune())
	assert.Equal(t, 0, c.Size())
}
