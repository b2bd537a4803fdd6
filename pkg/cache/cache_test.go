package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Entity string    `json:"entity"`
	Points []float64 `json:"points"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", payload{Entity: "north", Points: []float64{1, 2}}, time.Minute))
	var got payload
	require.NoError(t, c.Get(ctx, "a", &got))
	assert.Equal(t, "north", got.Entity)
	assert.Equal(t, []float64{1, 2}, got.Points)

	var missing payload
	assert.ErrorIs(t, c.Get(ctx, "nope", &missing), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "b", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "c", "y", time.Minute))
	assert.Equal(t, 2, c.Len())
	ok, _ := c.Exists(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var s string
	assert.ErrorIs(t, c.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	ok, err := c.TryLock(ctx, "entity", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = c.TryLock(ctx, "entity", time.Minute)
	assert.False(t, ok)
	require.NoError(t, c.Unlock(ctx, "entity"))
	ok, _ = c.TryLock(ctx, "entity", time.Minute)
	assert.True(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Entity: "east"}, nil
	}

	v, hit, err := GetOrLoad(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "east", v.Entity)

	v, hit, err = GetOrLoad(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "east", v.Entity)
	assert.Equal(t, 1, calls)

	_, _, err = GetOrLoad(ctx, nil, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{}, errors.New("down")
	})
	assert.EqualError(t, err, "down")
}

func TestHashKey(t *testing.T) {
	assert.Len(t, HashKey("forecast:north:30"), 16)
	assert.Equal(t, HashKey("a"), HashKey("a"))
	assert.NotEqual(t, HashKey("a"), HashKey("b"))
}
