package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModelRegistry(t *testing.T) {
	var evicted []string
	r := NewModelRegistry[int](2, time.Hour, func(key string, _ int) { evicted = append(evicted, key) })

	r.Put("north", 1)
	r.Put("south", 2)
	v, ok := r.Get("north")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	r.Put("east", 3)
	assert.Equal(t, []string{"south"}, evicted)
	_, ok = r.Get("south")
	assert.False(t, ok)

	assert.Equal(t, []string{"north", "east"}, r.Keys())
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Size: 2}, r.Stats())

	assert.True(t, r.Remove("east"))
	assert.Equal(t, 1, r.Stats().Size)
}

func TestModelRegistryExpiry(t *testing.T) {
	r := NewModelRegistry[string](4, 10*time.Millisecond, nil)
	r.Put("k", "v")
	time.Sleep(30 * time.Millisecond)
	_, ok := r.Get("k")
	assert.False(t, ok)
}
