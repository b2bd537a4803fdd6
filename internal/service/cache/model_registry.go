package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Stats counts registry lookups.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// ModelRegistry keeps the most recently fitted models per key, evicting the
// least recently used beyond size and anything older than ttl.
type ModelRegistry[V any] struct {
	lru    *expirable.LRU[string, V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewModelRegistry creates a registry. onEvict may be nil.
func NewModelRegistry[V any](size int, ttl time.Duration, onEvict func(key string, v V)) *ModelRegistry[V] {
	if size <= 0 {
		size = 128
	}
	var cb expirable.EvictCallback[string, V]
	if onEvict != nil {
		cb = func(key string, v V) { onEvict(key, v) }
	}
	return &ModelRegistry[V]{lru: expirable.NewLRU[string, V](size, cb, ttl)}
}

func (r *ModelRegistry[V]) Get(key string) (V, bool) {
	v, ok := r.lru.Get(key)
	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return v, ok
}

func (r *ModelRegistry[V]) Put(key string, v V) {
	r.lru.Add(key, v)
}

func (r *ModelRegistry[V]) Remove(key string) bool {
	return r.lru.Remove(key)
}

// Keys returns the live keys, oldest first.
func (r *ModelRegistry[V]) Keys() []string {
	return r.lru.Keys()
}

func (r *ModelRegistry[V]) Stats() Stats {
	return Stats{Hits: r.hits.Load(), Misses: r.misses.Load(), Size: r.lru.Len()}
}
