package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache implements Service on an expirable LRU. Per-entry expirations
// are honoured on read; the LRU's own TTL is the upper bound.
type MemoryCache struct {
	lru    *expirable.LRU[string, memoryItem]
	maxTTL time.Duration

	lockMu sync.Mutex
	locks  map[string]time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		MaxTTL:  24 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		lru:    expirable.NewLRU[string, memoryItem](cfg.MaxSize, nil, cfg.MaxTTL),
		maxTTL: cfg.MaxTTL,
		locks:  make(map[string]time.Time),
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 || expiration > mc.maxTTL {
		expiration = mc.maxTTL
	}
	mc.lru.Add(key, memoryItem{data: data, expireAt: time.Now().Add(expiration)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	item, ok := mc.lru.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	if item.expired(time.Now()) {
		mc.lru.Remove(key)
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.lru.Remove(key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	item, ok := mc.lru.Peek(key)
	return ok && !item.expired(time.Now()), nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.lockMu.Lock()
	defer mc.lockMu.Unlock()

	now := time.Now()
	if exp, ok := mc.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	mc.locks[key] = now.Add(ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.lockMu.Lock()
	delete(mc.locks, key)
	mc.lockMu.Unlock()
	return nil
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (mc *MemoryCache) Len() int { return mc.lru.Len() }

func (mc *MemoryCache) Close() error {
	mc.lru.Purge()
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	case *string:
		*d = string(data)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}
