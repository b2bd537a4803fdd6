package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations. Values are stored JSON-encoded and decoded into dest.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// GetOrLoad returns the cached value for key, or calls load, caches its result
// for ttl and returns it. Cache errors other than a miss are ignored so a
// broken cache never fails the caller. hit reports whether the cache served.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	return GetOrLoadIf(ctx, c, key, ttl, load, nil)
}

// GetOrLoadIf is GetOrLoad that stores a freshly loaded value only when keep
// approves it. A nil keep stores everything.
func GetOrLoadIf[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error), keep func(T) bool) (v T, hit bool, err error) {
	if c != nil {
		if err := c.Get(ctx, key, &v); err == nil {
			return v, true, nil
		}
	}
	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}
	if c != nil && (keep == nil || keep(v)) {
		_ = c.Set(ctx, key, v, ttl)
	}
	return v, false, nil
}
