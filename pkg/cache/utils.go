package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// GenerateKeyWithParams creates a cache key with multiple parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

// HashKey shortens an arbitrary key to a 16-character hex digest.
func HashKey(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
