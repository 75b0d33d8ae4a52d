// Package cache stores fetched document bodies in memory and on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// keyPrefix is bumped whenever the cached payload format changes
const keyPrefix = "clausewatch:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from a namespace and a URL
func Key(namespace, url string) string {
	hash := sha256.Sum256([]byte(url))
	return keyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}
