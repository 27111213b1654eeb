// Package cache provides a TTL cache for validated documents.
package cache

import "time"

// Cache is the interface for caching values by key.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with a TTL. Admission is not
	// guaranteed.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}

// GetAs returns the cached value of key when it holds a T.
func GetAs[T any](c Cache, key string) (T, bool) {
	var zero T
	value, found := c.Get(key)
	if !found {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
