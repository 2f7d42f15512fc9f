// Package cache provides a generic, thread-safe TTL cache with built-in
// statistics and optional Prometheus metrics.
//
// Entries expire a fixed duration after they were last written. Expired
// entries are never returned; they are removed lazily on read and swept on
// every write, so the cache needs no background goroutine.
package cache

import (
	"time"

	"github.com/c360/heritagestreams/errors"
)

// Cache is a TTL cache keyed by string.
type Cache[V any] interface {
	// Get returns the value and true if the key is present and unexpired.
	Get(key string) (V, bool)

	// Set stores value under key and restarts its TTL. It reports true when
	// the key was absent or expired. The check and the write happen under
	// one lock, so concurrent callers can use it as an atomic test-and-set.
	Set(key string, value V) (bool, error)

	// Clear removes every entry.
	Clear() error

	// Stats returns the cache counters.
	Stats() *Statistics
}

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// NewTTL creates a cache whose entries expire ttl after they were written.
func NewTTL[V any](ttl time.Duration, options ...Option[V]) (Cache[V], error) {
	return newTTLCache[V](ttl, applyOptions(options...))
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
