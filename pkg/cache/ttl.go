package cache

import (
	"sync"
	"time"

	"github.com/c360/heritagestreams/errors"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) expiredAt(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// ttlCache evaluates expiry against its clock on every read and sweeps
// expired entries on every write.
type ttlCache[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   Clock
	items map[string]*ttlEntry[V]
	stats *Statistics
	rec   recorder
}

func newTTLCache[V any](ttl time.Duration, opts *cacheOptions[V]) (*ttlCache[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "newTTLCache", "ttl must be positive")
	}

	stats := &Statistics{}
	return &ttlCache[V]{
		ttl:   ttl,
		now:   opts.clock,
		items: make(map[string]*ttlEntry[V]),
		stats: stats,
		rec:   recorder{stats: stats, metrics: opts.metrics, name: opts.name},
	}, nil
}

// Get returns a live entry. An expired entry is removed and counted as a miss.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.items[key]
	if ok && entry.expiredAt(now) {
		delete(c.items, key)
		c.rec.evicted(1, len(c.items))
		ok = false
	}
	c.mu.Unlock()

	c.rec.lookup(ok)
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set sweeps expired entries, then stores value with a fresh TTL.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)
	_, exists := c.items[key]
	c.items[key] = &ttlEntry[V]{value: value, expiresAt: now.Add(c.ttl)}
	c.rec.write(len(c.items))
	return !exists, nil
}

// Clear drops every entry.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	c.items = make(map[string]*ttlEntry[V])
	c.rec.cleared()
	c.mu.Unlock()
	return nil
}

func (c *ttlCache[V]) Stats() *Statistics {
	return c.stats
}

// sweepLocked removes expired entries. Caller must hold c.mu.
func (c *ttlCache[V]) sweepLocked(now time.Time) {
	n := 0
	for key, entry := range c.items {
		if entry.expiredAt(now) {
			delete(c.items, key)
			n++
		}
	}
	if n > 0 {
		c.rec.evicted(n, len(c.items))
	}
}
