package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, clock *fakeClock, opts ...Option[string]) Cache[string] {
	t.Helper()
	opts = append(opts, WithClock[string](clock.Now))
	c, err := NewTTL[string](ttl, opts...)
	require.NoError(t, err)
	return c
}

func TestNewTTL_RejectsNonPositiveTTL(t *testing.T) {
	_, err := NewTTL[string](0)
	assert.Error(t, err)
	_, err = NewTTL[string](-time.Second)
	assert.Error(t, err)
}

func TestTTLCache_GetSet(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	_, ok := c.Get("filter")
	assert.False(t, ok)

	added, err := c.Set("filter", "events")
	require.NoError(t, err)
	assert.True(t, added)

	v, ok := c.Get("filter")
	assert.True(t, ok)
	assert.Equal(t, "events", v)

	added, err = c.Set("filter", "newer events")
	require.NoError(t, err)
	assert.False(t, added)

	v, _ = c.Get("filter")
	assert.Equal(t, "newer events", v)

	_, err = c.Set("", "v")
	assert.Error(t, err)
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 5*time.Minute, clock)

	_, _ = c.Set("q", "result")

	clock.Advance(5*time.Minute - time.Second)
	v, ok := c.Get("q")
	assert.True(t, ok, "entry is fresh just before the ttl")
	assert.Equal(t, "result", v)

	clock.Advance(time.Second)
	_, ok = c.Get("q")
	assert.False(t, ok, "entry expires exactly at the ttl")
	assert.Equal(t, int64(0), c.Stats().Entries())
	assert.Equal(t, int64(1), c.Stats().Evictions())

	added, _ := c.Set("q", "again")
	assert.True(t, added, "an expired key counts as absent")
}

func TestTTLCache_SetSweepsExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, time.Minute, clock)

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	clock.Advance(2 * time.Minute)
	assert.Equal(t, int64(2), c.Stats().Entries(), "expired entries linger until swept")

	_, _ = c.Set("c", "3")
	assert.Equal(t, int64(1), c.Stats().Entries())
	assert.Equal(t, int64(2), c.Stats().Evictions())
}

func TestTTLCache_RewriteResetsExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, time.Minute, clock)

	_, _ = c.Set("a", "1")
	clock.Advance(50 * time.Second)
	_, _ = c.Set("a", "2")
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestTTLCache_Clear(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	for _, k := range []string{"b", "a", "c"} {
		_, _ = c.Set(k, "v")
	}
	require.NoError(t, c.Clear())
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Entries())
}

func TestTTLCache_SetIsAtomicTestAndSet(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	var added atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if ok, _ := c.Set(fmt.Sprintf("event-%d", i), "seen"); ok {
					added.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), added.Load(), "each key is reported new exactly once")
}

func TestStatistics(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	_, _ = c.Set("a", "1")
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.InDelta(t, 2.0/3.0, stats.HitRatio(), 0.001)
	assert.Equal(t, StatsSummary{
		Hits:     2,
		Misses:   1,
		Sets:     1,
		Entries:  1,
		HitRatio: stats.HitRatio(),
	}, stats.Summary())

	assert.Equal(t, 0.0, (&Statistics{}).HitRatio())
}
