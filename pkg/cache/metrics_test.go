package cache

import (
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/heritagestreams/metric"
)

func TestCacheMetrics_SharedFamily(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	m := registry.CoreMetrics()
	clock := newFakeClock()

	query := newTestCache(t, time.Minute, clock, WithMetrics[string](registry, "query"))
	media := newTestCache(t, time.Minute, clock, WithMetrics[string](registry, "media"))

	_, _ = query.Set("k1", "v1")
	_, _ = query.Set("k2", "v2")
	_, _ = query.Get("k1")
	_, _ = query.Get("k3")
	_, _ = media.Get("k1")

	clock.Advance(time.Minute)
	_, _ = query.Get("k1")

	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues("query", "hit")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues("query", "miss")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheLookups.WithLabelValues("media", "miss")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.CacheWrites.WithLabelValues("query")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheEvictions.WithLabelValues("query")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CacheEntries.WithLabelValues("query")))

	require.NoError(t, query.Clear())
	assert.Equal(t, 0.0, promtest.ToFloat64(m.CacheEntries.WithLabelValues("query")))

	assert.Equal(t, 3, promtest.CollectAndCount(m.CacheLookups), "both caches report into one family")
}

func TestCacheMetrics_Disabled(t *testing.T) {
	c, err := NewTTL[string](time.Minute, WithMetrics[string](nil, "ignored"))
	require.NoError(t, err)
	assert.Nil(t, c.(*ttlCache[string]).rec.metrics)

	c, err = NewTTL[string](time.Minute, WithMetrics[string](metric.NewMetricsRegistry(), ""))
	require.NoError(t, err)
	assert.Nil(t, c.(*ttlCache[string]).rec.metrics)
}
