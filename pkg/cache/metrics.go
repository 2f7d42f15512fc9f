package cache

import "github.com/c360/heritagestreams/metric"

// recorder updates the statistics and, when metrics are enabled, the shared
// cache metric family under the cache's name. A nil metrics is a no-op.
type recorder struct {
	stats   *Statistics
	metrics *metric.Metrics
	name    string
}

func (r recorder) lookup(hit bool) {
	if hit {
		r.stats.hits.Add(1)
	} else {
		r.stats.misses.Add(1)
	}
	r.metrics.RecordCacheLookup(r.name, hit)
}

func (r recorder) write(entries int) {
	r.stats.sets.Add(1)
	r.stats.entries.Store(int64(entries))
	r.metrics.RecordCacheWrite(r.name, entries)
}

func (r recorder) evicted(n, entries int) {
	r.stats.evictions.Add(int64(n))
	r.stats.entries.Store(int64(entries))
	r.metrics.RecordCacheEvictions(r.name, n, entries)
}

func (r recorder) cleared() {
	r.stats.entries.Store(0)
	r.metrics.RecordCacheEntries(r.name, 0)
}
