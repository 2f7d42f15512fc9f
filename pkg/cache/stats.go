package cache

import "sync/atomic"

// Statistics counts cache activity. It is always collected, whether or not
// the cache exports metrics.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
	entries   atomic.Int64
}

// Hits returns the number of lookups that found a live entry.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the number of lookups that found nothing or an expired entry.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the number of writes.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Evictions returns the number of expired entries removed.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// Entries returns the number of entries held at the last write or sweep.
func (s *Statistics) Entries() int64 { return s.entries.Load() }

// HitRatio returns hits over lookups, 0 before the first lookup.
func (s *Statistics) HitRatio() float64 {
	hits, misses := s.Hits(), s.Misses()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	Entries   int64   `json:"entries"`
	HitRatio  float64 `json:"hit_ratio"`
}

// Summary returns a snapshot of the counters.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Hits:      s.Hits(),
		Misses:    s.Misses(),
		Sets:      s.Sets(),
		Evictions: s.Evictions(),
		Entries:   s.Entries(),
		HitRatio:  s.HitRatio(),
	}
}
