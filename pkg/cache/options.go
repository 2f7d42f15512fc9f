package cache

import (
	"time"

	"github.com/c360/heritagestreams/metric"
)

// Option configures a cache.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	metrics *metric.Metrics
	name    string
	clock   Clock
}

// WithMetrics exports the cache's activity under the shared heritage_cache_*
// family, labelled with name. A nil registry or an empty name is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, name string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && name != "" {
			opts.metrics = registry.CoreMetrics()
			opts.name = name
		}
	}
}

// WithClock replaces time.Now as the source of the current time.
func WithClock[V any](clock Clock) Option[V] {
	return func(opts *cacheOptions[V]) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{clock: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
