package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heritage"

// Metrics contains the client-level metrics shared by all components.
// A nil *Metrics is valid; every Record method is a no-op on it.
type Metrics struct {
	// Relay metrics
	RelayStatus   *prometheus.GaugeVec
	RelayConnects *prometheus.CounterVec
	RelayLatency  *prometheus.HistogramVec
	FramesRead    *prometheus.CounterVec
	FramesDropped *prometheus.CounterVec

	// Query metrics
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	QueryEvents   prometheus.Histogram

	// Decoding and media metrics
	EventsDecoded    *prometheus.CounterVec
	MediaResolutions *prometheus.CounterVec

	// Response caches, labelled by cache name
	CacheLookups   *prometheus.CounterVec
	CacheWrites    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   *prometheus.GaugeVec

	// Live event bridge
	LivePublished *prometheus.CounterVec

	ErrorsTotal  *prometheus.CounterVec
	HealthStatus *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RelayStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "status",
				Help:      "Relay connection status (0=connecting, 1=connected, 2=failed, 3=disconnected)",
			},
			[]string{"relay"},
		),

		RelayConnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "connects_total",
				Help:      "Relay connection attempts by result",
			},
			[]string{"relay", "result"},
		),

		RelayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "connect_seconds",
				Help:      "Time taken to open a relay connection",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"relay"},
		),

		FramesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "frames_total",
				Help:      "Frames read from relays by frame type",
			},
			[]string{"relay", "type"},
		),

		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "frames_dropped_total",
				Help:      "Frames dropped by the dispatcher",
			},
			[]string{"relay", "reason"},
		),

		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "total",
				Help:      "Queries by outcome (cache, relays, unreachable, error)",
			},
			[]string{"outcome"},
		),

		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Fan-out query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		QueryEvents: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "events",
				Help:      "Number of events returned per query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
			},
		),

		EventsDecoded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "events_total",
				Help:      "Events decoded by adapter and result",
			},
			[]string{"adapter", "result"},
		),

		MediaResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "media",
				Name:      "resolutions_total",
				Help:      "Media resolutions by source (cache, tags, probe, extension, placeholder)",
			},
			[]string{"source"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by cache and result (hit, miss)",
			},
			[]string{"cache", "result"},
		),

		CacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "writes_total",
				Help:      "Entries written to a cache",
			},
			[]string{"cache"},
		),

		CacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Expired entries removed from a cache",
			},
			[]string{"cache"},
		),

		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Entries held by a cache, expired ones included until swept",
			},
			[]string{"cache"},
		),

		LivePublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "live",
				Name:      "published_total",
				Help:      "Live relay events republished to NATS",
			},
			[]string{"kind"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RelayStatus,
		m.RelayConnects,
		m.RelayLatency,
		m.FramesRead,
		m.FramesDropped,
		m.Queries,
		m.QueryDuration,
		m.QueryEvents,
		m.EventsDecoded,
		m.MediaResolutions,
		m.CacheLookups,
		m.CacheWrites,
		m.CacheEvictions,
		m.CacheEntries,
		m.LivePublished,
		m.ErrorsTotal,
		m.HealthStatus,
	}
}

// RecordRelayStatus sets the numeric status of a relay
func (m *Metrics) RecordRelayStatus(relay string, status int) {
	if m == nil {
		return
	}
	m.RelayStatus.WithLabelValues(relay).Set(float64(status))
}

// RecordRelayConnect records a connection attempt and, on success, its latency
func (m *Metrics) RecordRelayConnect(relay string, latency time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RelayConnects.WithLabelValues(relay, "failed").Inc()
		return
	}
	m.RelayConnects.WithLabelValues(relay, "connected").Inc()
	m.RelayLatency.WithLabelValues(relay).Observe(latency.Seconds())
}

// RecordFrame counts a frame read from a relay
func (m *Metrics) RecordFrame(relay, frameType string) {
	if m == nil {
		return
	}
	m.FramesRead.WithLabelValues(relay, frameType).Inc()
}

// RecordDroppedFrame counts a frame the dispatcher could not route
func (m *Metrics) RecordDroppedFrame(relay, reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(relay, reason).Inc()
}

// RecordQuery records a query outcome. Duration and event count are only
// observed for fan-out queries.
func (m *Metrics) RecordQuery(outcome string, duration time.Duration, events int) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
	if outcome == "relays" {
		m.QueryDuration.Observe(duration.Seconds())
		m.QueryEvents.Observe(float64(events))
	}
}

// RecordDecode counts an adapter decode result ("decoded" or "dropped")
func (m *Metrics) RecordDecode(adapter, result string) {
	if m == nil {
		return
	}
	m.EventsDecoded.WithLabelValues(adapter, result).Inc()
}

// RecordMediaResolution counts where a media descriptor came from
func (m *Metrics) RecordMediaResolution(source string) {
	if m == nil {
		return
	}
	m.MediaResolutions.WithLabelValues(source).Inc()
}

// RecordCacheLookup counts a cache lookup as a hit or a miss
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordCacheWrite counts a write and sets the entry gauge
func (m *Metrics) RecordCacheWrite(cache string, entries int) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(cache).Inc()
	m.CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordCacheEvictions counts n expired entries and sets the entry gauge
func (m *Metrics) RecordCacheEvictions(cache string, n, entries int) {
	if m == nil {
		return
	}
	m.CacheEvictions.WithLabelValues(cache).Add(float64(n))
	m.CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordCacheEntries sets the entry gauge
func (m *Metrics) RecordCacheEntries(cache string, entries int) {
	if m == nil {
		return
	}
	m.CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordLivePublish counts an event republished to the message bus
func (m *Metrics) RecordLivePublish(kind string) {
	if m == nil {
		return
	}
	m.LivePublished.WithLabelValues(kind).Inc()
}

// RecordError increments the error counter
func (m *Metrics) RecordError(component, class string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordHealthStatus updates the health gauge for a component
func (m *Metrics) RecordHealthStatus(component string, level int) {
	if m == nil {
		return
	}
	m.HealthStatus.WithLabelValues(component).Set(float64(level))
}
