// Package query runs one logical query against every connected relay and
// merges the answers into a single deduplicated, newest-first result.
//
// Results are cached by the canonical form of the filter. Duplicates across
// relays are resolved first-seen-wins, walking relays in the pool's configured
// order, which is safe because events are content-addressed.
package query

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/pkg/cache"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/relay"
)

const (
	// DefaultRelayTimeout bounds how long one relay may take to reach EOSE
	DefaultRelayTimeout = 5 * time.Second
	// DefaultCacheTTL is how long a merged result is served from cache
	DefaultCacheTTL = 5 * time.Minute
)

// Pool is the subset of relay.Pool the engine needs.
type Pool interface {
	Connected() []string
	Subscribe(subID, url string) *relay.Subscription
	Send(url string, frame []byte) error
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger       *slog.Logger
	registry     *metric.MetricsRegistry
	relayTimeout time.Duration
	cacheTTL     time.Duration
	clock        cache.Clock
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records query metrics and exports cache statistics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *engineOptions) { o.registry = registry }
}

// WithRelayTimeout overrides DefaultRelayTimeout.
func WithRelayTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.relayTimeout = d
		}
	}
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}

// WithClock sets the clock used for cache expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *engineOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// Engine fans queries out over a relay pool.
type Engine struct {
	pool         Pool
	logger       *slog.Logger
	metrics      *metric.Metrics
	relayTimeout time.Duration
	cache        cache.Cache[[]*protocol.Event]
}

// NewEngine creates a query engine over pool.
func NewEngine(pool Pool, opts ...Option) (*Engine, error) {
	o := engineOptions{
		logger:       slog.Default(),
		relayTimeout: DefaultRelayTimeout,
		cacheTTL:     DefaultCacheTTL,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	resultCache, err := cache.NewTTL[[]*protocol.Event](o.cacheTTL,
		cache.WithClock[[]*protocol.Event](o.clock),
		cache.WithMetrics[[]*protocol.Event](o.registry, "query"))
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "NewEngine", "create result cache")
	}

	e := &Engine{
		pool:         pool,
		logger:       o.logger.With("component", "query_engine"),
		relayTimeout: o.relayTimeout,
		cache:        resultCache,
	}
	if o.registry != nil {
		e.metrics = o.registry.CoreMetrics()
	}
	return e, nil
}

// Query runs opts against every connected relay and returns the merged
// result, newest first. Relays that fail or time out contribute whatever they
// delivered. The call fails only when no relay is connected.
func (e *Engine) Query(ctx context.Context, opts Options) ([]*protocol.Event, error) {
	filter := opts.Filter()
	key := protocol.CanonicalKey(filter)

	if !opts.SkipCache {
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.RecordQuery("cache", 0, len(cached))
			return append([]*protocol.Event(nil), cached...), nil
		}
	}

	relays := e.pool.Connected()
	if len(relays) == 0 {
		e.metrics.RecordQuery("unreachable", 0, 0)
		return nil, errors.WrapTransient(errors.ErrAllRelaysUnreachable, "Engine", "Query", "select relays")
	}

	subID := strings.ReplaceAll(uuid.NewString(), "-", "")
	req, err := protocol.EncodeReq(subID, filter)
	if err != nil {
		e.metrics.RecordQuery("error", 0, 0)
		return nil, err
	}

	start := time.Now()
	results := make([][]*protocol.Event, len(relays))
	var g errgroup.Group
	for i, url := range relays {
		g.Go(func() error {
			results[i] = e.collect(ctx, url, subID, req)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.metrics.RecordQuery("error", time.Since(start), 0)
		return nil, errors.WrapTransient(err, "Engine", "Query", "collect relay results")
	}

	merged := merge(results, opts.Limit)
	if _, err := e.cache.Set(key, merged); err != nil {
		e.logger.Warn("Failed to cache query result", "error", err)
	}

	e.metrics.RecordQuery("relays", time.Since(start), len(merged))
	e.logger.Debug("Query complete",
		"sub_id", subID,
		"relays", len(relays),
		"events", len(merged),
		"duration", time.Since(start))

	return append([]*protocol.Event(nil), merged...), nil
}

// collect runs one relay branch: REQ, gather events until EOSE, CLOSED, a lost
// connection or the branch's own timer, then CLOSE.
func (e *Engine) collect(ctx context.Context, url, subID string, req []byte) []*protocol.Event {
	sub := e.pool.Subscribe(subID, url)
	defer sub.Close()

	if err := e.pool.Send(url, req); err != nil {
		e.logger.Warn("Relay query skipped", "relay", url, "sub_id", subID, "error", err)
		return nil
	}
	defer e.sendClose(url, subID)

	timer := time.NewTimer(e.relayTimeout)
	defer timer.Stop()

	var events []*protocol.Event
	for {
		select {
		case d := <-sub.C():
			switch {
			case d.Event != nil:
				events = append(events, d.Event)
			case d.EOSE:
				return events
			case d.Closed:
				e.logger.Debug("Relay ended subscription early",
					"relay", url, "sub_id", subID, "reason", d.Reason)
				return events
			}
		case <-timer.C:
			e.logger.Debug("Relay query timed out",
				"relay", url, "sub_id", subID, "events", len(events), "timeout", e.relayTimeout)
			return events
		case <-ctx.Done():
			return events
		}
	}
}

func (e *Engine) sendClose(url, subID string) {
	frame, err := protocol.EncodeClose(subID)
	if err != nil {
		return
	}
	if err := e.pool.Send(url, frame); err != nil {
		e.logger.Debug("Could not close subscription", "relay", url, "sub_id", subID, "error", err)
	}
}

// merge concatenates per-relay results in relay order, keeps the first
// occurrence of each id, sorts newest first and applies limit.
func merge(results [][]*protocol.Event, limit int) []*protocol.Event {
	seen := make(map[string]struct{})
	var merged []*protocol.Event
	for _, events := range results {
		for _, ev := range events {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt > merged[j].CreatedAt
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Invalidate drops every cached result.
func (e *Engine) Invalidate() {
	_ = e.cache.Clear()
}

// CacheStats returns statistics for the result cache.
func (e *Engine) CacheStats() *cache.Statistics {
	return e.cache.Stats()
}

var _ Pool = (*relay.Pool)(nil)

