// Package natsbridge republishes live relay events onto NATS subjects.
//
// The bridge opens one long-lived subscription per connected relay for events
// created from the moment it starts, listens on the pool's wildcard listener
// and publishes each event once, as JSON, on "<prefix>.kind.<kind>".
// Publishing happens off the relay dispatch loops on a bounded queue; events
// arriving while the queue is full are dropped and counted.
package natsbridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/pkg/cache"
	"github.com/c360/heritagestreams/pkg/worker"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/relay"
)

const (
	// DefaultSubjectPrefix is the subject root for published events
	DefaultSubjectPrefix = "heritage.events"
	// DefaultDedupWindow is how long an event ID suppresses republishing
	DefaultDedupWindow = 10 * time.Minute
	// DefaultQueueSize bounds events waiting to be published
	DefaultQueueSize = 1024
	// DefaultStopTimeout bounds how long Stop waits for queued events
	DefaultStopTimeout = 5 * time.Second
)

// Publisher publishes raw messages. *nats.Conn and *natsclient.Client satisfy it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Pool is the subset of relay.Pool the bridge needs.
type Pool interface {
	Connected() []string
	Send(url string, frame []byte) error
	AddListener(key relay.ListenerKey, fn relay.Listener) (remove func())
}

var _ Pool = (*relay.Pool)(nil)

// Option configures a Bridge.
type Option func(*Bridge)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix = strings.Trim(prefix, "."); prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithKinds restricts bridged events to kinds. By default every kind is bridged.
func WithKinds(kinds ...int) Option {
	return func(b *Bridge) { b.kinds = kinds }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics counts published events, publish errors and queue activity.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Bridge) {
		if registry != nil {
			b.registry = registry
			b.metrics = registry.CoreMetrics()
		}
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.stopTimeout = d
		}
	}
}

// WithClock sets the clock used for the live window and dedup expiry.
func WithClock(clock func() time.Time) Option {
	return func(b *Bridge) {
		if clock != nil {
			b.clock = clock
		}
	}
}

type outbound struct {
	relay string
	event *protocol.Event
}

// Bridge forwards live events from a relay pool to a Publisher.
type Bridge struct {
	pool        Pool
	pub         Publisher
	prefix      string
	kinds       []int
	logger      *slog.Logger
	registry    *metric.MetricsRegistry
	metrics     *metric.Metrics
	clock       func() time.Time
	seen        cache.Cache[struct{}]
	queue       *worker.Pool[outbound]
	queueSize   int
	stopTimeout time.Duration

	// liveSub holds the current live subscription ID, "" when stopped.
	liveSub atomic.Value

	mu     sync.Mutex
	subID  string
	relays []string
	remove func()
}

// New creates a bridge. It does nothing until Start.
func New(pool Pool, pub Publisher, opts ...Option) (*Bridge, error) {
	if pool == nil || pub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Bridge", "New", "check dependencies")
	}

	b := &Bridge{
		pool:        pool,
		pub:         pub,
		prefix:      DefaultSubjectPrefix,
		logger:      slog.Default(),
		clock:       time.Now,
		queueSize:   DefaultQueueSize,
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "natsbridge")

	seen, err := cache.NewTTL[struct{}](DefaultDedupWindow,
		cache.WithClock[struct{}](b.clock),
		cache.WithMetrics[struct{}](b.registry, "live_dedup"))
	if err != nil {
		return nil, errors.Wrap(err, "Bridge", "New", "create dedup cache")
	}
	b.seen = seen

	// One worker keeps events in arrival order.
	var queueOpts []worker.Option[outbound]
	if b.registry != nil {
		queueOpts = append(queueOpts, worker.WithMetrics[outbound](b.registry, "natsbridge"))
	}
	b.queue, err = worker.NewPool(1, b.queueSize, b.publish, queueOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Bridge", "New", "create publish queue")
	}
	return b, nil
}

// Subject returns the subject events of kind are published on.
func (b *Bridge) Subject(kind int) string {
	return b.prefix + ".kind." + strconv.Itoa(kind)
}

// Start registers the listener and opens the live subscription on every
// connected relay.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remove != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Bridge", "Start", "check state")
	}

	relays := b.pool.Connected()
	if len(relays) == 0 {
		return errors.WrapTransient(errors.ErrAllRelaysUnreachable, "Bridge", "Start", "select relays")
	}

	since := nostr.Timestamp(b.clock().Unix())
	filter := protocol.Filter{Kinds: b.kinds, Since: &since}
	subID := "live" + strings.ReplaceAll(uuid.NewString(), "-", "")
	req, err := protocol.EncodeReq(subID, filter)
	if err != nil {
		return errors.Wrap(err, "Bridge", "Start", "encode live subscription")
	}

	if err := b.queue.Start(context.Background()); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "start publish queue")
	}
	b.subID = subID
	b.liveSub.Store(subID)
	b.remove = b.pool.AddListener(relay.Wildcard, b.handle)
	b.relays = b.relays[:0]
	for _, url := range relays {
		if err := b.pool.Send(url, req); err != nil {
			b.logger.Warn("Live subscription not opened", "relay", url, "error", err)
			continue
		}
		b.relays = append(b.relays, url)
	}

	b.logger.Info("Live event bridge started",
		"sub_id", subID,
		"relays", len(b.relays),
		"prefix", b.prefix)
	return nil
}

// Stop closes the live subscriptions and removes the listener.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remove == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "Bridge", "Stop", "check state")
	}

	if frame, err := protocol.EncodeClose(b.subID); err == nil {
		for _, url := range b.relays {
			if err := b.pool.Send(url, frame); err != nil {
				b.logger.Debug("Live subscription close not sent", "relay", url, "error", err)
			}
		}
	}

	b.liveSub.Store("")
	b.remove()
	b.remove = nil
	b.relays = nil

	if err := b.queue.Stop(b.stopTimeout); err != nil {
		b.logger.Warn("Queued live events abandoned", "error", err)
	}
	b.logger.Info("Live event bridge stopped", "stats", b.queue.Stats())
	return nil
}

func (b *Bridge) wants(kind int) bool {
	if len(b.kinds) == 0 {
		return true
	}
	for _, k := range b.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// handle runs on a relay dispatch loop and must not block. Only events
// delivered under the live subscription are bridged; listeners also receive
// stragglers from finished queries.
func (b *Bridge) handle(relayURL, subID string, ev *protocol.Event) {
	if ev == nil || !b.wants(ev.Kind) {
		return
	}
	if live, _ := b.liveSub.Load().(string); live == "" || subID != live {
		return
	}
	// Set reports whether the ID was new under a single lock, so two relays
	// delivering the same event cannot both pass.
	added, err := b.seen.Set(ev.ID, struct{}{})
	if err != nil {
		b.logger.Debug("Event not tracked for dedup", "event_id", ev.ID, "error", err)
		return
	}
	if !added {
		return
	}

	if err := b.queue.Submit(outbound{relay: relayURL, event: ev}); err != nil {
		if stderrors.Is(err, worker.ErrPoolNotStarted) {
			b.logger.Debug("Live event ignored",
				"event_id", ev.ID,
				"error", errors.WrapTransient(errors.ErrShuttingDown, "Bridge", "handle", "queue event"))
			return
		}
		err = errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrResourceExhausted, err), "Bridge", "handle", "queue event")
		b.metrics.RecordError("natsbridge", errors.Classify(err).String())
		b.logger.Warn("Live event dropped",
			"relay", relayURL,
			"event_id", ev.ID,
			"error", err)
	}
}

func (b *Bridge) publish(_ context.Context, out outbound) error {
	ev := out.event
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("Failed to encode live event", "event_id", ev.ID, "error", err)
		return err
	}

	subject := b.Subject(ev.Kind)
	if err := b.pub.Publish(subject, data); err != nil {
		err = errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err), "Bridge", "publish", subject)
		b.metrics.RecordError("natsbridge", errors.Classify(err).String())
		b.logger.Warn("Failed to publish live event",
			"relay", out.relay,
			"event_id", ev.ID,
			"subject", subject,
			"error", err)
		return err
	}
	b.metrics.RecordLivePublish(strconv.Itoa(ev.Kind))
	return nil
}
