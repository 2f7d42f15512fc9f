// Package relay maintains connections to a fixed set of relays and routes
// inbound frames to subscriptions and listeners.
//
// Each connection runs a read goroutine that pushes raw frames into a
// per-connection channel, and exactly one dispatch goroutine that consumes that
// channel in order. Dropped connections are marked failed and are not
// reconnected; a later ConnectAll dials them again.
package relay

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
)

const (
	// DefaultConnectTimeout bounds a single dial
	DefaultConnectTimeout = 10 * time.Second

	defaultWriteTimeout  = 10 * time.Second
	defaultInboundBuffer = 256
	subscriptionBuffer   = 64
	stopTimeout          = 5 * time.Second
)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records relay metrics on the registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Pool) {
		if registry != nil {
			p.metrics = registry.CoreMetrics()
		}
	}
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Pool) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithEventVerification drops events whose ID does not match their content hash.
func WithEventVerification(enabled bool) Option {
	return func(p *Pool) {
		p.verifyIDs = enabled
	}
}

// Pool owns one connection per configured relay.
type Pool struct {
	urls           []string
	logger         *slog.Logger
	metrics        *metric.Metrics
	dialer         *websocket.Dialer
	connectTimeout time.Duration
	verifyIDs      bool

	mu           sync.RWMutex
	conns        map[string]*connection
	subs         map[subKey]*Subscription
	listeners    map[ListenerKey]map[uint64]Listener
	nextListener uint64
}

// NewPool creates a pool for the given relay URLs. URLs are deduplicated and
// kept in the order given; that order is the merge order used by queries.
func NewPool(urls []string, opts ...Option) (*Pool, error) {
	p := &Pool{
		logger:         slog.Default(),
		connectTimeout: DefaultConnectTimeout,
		conns:          make(map[string]*connection),
		subs:           make(map[subKey]*Subscription),
		listeners:      make(map[ListenerKey]map[uint64]Listener),
	}

	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		p.urls = append(p.urls, u)
	}
	if len(p.urls) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pool", "NewPool", "no relay urls")
	}

	for _, opt := range opts {
		opt(p)
	}
	if p.dialer == nil {
		p.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: p.connectTimeout,
		}
	}
	p.logger = p.logger.With("component", "relay_pool")

	for _, u := range p.urls {
		p.conns[u] = newConnection(u)
	}

	return p, nil
}

// URLs returns the configured relay URLs in merge order.
func (p *Pool) URLs() []string {
	return append([]string(nil), p.urls...)
}

// ConnectAll dials every relay that is not already connected, in parallel.
// A failing relay is marked failed and never affects the others.
func (p *Pool) ConnectAll(ctx context.Context) Status {
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range p.urls {
		c := p.connection(u)
		if c.currentStatus() == StatusConnected {
			continue
		}
		g.Go(func() error {
			p.connect(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	status := p.Status()
	p.logger.Info("Relay pool connected",
		"connected", status.Connected,
		"total", status.Total)
	return status
}

func (p *Pool) connect(ctx context.Context, c *connection) {
	c.setStatus(StatusConnecting, nil)
	p.metrics.RecordRelayStatus(c.url, int(StatusConnecting))

	dctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()

	start := time.Now()
	ws, resp, err := p.dialer.DialContext(dctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	latency := time.Since(start)
	if err != nil {
		if isTimeout(dctx, err) {
			err = fmt.Errorf("%w after %s: %v", errors.ErrConnectionTimeout, p.connectTimeout, err)
		} else {
			err = fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err)
		}
		err = errors.WrapTransient(err, "Pool", "connect", "dial relay")
		c.setStatus(StatusFailed, err)
		p.metrics.RecordRelayConnect(c.url, latency, err)
		p.metrics.RecordRelayStatus(c.url, int(StatusFailed))
		p.logger.Warn("Relay connection failed", "relay", c.url, "error", err)
		return
	}

	sess := c.open(ws, latency)
	p.metrics.RecordRelayConnect(c.url, latency, nil)
	p.metrics.RecordRelayStatus(c.url, int(StatusConnected))
	p.logger.Debug("Relay connected", "relay", c.url, "latency", latency)

	go c.readLoop(sess)
	go p.dispatchLoop(c, sess)
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// Status returns a snapshot of every relay connection.
func (p *Pool) Status() Status {
	status := Status{Total: len(p.urls), Relays: make([]ConnectionInfo, 0, len(p.urls))}
	for _, u := range p.urls {
		info := p.connection(u).info()
		if info.Status == StatusConnected {
			status.Connected++
		}
		status.Relays = append(status.Relays, info)
	}
	return status
}

// Connected returns the URLs of connected relays in merge order.
func (p *Pool) Connected() []string {
	var out []string
	for _, u := range p.urls {
		if p.connection(u).currentStatus() == StatusConnected {
			out = append(out, u)
		}
	}
	return out
}

// Send writes one text frame to a connected relay.
func (p *Pool) Send(url string, frame []byte) error {
	c := p.connection(url)
	if c == nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnknownRelay, url), "Pool", "Send", "look up relay")
	}
	if err := c.write(frame, defaultWriteTimeout); err != nil {
		return errors.WrapTransient(err, "Pool", "Send", "write frame")
	}
	return nil
}

// Subscribe registers a subscription for frames that relay sends with subID.
// An existing subscription with the same id on the same relay is closed.
func (p *Pool) Subscribe(subID, url string) *Subscription {
	sub := &Subscription{
		key:  subKey{id: subID, relay: url},
		ch:   make(chan Delivery, subscriptionBuffer),
		done: make(chan struct{}),
		pool: p,
	}

	p.mu.Lock()
	old := p.subs[sub.key]
	p.subs[sub.key] = sub
	p.mu.Unlock()

	if old != nil {
		old.once.Do(func() { close(old.done) })
	}
	return sub
}

func (p *Pool) unsubscribe(sub *Subscription) {
	p.mu.Lock()
	if p.subs[sub.key] == sub {
		delete(p.subs, sub.key)
	}
	p.mu.Unlock()
}

func (p *Pool) subscription(subID, url string) *Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.subs[subKey{id: subID, relay: url}]
}

func (p *Pool) subscriptionsFor(url string) []*Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Subscription
	for k, sub := range p.subs {
		if k.relay == url {
			out = append(out, sub)
		}
	}
	return out
}

func (p *Pool) connection(url string) *connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns[url]
}

// DisconnectAll closes every connection and clears subscriptions. Active
// subscriptions receive a Closed delivery when there is room for it.
// Calling it again is a no-op.
func (p *Pool) DisconnectAll() {
	p.mu.Lock()
	subs := make([]*Subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.subs = make(map[subKey]*Subscription)
	conns := make([]*connection, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].key.id < subs[j].key.id })
	for _, sub := range subs {
		sub.tryDeliver(Delivery{Relay: sub.key.relay, Closed: true, Reason: "pool disconnected"})
	}

	closed := 0
	for _, c := range conns {
		if c.shutdown(stopTimeout) {
			closed++
			p.metrics.RecordRelayStatus(c.url, int(StatusDisconnected))
		}
	}
	if closed > 0 {
		p.logger.Info("Relay pool disconnected", "closed", closed)
	}
}
