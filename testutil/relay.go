package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"

	"github.com/c360/heritagestreams/protocol"
)

// RelayOption configures a fake relay.
type RelayOption func(*Relay)

// WithStall makes the relay answer REQ with stored events but never send EOSE.
func WithStall() RelayOption {
	return func(r *Relay) { r.stall = true }
}

// WithRejectConnections makes the relay refuse the websocket handshake.
func WithRejectConnections() RelayOption {
	return func(r *Relay) { r.reject = true }
}

// WithHandshakeDelay holds every handshake for d before upgrading.
func WithHandshakeDelay(d time.Duration) RelayOption {
	return func(r *Relay) { r.handshakeDelay = d }
}

// WithEvents seeds the relay's store.
func WithEvents(events ...*protocol.Event) RelayOption {
	return func(r *Relay) { r.events = append(r.events, events...) }
}

// Relay is an in-process relay for tests.
type Relay struct {
	t        testing.TB
	server   *httptest.Server
	upgrader websocket.Upgrader
	closing  chan struct{}

	stall          bool
	reject         bool
	handshakeDelay time.Duration

	mu     sync.Mutex
	events []*protocol.Event
	conns  map[*relayConn]struct{}
	reqs   int
	closes int
}

type relayConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]nostr.Filters
}

func (c *relayConn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.sendRaw(data)
}

func (c *relayConn) sendRaw(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteMessage(websocket.TextMessage, data)
}

// NewRelay starts a fake relay that is shut down when the test ends.
func NewRelay(t testing.TB, opts ...RelayOption) *Relay {
	t.Helper()

	r := &Relay{
		t:        t,
		upgrader: websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }},
		closing:  make(chan struct{}),
		conns:    make(map[*relayConn]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.server = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(r.Close)
	return r
}

// URL returns the ws:// address of the relay.
func (r *Relay) URL() string {
	return "ws" + r.server.URL[4:]
}

// Close drops every connection and stops the server. Safe to call twice.
func (r *Relay) Close() {
	select {
	case <-r.closing:
		return
	default:
		close(r.closing)
	}
	r.DropConnections()
	r.server.Close()
}

// Publish stores events and pushes them to every open subscription they match.
func (r *Relay) Publish(events ...*protocol.Event) {
	r.mu.Lock()
	r.events = append(r.events, events...)
	conns := r.connections()
	r.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		type live struct {
			subID string
			ev    *protocol.Event
		}
		var out []live
		for subID, filters := range c.subs {
			for _, ev := range events {
				if filters.Match(ev) {
					out = append(out, live{subID, ev})
				}
			}
		}
		c.mu.Unlock()

		for _, l := range out {
			c.send([]any{"EVENT", l.subID, l.ev})
		}
	}
}

// SendRaw writes a raw text frame to every connected client.
func (r *Relay) SendRaw(frame string) {
	r.mu.Lock()
	conns := r.connections()
	r.mu.Unlock()
	for _, c := range conns {
		c.sendRaw([]byte(frame))
	}
}

// DropConnections closes every client socket without a close handshake.
func (r *Relay) DropConnections() {
	r.mu.Lock()
	conns := r.connections()
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

// ReqCount returns the number of REQ frames received.
func (r *Relay) ReqCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs
}

// CloseCount returns the number of CLOSE frames received.
func (r *Relay) CloseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// ConnectionCount returns the number of open client connections.
func (r *Relay) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// connections must be called with r.mu held.
func (r *Relay) connections() []*relayConn {
	out := make([]*relayConn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Relay) handle(w http.ResponseWriter, req *http.Request) {
	if r.handshakeDelay > 0 {
		select {
		case <-time.After(r.handshakeDelay):
		case <-r.closing:
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
	}
	if r.reject {
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.t.Logf("fake relay upgrade error: %v", err)
		return
	}

	c := &relayConn{ws: ws, subs: make(map[string]nostr.Filters)}
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.conns, c)
		r.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		r.handleFrame(c, data)
	}
}

func (r *Relay) handleFrame(c *relayConn, data []byte) {
	switch env := nostr.ParseMessage(data).(type) {
	case *nostr.ReqEnvelope:
		r.mu.Lock()
		r.reqs++
		matched := r.matching(env.Filters)
		r.mu.Unlock()

		c.mu.Lock()
		c.subs[env.SubscriptionID] = env.Filters
		c.mu.Unlock()

		for _, ev := range matched {
			c.send([]any{"EVENT", env.SubscriptionID, ev})
		}
		if !r.stall {
			c.send([]any{"EOSE", env.SubscriptionID})
		}

	case *nostr.CloseEnvelope:
		r.mu.Lock()
		r.closes++
		r.mu.Unlock()

		c.mu.Lock()
		delete(c.subs, string(*env))
		c.mu.Unlock()

	default:
		c.send([]any{"NOTICE", "unsupported frame"})
	}
}

// matching returns stored events matching any filter, newest first, with each
// filter's limit applied. Caller must hold r.mu.
func (r *Relay) matching(filters nostr.Filters) []*protocol.Event {
	seen := make(map[string]bool)
	var out []*protocol.Event
	for _, f := range filters {
		var hits []*protocol.Event
		for _, ev := range r.events {
			if f.Matches(ev) {
				hits = append(hits, ev)
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].CreatedAt > hits[j].CreatedAt })
		if f.Limit > 0 && len(hits) > f.Limit {
			hits = hits[:f.Limit]
		}
		for _, ev := range hits {
			if !seen[ev.ID] {
				seen[ev.ID] = true
				out = append(out, ev)
			}
		}
	}
	return out
}
