package relay

import (
	"sync"

	"github.com/c360/heritagestreams/protocol"
)

// Delivery is one frame routed to a subscription. Exactly one of Event,
// EOSE and Closed is set.
type Delivery struct {
	Relay  string
	Event  *protocol.Event
	EOSE   bool
	Closed bool
	Reason string
}

type subKey struct {
	id    string
	relay string
}

// Subscription receives the frames a single relay sends for one subscription
// id. It is registered with Pool.Subscribe and must be closed by its owner.
type Subscription struct {
	key  subKey
	ch   chan Delivery
	done chan struct{}
	once sync.Once
	pool *Pool
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.key.id }

// Relay returns the relay the subscription is bound to.
func (s *Subscription) Relay() string { return s.key.relay }

// C returns the delivery channel. It is never closed; select on Done as well
// when the subscription may be closed concurrently.
func (s *Subscription) C() <-chan Delivery { return s.ch }

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.pool.unsubscribe(s)
		close(s.done)
	})
}

// deliver blocks until the owner takes the delivery or closes the subscription.
func (s *Subscription) deliver(d Delivery) bool {
	select {
	case s.ch <- d:
		return true
	case <-s.done:
		return false
	}
}

// tryDeliver hands over a delivery only if there is room for it.
func (s *Subscription) tryDeliver(d Delivery) bool {
	select {
	case s.ch <- d:
		return true
	default:
		return false
	}
}
