package relay

import (
	"strconv"

	"github.com/c360/heritagestreams/protocol"
)

// ListenerKey selects which events a listener receives.
type ListenerKey string

// Wildcard receives every event regardless of kind.
const Wildcard ListenerKey = "*"

// KindListener receives events of a single kind.
func KindListener(kind int) ListenerKey {
	return ListenerKey(strconv.Itoa(kind))
}

// Listener is called from a connection's dispatch loop for events whose
// subscription has no active query. subID is the subscription the relay
// delivered the event under. It must not block.
type Listener func(relay, subID string, ev *protocol.Event)

// AddListener registers fn under key and returns a function that removes it.
func (p *Pool) AddListener(key ListenerKey, fn Listener) (remove func()) {
	p.mu.Lock()
	p.nextListener++
	id := p.nextListener
	if p.listeners[key] == nil {
		p.listeners[key] = make(map[uint64]Listener)
	}
	p.listeners[key][id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners[key], id)
		if len(p.listeners[key]) == 0 {
			delete(p.listeners, key)
		}
		p.mu.Unlock()
	}
}

func (p *Pool) notifyListeners(relay, subID string, ev *protocol.Event) {
	p.mu.RLock()
	var fns []Listener
	for _, fn := range p.listeners[Wildcard] {
		fns = append(fns, fn)
	}
	for _, fn := range p.listeners[KindListener(ev.Kind)] {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(relay, subID, ev)
	}
}
