package relay

import (
	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/protocol"
)

// dispatchLoop is the only consumer of a session's inbound channel, so frames
// from one relay are handled strictly in arrival order.
func (p *Pool) dispatchLoop(c *connection, s *session) {
	defer close(s.done)

	for data := range s.inbound {
		p.dispatch(c.url, data)
	}

	err := c.markLost(s)
	if err == nil {
		return
	}
	p.metrics.RecordRelayStatus(c.url, int(StatusFailed))
	p.metrics.RecordError("relay_pool", errors.Classify(err).String())
	p.logger.Warn("Relay connection lost", "relay", c.url, "error", err)

	for _, sub := range p.subscriptionsFor(c.url) {
		sub.deliver(Delivery{Relay: c.url, Closed: true, Reason: "connection lost"})
	}
}

func (p *Pool) dispatch(url string, data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		p.metrics.RecordDroppedFrame(url, "malformed")
		p.logger.Warn("Dropping malformed frame", "relay", url, "error", err)
		return
	}
	p.metrics.RecordFrame(url, frame.Type.String())

	switch frame.Type {
	case protocol.FrameEvent:
		if p.verifyIDs {
			if err := protocol.VerifyID(frame.Event); err != nil {
				p.metrics.RecordDroppedFrame(url, "invalid_id")
				p.logger.Warn("Dropping event with invalid id",
					"relay", url, "event_id", frame.Event.ID, "error", err)
				return
			}
		}
		if sub := p.subscription(frame.SubscriptionID, url); sub != nil {
			sub.deliver(Delivery{Relay: url, Event: frame.Event})
			return
		}
		p.notifyListeners(url, frame.SubscriptionID, frame.Event)

	case protocol.FrameEOSE:
		if sub := p.subscription(frame.SubscriptionID, url); sub != nil {
			sub.deliver(Delivery{Relay: url, EOSE: true})
		}

	case protocol.FrameClosed:
		if sub := p.subscription(frame.SubscriptionID, url); sub != nil {
			sub.deliver(Delivery{Relay: url, Closed: true, Reason: frame.Message})
		}
		p.logger.Debug("Relay closed subscription",
			"relay", url, "sub_id", frame.SubscriptionID, "reason", frame.Message)

	case protocol.FrameNotice:
		p.logger.Info("Relay notice", "relay", url, "message", frame.Message)

	case protocol.FrameOK:
		p.logger.Debug("Relay acknowledged", "relay", url, "message", frame.Message)
	}
}
