package protocol

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/c360/heritagestreams/errors"
)

// FrameType identifies an inbound relay frame.
type FrameType int

const (
	FrameEvent FrameType = iota
	FrameEOSE
	FrameClosed
	FrameNotice
	FrameOK
)

// String returns the wire label of the frame type
func (t FrameType) String() string {
	switch t {
	case FrameEvent:
		return "EVENT"
	case FrameEOSE:
		return "EOSE"
	case FrameClosed:
		return "CLOSED"
	case FrameNotice:
		return "NOTICE"
	case FrameOK:
		return "OK"
	default:
		return "UNKNOWN"
	}
}

// Frame is a decoded inbound relay frame.
type Frame struct {
	Type           FrameType
	SubscriptionID string
	Event          *Event
	// Message carries the CLOSED reason, NOTICE text or OK reason.
	Message string
}

// DecodeFrame parses one inbound text frame.
func DecodeFrame(data []byte) (Frame, error) {
	switch env := nostr.ParseMessage(data).(type) {
	case *nostr.EventEnvelope:
		if env.SubscriptionID == nil {
			return Frame{}, invalidFrame("EVENT frame without subscription id")
		}
		ev := env.Event
		return Frame{Type: FrameEvent, SubscriptionID: *env.SubscriptionID, Event: &ev}, nil
	case *nostr.EOSEEnvelope:
		return Frame{Type: FrameEOSE, SubscriptionID: string(*env)}, nil
	case *nostr.ClosedEnvelope:
		return Frame{Type: FrameClosed, SubscriptionID: env.SubscriptionID, Message: env.Reason}, nil
	case *nostr.NoticeEnvelope:
		return Frame{Type: FrameNotice, Message: string(*env)}, nil
	case *nostr.OKEnvelope:
		return Frame{Type: FrameOK, Message: env.Reason}, nil
	case nil:
		return Frame{}, invalidFrame("unrecognized frame")
	default:
		return Frame{}, invalidFrame(fmt.Sprintf("unexpected %s frame from relay", env.Label()))
	}
}

func invalidFrame(reason string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrParsingFailed, reason),
		"protocol", "DecodeFrame", "parse frame")
}

// EncodeReq builds a ["REQ", subID, filter] frame.
func EncodeReq(subID string, filter Filter) ([]byte, error) {
	env := nostr.ReqEnvelope{SubscriptionID: subID, Filters: nostr.Filters{filter}}
	data, err := env.MarshalJSON()
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "EncodeReq", "marshal REQ")
	}
	return data, nil
}

// EncodeClose builds a ["CLOSE", subID] frame.
func EncodeClose(subID string) ([]byte, error) {
	env := nostr.CloseEnvelope(subID)
	data, err := env.MarshalJSON()
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "EncodeClose", "marshal CLOSE")
	}
	return data, nil
}
