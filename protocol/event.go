package protocol

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/c360/heritagestreams/errors"
)

// Event is a signed, content-addressed relay record. Events are never
// mutated after receipt; equality is by ID.
type Event = nostr.Event

// Filter is a relay subscription filter.
type Filter = nostr.Filter

// Tags is the ordered tag list of an event.
type Tags = nostr.Tags

// Timestamp is a unix-seconds event timestamp.
type Timestamp = nostr.Timestamp

// TagValue returns the first value of the first tag named name.
func TagValue(ev *Event, name string) (string, bool) {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// LastTagValue returns the first value of the last tag named name.
func LastTagValue(ev *Event, name string) (string, bool) {
	for i := len(ev.Tags) - 1; i >= 0; i-- {
		tag := ev.Tags[i]
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// TagValues returns the first value of every tag named name, in tag order.
func TagValues(ev *Event, name string) []string {
	var values []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// TagPairs returns the first two values of every tag named name.
// Tags with a single value are returned with an empty second element.
func TagPairs(ev *Event, name string) [][2]string {
	var pairs [][2]string
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != name {
			continue
		}
		pair := [2]string{tag[1], ""}
		if len(tag) >= 3 {
			pair[1] = tag[2]
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

// VerifyID checks that the event ID is the hash of its serialized content.
func VerifyID(ev *Event) error {
	if ev == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "protocol", "VerifyID", "nil event")
	}
	if computed := ev.GetID(); computed != ev.ID {
		return errors.WrapInvalid(
			fmt.Errorf("%w: declared %s, computed %s", errors.ErrEventIDInvalid, ev.ID, computed),
			"protocol", "VerifyID", "compare event id")
	}
	return nil
}
