package query

import (
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/c360/heritagestreams/protocol"
)

// Options describes one logical query.
type Options struct {
	Kinds   []int
	Authors []string
	IDs     []string
	// Tags maps a tag name (without the leading '#') to accepted values.
	Tags  map[string][]string
	Limit int
	// Since and Until are ignored when zero.
	Since time.Time
	Until time.Time

	// SkipCache forces relay traffic. The fresh result still replaces the cached one.
	SkipCache bool
}

// Filter converts the options into a wire filter.
func (o Options) Filter() protocol.Filter {
	f := protocol.Filter{
		Kinds:   o.Kinds,
		Authors: o.Authors,
		IDs:     o.IDs,
		Limit:   o.Limit,
	}
	if len(o.Tags) > 0 {
		f.Tags = make(nostr.TagMap, len(o.Tags))
		for name, values := range o.Tags {
			f.Tags[name] = values
		}
	}
	if !o.Since.IsZero() {
		ts := nostr.Timestamp(o.Since.Unix())
		f.Since = &ts
	}
	if !o.Until.IsZero() {
		ts := nostr.Timestamp(o.Until.Unix())
		f.Until = &ts
	}
	return f
}
