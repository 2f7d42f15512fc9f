package adapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/protocol"
)

const (
	minRating = 1
	maxRating = 5
)

// Ratings aggregates kind 7 rating reactions by target event ID. The target
// is the last e tag. Events whose value cannot be read are skipped.
func (a *Adapter) Ratings(events []*protocol.Event) map[string]domain.Rating {
	out := make(map[string]domain.Rating)
	for _, ev := range events {
		if ev == nil || ev.Kind != protocol.KindReaction {
			continue
		}
		target, value, err := a.DecodeRating(ev)
		if err != nil {
			a.drop("ratings", ev, err)
			continue
		}
		a.metrics.RecordDecode("ratings", resultDecoded)
		out[target] = out[target].Add(value)
	}
	return out
}

// DecodeRating returns the target event ID and rating value of one reaction.
func (a *Adapter) DecodeRating(ev *protocol.Event) (string, float64, error) {
	target, ok := protocol.LastTagValue(ev, "e")
	if !ok || target == "" {
		return "", 0, decodeError("ratings", ev, missingField("e tag"))
	}

	if raw, ok := protocol.TagValue(ev, "rating"); ok {
		if v, ok := parseRatingText(raw); ok {
			return target, v, nil
		}
	}
	if v, ok := parseRatingText(ev.Content); ok {
		return target, v, nil
	}
	if isJSONObject(ev.Content) {
		var c struct {
			Rating float64 `json:"rating"`
		}
		if err := a.decodeContent("rating", ev, &c); err != nil {
			return "", 0, decodeError("ratings", ev, err)
		}
		return target, c.Rating, nil
	}

	if _, tagged := protocol.TagValue(ev, "rating"); tagged {
		return "", 0, decodeError("ratings", ev, errors.WrapInvalid(
			fmt.Errorf("%w: unreadable rating %q", errors.ErrParsingFailed, ev.Content),
			"adapter", "DecodeRating", "parse rating"))
	}
	// Plain reactions such as "+" carry no rating.
	return "", 0, decodeError("ratings", ev, ErrNotApplicable)
}

// parseRatingText accepts a number in [1,5] or a run of 1 to 5 star characters.
func parseRatingText(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, v >= minRating && v <= maxRating
	}

	stars := 0
	for _, r := range s {
		switch r {
		case '★', '⭐':
			stars++
		case '\uFE0F', ' ':
		default:
			return 0, false
		}
	}
	return float64(stars), stars >= minRating && stars <= maxRating
}
