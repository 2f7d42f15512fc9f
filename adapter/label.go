package adapter

import (
	"strings"

	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/protocol"
)

const defaultLabelNamespace = "ugc"

// Labels decodes kind 1985 label events, keeping only whitelisted
// namespaces. Events left without any label are excluded without a warning.
func (a *Adapter) Labels(events []*protocol.Event) []domain.LabelEvent {
	out := make([]domain.LabelEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.Kind != protocol.KindLabel {
			continue
		}
		le, ok := DecodeLabelEvent(ev)
		if !ok {
			continue
		}
		a.metrics.RecordDecode("labels", resultDecoded)
		out = append(out, le)
	}
	return out
}

// DecodeLabelEvent extracts the whitelisted labels and targets of one event.
// It reports false when no whitelisted label remains.
func DecodeLabelEvent(ev *protocol.Event) (domain.LabelEvent, bool) {
	var kept []domain.LabelPair
	for _, pair := range LabelPairs(ev) {
		if domain.IsLabelNamespace(pair.Namespace) {
			kept = append(kept, pair)
		}
	}
	if len(kept) == 0 {
		return domain.LabelEvent{}, false
	}

	targets := protocol.TagValues(ev, "e")
	targets = append(targets, protocol.TagValues(ev, "a")...)

	return domain.LabelEvent{
		Source:  source(ev),
		Labels:  kept,
		Targets: targets,
	}, true
}

// LabelPairs returns every distinct (namespace, value) pair in the event's l
// tags, whitelisted or not. An l tag without a namespace mark takes the
// event's only L namespace, or "ugc" when there is not exactly one.
func LabelPairs(ev *protocol.Event) []domain.LabelPair {
	namespaces := protocol.TagValues(ev, "L")
	implicit := defaultLabelNamespace
	if len(namespaces) == 1 {
		implicit = normalizeNamespace(namespaces[0])
	}

	seen := make(map[string]bool)
	var pairs []domain.LabelPair
	for _, tv := range protocol.TagPairs(ev, "l") {
		value := strings.TrimSpace(tv[0])
		if value == "" {
			continue
		}
		ns := implicit
		if tv[1] != "" {
			ns = normalizeNamespace(tv[1])
		}
		pair := domain.LabelPair{Namespace: ns, Value: value}
		if seen[pair.Key()] {
			continue
		}
		seen[pair.Key()] = true
		pairs = append(pairs, pair)
	}
	return pairs
}

func normalizeNamespace(ns string) string {
	return strings.ToLower(strings.TrimSpace(ns))
}
