package taxonomy

import (
	"sort"

	"github.com/c360/heritagestreams/adapter"
	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/protocol"
)

// Mode combines multiple filters.
type Mode int

const (
	// ModeOr matches when any filter matches.
	ModeOr Mode = iota
	// ModeAnd matches only when every filter matches.
	ModeAnd
)

// String returns the mode name
func (m Mode) String() string {
	if m == ModeAnd {
		return "and"
	}
	return "or"
}

// ParseMode accepts "and" or "or", defaulting to ModeOr.
func ParseMode(s string) Mode {
	if s == "and" || s == "AND" {
		return ModeAnd
	}
	return ModeOr
}

// SortKey orders query results.
type SortKey string

const (
	SortByCount     SortKey = "count"
	SortByName      SortKey = "name"
	SortByNamespace SortKey = "namespace"
)

// Filter selects labels. An empty Namespace or Value matches anything.
type Filter struct {
	Namespace string `json:"namespace,omitempty"`
	Value     string `json:"value,omitempty"`
}

func (f Filter) matches(p domain.LabelPair) bool {
	return (f.Namespace == "" || f.Namespace == p.Namespace) &&
		(f.Value == "" || f.Value == p.Value)
}

// QueryOptions controls Query. A zero Limit returns every match.
type QueryOptions struct {
	Mode   Mode
	SortBy SortKey
	Limit  int
}

// Query returns the labels matching filters under opts.Mode. With no
// filters every label matches.
func (t *Taxonomy) Query(filters []Filter, opts QueryOptions) []domain.Label {
	t.mu.RLock()
	out := make([]domain.Label, 0)
	for _, label := range t.labels {
		pair := domain.LabelPair{Namespace: label.Namespace, Value: label.Value}
		if matchPairs([]domain.LabelPair{pair}, filters, opts.Mode) {
			out = append(out, *label)
		}
	}
	t.mu.RUnlock()

	out = sortLabels(out, opts.SortBy)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// MatchesEvent reports whether the event's label tags satisfy filters.
// With ModeAnd each filter must be met by some label; with ModeOr one is enough.
func MatchesEvent(ev *protocol.Event, filters []Filter, mode Mode) bool {
	if ev == nil {
		return false
	}
	return matchPairs(adapter.LabelPairs(ev), filters, mode)
}

func matchPairs(pairs []domain.LabelPair, filters []Filter, mode Mode) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		hit := false
		for _, p := range pairs {
			if f.matches(p) {
				hit = true
				break
			}
		}
		if mode == ModeAnd && !hit {
			return false
		}
		if mode == ModeOr && hit {
			return true
		}
	}
	return mode == ModeAnd
}

// BuildFilterFromLabels projects filters into relay tag filters: namespaces
// under "L" and values under "l". Relays AND different tag names together,
// so the result is only a prefilter and must be narrowed afterwards with
// MatchesEvent. Under ModeOr a tag name is emitted only when every filter
// constrains it, otherwise events matching one filter through the other tag
// would be dropped by the relay.
func BuildFilterFromLabels(filters []Filter, mode Mode) map[string][]string {
	namespaces := make(map[string]struct{})
	values := make(map[string]struct{})
	allNamespaces, allValues := true, true
	for _, f := range filters {
		if f.Namespace != "" {
			namespaces[f.Namespace] = struct{}{}
		} else {
			allNamespaces = false
		}
		if f.Value != "" {
			values[f.Value] = struct{}{}
		} else {
			allValues = false
		}
	}

	tags := make(map[string][]string)
	if len(namespaces) > 0 && (mode == ModeAnd || allNamespaces) {
		tags["L"] = setToSorted(namespaces)
	}
	if len(values) > 0 && (mode == ModeAnd || allValues) {
		tags["l"] = setToSorted(values)
	}
	return tags
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// sortLabels orders labels by key. Ties fall back to namespace then value so
// results are deterministic.
func sortLabels(labels []domain.Label, key SortKey) []domain.Label {
	byName := func(a, b domain.Label) bool {
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.Namespace < b.Namespace
	}
	byNamespace := func(a, b domain.Label) bool {
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Value < b.Value
	}

	sort.Slice(labels, func(i, j int) bool {
		a, b := labels[i], labels[j]
		switch key {
		case SortByName:
			return byName(a, b)
		case SortByNamespace:
			return byNamespace(a, b)
		default:
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return byNamespace(a, b)
		}
	})
	return labels
}
