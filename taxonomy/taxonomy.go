// Package taxonomy maintains an in-memory index of label classifications
// gathered from label events.
//
// Counts only grow until Clear is called. Ingestion is idempotent by event
// ID: reprocessing an overlapping batch never double-counts.
package taxonomy

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/heritagestreams/adapter"
	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/protocol"
)

// ProcessResult summarizes one ProcessEvents call.
type ProcessResult struct {
	// Processed is the number of new label events ingested.
	Processed int `json:"processed"`
	// Duplicates counts label events already ingested earlier.
	Duplicates int `json:"duplicates"`
	// Labels counts the (namespace, value) occurrences added.
	Labels int `json:"labels"`
	// Rejected counts pairs whose namespace is not whitelisted.
	Rejected int `json:"rejected"`
}

// Option configures a Taxonomy.
type Option func(*Taxonomy)

// WithLogger sets the logger used for rejected namespaces.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Taxonomy) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Taxonomy is safe for concurrent use.
type Taxonomy struct {
	logger *slog.Logger

	mu          sync.RWMutex
	labels      map[string]*domain.Label
	byNamespace map[string]map[string]struct{}
	byValue     map[string]map[string]struct{}
	seen        map[string]struct{}
}

// New returns an empty taxonomy.
func New(opts ...Option) *Taxonomy {
	t := &Taxonomy{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.reset()
	return t
}

func (t *Taxonomy) reset() {
	t.labels = make(map[string]*domain.Label)
	t.byNamespace = make(map[string]map[string]struct{})
	t.byValue = make(map[string]map[string]struct{})
	t.seen = make(map[string]struct{})
}

// ProcessEvents ingests kind 1985 events from batch. Other kinds are ignored.
func (t *Taxonomy) ProcessEvents(batch []*protocol.Event) ProcessResult {
	var result ProcessResult

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ev := range batch {
		if ev == nil || ev.Kind != protocol.KindLabel {
			continue
		}
		if _, dup := t.seen[ev.ID]; dup {
			result.Duplicates++
			continue
		}
		t.seen[ev.ID] = struct{}{}
		result.Processed++

		for _, pair := range adapter.LabelPairs(ev) {
			if !domain.IsLabelNamespace(pair.Namespace) {
				t.logger.Debug("Rejecting label outside known namespaces",
					"event_id", ev.ID,
					"namespace", pair.Namespace,
					"value", pair.Value)
				result.Rejected++
				continue
			}
			t.addLocked(pair)
			result.Labels++
		}
	}
	return result
}

func (t *Taxonomy) addLocked(pair domain.LabelPair) {
	key := pair.Key()
	if label, ok := t.labels[key]; ok {
		label.Count++
		return
	}

	t.labels[key] = &domain.Label{Namespace: pair.Namespace, Value: pair.Value, Count: 1}
	addToSet(t.byNamespace, pair.Namespace, key)
	addToSet(t.byValue, pair.Value, key)
}

func addToSet(index map[string]map[string]struct{}, name, key string) {
	set, ok := index[name]
	if !ok {
		set = make(map[string]struct{})
		index[name] = set
	}
	set[key] = struct{}{}
}

// ByNamespace returns the labels in namespace, highest count first.
func (t *Taxonomy) ByNamespace(namespace string) []domain.Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortLabels(t.collectLocked(t.byNamespace[namespace]), SortByCount)
}

// ByValue returns the labels with value across namespaces, highest count first.
func (t *Taxonomy) ByValue(value string) []domain.Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortLabels(t.collectLocked(t.byValue[value]), SortByCount)
}

// Get returns one label by namespace and value.
func (t *Taxonomy) Get(namespace, value string) (domain.Label, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	label, ok := t.labels[domain.LabelPair{Namespace: namespace, Value: value}.Key()]
	if !ok {
		return domain.Label{}, false
	}
	return *label, true
}

// Namespaces returns the namespaces that hold at least one label, sorted.
func (t *Taxonomy) Namespaces() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byNamespace))
	for ns := range t.byNamespace {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

func (t *Taxonomy) collectLocked(keys map[string]struct{}) []domain.Label {
	out := make([]domain.Label, 0, len(keys))
	for key := range keys {
		out = append(out, *t.labels[key])
	}
	return out
}

// Clear drops every label and forgets every ingested event.
func (t *Taxonomy) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}
