package taxonomy

// NamespaceStats summarizes one namespace.
type NamespaceStats struct {
	Labels      int `json:"labels"`
	Occurrences int `json:"occurrences"`
}

// Statistics summarizes the whole index.
type Statistics struct {
	TotalLabels      int                       `json:"total_labels"`
	TotalOccurrences int                       `json:"total_occurrences"`
	EventsProcessed  int                       `json:"events_processed"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}

// Statistics returns totals and per-namespace counts.
func (t *Taxonomy) Statistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Statistics{
		TotalLabels:     len(t.labels),
		EventsProcessed: len(t.seen),
		Namespaces:      make(map[string]NamespaceStats, len(t.byNamespace)),
	}
	for _, label := range t.labels {
		ns := stats.Namespaces[label.Namespace]
		ns.Labels++
		ns.Occurrences += label.Count
		stats.Namespaces[label.Namespace] = ns
		stats.TotalOccurrences += label.Count
	}
	return stats
}
