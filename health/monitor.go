package health

import (
	"sort"
	"sync"
	"time"

	"github.com/c360/heritagestreams/metric"
)

// Check produces the current status of one component.
type Check func() Status

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics records every checked status on the health gauge.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Monitor) {
		if registry != nil {
			m.metrics = registry.CoreMetrics()
		}
	}
}

// Monitor runs registered checks and keeps the latest status per component.
type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]Check
	statuses map[string]Status
	metrics  *metric.Metrics
}

// NewMonitor creates a new health monitor
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		checks:   make(map[string]Check),
		statuses: make(map[string]Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a check run by Check. Registering a name again replaces it.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Update stores status for name.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()

	m.metrics.RecordHealthStatus(name, status.Level())
}

// Get retrieves the last status stored for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// Remove drops a component and its check.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checks, name)
	delete(m.statuses, name)
}

// Check runs every registered check and returns the aggregate, with
// components in name order.
func (m *Monitor) Check(system string) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		names = append(names, name)
		checks[name] = check
	}
	m.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		m.Update(name, checks[name]())
	}

	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, name := range m.sortedNamesLocked() {
		subs = append(subs, m.statuses[name])
	}
	m.mu.RUnlock()

	status := Aggregate(system, subs)
	m.metrics.RecordHealthStatus(system, status.Level())
	return status
}

func (m *Monitor) sortedNamesLocked() []string {
	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
