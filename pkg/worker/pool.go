package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
)

const (
	// DefaultWorkers is used when NewPool is given a non-positive worker count
	DefaultWorkers = 1
	// DefaultQueueSize is used when NewPool is given a non-positive queue size
	DefaultQueueSize = 1024
)

// Pool processes items of type T on a fixed number of goroutines.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error
	metrics   *poolMetrics

	mu      sync.Mutex
	running bool
	queue   chan T
	cancel  context.CancelFunc
	done    chan struct{}

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Stats is a snapshot of pool counters. Counters accumulate across runs.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	submitted  prometheus.Counter
	processed  prometheus.Counter
	failed     prometheus.Counter
	dropped    prometheus.Counter
}

// Option configures a Pool.
type Option[T any] func(*poolOptions)

type poolOptions struct {
	registry  *metric.MetricsRegistry
	component string
}

// WithMetrics registers queue metrics under heritage_<component>_queue_*.
func WithMetrics[T any](registry *metric.MetricsRegistry, component string) Option[T] {
	return func(o *poolOptions) {
		o.registry = registry
		o.component = component
	}
}

// NewPool creates a stopped pool.
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "Pool", "NewPool", "check processor")
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	var o poolOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   process,
	}
	if o.registry != nil && o.component != "" {
		m, err := registerMetrics(o.registry, o.component)
		if err != nil {
			return nil, errors.Wrap(err, "Pool", "NewPool", "register metrics")
		}
		p.metrics = m
	}
	return p, nil
}

func registerMetrics(registry *metric.MetricsRegistry, component string) (*poolMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heritage",
			Subsystem: component,
			Name:      name,
			Help:      help,
		})
	}
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "heritage",
			Subsystem: component,
			Name:      "queue_depth",
			Help:      "Items waiting in the work queue",
		}),
		submitted: counter("queue_submitted_total", "Items accepted into the work queue"),
		processed: counter("queue_processed_total", "Items taken off the work queue"),
		failed:    counter("queue_failed_total", "Items whose processing returned an error"),
		dropped:   counter("queue_dropped_total", "Items dropped because the work queue was full"),
	}

	if err := registry.RegisterGauge(component, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	for name, c := range map[string]prometheus.Counter{
		"queue_submitted_total": m.submitted,
		"queue_processed_total": m.processed,
		"queue_failed_total":    m.failed,
		"queue_dropped_total":   m.dropped,
	} {
		if err := registry.RegisterCounter(component, name, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Start launches the workers. Items are processed with a context derived
// from ctx that is cancelled when Stop gives up waiting.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.WrapInvalid(ErrPoolAlreadyStarted, "Pool", "Start", "check state")
	}

	runCtx, cancel := context.WithCancel(ctx)
	queue := make(chan T, p.queueSize)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(runCtx, queue)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	p.queue = queue
	p.cancel = cancel
	p.done = done
	p.running = true
	return nil
}

// Submit queues item without blocking.
func (p *Pool[T]) Submit(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPoolNotStarted
	}

	select {
	case p.queue <- item:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.queue)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for queued items to be
// processed. On timeout the processing context is cancelled and
// ErrStopTimeout returned; the pool is stopped either way.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.queue)
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		cancel()
		return nil
	case <-timer.C:
		cancel()
		return ErrStopTimeout
	}
}

// Running reports whether the pool accepts work.
func (p *Pool[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats returns the current counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	depth := 0
	if p.running {
		depth = len(p.queue)
	}
	p.mu.Unlock()

	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: depth,
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) work(ctx context.Context, queue <-chan T) {
	for item := range queue {
		err := p.process(ctx, item)

		p.processed.Add(1)
		if err != nil {
			p.failed.Add(1)
		}
		if p.metrics != nil {
			p.metrics.processed.Inc()
			if err != nil {
				p.metrics.failed.Inc()
			}
			p.metrics.queueDepth.Set(float64(len(queue)))
		}
	}
}
