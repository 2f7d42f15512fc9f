// Package adapter decodes relay events into domain entities.
//
// Each decoder filters a batch by kind, validates JSON content against a
// compiled schema, and merges tag values over content values. Tags win when
// both are present. An event that cannot be decoded is dropped with a warning
// and the rest of the batch is still returned, so decoding is total over any
// input and deterministic for a given batch.
package adapter

import (
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/protocol"
)

// Decode results recorded per adapter.
const (
	resultDecoded = "decoded"
	resultDropped = "dropped"
)

// ErrNotApplicable marks an event of the right kind that is not meant for
// the decoder, such as a file-metadata event that is not an artifact.
var ErrNotApplicable = stderrors.New("event not applicable")

// DecodeError explains why one event was not turned into an entity.
type DecodeError struct {
	EventID string
	Kind    int
	Adapter string
	Err     error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("adapter.%s: decode event %s (kind %d) failed: %v", e.Adapter, e.EventID, e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(name string, ev *protocol.Event, err error) *DecodeError {
	return &DecodeError{EventID: ev.ID, Kind: ev.Kind, Adapter: name, Err: err}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records decode outcomes.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(a *Adapter) {
		if registry != nil {
			a.metrics = registry.CoreMetrics()
		}
	}
}

// Adapter holds the compiled content schemas. It is safe for concurrent use.
type Adapter struct {
	schemas schemaSet
	logger  *slog.Logger
	metrics *metric.Metrics
}

// New compiles the content schemas.
func New(opts ...Option) (*Adapter, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		schemas: schemas,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// decodeBatch applies decode to every event of kind and collects the results.
func decodeBatch[T any](a *Adapter, name string, kind int, events []*protocol.Event,
	decode func(*protocol.Event) (T, error)) []T {
	out := make([]T, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.Kind != kind {
			continue
		}
		v, err := decode(ev)
		if err != nil {
			a.drop(name, ev, err)
			continue
		}
		a.metrics.RecordDecode(name, resultDecoded)
		out = append(out, v)
	}
	return out
}

func (a *Adapter) drop(name string, ev *protocol.Event, err error) {
	if stderrors.Is(err, ErrNotApplicable) {
		return
	}
	a.logger.Warn("Dropping undecodable event",
		"adapter", name,
		"event_id", ev.ID,
		"kind", ev.Kind,
		"error", err)
	a.metrics.RecordDecode(name, resultDropped)
}

func missingField(field string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: missing %s", errors.ErrInvalidData, field), "adapter", "decode", "check required fields")
}
