// Package service is the domain-level facade over the query layer. It turns
// validated filters into relay queries, adapts the results into domain
// entities and pages them for presentation.
//
// The only error a caller must expect from a well-formed request is
// ErrTemporarilyUnavailable, returned when no relay could be reached.
// Everything else degrades to partial results.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/c360/heritagestreams/adapter"
	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/media"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/query"
	"github.com/c360/heritagestreams/taxonomy"
)

// DefaultFetchLimit caps how many events one listing pulls from relays.
const DefaultFetchLimit = 500

var (
	// ErrTemporarilyUnavailable means no relay was reachable for the request.
	ErrTemporarilyUnavailable = stderrors.New("service temporarily unavailable")
	// ErrInvalidFilters wraps filter validation failures.
	ErrInvalidFilters = stderrors.New("invalid filters")
)

// Querier runs merged relay queries. *query.Engine satisfies it.
type Querier interface {
	Query(ctx context.Context, opts query.Options) ([]*protocol.Event, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResolver attaches media resolution to artifact listings.
func WithResolver(resolver *media.Resolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// WithFetchLimit overrides DefaultFetchLimit.
func WithFetchLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.fetchLimit = limit
		}
	}
}

// Service is safe for concurrent use.
type Service struct {
	engine     Querier
	adapters   *adapter.Adapter
	taxonomy   *taxonomy.Taxonomy
	resolver   *media.Resolver
	validate   *validator.Validate
	logger     *slog.Logger
	fetchLimit int
}

// New creates a service facade.
func New(engine Querier, adapters *adapter.Adapter, tax *taxonomy.Taxonomy, opts ...Option) (*Service, error) {
	if engine == nil || adapters == nil || tax == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Service", "New", "check dependencies")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	s := &Service{
		engine:     engine,
		adapters:   adapters,
		taxonomy:   tax,
		validate:   validate,
		logger:     slog.Default(),
		fetchLimit: DefaultFetchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "service")
	return s, nil
}

// Taxonomy returns the label index fed by GetLabels.
func (s *Service) Taxonomy() *taxonomy.Taxonomy {
	return s.taxonomy
}

// fetch runs one relay query and maps the unreachable condition.
func (s *Service) fetch(ctx context.Context, method string, opts query.Options) ([]*protocol.Event, error) {
	events, err := s.engine.Query(ctx, opts)
	if err == nil {
		return events, nil
	}
	if stderrors.Is(err, errors.ErrAllRelaysUnreachable) {
		s.logger.Warn("No relay reachable", "method", method)
		return nil, errors.WrapTransient(fmt.Errorf("%w: %w", ErrTemporarilyUnavailable, err), "Service", method, "query relays")
	}
	return nil, errors.Wrap(err, "Service", method, "query relays")
}
