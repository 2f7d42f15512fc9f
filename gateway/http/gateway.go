// Package http serves the heritage service facade as a JSON API.
//
// Routes:
//
//	GET /health                     aggregate health, 503 when unhealthy
//	GET /metrics                    Prometheus metrics
//	GET /api/v1/relays              relay pool status
//	GET /api/v1/cultures            paged cultures
//	GET /api/v1/exhibitions         paged exhibitions
//	GET /api/v1/resources           paged resources
//	GET /api/v1/stories             paged elder stories
//	GET /api/v1/artifacts           paged artifacts with resolved media
//	GET /api/v1/search?q=           search across record types
//	GET /api/v1/ratings?ids=        aggregated ratings per event id
//	GET /api/v1/labels              label taxonomy query
//	GET /api/v1/labels/stats        taxonomy statistics
//	GET /api/v1/media?url=          media resolution for one URL
//	GET /api/v1/cache               query and media cache statistics
//
// Listing filters are read from the query string: page, page_size, q,
// category, region, language, culture, author (repeatable), label
// (repeatable "namespace:value"), label_mode, since, until and fresh.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/health"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/pkg/cache"
	"github.com/c360/heritagestreams/relay"
	"github.com/c360/heritagestreams/service"
)

// SystemName labels the aggregate health status.
const SystemName = "heritagestreams"

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics exposes registry on /metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) { g.registry = registry }
}

// WithHealth serves monitor on /health.
func WithHealth(monitor *health.Monitor) Option {
	return func(g *Gateway) { g.monitor = monitor }
}

// WithRelayStatus serves the pool snapshot on /api/v1/relays.
func WithRelayStatus(status func() relay.Status) Option {
	return func(g *Gateway) { g.relayStatus = status }
}

// WithCacheStats serves cache summaries, keyed by cache name, on /api/v1/cache.
func WithCacheStats(stats func() map[string]cache.StatsSummary) Option {
	return func(g *Gateway) { g.cacheStats = stats }
}

// WithCORSOrigins enables CORS for origins. "*" allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(g *Gateway) { g.corsOrigins = origins }
}

// WithRequestTimeout bounds each API request.
func WithRequestTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// Gateway routes HTTP requests to the service facade.
type Gateway struct {
	svc         *service.Service
	logger      *slog.Logger
	registry    *metric.MetricsRegistry
	monitor     *health.Monitor
	relayStatus func() relay.Status
	cacheStats  func() map[string]cache.StatsSummary
	corsOrigins []string
	timeout     time.Duration
}

// New creates a gateway over svc.
func New(svc *service.Service, opts ...Option) (*Gateway, error) {
	if svc == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "New", "check service")
	}

	g := &Gateway{
		svc:     svc,
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g, nil
}

// Handler builds the router.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(echoRequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(g.logger))
	if len(g.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: g.corsOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", g.handleHealth)
	if g.registry != nil {
		r.Method(http.MethodGet, "/metrics", g.registry.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(g.timeout))

		r.Get("/relays", g.handleRelays)
		r.Get("/cultures", listing(g, "GetCultures", (*service.Service).GetCultures))
		r.Get("/exhibitions", listing(g, "GetExhibitions", (*service.Service).GetExhibitions))
		r.Get("/resources", listing(g, "GetResources", (*service.Service).GetResources))
		r.Get("/stories", listing(g, "GetElderStories", (*service.Service).GetElderStories))
		r.Get("/artifacts", listing(g, "GetArtifacts", (*service.Service).GetArtifacts))
		r.Get("/search", listing(g, "Search", (*service.Service).Search))
		r.Get("/ratings", g.handleRatings)
		r.Route("/labels", func(r chi.Router) {
			r.Get("/", g.handleLabels)
			r.Get("/stats", g.handleLabelStats)
		})
		r.Get("/media", g.handleMedia)
		r.Get("/cache", g.handleCacheStats)
	})

	return r
}

// echoRequestID returns the request ID to the client for tracing.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(chimiddleware.RequestIDHeader, chimiddleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request once it completes.
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()))
		})
	}
}
