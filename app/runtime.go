// Package app wires the heritagestreams components together. A Runtime owns
// every long-lived object: the relay pool, the query engine and its cache,
// the adapters, the label taxonomy, the media resolver, the service facade,
// the HTTP gateway and, when enabled, the NATS live bridge.
package app

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/heritagestreams/adapter"
	"github.com/c360/heritagestreams/config"
	"github.com/c360/heritagestreams/errors"
	gateway "github.com/c360/heritagestreams/gateway/http"
	"github.com/c360/heritagestreams/health"
	"github.com/c360/heritagestreams/media"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/natsbridge"
	"github.com/c360/heritagestreams/natsclient"
	"github.com/c360/heritagestreams/pkg/cache"
	"github.com/c360/heritagestreams/query"
	"github.com/c360/heritagestreams/relay"
	"github.com/c360/heritagestreams/service"
	"github.com/c360/heritagestreams/taxonomy"
)

// Runtime is the explicit context object for one process.
type Runtime struct {
	Config   *config.Config
	Metrics  *metric.MetricsRegistry
	Pool     *relay.Pool
	Engine   *query.Engine
	Adapters *adapter.Adapter
	Taxonomy *taxonomy.Taxonomy
	Resolver *media.Resolver
	Service  *service.Service
	Health   *health.Monitor
	Gateway  *gateway.Gateway

	// NATS and Bridge are nil unless the bridge is enabled.
	NATS   *natsclient.Client
	Bridge *natsbridge.Bridge

	logger *slog.Logger

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	serveErr  chan error
	started   bool
	closeOnce sync.Once
}

// New builds every component from cfg. Nothing is connected until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Runtime", "New", "check config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{
		Config:  cfg,
		Metrics: metric.NewMetricsRegistry(),
		logger:  logger.With("component", "runtime"),
	}

	var err error
	rt.Pool, err = relay.NewPool(cfg.Relays.URLs,
		relay.WithLogger(logger),
		relay.WithMetrics(rt.Metrics),
		relay.WithConnectTimeout(cfg.Relays.ConnectTimeout),
		relay.WithEventVerification(cfg.Relays.VerifyEvents))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "New", "create relay pool")
	}

	rt.Engine, err = query.NewEngine(rt.Pool,
		query.WithLogger(logger),
		query.WithMetrics(rt.Metrics),
		query.WithRelayTimeout(cfg.Query.RelayTimeout),
		query.WithCacheTTL(cfg.Query.CacheTTL))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "New", "create query engine")
	}

	rt.Adapters, err = adapter.New(adapter.WithLogger(logger), adapter.WithMetrics(rt.Metrics))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "New", "create adapters")
	}

	rt.Taxonomy = taxonomy.New(taxonomy.WithLogger(logger))

	rt.Resolver, err = media.NewResolver(
		media.WithLogger(logger),
		media.WithMetrics(rt.Metrics),
		media.WithHTTPClient(&http.Client{Timeout: cfg.Media.RequestTimeout}),
		media.WithCacheTTL(cfg.Media.CacheTTL),
		media.WithRateLimit(rate.Limit(cfg.Media.RateLimit), cfg.Media.Burst),
		media.WithChecksumVerification(cfg.Media.VerifyChecksums),
		media.WithMaxFetchBytes(cfg.Media.MaxFetchBytes),
		media.WithCircuitBreaker(cfg.Media.BreakerFailures, cfg.Media.BreakerCooldown))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "New", "create media resolver")
	}

	rt.Service, err = service.New(rt.Engine, rt.Adapters, rt.Taxonomy,
		service.WithLogger(logger),
		service.WithResolver(rt.Resolver),
		service.WithFetchLimit(cfg.Query.FetchLimit))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "New", "create service")
	}

	if cfg.NATS.Enabled {
		if err := rt.buildBridge(logger); err != nil {
			return nil, err
		}
	}

	rt.Health = health.NewMonitor(health.WithMetrics(rt.Metrics))
	rt.Health.Register("relays", func() health.Status {
		return health.FromRelayStatus("relays", rt.Pool.Status())
	})
	if rt.NATS != nil {
		rt.Health.Register("nats", rt.natsHealth)
	}

	rt.Gateway, err = gateway.New(rt.Service,
		gateway.WithLogger(logger),
		gateway.WithMetrics(rt.Metrics),
		gateway.WithHealth(rt.Health),
		gateway.WithRelayStatus(rt.Pool.Status),
		gateway.WithCacheStats(rt.CacheStats),
		gateway.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		gateway.WithCORSOrigins(cfg.HTTP.CORSOrigins...))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "New", "create gateway")
	}

	return rt, nil
}

func (rt *Runtime) buildBridge(logger *slog.Logger) error {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithClientName(rt.Config.NATS.ClientName),
		natsclient.WithDrainTimeout(rt.Config.NATS.DrainTimeout),
	}
	if rt.Config.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(rt.Config.NATS.Token))
	}

	client, err := natsclient.NewClient(rt.Config.NATS.URL, opts...)
	if err != nil {
		return errors.Wrap(err, "Runtime", "New", "create NATS client")
	}

	bridge, err := natsbridge.New(rt.Pool, client,
		natsbridge.WithLogger(logger),
		natsbridge.WithMetrics(rt.Metrics),
		natsbridge.WithSubjectPrefix(rt.Config.NATS.SubjectPrefix),
		natsbridge.WithKinds(rt.Config.NATS.Kinds...),
		natsbridge.WithStopTimeout(rt.Config.NATS.DrainTimeout))
	if err != nil {
		return errors.Wrap(err, "Runtime", "New", "create live bridge")
	}

	rt.NATS = client
	rt.Bridge = bridge
	return nil
}

// natsHealth reports a lost NATS connection as degraded: queries still work.
func (rt *Runtime) natsHealth() health.Status {
	if rt.NATS.IsHealthy() {
		return health.NewHealthy("nats", rt.NATS.Status().String())
	}
	return health.NewDegraded("nats", rt.NATS.Status().String())
}

// CacheStats summarizes the query and media caches.
func (rt *Runtime) CacheStats() map[string]cache.StatsSummary {
	out := make(map[string]cache.StatsSummary, 2)
	if stats := rt.Engine.CacheStats(); stats != nil {
		out["query"] = stats.Summary()
	}
	if stats := rt.Resolver.CacheStats(); stats != nil {
		out["media"] = stats.Summary()
	}
	return out
}

// Start connects the relays, starts the live bridge when enabled and begins
// serving HTTP on the configured address. Unreachable relays do not fail
// Start: queries report unavailability until a relay is reachable.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Runtime", "Start", "check state")
	}

	status := rt.Pool.ConnectAll(ctx)
	if status.Connected == 0 {
		rt.logger.Warn("No relay reachable, serving degraded", "relays", status.Total)
	} else {
		rt.logger.Info("Relays connected", "connected", status.Connected, "total", status.Total)
	}

	if rt.Bridge != nil {
		if err := rt.NATS.Connect(ctx); err != nil {
			return errors.Wrap(err, "Runtime", "Start", "connect NATS")
		}
		if err := rt.Bridge.Start(); err != nil {
			rt.logger.Warn("Live bridge not started", "error", err)
		}
	}

	ln, err := net.Listen("tcp", rt.Config.HTTP.Addr())
	if err != nil {
		return errors.WrapFatal(err, "Runtime", "Start", "listen")
	}

	rt.listener = ln
	rt.server = &http.Server{
		Handler:           rt.Gateway.Handler(),
		ReadTimeout:       rt.Config.HTTP.ReadTimeout,
		ReadHeaderTimeout: rt.Config.HTTP.ReadTimeout,
		WriteTimeout:      rt.Config.HTTP.WriteTimeout,
	}
	rt.serveErr = make(chan error, 1)
	go func(srv *http.Server, errs chan<- error) {
		err := srv.Serve(ln)
		if stderrors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errs <- err
	}(rt.server, rt.serveErr)

	rt.started = true
	rt.logger.Info("HTTP gateway listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the address the gateway listens on, or "" before Start.
func (rt *Runtime) Addr() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.listener == nil {
		return ""
	}
	return rt.listener.Addr().String()
}

// Run starts the runtime and blocks until ctx ends or the server fails,
// then shuts everything down.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(ctx); err != nil {
		_ = rt.Close(context.Background())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-rt.serveErr:
			if err != nil {
				return errors.WrapFatal(err, "Runtime", "Run", "serve HTTP")
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.Config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := rt.Close(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Close stops serving and releases every connection. It is safe to call
// more than once and without Start.
func (rt *Runtime) Close(ctx context.Context) error {
	var closeErr error
	rt.closeOnce.Do(func() {
		rt.mu.Lock()
		server := rt.server
		rt.mu.Unlock()

		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				closeErr = errors.Wrap(err, "Runtime", "Close", "shutdown HTTP")
			}
		}

		if rt.Bridge != nil {
			if err := rt.Bridge.Stop(); err != nil && !stderrors.Is(err, errors.ErrNotStarted) {
				rt.logger.Debug("Live bridge stop", "error", err)
			}
		}
		if rt.NATS != nil {
			if err := rt.NATS.Close(ctx); err != nil {
				rt.logger.Debug("NATS close", "error", err)
			}
		}

		rt.Pool.DisconnectAll()
		rt.logger.Info("Runtime stopped")
	})
	return closeErr
}
