package media

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/pkg/cache"
	"github.com/c360/heritagestreams/protocol"
)

const (
	// DefaultCacheTTL is how long a resolution is reused
	DefaultCacheTTL = 5 * time.Minute
	// DefaultRequestTimeout bounds a single probe or fetch
	DefaultRequestTimeout = 10 * time.Second
	// DefaultMaxFetchBytes caps the body read for checksum verification
	DefaultMaxFetchBytes = 64 << 20
	// DefaultBreakerFailures is how many consecutive transient failures open a host's circuit
	DefaultBreakerFailures = 5
	// DefaultBreakerCooldown is how long an open circuit skips the host
	DefaultBreakerCooldown = time.Minute
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	client         Doer
	logger         *slog.Logger
	registry       *metric.MetricsRegistry
	cacheTTL       time.Duration
	clock          cache.Clock
	limiter        *rate.Limiter
	verifyChecksum bool
	maxFetchBytes  int64
	requestTimeout time.Duration
	breakerFails   uint32
	breakerCool    time.Duration
}

// WithHTTPClient sets the client used for probes and fetches.
func WithHTTPClient(client Doer) Option {
	return func(o *resolverOptions) {
		if client != nil {
			o.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records resolution sources and cache statistics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *resolverOptions) { o.registry = registry }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(d time.Duration) Option {
	return func(o *resolverOptions) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}

// WithClock sets the clock used for cache expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *resolverOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRateLimit paces outbound requests.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *resolverOptions) {
		o.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithChecksumVerification enables fetching files to compare their sha256
// against the declared checksum.
func WithChecksumVerification(enabled bool) Option {
	return func(o *resolverOptions) { o.verifyChecksum = enabled }
}

// WithMaxFetchBytes overrides DefaultMaxFetchBytes.
func WithMaxFetchBytes(n int64) Option {
	return func(o *resolverOptions) {
		if n > 0 {
			o.maxFetchBytes = n
		}
	}
}

// WithCircuitBreaker stops probing a host for cooldown after failures
// consecutive transient failures; resolution falls back to the file
// extension meanwhile. Zero failures disables the breaker.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) Option {
	return func(o *resolverOptions) {
		o.breakerFails = failures
		if cooldown > 0 {
			o.breakerCool = cooldown
		}
	}
}

// Resolver turns URLs and file-metadata events into Results.
type Resolver struct {
	client         Doer
	logger         *slog.Logger
	metrics        *metric.Metrics
	limiter        *rate.Limiter
	cache          cache.Cache[Result]
	verifyChecksum bool
	maxFetchBytes  int64
	requestTimeout time.Duration
	breakers       *hostBreakers
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) (*Resolver, error) {
	o := resolverOptions{
		client:         &http.Client{Timeout: DefaultRequestTimeout},
		logger:         slog.Default(),
		cacheTTL:       DefaultCacheTTL,
		clock:          time.Now,
		limiter:        rate.NewLimiter(rate.Limit(10), 5),
		maxFetchBytes:  DefaultMaxFetchBytes,
		requestTimeout: DefaultRequestTimeout,
		breakerFails:   DefaultBreakerFailures,
		breakerCool:    DefaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(&o)
	}

	resultCache, err := cache.NewTTL[Result](o.cacheTTL,
		cache.WithClock[Result](o.clock),
		cache.WithMetrics[Result](o.registry, "media"))
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "NewResolver", "create result cache")
	}

	r := &Resolver{
		client:         o.client,
		logger:         o.logger.With("component", "media_resolver"),
		limiter:        o.limiter,
		cache:          resultCache,
		verifyChecksum: o.verifyChecksum,
		maxFetchBytes:  o.maxFetchBytes,
		requestTimeout: o.requestTimeout,
	}
	if o.breakerFails > 0 {
		r.breakers = newHostBreakers(o.breakerFails, o.breakerCool, r.logger)
	}
	if o.registry != nil {
		r.metrics = o.registry.CoreMetrics()
	}
	return r, nil
}

// fileContent is the content-JSON fallback for file-metadata fields.
type fileContent struct {
	URL       string  `json:"url"`
	MimeType  string  `json:"mimeType"`
	M         string  `json:"m"`
	Dim       string  `json:"dim"`
	Duration  float64 `json:"duration"`
	Checksum  string  `json:"checksum"`
	X         string  `json:"x"`
	Size      int64   `json:"size"`
	Thumbnail string  `json:"thumb"`
	Alt       string  `json:"alt"`
	Blurhash  string  `json:"blurhash"`
}

// ResolveEvent resolves a file-metadata event. Tags take precedence over
// content fields. When the event has no usable URL a placeholder is returned.
func (r *Resolver) ResolveEvent(ctx context.Context, ev *protocol.Event) Result {
	if ev == nil {
		return r.placeholder(CategoryDocument)
	}

	var c fileContent
	if strings.HasPrefix(strings.TrimSpace(ev.Content), "{") {
		_ = json.Unmarshal([]byte(ev.Content), &c)
	}

	source := SourceTags
	rawURL := tagOr(ev, "url", "")
	if rawURL == "" {
		rawURL = strings.TrimSpace(c.URL)
		source = SourceContent
	}

	meta := Metadata{
		MimeType: baseOrEmpty(tagOr(ev, "m", firstNonEmpty(c.MimeType, c.M))),
		Checksum: strings.ToLower(tagOr(ev, "x", firstNonEmpty(c.Checksum, c.X))),
		Alt:      tagOr(ev, "alt", c.Alt),
		Blurhash: tagOr(ev, "blurhash", c.Blurhash),
		Size:     c.Size,
		Duration: c.Duration,
	}
	meta.Width, meta.Height = parseDim(tagOr(ev, "dim", c.Dim))
	if raw, ok := protocol.TagValue(ev, "size"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			meta.Size = n
		}
	}
	if raw, ok := protocol.TagValue(ev, "duration"); ok {
		if d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			meta.Duration = d
		}
	}

	if !isFetchable(rawURL) {
		r.logger.Warn("File metadata has no usable url", "event_id", ev.ID)
		return r.placeholder(CategoryOf(meta.MimeType))
	}

	key := ev.ID + "|" + rawURL
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	if r.verifyChecksum && meta.Checksum != "" {
		r.verify(ctx, ev.ID, rawURL, &meta)
	}
	if meta.MimeType == "" {
		if t, ok := mimeFromExtension(rawURL); ok {
			meta.MimeType = t
		}
	}

	category := CategoryOf(meta.MimeType)
	result := Result{
		URL:       rawURL,
		Metadata:  meta,
		Thumbnail: thumbnailFor(tagOr(ev, "thumb", tagOr(ev, "image", c.Thumbnail)), rawURL, category),
		Category:  category,
		Source:    source,
	}
	r.store(key, result)
	return result
}

// ResolveURL resolves a bare URL with a header-only probe, falling back to
// the file extension when the probe fails.
func (r *Resolver) ResolveURL(ctx context.Context, rawURL string) Result {
	rawURL = strings.TrimSpace(rawURL)
	if !isFetchable(rawURL) {
		return r.placeholder(categoryFromExtension(rawURL))
	}

	if cached, ok := r.cache.Get(rawURL); ok {
		return cached
	}

	meta, err := r.probe(ctx, rawURL)
	source := SourceProbe
	if err != nil || meta.MimeType == "" {
		if err != nil {
			r.logger.Debug("Media probe failed", "url", rawURL, "error", err)
		}
		t, ok := mimeFromExtension(rawURL)
		if !ok {
			if err != nil {
				return r.placeholder(CategoryDocument)
			}
			t = "application/octet-stream"
		}
		meta.MimeType = t
		source = SourceExtension
	}

	category := CategoryOf(meta.MimeType)
	result := Result{
		URL:       rawURL,
		Metadata:  meta,
		Thumbnail: thumbnailFor("", rawURL, category),
		Category:  category,
		Source:    source,
	}
	r.store(rawURL, result)
	return result
}

// CacheStats exposes the resolution cache statistics.
func (r *Resolver) CacheStats() *cache.Statistics {
	return r.cache.Stats()
}

func (r *Resolver) store(key string, result Result) {
	if _, err := r.cache.Set(key, result); err != nil {
		r.logger.Warn("Failed to cache media result", "key", key, "error", err)
	}
	r.metrics.RecordMediaResolution(result.Source)
}

func (r *Resolver) placeholder(category Category) Result {
	r.metrics.RecordMediaResolution(SourcePlaceholder)
	return Placeholder(category)
}

func categoryFromExtension(rawURL string) Category {
	if t, ok := mimeFromExtension(rawURL); ok {
		return CategoryOf(t)
	}
	return CategoryDocument
}

func isFetchable(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseDim reads a "<width>x<height>" dimension.
func parseDim(dim string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(dim)), "x")
	if !ok {
		return 0, 0
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || width < 0 || height < 0 {
		return 0, 0
	}
	return width, height
}

func tagOr(ev *protocol.Event, name, fallback string) string {
	if v, ok := protocol.TagValue(ev, name); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func baseOrEmpty(t string) string {
	if t == "" {
		return ""
	}
	return baseMimeType(t)
}
