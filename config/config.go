package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/c360/heritagestreams/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HERITAGE"

// Config is the complete application configuration.
type Config struct {
	Relays RelayConfig `yaml:"relays" json:"relays"`
	Query  QueryConfig `yaml:"query" json:"query"`
	Media  MediaConfig `yaml:"media" json:"media"`
	HTTP   HTTPConfig  `yaml:"http" json:"http"`
	NATS   NATSConfig  `yaml:"nats" json:"nats"`
	Log    LogConfig   `yaml:"log" json:"log"`
}

// RelayConfig lists the relays and how to talk to them.
type RelayConfig struct {
	URLs           []string      `yaml:"urls" json:"urls" validate:"required,min=1,dive,required"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`
	VerifyEvents   bool          `yaml:"verify_events" json:"verify_events"`
}

// QueryConfig tunes the query engine and the service facade.
type QueryConfig struct {
	RelayTimeout time.Duration `yaml:"relay_timeout" json:"relay_timeout" validate:"gt=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"gt=0"`
	FetchLimit   int           `yaml:"fetch_limit" json:"fetch_limit" validate:"min=1,max=5000"`
}

// MediaConfig tunes media resolution.
type MediaConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`
	RateLimit       float64       `yaml:"rate_limit" json:"rate_limit" validate:"gt=0"`
	Burst           int           `yaml:"burst" json:"burst" validate:"min=1"`
	VerifyChecksums bool          `yaml:"verify_checksums" json:"verify_checksums"`
	MaxFetchBytes   int64         `yaml:"max_fetch_bytes" json:"max_fetch_bytes" validate:"min=1"`
	// BreakerFailures consecutive transient failures stop probes to a host
	// for BreakerCooldown. Zero disables the breaker.
	BreakerFailures uint32        `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown" validate:"gt=0"`
}

// HTTPConfig configures the JSON gateway.
type HTTPConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`
	CORSOrigins     []string      `yaml:"cors_origins" json:"cors_origins,omitempty"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// NATSConfig configures the live event bridge. The bridge is off unless Enabled.
type NATSConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	URL           string        `yaml:"url" json:"url" validate:"required_if=Enabled true"`
	Token         string        `yaml:"token" json:"token,omitempty"`
	ClientName    string        `yaml:"client_name" json:"client_name"`
	SubjectPrefix string        `yaml:"subject_prefix" json:"subject_prefix" validate:"required_if=Enabled true"`
	Kinds         []int         `yaml:"kinds" json:"kinds,omitempty" validate:"dive,min=0"`
	DrainTimeout  time.Duration `yaml:"drain_timeout" json:"drain_timeout" validate:"gt=0"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json text"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Relays: RelayConfig{
			URLs:           []string{"wss://relay.damus.io", "wss://nos.lol"},
			ConnectTimeout: 10 * time.Second,
		},
		Query: QueryConfig{
			RelayTimeout: 5 * time.Second,
			CacheTTL:     5 * time.Minute,
			FetchLimit:   500,
		},
		Media: MediaConfig{
			CacheTTL:        5 * time.Minute,
			RequestTimeout:  10 * time.Second,
			RateLimit:       10,
			Burst:           5,
			MaxFetchBytes:   64 << 20,
			BreakerFailures: 5,
			BreakerCooldown: time.Minute,
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  20 * time.Second,
		},
		NATS: NATSConfig{
			ClientName:    "heritagestreams",
			SubjectPrefix: "heritage.events",
			DrainTimeout:  5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks struct constraints and relay URL schemes.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Config", "Validate", "check fields")
	}

	seen := make(map[string]bool, len(c.Relays.URLs))
	for _, raw := range c.Relays.URLs {
		if err := validateRelayURL(raw); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "check relays")
		}
		if seen[raw] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: duplicate relay %s", errors.ErrInvalidConfig, raw),
				"Config", "Validate", "check relays")
		}
		seen[raw] = true
	}

	if c.NATS.Enabled {
		u, err := url.Parse(c.NATS.URL)
		if err != nil || (u.Scheme != "nats" && u.Scheme != "tls") || u.Host == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: nats.url must be nats:// or tls://", errors.ErrInvalidConfig),
				"Config", "Validate", "check nats")
		}
	}
	return nil
}

func validateRelayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: relay %q: %w", errors.ErrInvalidConfig, raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: relay %q must use ws:// or wss://", errors.ErrInvalidConfig, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: relay %q has no host", errors.ErrInvalidConfig, raw)
	}
	return nil
}

// String returns the configuration as YAML with secrets masked.
func (c *Config) String() string {
	masked := *c
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	data, _ := yaml.Marshal(&masked)
	return string(data)
}

// Loader merges configuration layers over Default.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a loader reading overrides from the process environment.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: EnvPrefix,
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables validation in Load.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies every layer and the environment over the defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		if err := l.loadLayer(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Load is shorthand for a validated single-file load. An empty path loads
// the defaults and the environment only.
func Load(path string) (*Config, error) {
	l := NewLoader()
	l.EnableValidation(true)
	if path != "" {
		l.AddLayer(path)
	}
	return l.Load()
}

// loadLayer decodes path over cfg. Keys absent from the file keep their
// current values; a present list replaces the list.
func (l *Loader) loadLayer(path string, cfg *Config) error {
	data, err := safeReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrConfigNotFound, path), "Loader", "Load", "read layer")
		}
		return errors.WrapFatal(err, "Loader", "Load", "read layer")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err),
			"Loader", "Load", "decode layer")
	}
	return nil
}

func (l *Loader) env(name string) (string, error) {
	key := l.envPrefix + "_" + name
	val := strings.TrimSpace(l.getenv(key))
	if err := validateEnvVar(key, val); err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Loader", "Load", "read environment")
	}
	return val, nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	val, err := l.env("RELAYS")
	if err != nil {
		return err
	}
	if val != "" {
		var urls []string
		for _, u := range strings.Split(val, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.Relays.URLs = urls
	}

	if val, err = l.env("HTTP_PORT"); err != nil {
		return err
	}
	if val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s_HTTP_PORT=%q", errors.ErrInvalidConfig, l.envPrefix, val),
				"Loader", "Load", "parse port")
		}
		cfg.HTTP.Port = port
	}

	if val, err = l.env("NATS_URL"); err != nil {
		return err
	}
	if val != "" {
		cfg.NATS.URL = val
		cfg.NATS.Enabled = true
	}

	if val, err = l.env("LOG_LEVEL"); err != nil {
		return err
	}
	if val != "" {
		cfg.Log.Level = strings.ToLower(val)
	}
	return nil
}
