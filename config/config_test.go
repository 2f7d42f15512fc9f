package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/heritagestreams/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(key string) string { return env[key] }
	return l
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoader_LoadYAML(t *testing.T) {
	path := writeConfig(t, "heritage.yaml", `
relays:
  urls:
    - wss://relay.one.example
    - ws://localhost:7777
  connect_timeout: 3s
  verify_events: true
query:
  relay_timeout: 2s
media:
  verify_checksums: true
http:
  port: 9090
log:
  level: debug
  format: text
`)

	l := testLoader(nil)
	l.EnableValidation(true)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://relay.one.example", "ws://localhost:7777"}, cfg.Relays.URLs)
	assert.Equal(t, 3*time.Second, cfg.Relays.ConnectTimeout)
	assert.True(t, cfg.Relays.VerifyEvents)
	assert.Equal(t, 2*time.Second, cfg.Query.RelayTimeout)
	assert.True(t, cfg.Media.VerifyChecksums)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.Query.CacheTTL)
	assert.Equal(t, 500, cfg.Query.FetchLimit)
	assert.Equal(t, 5, cfg.Media.Burst)
}

func TestLoader_LoadJSON(t *testing.T) {
	path := writeConfig(t, "heritage.json", `{
  "relays": {"urls": ["wss://relay.json.example"]},
  "nats": {"enabled": true, "url": "nats://localhost:4222", "kinds": [1, 1985]}
}`)

	l := testLoader(nil)
	l.EnableValidation(true)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://relay.json.example"}, cfg.Relays.URLs)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, []int{1, 1985}, cfg.NATS.Kinds)
	assert.Equal(t, "heritage.events", cfg.NATS.SubjectPrefix)
}

func TestLoader_LayersOverride(t *testing.T) {
	base := writeConfig(t, "base.yaml", `
relays:
  urls: [wss://base.example]
http:
  port: 8081
`)
	prod := writeConfig(t, "prod.yml", `
http:
  port: 8082
`)

	l := testLoader(nil)
	l.AddLayer(base)
	l.AddLayer(prod)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://base.example"}, cfg.Relays.URLs)
	assert.Equal(t, 8082, cfg.HTTP.Port)
}

func TestLoader_EnvOverrides(t *testing.T) {
	l := testLoader(map[string]string{
		"HERITAGE_RELAYS":    " wss://a.example, wss://b.example ,",
		"HERITAGE_HTTP_PORT": "7070",
		"HERITAGE_NATS_URL":  "nats://nats:4222",
		"HERITAGE_LOG_LEVEL": "WARN",
	})
	l.EnableValidation(true)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://a.example", "wss://b.example"}, cfg.Relays.URLs)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvErrors(t *testing.T) {
	_, err := testLoader(map[string]string{"HERITAGE_HTTP_PORT": "eighty"}).Load()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = testLoader(map[string]string{"HERITAGE_RELAYS": "wss://a\x00"}).Load()
	require.Error(t, err)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := testLoader(nil).LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrConfigNotFound)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "typo.yaml", "relay:\n  urls: [wss://x.example]\n")
		_, err := testLoader(nil).LoadFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := writeConfig(t, "heritage.toml", "")
		_, err := testLoader(nil).LoadFile(path)
		require.Error(t, err)
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "empty.yaml", "\n")
		cfg, err := testLoader(nil).LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, Default().Relays.URLs, cfg.Relays.URLs)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no relays", func(c *Config) { c.Relays.URLs = nil }},
		{"http relay", func(c *Config) { c.Relays.URLs = []string{"https://relay.example"} }},
		{"relay without host", func(c *Config) { c.Relays.URLs = []string{"wss://"} }},
		{"duplicate relay", func(c *Config) { c.Relays.URLs = []string{"wss://a.example", "wss://a.example"} }},
		{"zero relay timeout", func(c *Config) { c.Query.RelayTimeout = 0 }},
		{"fetch limit too large", func(c *Config) { c.Query.FetchLimit = 10000 }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true }},
		{"nats with http url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://localhost:4222"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_StringMasksToken(t *testing.T) {
	cfg := Default()
	cfg.NATS.Token = "s3cret"

	out := cfg.String()
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "connect_timeout: 10s")
	assert.Equal(t, "s3cret", cfg.NATS.Token)
}
