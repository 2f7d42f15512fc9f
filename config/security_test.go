package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty", "", true},
		{"too long", strings.Repeat("a", maxPathLen+1) + ".yaml", true},
		{"relative yaml", "configs/heritage.yaml", false},
		{"relative yml", "heritage.yml", false},
		{"json", "/etc/heritage/heritage.json", false},
		{"escapes cwd", "../../etc/heritage.yaml", true},
		{"wrong extension", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSafeReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("directory", func(t *testing.T) {
		sub := filepath.Join(dir, "dir.yaml")
		require.NoError(t, os.Mkdir(sub, 0700))
		_, err := safeReadFile(sub)
		assert.ErrorContains(t, err, "not a regular file")
	})

	t.Run("too large", func(t *testing.T) {
		big := filepath.Join(dir, "big.yaml")
		require.NoError(t, os.WriteFile(big, make([]byte, maxConfigSize+1), 0600))
		_, err := safeReadFile(big)
		assert.ErrorContains(t, err, "too large")
	})

	t.Run("ok", func(t *testing.T) {
		ok := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(ok, []byte("log:\n  level: info\n"), 0600))
		data, err := safeReadFile(ok)
		require.NoError(t, err)
		assert.Contains(t, string(data), "level")
	})
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("K", ""))
	assert.NoError(t, validateEnvVar("K", "wss://relay.example"))
	assert.Error(t, validateEnvVar("K", strings.Repeat("x", maxEnvVarLen+1)))
	assert.Error(t, validateEnvVar("K", "a\x00b"))
}
