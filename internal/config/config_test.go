package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
whisper:
  model: mock
queue:
  max_depth: 5
  drain_delay: 250ms
compression:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "mock", cfg.Whisper.Model)
	assert.Equal(t, "en", cfg.Whisper.Language)
	assert.Equal(t, 5, cfg.Queue.MaxDepth)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.DrainDelay)
	assert.False(t, cfg.Compression.Enabled)
	assert.Equal(t, 720, cfg.Compression.Resolution)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [port"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"queue depth", func(c *Config) { c.Queue.MaxDepth = -1 }},
		{"drain delay", func(c *Config) { c.Queue.DrainDelay = -time.Second }},
		{"file size", func(c *Config) { c.Limits.MaxFileSizeMB = 0 }},
		{"cleanup", func(c *Config) { c.Cleanup.MaxAgeHours = 0 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"database", func(c *Config) { c.Storage.Database = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestMaxFileSize(t *testing.T) {
	cfg := Default()
	cfg.Limits.MaxFileSizeMB = 2
	assert.Equal(t, int64(2*1024*1024), cfg.MaxFileSize())
}
