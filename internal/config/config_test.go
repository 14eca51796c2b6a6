package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.False(t, cfg.Server.Enabled)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	require.Equal(t, 5, cfg.HTTP.MaxRedirects)
	require.True(t, cfg.HTTP.EnableHTTP2)
	require.Equal(t, int64(10*1024*1024), cfg.HTTP.MaxBodyBytes)
	require.True(t, cfg.Headless.Enabled)
	require.Equal(t, 2, cfg.Headless.MaxParallel)
	require.Equal(t, 1500, cfg.Headless.SettleMs)
	require.False(t, cfg.Fetch.AutoPromote)
	require.Equal(t, 50, cfg.MCP.MaxURLsPerCall)
	require.Equal(t, "noop", cfg.History.Provider)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  enabled: true
  port: 9999
http:
  timeout_seconds: 10
headless:
  enabled: false
fetch:
  auto_promote: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.True(t, cfg.Server.Enabled)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 10, cfg.HTTP.TimeoutSeconds)
	require.False(t, cfg.Headless.Enabled)
	require.True(t, cfg.Fetch.AutoPromote)
	// Untouched keys keep defaults.
	require.Equal(t, 5, cfg.HTTP.MaxRedirects)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"negative redirects", func(c *Config) { c.HTTP.MaxRedirects = -1 }},
		{"zero body cap", func(c *Config) { c.HTTP.MaxBodyBytes = 0 }},
		{"headless without parallel", func(c *Config) { c.Headless.MaxParallel = 0 }},
		{"zero batch", func(c *Config) { c.MCP.MaxURLsPerCall = 0 }},
		{"server without port", func(c *Config) { c.Server.Enabled = true; c.Server.Port = 0 }},
		{"postgres without dsn", func(c *Config) { c.History.Provider = "postgres" }},
		{"unknown provider", func(c *Config) { c.History.Provider = "redis" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.HTTP.TimeoutSeconds = 10
	cfg.Headless.NavTimeoutSec = 45
	cfg.Headless.SettleMs = 1500

	require.Equal(t, 10*time.Second, cfg.RequestTimeout())
	require.Equal(t, 45*time.Second, cfg.NavTimeout())
	require.Equal(t, 1500*time.Millisecond, cfg.SettleWait())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FETCHKIT_HTTP_TIMEOUT_SECONDS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.HTTP.TimeoutSeconds)
}
