// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Search   SearchConfig   `mapstructure:"search"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the optional status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the transport layer.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRedirects   int    `mapstructure:"max_redirects"`
	UserAgent      string `mapstructure:"user_agent"`
	EnableHTTP2    bool   `mapstructure:"enable_http2"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the JS rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ExecPath      string `mapstructure:"exec_path"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	SettleMs      int    `mapstructure:"settle_ms"`
}

// FetchConfig bounds extraction output and tier promotion.
type FetchConfig struct {
	MaxTextChars int  `mapstructure:"max_text_chars"`
	MaxLinks     int  `mapstructure:"max_links"`
	AutoPromote  bool `mapstructure:"auto_promote"`
}

// MCPConfig bounds per-call behavior of the MCP tool surface.
type MCPConfig struct {
	MaxURLsPerCall int `mapstructure:"max_urls_per_call"`
}

// SearchConfig holds Google Custom Search credentials for the web_search
// tool. Empty credentials leave the tool advertised but unconfigured.
type SearchConfig struct {
	APIKey     string `mapstructure:"api_key"`
	EngineID   string `mapstructure:"engine_id"`
	NumResults int    `mapstructure:"num_results"`
}

// HistoryConfig selects the optional fetch-audit store.
type HistoryConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FETCHKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("http.enable_http2", true)
	v.SetDefault("http.max_body_bytes", int64(10*1024*1024))
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_ms", 1500)
	v.SetDefault("fetch.max_text_chars", 2_000_000)
	v.SetDefault("fetch.max_links", 300)
	v.SetDefault("fetch.auto_promote", false)
	v.SetDefault("mcp.max_urls_per_call", 50)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.engine_id", "")
	v.SetDefault("search.num_results", 15)
	v.SetDefault("history.provider", "noop")
	v.SetDefault("history.dsn", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.max_redirects must be >= 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.MCP.MaxURLsPerCall <= 0 {
		return fmt.Errorf("mcp.max_urls_per_call must be > 0")
	}
	if c.Search.NumResults <= 0 {
		return fmt.Errorf("search.num_results must be > 0")
	}
	switch c.History.Provider {
	case "noop":
	case "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn must be set when history.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown history provider: %s", c.History.Provider)
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// SettleWait converts the bounded post-load settle delay into a duration.
func (c Config) SettleWait() time.Duration {
	return time.Duration(c.Headless.SettleMs) * time.Millisecond
}
