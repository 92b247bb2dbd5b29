package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
)

// Config holds the client configuration, read from the environment
type Config struct {
	API       APIConfig
	Sync      SyncConfig
	Cache     CacheConfig
	Server    ServerConfig
	LogConfig LogConfig
}

type APIConfig struct {
	BaseURL       string        `env:"RATESYNC_API_URL" env-default:"https://api.frankfurter.app"`
	DialTimeout   time.Duration `env:"RATESYNC_DIAL_TIMEOUT" env-default:"5s"`
	ProbeInterval time.Duration `env:"RATESYNC_PROBE_INTERVAL" env-default:"15s"`
}

type SyncConfig struct {
	Base            string        `env:"RATESYNC_BASE" env-default:"EUR"`
	Targets         []string      `env:"RATESYNC_TARGETS" env-separator:"," env-default:"USD,GBP,JPY,CHF"`
	Timeout         time.Duration `env:"RATESYNC_SYNC_TIMEOUT" env-default:"10s"`
	RefreshInterval time.Duration `env:"RATESYNC_REFRESH_INTERVAL" env-default:"30s"`
	// Schedule overrides RefreshInterval with a cron expression or descriptor
	Schedule string `env:"RATESYNC_REFRESH_SCHEDULE"`
}

type CacheConfig struct {
	Dir          string   `env:"RATESYNC_CACHE_DIR" env-default:"./data/cache"`
	Version      string   `env:"RATESYNC_CACHE_VERSION" env-default:"v1"`
	StaticAssets []string `env:"RATESYNC_STATIC_ASSETS" env-separator:","`
	AssetBaseURL string   `env:"RATESYNC_ASSET_BASE_URL"`
}

type ServerConfig struct {
	Addr string `env:"RATESYNC_HTTP_ADDR" env-default:":8080"`
}

type LogConfig struct {
	Level string `env:"RATESYNC_LOG_LEVEL" env-default:"info"`
}

// Load reads the configuration. When envFile is set, it is loaded into the
// environment first; variables already set take precedence.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file: %w", err)
			}
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Sync.Base = strings.ToUpper(strings.TrimSpace(c.Sync.Base))

	targets := make([]string, 0, len(c.Sync.Targets))
	for _, t := range c.Sync.Targets {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			targets = append(targets, t)
		}
	}
	c.Sync.Targets = targets

	assets := make([]string, 0, len(c.Cache.StaticAssets))
	for _, a := range c.Cache.StaticAssets {
		if a = strings.TrimSpace(a); a != "" {
			assets = append(assets, a)
		}
	}
	c.Cache.StaticAssets = assets
}

// Validate checks the configuration for values the client cannot run with
func (c *Config) Validate() error {
	if err := validateURL("RATESYNC_API_URL", c.API.BaseURL); err != nil {
		return err
	}
	if c.Cache.AssetBaseURL != "" {
		if err := validateURL("RATESYNC_ASSET_BASE_URL", c.Cache.AssetBaseURL); err != nil {
			return err
		}
	}
	for _, asset := range c.Cache.StaticAssets {
		if err := validateURL("RATESYNC_STATIC_ASSETS", asset); err != nil {
			return err
		}
	}

	if !isCurrencyCode(c.Sync.Base) {
		return fmt.Errorf("invalid base currency %q", c.Sync.Base)
	}
	for _, t := range c.Sync.Targets {
		if !isCurrencyCode(t) {
			return fmt.Errorf("invalid target currency %q", t)
		}
	}

	durations := map[string]time.Duration{
		"RATESYNC_SYNC_TIMEOUT":     c.Sync.Timeout,
		"RATESYNC_REFRESH_INTERVAL": c.Sync.RefreshInterval,
		"RATESYNC_DIAL_TIMEOUT":     c.API.DialTimeout,
		"RATESYNC_PROBE_INTERVAL":   c.API.ProbeInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Sync.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", c.Sync.Schedule, err)
		}
	}

	if strings.TrimSpace(c.Cache.Version) == "" || strings.Contains(c.Cache.Version, ":") {
		return fmt.Errorf("invalid cache version %q", c.Cache.Version)
	}

	if _, err := logger.ParseLevel(c.LogConfig.Level); err != nil {
		return err
	}

	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute http(s) URL", name, raw)
	}
	return nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
