package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every configuration value the control plane reads from
// its environment.
type Config struct {
	// Server
	Env             string        `envconfig:"ENV" default:"development"`
	AdminAddr       string        `envconfig:"ADMIN_ADDR" default:":8090"`
	GracefulTimeout time.Duration `envconfig:"GRACEFUL_TIMEOUT" default:"15s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	// Shared key-value store
	StoreDSN string `envconfig:"STORE_DSN" default:"redis://redis:6379"`

	// Upstream catalog
	CatalogURL     string        `envconfig:"CATALOG_URL" default:"http://catalog:8000"`
	CatalogTimeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"5s"`

	// Regulator cadence
	TickSeconds int `envconfig:"TICK_SECONDS" default:"1"`

	// Size-to-rate mapping
	MinCrawlRPS  int `envconfig:"MIN_CRAWL_RPS" default:"1"`
	MaxCrawlRPS  int `envconfig:"MAX_CRAWL_RPS" default:"100"`
	MaxCrawlSize int `envconfig:"MAX_CRAWL_SIZE" default:"50000000"`

	// Circuit breaker
	HardHaltSampleSize     int           `envconfig:"HARD_HALT_SAMPLE_SIZE" default:"50"`
	TempHaltMinSamples     int           `envconfig:"TEMP_HALT_MIN_SAMPLES" default:"10"`
	TempHaltThresholdRatio float64       `envconfig:"TEMP_HALT_THRESHOLD_RATIO" default:"0.25"`
	TempHaltTTLSeconds     int           `envconfig:"TEMP_HALT_TTL_SECONDS" default:"300"`
}

// Load reads an optional .env file for local-dev convenience and then
// populates Config from the environment via envconfig, applying the
// struct tag defaults above. A missing .env file is not an error; a
// malformed or out-of-range environment value is fatal at startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.MinCrawlRPS <= 0 || cfg.MaxCrawlRPS < cfg.MinCrawlRPS {
		return nil, fmt.Errorf("load config: MIN_CRAWL_RPS/MAX_CRAWL_RPS must satisfy 0 < min <= max")
	}
	if cfg.MaxCrawlSize <= 0 {
		return nil, fmt.Errorf("load config: MAX_CRAWL_SIZE must be positive")
	}
	if cfg.TickSeconds <= 0 {
		return nil, fmt.Errorf("load config: TICK_SECONDS must be positive")
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Tick returns TICK_SECONDS as a time.Duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// TempHaltTTL returns TEMP_HALT_TTL_SECONDS as a time.Duration.
func (c *Config) TempHaltTTL() time.Duration {
	return time.Duration(c.TempHaltTTLSeconds) * time.Second
}
