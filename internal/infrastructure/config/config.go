// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Tracing   TracingConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// TracingConfig holds trace export and sampling configuration.
//
// Environment selects the sampler: "development" (or "dev"/"local") traces
// everything; any other value samples roots at SampleRatio.
type TracingConfig struct {
	Endpoint      string        `envconfig:"TRACE_ENDPOINT" default:"http://localhost:4318/v1/traces"`
	Environment   string        `envconfig:"TRACE_ENVIRONMENT" default:"development"`
	SampleRatio   float64       `envconfig:"TRACE_SAMPLE_RATIO" default:"0.1"`
	QueueSize     int           `envconfig:"TRACE_QUEUE_SIZE" default:"2048"`
	BatchSize     int           `envconfig:"TRACE_BATCH_SIZE" default:"512"`
	FlushInterval time.Duration `envconfig:"TRACE_FLUSH_INTERVAL" default:"5s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
//
// An out-of-range sampling ratio fails here, before any server starts:
// sampler misconfiguration is a contract violation, not a runtime condition.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	r := c.Tracing.SampleRatio
	if math.IsNaN(r) || r < 0 || r > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be in [0.0, 1.0], got %v", r)
	}
	if c.Tracing.Endpoint == "" {
		return fmt.Errorf("TRACE_ENDPOINT must not be empty")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Tracing: TracingConfig{
			Endpoint:      "http://localhost:4318/v1/traces",
			Environment:   "development",
			SampleRatio:   0.1,
			QueueSize:     2048,
			BatchSize:     512,
			FlushInterval: 5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
