// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
//
// Cache TTLs, code-generation bounds, and emitter sizing are deliberately
// configuration points rather than constants: the staleness window of the
// lookup cache and the retry budget of code generation are operational
// tunables, not fixed requirements.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL for short links (e.g., https://brv.to)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Lookup cache. LinkCacheTTL caps how long a deactivation made without a
	// matching invalidate can keep being served.
	LinkCacheTTL         time.Duration `env:"LINK_CACHE_TTL" envDefault:"5m"`
	NegativeCacheEnabled bool          `env:"NEGATIVE_CACHE_ENABLED" envDefault:"true"`
	NegativeCacheTTL     time.Duration `env:"NEGATIVE_CACHE_TTL" envDefault:"1m"`

	// Short code generation
	CodeMinLength      int `env:"CODE_MIN_LENGTH" envDefault:"6"`
	CodeMaxLength      int `env:"CODE_MAX_LENGTH" envDefault:"10"`
	CodeDrawsPerLength int `env:"CODE_DRAWS_PER_LENGTH" envDefault:"5"`

	// Store lookup retry before surfacing Unavailable
	StoreRetryTimeout time.Duration `env:"STORE_RETRY_TIMEOUT" envDefault:"500ms"`

	// Click event emitter
	ClickQueueSize      int           `env:"CLICK_QUEUE_SIZE" envDefault:"1024"`
	ClickWorkers        int           `env:"CLICK_WORKERS" envDefault:"2"`
	ClickPublishRetries int           `env:"CLICK_PUBLISH_RETRIES" envDefault:"3"`
	ClickPublishTimeout time.Duration `env:"CLICK_PUBLISH_TIMEOUT" envDefault:"200ms"`

	// Click counter flush
	ClickFlushInterval time.Duration `env:"CLICK_FLUSH_INTERVAL" envDefault:"30s"`

	// Redirect rate limiting (per IP)
	RateLimitRedirectEnabled bool `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"true"`
	RateLimitRedirectRPS     int  `env:"RATE_LIMIT_REDIRECT_RPS" envDefault:"100"`
	RateLimitRedirectBurst   int  `env:"RATE_LIMIT_REDIRECT_BURST" envDefault:"20"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CodeMinLength < 1 || c.CodeMinLength > c.CodeMaxLength {
		return fmt.Errorf("invalid code length bounds: min=%d max=%d", c.CodeMinLength, c.CodeMaxLength)
	}
	if c.CodeDrawsPerLength < 1 {
		return fmt.Errorf("CODE_DRAWS_PER_LENGTH must be positive, got %d", c.CodeDrawsPerLength)
	}
	if c.ClickQueueSize < 1 {
		return fmt.Errorf("CLICK_QUEUE_SIZE must be positive, got %d", c.ClickQueueSize)
	}
	if c.ClickWorkers < 1 {
		return fmt.Errorf("CLICK_WORKERS must be positive, got %d", c.ClickWorkers)
	}
	return nil
}
