// Package config loads process configuration from the environment, an
// optional .env file and an optional bundle catalog file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/httputil"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Logging   LoggingConfig
	HTTP      HTTPConfig
	Retention RetentionConfig

	// BundlesFile points at an optional YAML bundle catalog.
	BundlesFile string `env:"BUNDLES_FILE"`
	// Bundles is filled from BundlesFile; empty means the defaults.
	Bundles []payment.Bundle
}

type ServerConfig struct {
	Port            int           `env:"PORT,default=3000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT,default=120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
}

// DatabaseConfig configures PostgreSQL. An empty URL runs the service on
// the in-memory store.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	Migrate         bool          `env:"DATABASE_MIGRATE,default=true"`
}

// RedisConfig optionally moves the wish sequence into Redis.
type RedisConfig struct {
	URL         string `env:"REDIS_URL"`
	SequenceKey string `env:"REDIS_SEQUENCE_KEY,default=wishbank:wish_sequence"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	APIBaseURL    string `env:"STRIPE_API_BASE_URL"`
	// EventTypesRaw is a comma-separated list; see EventTypes.
	EventTypesRaw string `env:"WEBHOOK_EVENT_TYPES,default=checkout.session.completed"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

type HTTPConfig struct {
	CORSAllowedOriginsRaw string  `env:"CORS_ALLOWED_ORIGINS"`
	WishRateLimit         float64 `env:"WISH_RATE_LIMIT,default=5"`
	WishRateBurst         int     `env:"WISH_RATE_BURST,default=10"`

	// TrustedProxiesRaw lists IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxiesRaw string `env:"TRUSTED_PROXIES"`
}

type RetentionConfig struct {
	Schedule          string        `env:"RETENTION_SCHEDULE,default=@daily"`
	PaymentEventTTL   time.Duration `env:"PAYMENT_EVENT_RETENTION,default=720h"`
	LimiterIdleWindow time.Duration `env:"RATE_LIMITER_IDLE_WINDOW,default=1h"`
}

// EventTypes returns the webhook event types that grant credits.
func (s StripeConfig) EventTypes() []string {
	return splitAndTrimCSV(s.EventTypesRaw)
}

// CORSAllowedOrigins returns the configured origins.
func (h HTTPConfig) CORSAllowedOrigins() []string {
	return splitAndTrimCSV(h.CORSAllowedOriginsRaw)
}

// TrustedProxies returns the configured proxy addresses.
func (h HTTPConfig) TrustedProxies() []string {
	return splitAndTrimCSV(h.TrustedProxiesRaw)
}

// Load reads .env (if present), decodes the environment and loads the
// bundle catalog.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment without touching .env.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.BundlesFile != "" {
		bundles, err := LoadBundles(cfg.BundlesFile)
		if err != nil {
			return nil, err
		}
		cfg.Bundles = bundles
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Server.Port)
	}
	if c.Database.URL != "" {
		u, err := url.Parse(c.Database.URL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fmt.Errorf("DATABASE_URL must be a postgres:// URL")
		}
	}
	if c.Redis.URL != "" {
		if _, err := url.Parse(c.Redis.URL); err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	if _, err := httputil.ParseTrustedProxies(c.HTTP.TrustedProxies()); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if c.HTTP.WishRateLimit < 0 {
		return fmt.Errorf("WISH_RATE_LIMIT must not be negative")
	}
	if c.Retention.PaymentEventTTL <= 0 {
		return fmt.Errorf("PAYMENT_EVENT_RETENTION must be positive")
	}
	return nil
}

type bundleFile struct {
	Bundles []payment.Bundle `yaml:"bundles"`
}

// LoadBundles reads a YAML catalog of the form:
//
//	bundles:
//	  - id: starter
//	    amount: 499
//	    currency: usd
//	    credits: 10
func LoadBundles(path string) ([]payment.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle catalog: %w", err)
	}
	var file bundleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bundle catalog: %w", err)
	}
	if len(file.Bundles) == 0 {
		return nil, fmt.Errorf("bundle catalog %s defines no bundles", path)
	}
	return file.Bundles, nil
}

func splitAndTrimCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
