// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendSheets    = "sheets"
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config is the process configuration. It is built once at startup and injected.
type Config struct {
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	EmailFieldKey       string `env:"CHECKOUT_EMAIL_FIELD_KEY"`

	SheetID            string `env:"GOOGLE_SHEET_ID"`
	ServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	SheetName          string `env:"SHEET_NAME" envDefault:"Sheet1"`

	Port string `env:"PORT" envDefault:"3000"`

	StoreBackend       string `env:"STORE_BACKEND" envDefault:"sheets"`
	RedisURL           string `env:"REDIS_URL"`
	DatabaseURL        string `env:"DATABASE_URL"`
	FirestoreProjectID string `env:"FIRESTORE_PROJECT_ID"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`

	StoreTimeout            time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`
	WebhookRateLimit        int           `env:"WEBHOOK_RATE_LIMIT" envDefault:"0"`
	CircuitBreakerThreshold int           `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"0"`
}

// Load reads a .env file when present and parses the environment.
// Values already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return Parse()
}

// Parse parses the environment into a Config.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// check rejects values that cannot be used at all. Missing values are reported by Missing.
func (c Config) check() error {
	switch c.StoreBackend {
	case BackendSheets, BackendMemory, BackendRedis, BackendPostgres, BackendFirestore:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if c.WebhookRateLimit < 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must not be negative")
	}
	if c.CircuitBreakerThreshold < 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must not be negative")
	}
	return nil
}

// Missing returns the keys the selected backend needs but that are not set.
// The process still starts: affected calls fail when they are made.
func (c Config) Missing() []string {
	var missing []string
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	switch c.StoreBackend {
	case BackendSheets:
		if c.SheetID == "" {
			missing = append(missing, "GOOGLE_SHEET_ID")
		}
		if c.ServiceAccountJSON == "" {
			missing = append(missing, "GOOGLE_SERVICE_ACCOUNT_JSON")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			missing = append(missing, "FIRESTORE_PROJECT_ID")
		}
	}
	return missing
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}
