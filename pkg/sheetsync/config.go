package sheetsync

import (
	"fmt"
	"time"
)

const (
	defaultStoreTimeout       = 10 * time.Second
	defaultMaxConflictRetries = 3
)

// Config configures the Reconciler and the Querier.
type Config struct {
	// Layout addresses the user table. Default: Sheet1!A:C
	Layout Layout

	// StoreTimeout bounds every individual row store call.
	// Default: 10s. A negative value disables the timeout.
	StoreTimeout time.Duration

	// MaxConflictRetries is how many times a write that lost a compare-and-swap
	// race is recomputed from a fresh read. Only used with a ConditionalRowStore.
	// Default: 3. A negative value disables retries.
	MaxConflictRetries int

	// Logger is an optional structured logger. If nil, logs are discarded.
	Logger Logger

	// Metrics is an optional metrics collector. If nil, metrics are discarded.
	Metrics Metrics
}

// Validate checks the configuration for values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Layout.SheetName != "" && len(c.Layout.SheetName) > 100 {
		return fmt.Errorf("sheet name too long: %d characters", len(c.Layout.SheetName))
	}
	return nil
}

// withDefaults returns a copy of the config with defaults filled in.
func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.StoreTimeout == 0 {
		out.StoreTimeout = defaultStoreTimeout
	}
	if out.MaxConflictRetries == 0 {
		out.MaxConflictRetries = defaultMaxConflictRetries
	}
	if out.MaxConflictRetries < 0 {
		out.MaxConflictRetries = 0
	}
	if out.Logger == nil {
		out.Logger = &NoopLogger{}
	}
	if out.Metrics == nil {
		out.Metrics = &NoopMetrics{}
	}
	return out
}
