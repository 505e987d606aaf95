package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// DefaultServiceName is reported by the health endpoint when none is configured.
const DefaultServiceName = "stripe-to-sheet"

// PaidStatusChecker answers paid-status lookups. *sheetsync.Querier implements it.
type PaidStatusChecker interface {
	PaidStatus(ctx context.Context, email string) sheetsync.PaidStatus
}

// Config holds configuration for the query API handler
type Config struct {
	// Querier answers /check lookups (required)
	Querier PaidStatusChecker

	// ServiceName is reported by /health. Default: "stripe-to-sheet"
	ServiceName string

	// GetEmail extracts the email to look up from the request.
	// Default: FromQuery("email")
	GetEmail func(*http.Request) string

	// OnError handles response encoding errors. If nil, they are dropped.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Querier == nil {
		return fmt.Errorf("querier is required")
	}
	return nil
}

// NewHandler creates a new query API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.GetEmail == nil {
		config.GetEmail = FromQuery("email")
	}
	return &Handler{
		config: config,
	}, nil
}

// Helper functions for common email extraction patterns

// FromQuery returns a GetEmail function that reads a query parameter
func FromQuery(param string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.URL.Query().Get(param)
	}
}

// FromHeader returns a GetEmail function that extracts the email from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}
