// Package echo provides Echo middleware that restricts routes to paid users
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// RecordKey is the Echo context key holding the *sheetsync.UserRecord of a paid caller
const RecordKey = "sheetsync.record"

// EmailExtractor extracts the caller's email from an Echo context
// Return empty string if the caller is not authenticated
type EmailExtractor func(c echo.Context) string

// Config holds middleware configuration
type Config struct {
	// Querier looks up user records (required)
	Querier *sheetsync.Querier

	// GetEmail extracts the caller's email from context (required)
	GetEmail EmailExtractor

	// OnUnauthorized is called when no email can be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c echo.Context) error

	// OnNotPaid is called when the user has no record (rec is nil) or is not paid
	// If nil, returns 402 Payment Required
	OnNotPaid func(c echo.Context, rec *sheetsync.UserRecord) error

	// OnError is called when the row store cannot be read
	// If nil, returns 503 Service Unavailable
	OnError func(c echo.Context, err error) error
}

// Middleware creates an Echo middleware that only lets paid users through
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Querier == nil {
		panic("sheetsync/echo: Config.Querier is required")
	}
	if cfg.GetEmail == nil {
		panic("sheetsync/echo: Config.GetEmail is required")
	}
	if cfg.OnUnauthorized == nil {
		cfg.OnUnauthorized = defaultUnauthorized
	}
	if cfg.OnNotPaid == nil {
		cfg.OnNotPaid = defaultNotPaid
	}
	if cfg.OnError == nil {
		cfg.OnError = defaultError
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			email := cfg.GetEmail(c)
			if sheetsync.NormalizeEmail(email) == "" {
				return cfg.OnUnauthorized(c)
			}

			rec, err := cfg.Querier.Lookup(c.Request().Context(), email)
			if err != nil {
				return cfg.OnError(c, err)
			}
			if rec == nil || !rec.Paid() {
				return cfg.OnNotPaid(c, rec)
			}

			c.Set(RecordKey, rec)
			return next(c)
		}
	}
}

// Default error handlers

func defaultUnauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func defaultNotPaid(c echo.Context, rec *sheetsync.UserRecord) error {
	body := map[string]string{"error": "Payment Required"}
	if rec != nil {
		body["status"] = rec.EffectiveStatus()
	}
	return c.JSON(http.StatusPaymentRequired, body)
}

func defaultError(c echo.Context, _ error) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Service Unavailable"})
}

// Convenience extractors

// FromContext returns an EmailExtractor that gets the email from Echo context values
func FromContext(key string) EmailExtractor {
	return func(c echo.Context) string {
		if str, ok := c.Get(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns an EmailExtractor that gets the email from a header
func FromHeader(headerName string) EmailExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// FromQuery returns an EmailExtractor that gets the email from a query parameter
func FromQuery(queryName string) EmailExtractor {
	return func(c echo.Context) string {
		return c.QueryParam(queryName)
	}
}

// RecordFromContext returns the user record stored by Middleware
func RecordFromContext(c echo.Context) (*sheetsync.UserRecord, bool) {
	rec, ok := c.Get(RecordKey).(*sheetsync.UserRecord)
	return rec, ok
}
