// Package gin provides Gin middleware that restricts routes to paid users
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// RecordKey is the Gin context key holding the *sheetsync.UserRecord of a paid caller
const RecordKey = "sheetsync.record"

// EmailExtractor extracts the caller's email from a Gin context
// Return empty string if the caller is not authenticated
type EmailExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Querier looks up user records (required)
	Querier *sheetsync.Querier

	// GetEmail extracts the caller's email from context (required)
	GetEmail EmailExtractor

	// OnUnauthorized is called when no email can be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *gongin.Context)

	// OnNotPaid is called when the user has no record (rec is nil) or is not paid
	// If nil, returns 402 Payment Required JSON with the stored status
	OnNotPaid func(c *gongin.Context, rec *sheetsync.UserRecord)

	// OnError is called when the row store cannot be read
	// If nil, returns 503 Service Unavailable
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that only lets paid users through
func Middleware(cfg Config) gongin.HandlerFunc {
	if cfg.Querier == nil {
		panic("sheetsync/gin: Config.Querier is required")
	}
	if cfg.GetEmail == nil {
		panic("sheetsync/gin: Config.GetEmail is required")
	}

	return func(c *gongin.Context) {
		email := cfg.GetEmail(c)
		if sheetsync.NormalizeEmail(email) == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				defaultUnauthorized(c)
			}
			c.Abort()
			return
		}

		rec, err := cfg.Querier.Lookup(c.Request.Context(), email)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				defaultError(c, err)
			}
			c.Abort()
			return
		}

		if rec == nil || !rec.Paid() {
			if cfg.OnNotPaid != nil {
				cfg.OnNotPaid(c, rec)
			} else {
				defaultNotPaid(c, rec)
			}
			c.Abort()
			return
		}

		c.Set(RecordKey, rec)
		c.Next()
	}
}

// Default error handlers

func defaultUnauthorized(c *gongin.Context) {
	c.JSON(http.StatusUnauthorized, gongin.H{"error": "Unauthorized"})
}

func defaultNotPaid(c *gongin.Context, rec *sheetsync.UserRecord) {
	if rec != nil {
		c.JSON(http.StatusPaymentRequired, gongin.H{
			"error":  "Payment Required",
			"status": rec.EffectiveStatus(),
		})
		return
	}
	c.JSON(http.StatusPaymentRequired, gongin.H{"error": "Payment Required"})
}

func defaultError(c *gongin.Context, _ error) {
	c.JSON(http.StatusServiceUnavailable, gongin.H{"error": "Service Unavailable"})
}

// Convenience extractors

// FromContext returns an EmailExtractor that gets the email from Gin context values
// This is the recommended approach for integrating with auth middleware that sets
// user information via c.Set("Email", "...") or similar.
func FromContext(key string) EmailExtractor {
	return func(c *gongin.Context) string {
		if val, exists := c.Get(key); exists {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}

// FromHeader returns an EmailExtractor that gets the email from a header
func FromHeader(headerName string) EmailExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromQuery returns an EmailExtractor that gets the email from a query parameter
func FromQuery(queryName string) EmailExtractor {
	return func(c *gongin.Context) string {
		return c.Query(queryName)
	}
}

// RecordFromContext returns the user record stored by Middleware
func RecordFromContext(c *gongin.Context) (*sheetsync.UserRecord, bool) {
	val, exists := c.Get(RecordKey)
	if !exists {
		return nil, false
	}
	rec, ok := val.(*sheetsync.UserRecord)
	return rec, ok
}
