// Package fiber provides Fiber middleware that restricts routes to paid users
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// RecordKey is the Locals key holding the *sheetsync.UserRecord of a paid caller
const RecordKey = "sheetsync.record"

// EmailExtractor extracts the caller's email from a Fiber context
// Return empty string if the caller is not authenticated
type EmailExtractor func(c *fiber.Ctx) string

// Config holds middleware configuration
type Config struct {
	// Querier looks up user records (required)
	Querier *sheetsync.Querier

	// GetEmail extracts the caller's email from context (required)
	GetEmail EmailExtractor

	// OnUnauthorized is called when no email can be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *fiber.Ctx) error

	// OnNotPaid is called when the user has no record (rec is nil) or is not paid
	// If nil, returns 402 Payment Required
	OnNotPaid func(c *fiber.Ctx, rec *sheetsync.UserRecord) error

	// OnError is called when the row store cannot be read
	// If nil, returns 503 Service Unavailable
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware creates a Fiber middleware that only lets paid users through
func Middleware(cfg Config) fiber.Handler {
	if cfg.Querier == nil {
		panic("sheetsync/fiber: Config.Querier is required")
	}
	if cfg.GetEmail == nil {
		panic("sheetsync/fiber: Config.GetEmail is required")
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

	return func(c *fiber.Ctx) error {
		email := cfg.GetEmail(c)
		if sheetsync.NormalizeEmail(email) == "" {
			return cfg.OnUnauthorized(c)
		}

		rec, err := cfg.Querier.Lookup(c.UserContext(), email)
		if err != nil {
			return cfg.OnError(c, err)
		}
		if rec == nil || !rec.Paid() {
			return cfg.OnNotPaid(c, rec)
		}

		c.Locals(RecordKey, rec)
		return c.Next()
	}
}

// Default error handlers

func defaultUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}

func defaultNotPaid(c *fiber.Ctx, rec *sheetsync.UserRecord) error {
	if rec != nil {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":  "Payment Required",
			"status": rec.EffectiveStatus(),
		})
	}
	return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Payment Required"})
}

func defaultError(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service Unavailable"})
}

// Convenience extractors

// FromContext returns an EmailExtractor that gets the email from Fiber context values (Locals)
func FromContext(key string) EmailExtractor {
	return func(c *fiber.Ctx) string {
		if str, ok := c.Locals(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns an EmailExtractor that gets the email from a header
// Fiber v2 uses c.Get() for headers (not c.GetHeader())
func FromHeader(headerName string) EmailExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// FromQuery returns an EmailExtractor that gets the email from a query parameter
func FromQuery(queryName string) EmailExtractor {
	return func(c *fiber.Ctx) string {
		return c.Query(queryName)
	}
}

// RecordFromContext returns the user record stored by Middleware
func RecordFromContext(c *fiber.Ctx) (*sheetsync.UserRecord, bool) {
	rec, ok := c.Locals(RecordKey).(*sheetsync.UserRecord)
	return rec, ok
}
