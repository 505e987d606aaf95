// Package http provides net/http middleware that restricts routes to paid users
package http

import (
	"context"
	"net/http"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// EmailExtractor extracts the caller's email from an HTTP request
// Return empty string if the caller is not authenticated
type EmailExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Querier looks up user records (required)
	Querier *sheetsync.Querier

	// GetEmail extracts the caller's email from the request (required)
	GetEmail EmailExtractor

	// OnUnauthorized is called when no email can be extracted
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnNotPaid is called when the user has no record or is not paid.
	// rec is nil when no record exists.
	// If nil, returns 402 Payment Required
	OnNotPaid func(w http.ResponseWriter, r *http.Request, rec *sheetsync.UserRecord)

	// OnError is called when the row store cannot be read
	// If nil, returns 503 Service Unavailable
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware creates an HTTP middleware that only lets paid users through.
// The user record is stored in the request context, see RecordFromContext.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Querier == nil {
		panic("sheetsync/http: Config.Querier is required")
	}
	if config.GetEmail == nil {
		panic("sheetsync/http: Config.GetEmail is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := config.GetEmail(r)
			if sheetsync.NormalizeEmail(email) == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			rec, err := config.Querier.Lookup(r.Context(), email)
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				}
				return
			}

			if rec == nil || !rec.Paid() {
				if config.OnNotPaid != nil {
					config.OnNotPaid(w, r, rec)
				} else {
					http.Error(w, "Payment Required", http.StatusPaymentRequired)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRecord(r.Context(), rec)))
		})
	}
}

// HandlerFunc creates the paid-user middleware (HandlerFunc version)
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// EmailKey is the context key for the caller's email
	EmailKey ContextKey = "sheetsync:email"

	recordKey ContextKey = "sheetsync:record"
)

// FromContext returns an EmailExtractor that gets the email from request context
func FromContext(key ContextKey) EmailExtractor {
	return func(r *http.Request) string {
		if email, ok := r.Context().Value(key).(string); ok {
			return email
		}
		return ""
	}
}

// FromHeader returns an EmailExtractor that gets the email from a header
func FromHeader(headerName string) EmailExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromQuery returns an EmailExtractor that gets the email from a query parameter
func FromQuery(name string) EmailExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}

// WithEmail adds the caller's email to the context
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, EmailKey, email)
}

// WithRecord adds a user record to the context
func WithRecord(ctx context.Context, rec *sheetsync.UserRecord) context.Context {
	return context.WithValue(ctx, recordKey, rec)
}

// RecordFromContext returns the user record stored by Middleware
func RecordFromContext(ctx context.Context) (*sheetsync.UserRecord, bool) {
	rec, ok := ctx.Value(recordKey).(*sheetsync.UserRecord)
	return rec, ok && rec != nil
}
