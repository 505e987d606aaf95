// Package server assembles the HTTP surface of the relay.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/sheetsync/pkg/api"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Config wires the handlers into the router.
type Config struct {
	// API serves /health and /check (required)
	API *api.Handler

	// Webhook serves POST /webhook (required)
	Webhook http.Handler

	// Metrics serves /metrics. If nil, the route is not mounted.
	Metrics http.Handler

	// Logger receives one access log line per request. If nil, requests are not logged.
	Logger *zerolog.Logger
}

// NewRouter returns the chi router for the relay.
func NewRouter(config Config) (http.Handler, error) {
	if config.API == nil {
		return nil, fmt.Errorf("api handler is required")
	}
	if config.Webhook == nil {
		return nil, fmt.Errorf("webhook handler is required")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if config.Logger != nil {
		r.Use(AccessLog(*config.Logger))
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", config.API.Health)
	r.Get("/check", config.API.Check)
	r.Method(http.MethodPost, "/webhook", config.Webhook)
	if config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", config.Metrics)
	}

	return r, nil
}

// NewHTTPServer wraps handler in an http.Server with read and write timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
}

// AccessLog logs method, path, status and latency of every request.
// Query strings are left out: /check carries email addresses.
func AccessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
