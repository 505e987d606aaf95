package billing

import (
	"context"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// Config defines the standard configuration all providers should accept
type Config struct {
	// Reconciler receives the intent derived from every verified webhook event
	Reconciler Reconciler

	// WebhookSecret is used to verify incoming webhook requests.
	// An empty secret is allowed at construction time: the webhook then
	// rejects every request with 400 until the secret is configured.
	WebhookSecret string

	// RateLimit is the number of webhook requests allowed per client IP and minute.
	// Zero disables rate limiting.
	RateLimit int

	// Metrics is an optional collector for webhook deliveries. If nil, nothing
	// is recorded. See billing/metrics/prometheus.NewMetrics.
	Metrics Metrics

	// Logger is an optional structured logger. If nil, logs are discarded.
	Logger sheetsync.Logger

	// WebhookCallback is invoked after an event has been reconciled successfully.
	// A returned error is logged; the webhook still answers 200 because the
	// row has already been written.
	WebhookCallback func(ctx context.Context, event WebhookEvent) error
}
