package billing

import (
	"context"
	"net/http"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// Provider is the interface a payment provider integration implements.
// It turns the provider's webhook deliveries into reconciled user rows.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time events.
	// The implementation handles verification, normalization and reconciliation internally.
	WebhookHandler() http.Handler
}

// Reconciler applies normalized intents to the user table.
// *sheetsync.Reconciler implements it.
type Reconciler interface {
	Apply(ctx context.Context, in sheetsync.Intent) (sheetsync.Outcome, error)
}
