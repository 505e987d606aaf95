package billing

import (
	"time"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// WebhookEvent contains information about a successful webhook processing event.
// This event is passed to the WebhookCallback after the intent has been
// applied to the user table.
type WebhookEvent struct {
	// Provider is the payment provider name ("stripe")
	Provider string

	// EventID is the provider's event identifier
	EventID string

	// EventType is the provider-specific event type
	// Stripe: "checkout.session.completed", "customer.subscription.updated", etc.
	EventType string

	// EventTimestamp is when the event occurred (from provider)
	EventTimestamp time.Time

	// Intent is what the event was normalized into
	Intent sheetsync.Intent

	// Outcome is what applying the intent did to the table
	Outcome sheetsync.Outcome
}
