package billing

import "time"

// Metrics observes the webhook endpoint. Providers fall back to NoopMetrics when
// none is configured.
type Metrics interface {
	// RecordDelivery records one answered webhook request. eventType is empty
	// when the request was refused before its event could be verified.
	RecordDelivery(provider, eventType string, code int, duration time.Duration)

	// RecordRejection records why a request was not applied: "rate_limited",
	// "payload_too_large", "invalid_payload", "auth_failed", "method_not_allowed"
	// or "store_failure".
	RecordRejection(provider, reason string)

	// RecordIntent records the intent an event was normalized into and its outcome.
	RecordIntent(provider, kind, outcome string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordDelivery(_, _ string, _ int, _ time.Duration) {}
func (n *NoopMetrics) RecordRejection(_, _ string)                        {}
func (n *NoopMetrics) RecordIntent(_, _, _ string)                        {}
