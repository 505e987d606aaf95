package sheetsync

import "time"

// Metrics defines the interface for tracking reconciliation and lookups.
type Metrics interface {
	// RecordIntent records an applied intent and its outcome
	// (created, updated, not_found, ignored, failed).
	RecordIntent(kind string, outcome Outcome)

	// RecordStoreOperation records the duration and status of a row store call.
	RecordStoreOperation(operation string, duration time.Duration, err error)

	// RecordLookup records a paid-status lookup result ("paid", "unpaid", "missing", "error").
	RecordLookup(result string)

	// RecordConflictRetry records a conditional write that lost a race and was retried.
	RecordConflictRetry(kind string)

	// RecordCircuitBreakerStateChange records a circuit breaker state change.
	RecordCircuitBreakerStateChange(state string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordIntent(kind string, outcome Outcome)                                {}
func (n *NoopMetrics) RecordStoreOperation(operation string, duration time.Duration, err error) {}
func (n *NoopMetrics) RecordLookup(result string)                                               {}
func (n *NoopMetrics) RecordConflictRetry(kind string)                                          {}
func (n *NoopMetrics) RecordCircuitBreakerStateChange(state string)                             {}
