package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// Metrics implements sheetsync.Metrics using Prometheus.
type Metrics struct {
	intentsTotal               *prometheus.CounterVec
	lookupsTotal               *prometheus.CounterVec
	storeOpsDuration           *prometheus.HistogramVec
	storeOpsErrors             *prometheus.CounterVec
	conflictRetriesTotal       *prometheus.CounterVec
	circuitBreakerStateChanges *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		intentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Total number of applied intents by kind and outcome.",
		}, []string{"kind", "outcome"}),

		lookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_status_lookups_total",
			Help:      "Total number of paid-status lookups by result.",
		}, []string{"result"}),

		storeOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_store_operation_duration_seconds",
			Help:      "Latency of row store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storeOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_store_operation_errors_total",
			Help:      "Total number of row store operation errors.",
		}, []string{"operation"}),

		conflictRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_store_conflict_retries_total",
			Help:      "Total number of conditional writes retried after a conflict.",
		}, []string{"kind"}),

		circuitBreakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Total number of circuit breaker state changes.",
		}, []string{"state"}),
	}
}

func (m *Metrics) RecordIntent(kind string, outcome sheetsync.Outcome) {
	m.intentsTotal.WithLabelValues(kind, string(outcome)).Inc()
}

func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration, err error) {
	m.storeOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storeOpsErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) RecordLookup(result string) {
	m.lookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordConflictRetry(kind string) {
	m.conflictRetriesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCircuitBreakerStateChange(state string) {
	m.circuitBreakerStateChanges.WithLabelValues(state).Inc()
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
