// Package prommetrics exports webhook metrics to Prometheus.
package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unverifiedEvent labels deliveries refused before the event type was known.
const unverifiedEvent = "unverified"

// deliveryBuckets span a memory store hit up to a slow spreadsheet round trip.
var deliveryBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics implements billing.Metrics.
type Metrics struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rejections *prometheus.CounterVec
	intents    *prometheus.CounterVec
}

// NewMetrics registers the webhook collectors on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	const subsystem = "webhook"

	return &Metrics{
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_total",
			Help:      "Webhook deliveries answered, by event type and HTTP status code.",
		}, []string{"provider", "event_type", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_duration_seconds",
			Help:      "Time from receiving a webhook delivery to answering it, including the row store write.",
			Buckets:   deliveryBuckets,
		}, []string{"provider", "event_type"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejections_total",
			Help:      "Webhook deliveries that were not applied, by reason.",
		}, []string{"provider", "reason"}),
		intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "intents_total",
			Help:      "Verified events by normalized intent and reconcile outcome.",
		}, []string{"provider", "kind", "outcome"}),
	}
}

func (m *Metrics) RecordDelivery(provider, eventType string, code int, duration time.Duration) {
	if eventType == "" {
		eventType = unverifiedEvent
	}
	m.deliveries.WithLabelValues(provider, eventType, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(provider, eventType).Observe(duration.Seconds())
}

func (m *Metrics) RecordRejection(provider, reason string) {
	m.rejections.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) RecordIntent(provider, kind, outcome string) {
	m.intents.WithLabelValues(provider, kind, outcome).Inc()
}
