// Package metrics defines the Prometheus collectors for the scoring
// pipeline, exposed on GET /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_detections_total",
			Help: "Transactions scored, by verdict source (rule, model, none)",
		},
		[]string{"source"},
	)

	FraudsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_frauds_total",
			Help: "Transactions flagged as fraud",
		},
	)

	DetectionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kestrel_detection_latency_seconds",
			Help:    "Scoring latency per transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_batch_items_total",
			Help: "Batch items processed, by outcome (ok, error, dropped)",
		},
		[]string{"outcome"},
	)

	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_reports_total",
			Help: "Fraud reports filed, by outcome (ok, not_found, error)",
		},
		[]string{"outcome"},
	)

	AlertEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_alert_events_total",
			Help: "Fraud alert events consumed from the event bus",
		},
	)
)

// Register installs all collectors on the default registry. Call once
// at startup.
func Register() {
	prometheus.MustRegister(
		DetectionsTotal,
		FraudsTotal,
		DetectionLatency,
		BatchItemsTotal,
		ReportsTotal,
		AlertEventsTotal,
	)
}
