// Package metrics provides the Prometheus metrics surface for the request
// optimizer (RED for the pipeline itself, plus recommendation, cache, and
// anomaly counters). Scrapeable at /metrics; serves as the default
// implementation of ports.MetricsExporter.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

const namespace = "reqopt"

var (
	// RequestsTotal counts pipeline invocations by request type and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests processed by the pipeline, by request type and outcome.",
		},
		[]string{"request_type", "outcome"},
	)

	// RequestDurationSeconds is end-to-end pipeline latency.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Pipeline request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~3.8s
		},
		[]string{"request_type"},
	)

	// RecommendationsTotal counts optimization recommendations issued, by
	// strategy and priority.
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Total number of optimization recommendations issued, by strategy and priority.",
		},
		[]string{"strategy", "priority"},
	)

	// RecommendationConfidence tracks the confidence score distribution of
	// issued recommendations.
	RecommendationConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_confidence",
			Help:      "Confidence score of issued recommendations.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		},
		[]string{"strategy"},
	)

	// CacheDecisionsTotal counts caching verdicts, by request type and
	// decision.
	CacheDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_decisions_total",
			Help:      "Total number of caching decisions, by request type and decision (cache/skip).",
		},
		[]string{"request_type", "decision"},
	)

	// RecommendationCacheHitsTotal counts recommendation cache hits.
	RecommendationCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_cache_hits_total",
			Help:      "Total number of recommendation cache hits.",
		},
	)

	// RecommendationCacheMissesTotal counts recommendation cache misses.
	RecommendationCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_cache_misses_total",
			Help:      "Total number of recommendation cache misses.",
		},
	)

	// AnomaliesDetectedTotal counts time-series anomalies detected, by metric
	// key.
	AnomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of time-series anomalies detected, by metric key.",
		},
		[]string{"key"},
	)

	// ModelAccuracy is the Pattern Recognition Engine's last-measured
	// accuracy.
	ModelAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Current prediction model accuracy [0,1].",
		},
	)

	// ModelF1Score is the Pattern Recognition Engine's last-measured F1.
	ModelF1Score = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_f1_score",
			Help:      "Current prediction model F1 score [0,1].",
		},
	)

	// HealthScore is the most recent system health score.
	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Current system health score [0,1].",
		},
	)

	// ConnectionsActive tracks estimated active connections by kind (http,
	// db, external, websocket).
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Estimated active connections by kind.",
		},
		[]string{"kind"},
	)

	// ConnectionsPeak tracks monotone connection peaks by kind and bucket
	// (all_time, daily, hourly).
	ConnectionsPeak = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_peak",
			Help:      "Peak estimated connections by kind and rolling bucket.",
		},
		[]string{"kind", "bucket"},
	)

	// CleanupRemovedTotal counts entries removed by the Data Cleanup
	// Manager, by store name.
	CleanupRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_removed_total",
			Help:      "Total number of entries removed by periodic cleanup, by store.",
		},
		[]string{"store"},
	)

	// WebSocketConnectionsActive is current number of insights-stream
	// WebSocket clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active insights WebSocket connections.",
		},
	)

	// TrackedExecutionsTotal counts rolling ExecutionMetrics snapshots
	// exported by the Performance Tracking Behavior, by request type.
	TrackedExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_executions_total",
			Help:      "Total number of executions folded into an exported rolling-window sample, by request type.",
		},
		[]string{"request_type"},
	)

	// TrackedP95Seconds is the last-exported p95 execution time per request
	// type, when percentile tracking is enabled.
	TrackedP95Seconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_p95_seconds",
			Help:      "Most recently exported p95 execution time, by request type.",
		},
		[]string{"request_type"},
	)
)

// Exporter is the default ports.MetricsExporter: it folds the Performance
// Tracking Behavior's periodic/immediate exports into the package's own
// Prometheus vectors so both rolling stats and point-in-time gauges are
// scrapeable from the same /metrics endpoint. Stateless; safe for
// concurrent use.
type Exporter struct{}

// NewExporter returns the default Prometheus-backed exporter.
func NewExporter() Exporter { return Exporter{} }

// ExportMetrics records stats against the package's counters/gauges. Never
// fails: a malformed sample is recorded as-is; sink failures degrade, they
// never propagate.
func (Exporter) ExportMetrics(_ context.Context, stats models.ExecutionMetrics) error {
	TrackedExecutionsTotal.WithLabelValues(stats.RequestType).Add(float64(stats.TotalExecutions))
	if stats.P95ExecutionTime > 0 {
		TrackedP95Seconds.WithLabelValues(stats.RequestType).Set(stats.P95ExecutionTime.Seconds())
	}
	return nil
}
