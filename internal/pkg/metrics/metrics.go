// Package metrics provides Prometheus metrics for the StreamWatch detection
// engine. Names are stable; dashboards and alerts can rely on them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streamwatch"

var (
	// EventsProcessedTotal counts inbound stream events by detection outcome
	// (anomaly, clean, error).
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of stream events run through detection, by outcome.",
		},
		[]string{"outcome"},
	)

	// AnomaliesDetectedTotal counts detections by anomaly type and severity.
	AnomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of detected anomalies by type and severity.",
		},
		[]string{"type", "severity"},
	)

	// SignaturesCreatedTotal counts newly created (not deduplicated) signatures.
	SignaturesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_created_total",
			Help:      "Total number of new anomaly signatures created.",
		},
	)

	// DetectionDurationSeconds is the end-to-end detection latency per event.
	DetectionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Detection pipeline duration per event in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 10), // 0.5ms to ~1.9s
		},
	)

	// BroadcastFailuresTotal counts dropped or failed alert publishes by channel.
	BroadcastFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Total number of failed or dropped alert broadcasts by channel.",
		},
		[]string{"channel"},
	)

	// EscalationsTotal counts escalation alerts by reason.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of escalation alerts by reason.",
		},
		[]string{"reason"},
	)

	// HTTPRequestTotal counts HTTP requests by method, route template, and status.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds measures HTTP request latency by method and route.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds by method and path.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WebSocketConnectionsActive is the current number of alert subscribers.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket alert subscribers.",
		},
	)
)
