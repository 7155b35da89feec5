// Package metrics declares the Prometheus instruments exported by emotrack.
// Instruments register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Credential Metrics
var (
	// KeyRotationsTotal counts credential rotations by service and kind (rotate/advance).
	KeyRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_key_rotations_total",
			Help: "Credential rotations by service and kind",
		},
		[]string{"service", "kind"},
	)

	// KeyRotationsSuppressed counts rotations skipped because of the cooldown.
	KeyRotationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_key_rotations_suppressed_total",
			Help: "Rotation requests ignored during the cooldown window",
		},
		[]string{"service"},
	)
)

// Inference Metrics
var (
	// InferenceExchangesTotal counts websocket exchanges by outcome.
	InferenceExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_inference_exchanges_total",
			Help: "Emotion inference exchanges by outcome",
		},
		[]string{"outcome"},
	)

	// InferenceDuration tracks exchange latency in seconds.
	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emotrack_inference_duration_seconds",
			Help:    "Emotion inference exchange duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 3, 5, 8},
		},
	)
)

// Capture Metrics
var (
	// CaptureCyclesTotal counts capture cycles by result (success/no_result/capture_error/error).
	CaptureCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_capture_cycles_total",
			Help: "Capture cycles by result",
		},
		[]string{"result"},
	)

	// SeriesPoints reports the number of observations in the active series.
	SeriesPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotrack_series_points",
			Help: "Observations held by the active session series",
		},
	)
)

// Summary Metrics
var (
	// SummaryRequestsTotal counts summaries by source (ai/fallback/skipped).
	SummaryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_summary_total",
			Help: "Session summaries by source",
		},
		[]string{"source"},
	)

	// GenerationDuration tracks text-generation call latency in seconds.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emotrack_generation_duration_seconds",
			Help:    "Text generation request duration in seconds",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
	)
)

// Live Feed Metrics
var (
	// LiveSubscribers tracks connected live-feed subscribers.
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotrack_live_subscribers",
			Help: "Connected live observation subscribers",
		},
	)

	// LiveDroppedTotal counts observations dropped for slow subscribers.
	LiveDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emotrack_live_dropped_total",
			Help: "Observations dropped because a subscriber buffer was full",
		},
	)

	// RedisPublishTotal counts Redis publishes by status (ok/error/open).
	RedisPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_redis_publish_total",
			Help: "Redis live publishes by status",
		},
		[]string{"status"},
	)

	// CircuitBreakerState tracks the breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emotrack_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Proxy Metrics
var (
	// ProxyRequestsTotal counts analysis proxy requests by response status code.
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_proxy_requests_total",
			Help: "Analysis proxy requests by response status",
		},
		[]string{"status"},
	)
)

// Session Metrics
var (
	// SessionsTotal counts finished sessions by summary source.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotrack_sessions_total",
			Help: "Completed recording sessions by summary source",
		},
		[]string{"summary_source"},
	)

	// SessionRecording is 1 while a session is recording.
	SessionRecording = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotrack_session_recording",
			Help: "Whether a session is currently recording",
		},
	)
)
