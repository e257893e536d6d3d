// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ResolutionsTotal counts assistant replies by strategy and outcome.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_resolutions_total",
			Help: "Assistant replies produced, by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// RejectedTotal counts user messages refused before any reply was produced.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rejected_total",
			Help: "User messages rejected, by reason",
		},
		[]string{"reason"},
	)

	// IntentMatchesTotal counts rule-based matches per intent.
	IntentMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_intent_matches_total",
			Help: "Rule-based intent matches",
		},
		[]string{"intent"},
	)

	// CompletionDuration tracks remote completion latency.
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "Remote completion call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// TurnsTotal counts turns appended to sessions.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Turns appended to chat sessions",
		},
		[]string{"strategy", "role"},
	)

	// SessionsActive tracks live chat sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// DispatchQueueDepth tracks jobs waiting in each background queue.
	DispatchQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Jobs waiting in a background dispatch queue",
		},
		[]string{"queue"},
	)

	// DispatchDroppedTotal counts jobs dropped because a queue was full.
	DispatchDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_dropped_total",
			Help: "Jobs dropped by a full background dispatch queue",
		},
		[]string{"queue"},
	)

	// JournalPublishFailures counts turn journal publish errors.
	JournalPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_journal_publish_failures_total",
			Help: "Failed publishes to the turn journal",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records metrics for a remote completion call.
func RecordCompletion(provider, status string, duration float64) {
	CompletionDuration.WithLabelValues(provider, status).Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
