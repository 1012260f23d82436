// Package metrics exposes Prometheus instrumentation for the ingestion path,
// the presence monitors, and the circuit breakers guarding external calls.
//
// All collectors are registered on the default registry at init time and
// served by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_events_ingested_total",
			Help: "Authentication events handled by the ingestion endpoint",
		},
		[]string{"action", "outcome"}, // outcome: stored, rejected, unknown_user, directory_error, unavailable, persist_failed
	)

	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratawatch_anomalies_detected_total",
			Help: "Events the classifier flagged as anomalous",
		},
	)

	ClassifierFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratawatch_classifier_failures_total",
			Help: "Classifier calls that failed open to a non-anomalous verdict",
		},
	)

	StoreAppendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratawatch_store_append_duration_seconds",
			Help:    "Duration of log store append calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "result"},
	)

	// Presence
	OracleQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_presence_queries_total",
			Help: "Presence oracle queries by result",
		},
		[]string{"caller", "result"}, // caller: ingest, monitor; result: present, absent, error
	)

	ActiveMonitors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratawatch_active_monitors",
			Help: "Presence monitors currently registered",
		},
	)

	MonitorTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_monitor_transitions_total",
			Help: "Presence monitor state transitions",
		},
		[]string{"from", "to"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_notifications_total",
			Help: "Disconnect notifications dispatched by result",
		},
		[]string{"result"}, // sent, failed
	)

	// HTTP API
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"api", "route", "method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratawatch_http_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api", "route"},
	)

	// Background jobs
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_job_runs_total",
			Help: "Background job executions by result",
		},
		[]string{"job", "result"}, // ok, error
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratawatch_job_duration_seconds",
			Help:    "Duration of background job executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratawatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratawatch_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
