// Package metrics exposes Prometheus collectors for the pagevault service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcome labels.
const (
	OutcomeOK            = "ok"
	OutcomeSessionFailed = "session_failed"
	OutcomeSolveFailed   = "solve_failed"
	OutcomeSinkFailed    = "sink_failed"
)

// Session destruction phases.
const (
	PhaseInvalidated = "invalidated"
	PhaseCleanup     = "cleanup"
)

var (
	capturesTotal              *prometheus.CounterVec
	solveDurationSeconds       *prometheus.HistogramVec
	sessionsCreatedTotal       prometheus.Counter
	sessionsDestroyedTotal     *prometheus.CounterVec
	sessionsValidatedTotal     *prometheus.CounterVec
	activeSessions             prometheus.Gauge
	batchSizeEntries           prometheus.Histogram
	schedulerWakeupsTotal      prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagevault_captures_total",
				Help: "Total capture attempts, labeled by task and outcome.",
			},
			[]string{"task", "outcome"},
		)

		solveDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagevault_solve_duration_seconds",
				Help:    "Histogram of solver round-trip durations per task.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"task"},
		)

		sessionsCreatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagevault_sessions_created_total",
				Help: "Total solver sessions created by this process.",
			},
		)

		sessionsDestroyedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagevault_sessions_destroyed_total",
				Help: "Total solver sessions destroyed, labeled by phase.",
			},
			[]string{"phase"},
		)

		sessionsValidatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagevault_sessions_validated_total",
				Help: "Total validation probes, labeled by result.",
			},
			[]string{"result"},
		)

		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagevault_active_sessions",
				Help: "Number of solver sessions currently tracked by the directory.",
			},
		)

		batchSizeEntries = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagevault_batch_size_entries",
				Help:    "Histogram of entries dispatched per scheduler wake-up.",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 21},
			},
		)

		schedulerWakeupsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagevault_scheduler_wakeups_total",
				Help: "Total scheduler wake-ups that dispatched a batch.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCapture records one capture attempt and, for successful solves, the
// solver round-trip duration.
func ObserveCapture(task string, outcome string, solveDuration time.Duration) {
	capturesTotal.WithLabelValues(task, outcome).Inc()
	if solveDuration > 0 {
		solveDurationSeconds.WithLabelValues(task).Observe(solveDuration.Seconds())
	}
}

// SessionCreated increments the created-sessions counter.
func SessionCreated() {
	sessionsCreatedTotal.Inc()
}

// SessionDestroyed increments the destroyed-sessions counter for a phase.
func SessionDestroyed(phase string) {
	sessionsDestroyedTotal.WithLabelValues(phase).Inc()
}

// SessionValidated records a validation probe result.
func SessionValidated(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	sessionsValidatedTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the tracked-session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveBatch records one scheduler wake-up and the batch size it dispatched.
func ObserveBatch(size int) {
	schedulerWakeupsTotal.Inc()
	batchSizeEntries.Observe(float64(size))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
