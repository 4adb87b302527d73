package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pairgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pairgate",
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Pairing sessions started.",
		},
	)
	sessionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pairgate",
			Subsystem: "sessions",
			Name:      "outcomes_total",
			Help:      "Session outcomes by kind.",
		},
		[]string{"outcome"},
	)
	sessionReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pairgate",
			Subsystem: "sessions",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts across all sessions.",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pairgate",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently running.",
		},
	)
	exportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pairgate",
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Credential export duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers every collector with the default registry.
// Safe to call more than once
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration, sessionsStarted, sessionOutcomes,
			sessionReconnects, activeSessions, exportDuration,
		)
	})
}

// RecordHTTPRequest counts a served request and observes its duration
func RecordHTTPRequest(
	method, path string, status int, duration time.Duration,
) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).
		Observe(duration.Seconds())
}

// RecordSessionStarted counts a new pairing session
func RecordSessionStarted() {
	RegisterMetrics()
	sessionsStarted.Inc()
}

// RecordSessionOutcome counts a terminal session outcome by kind
func RecordSessionOutcome(outcome string) {
	RegisterMetrics()
	sessionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordReconnect counts one reconnect attempt
func RecordReconnect() {
	RegisterMetrics()
	sessionReconnects.Inc()
}

// SetActiveSessions reports how many sessions are currently running
func SetActiveSessions(n int) {
	RegisterMetrics()
	activeSessions.Set(float64(n))
}

// ObserveExportDuration records how long a credential export took
func ObserveExportDuration(duration time.Duration) {
	RegisterMetrics()
	exportDuration.Observe(duration.Seconds())
}
