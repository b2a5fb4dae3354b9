// Package server: metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// Rejection reasons.
const (
	rejectAuthHeader  = "auth_header"
	rejectAuthFailed  = "auth_failed"
	rejectRateLimited = "rate_limited"
)

// Retrieval outcomes.
const (
	outcomeOK       = "ok"
	outcomeReady    = "ready"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// retrievalRequestsTotal counts POST /retrieval requests by outcome:
	// "ok", "ready", "invalid", "not_found" or "error".
	retrievalRequestsTotal *prometheus.CounterVec

	// retrievalRecords records how many records each successful retrieval
	// returned after threshold filtering and truncation.
	retrievalRecords prometheus.Histogram

	// toolCallsTotal counts POST /api/tools/{name} calls by tool and outcome.
	toolCallsTotal *prometheus.CounterVec

	// toolDurationSeconds records the duration of each tool call.
	toolDurationSeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rejectedTotal counts requests turned away before reaching a handler,
	// by reason: "auth_header", "auth_failed" or "rate_limited".
	rejectedTotal *prometheus.CounterVec

	// dependencyUp is 1 when the last readiness probe of a dependency passed.
	dependencyUp *prometheus.GaugeVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		retrievalRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adbpg",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of /retrieval requests, partitioned by outcome.",
		}, []string{"outcome"}),

		retrievalRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adbpg",
			Subsystem: "retrieval",
			Name:      "records",
			Help:      "Number of records returned by successful /retrieval requests.",
			Buckets:   []float64{0, 1, 3, 5, 10, 20, 50},
		}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adbpg",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total number of /api/tools calls, partitioned by tool and outcome.",
		}, []string{"tool", "outcome"}),

		toolDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adbpg",
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/tools calls.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 120, 600, 1800},
		}, []string{"tool"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adbpg",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adbpg",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adbpg",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by authentication or rate limiting, partitioned by reason.",
		}, []string{"reason"}),

		dependencyUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "adbpg",
			Subsystem: "ready",
			Name:      "dependency_up",
			Help:      "Result of the last readiness probe per dependency (1 up, 0 down).",
		}, []string{"dependency"}),
	}
}

// instrument wraps next so every request is counted and timed under the
// given handler label.
func (m *serverMetrics) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
	})
}
