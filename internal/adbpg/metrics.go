package adbpg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records remote call outcomes. A nil *Metrics is a no-op so clients
// built without a registry stay cheap.
type Metrics struct {
	// callsTotal counts remote calls partitioned by action and outcome
	// ("ok", "not_found", "error").
	callsTotal *prometheus.CounterVec

	// callDurationSeconds records remote call latency per action.
	callDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the client metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adbpg",
			Subsystem: "api",
			Name:      "calls_total",
			Help:      "Total number of AnalyticDB API calls, partitioned by action and outcome.",
		}, []string{"action", "outcome"}),

		callDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adbpg",
			Subsystem: "api",
			Name:      "call_duration_seconds",
			Help:      "Latency of AnalyticDB API calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"action"}),
	}
}

// observe records one call.
func (m *Metrics) observe(action string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case IsNotFound(err):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	m.callsTotal.WithLabelValues(action, outcome).Inc()
	m.callDurationSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}
