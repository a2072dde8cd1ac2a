package goadsym

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements Metrics on top of a Prometheus registry.
type PrometheusMetrics struct {
	connectionAttempts  prometheus.Counter
	connectionSuccesses prometheus.Counter
	connectionFailures  prometheus.Counter
	connectionActive    prometheus.Gauge

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	handlesAcquired prometheus.Counter
	handlesReleased prometheus.Counter
	handlesLive     prometheus.Gauge

	errorsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics registers the goadsym collectors with reg and returns
// the Metrics implementation. Pass prometheus.DefaultRegisterer for the
// default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		connectionAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "goadsym_connection_attempts_total",
			Help: "Number of attempts to open the ADS port.",
		}),
		connectionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "goadsym_connection_successes_total",
			Help: "Number of successful ADS port opens.",
		}),
		connectionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "goadsym_connection_failures_total",
			Help: "Number of failed ADS port opens.",
		}),
		connectionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "goadsym_connection_active",
			Help: "Whether the ADS port is currently open (0 or 1).",
		}),
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "goadsym_operations_total",
			Help: "Number of protocol round trips by operation.",
		}, []string{"operation"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goadsym_operation_duration_seconds",
			Help:    "Duration of protocol round trips by operation and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		handlesAcquired: factory.NewCounter(prometheus.CounterOpts{
			Name: "goadsym_handles_acquired_total",
			Help: "Number of symbol handles acquired.",
		}),
		handlesReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "goadsym_handles_released_total",
			Help: "Number of symbol handles released.",
		}),
		handlesLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "goadsym_handles_live",
			Help: "Symbol handles currently held.",
		}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "goadsym_errors_total",
			Help: "Errors by kind and operation.",
		}, []string{"kind", "operation"}),
	}
}

func (m *PrometheusMetrics) ConnectionAttempts() {
	m.connectionAttempts.Inc()
}

func (m *PrometheusMetrics) ConnectionSuccesses() {
	m.connectionSuccesses.Inc()
}

func (m *PrometheusMetrics) ConnectionFailures() {
	m.connectionFailures.Inc()
}

func (m *PrometheusMetrics) ConnectionActive(active bool) {
	if active {
		m.connectionActive.Set(1)
	} else {
		m.connectionActive.Set(0)
	}
}

func (m *PrometheusMetrics) OperationStarted(operation string) {
	m.operationsTotal.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) OperationCompleted(operation string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) HandleAcquired() {
	m.handlesAcquired.Inc()
	m.handlesLive.Inc()
}

func (m *PrometheusMetrics) HandleReleased() {
	m.handlesReleased.Inc()
	m.handlesLive.Dec()
}

func (m *PrometheusMetrics) ErrorOccurred(kind Kind, operation string) {
	m.errorsTotal.WithLabelValues(kind.String(), operation).Inc()
}
