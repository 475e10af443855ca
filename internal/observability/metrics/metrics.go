package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	commission "fuel-commission/internal/commission/domain"
)

const (
	metricPrefix = "commission_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	calculationTotal   *prometheus.CounterVec
	calculationLatency *prometheus.HistogramVec

	transitionTotal *prometheus.CounterVec

	sourceSelectedTotal *prometheus.CounterVec
	sourceFailedTotal   *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	httpRequestLatency *prometheus.HistogramVec
)

// Init registers commission metrics and DB-backed gauges.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		calculationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculations_total",
				Help: "Total station calculations by result",
			},
			[]string{"result"},
		)
		calculationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_latency_seconds",
				Help:    "Station calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		transitionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Total lifecycle transitions by target status and result",
			},
			[]string{"status", "result"},
		)

		sourceSelectedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_selected_total",
				Help: "Volume source picked by the aggregation strategy",
			},
			[]string{"source"},
		)
		sourceFailedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_failed_total",
				Help: "Volume source fetch failures",
			},
			[]string{"source"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total commission exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Commission export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		httpRequestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		)

		prometheus.MustRegister(
			calculationTotal,
			calculationLatency,
			transitionTotal,
			sourceSelectedTotal,
			sourceFailedTotal,
			exportTotal,
			exportLatency,
			httpRequestLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveCalculation records a station calculation.
func ObserveCalculation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if calculationTotal != nil {
		calculationTotal.WithLabelValues(result).Inc()
	}
	if calculationLatency != nil {
		calculationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncTransition counts a lifecycle transition attempt.
func IncTransition(status, result string) {
	if status == "" {
		status = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if transitionTotal != nil {
		transitionTotal.WithLabelValues(status, result).Inc()
	}
}

// IncSourceSelected counts a source pick.
func IncSourceSelected(source string) {
	if source == "" {
		source = "unknown"
	}
	if sourceSelectedTotal != nil {
		sourceSelectedTotal.WithLabelValues(source).Inc()
	}
}

// IncSourceFailed counts a source fetch failure.
func IncSourceFailed(source string) {
	if source == "" {
		source = "unknown"
	}
	if sourceFailedTotal != nil {
		sourceFailedTotal.WithLabelValues(source).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveHTTP records request latency.
func ObserveHTTP(method, status string, duration time.Duration) {
	if httpRequestLatency != nil {
		httpRequestLatency.WithLabelValues(method, status).Observe(duration.Seconds())
	}
}

// Observer adapts the package-level collectors to the commission service hooks.
type Observer struct{}

// ObserveCalculation implements the lifecycle observer.
func (Observer) ObserveCalculation(result string, duration time.Duration) {
	ObserveCalculation(result, duration)
}

// ObserveTransition implements the lifecycle observer.
func (Observer) ObserveTransition(to commission.Status, result string) {
	IncTransition(string(to), result)
}

// ObserveSourceSelected implements the aggregation observer.
func (Observer) ObserveSourceSelected(source commission.DataSource) {
	IncSourceSelected(string(source))
}

// ObserveSourceFailed implements the aggregation observer.
func (Observer) ObserveSourceFailed(source commission.DataSource) {
	IncSourceFailed(string(source))
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
