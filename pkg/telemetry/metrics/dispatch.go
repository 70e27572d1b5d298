package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/evidence"
)

// DispatchMetrics tracks seat dispatches.
//
// Metrics:
//   - arbiter_dispatches_total: dispatches by phase, provider key and outcome
//   - arbiter_dispatch_duration_seconds: backend latency of successful dispatches
//   - arbiter_dispatch_queue_wait_seconds: time spent waiting for admission
//   - arbiter_dispatch_retries_total: retried attempts by provider key
//   - arbiter_dispatch_errors_total: failed dispatches by provider key and error type
//   - arbiter_circuit_opens_total: opened circuits by provider key
type DispatchMetrics struct {
	dispatches   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	queueWait    *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	errors       *prometheus.CounterVec
	circuitOpens *prometheus.CounterVec
}

// NewDispatchMetrics creates and registers dispatch metrics.
func NewDispatchMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *DispatchMetrics {
	dm := &DispatchMetrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "dispatches_total",
				Help:      "Total number of seat dispatches by phase, provider and outcome",
			},
			[]string{"phase", "provider", "outcome"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Backend latency of successful dispatches in seconds",
				Buckets:   cfg.DispatchDurationBuckets,
			},
			[]string{"phase", "provider"},
		),

		queueWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "dispatch_queue_wait_seconds",
				Help:      "Time spent waiting for an admission slot in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"provider"},
		),

		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "dispatch_retries_total",
				Help:      "Total number of retried dispatch attempts",
			},
			[]string{"provider"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "dispatch_errors_total",
				Help:      "Total number of failed dispatches by error type",
			},
			[]string{"provider", "error_type"},
		),

		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of seat circuits opened",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		dm.dispatches,
		dm.duration,
		dm.queueWait,
		dm.retries,
		dm.errors,
		dm.circuitOpens,
	)

	return dm
}

// Record records one finished dispatch.
func (dm *DispatchMetrics) Record(o dispatch.Observation) {
	provider := o.ProviderKey
	if provider == "" {
		provider = "unknown"
	}
	outcome := o.Outcome
	if outcome == "" {
		outcome = evidence.StatusSuccess
	}

	dm.dispatches.WithLabelValues(string(o.Phase), provider, outcome).Inc()
	dm.queueWait.WithLabelValues(provider).Observe(o.QueueWait.Seconds())

	if o.Attempts > 1 {
		dm.retries.WithLabelValues(provider).Add(float64(o.Attempts - 1))
	}
	if outcome == evidence.StatusSuccess {
		dm.duration.WithLabelValues(string(o.Phase), provider).Observe(o.Latency.Seconds())
		return
	}
	errType := o.ErrorType
	if errType == "" {
		errType = "unknown"
	}
	dm.errors.WithLabelValues(provider, errType).Inc()
}
