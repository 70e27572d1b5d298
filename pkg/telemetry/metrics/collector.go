package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/dispatch"
)

// Collector owns the Prometheus metrics of an arbiter process. It implements
// dispatch.Observer, so the dispatcher reports every finished dispatch and
// every opened circuit to it directly.
//
// All methods are safe for concurrent use; the underlying vectors are
// lock-free for label sets that already exist.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	dispatch *DispatchMetrics
	seats    *SeatMetrics
	games    *GameMetrics
}

var _ dispatch.Observer = (*Collector)(nil)

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	d := dispatch.New(registry, backend, dispatch.WithObserver(collector))
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DispatchDurationBuckets) == 0 {
		cfg.DispatchDurationBuckets = config.DefaultDispatchDurationBuckets
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		dispatch: NewDispatchMetrics(cfg, registry),
		seats:    NewSeatMetrics(cfg, registry),
		games:    NewGameMetrics(cfg, registry),
	}
}

// ObserveDispatch records one finished dispatch.
func (c *Collector) ObserveDispatch(o dispatch.Observation) {
	c.dispatch.Record(o)
}

// ObserveCircuitOpen records a seat whose circuit just opened. The seat is
// entrusted to the fallback policy until it is registered again.
func (c *Collector) ObserveCircuitOpen(seatID, providerKey string) {
	c.dispatch.circuitOpens.WithLabelValues(providerKey).Inc()
	c.seats.SetEntrusted(seatID, true)
}

// UpdateSeatHealth records the result of a seat health probe.
func (c *Collector) UpdateSeatHealth(seatID string, healthy bool) {
	c.seats.SetHealth(seatID, healthy)
}

// SeatRegistered records a (re-)registration, which closes the seat's circuit.
func (c *Collector) SeatRegistered(seatID string) {
	c.seats.registrations.WithLabelValues(seatID).Inc()
	c.seats.SetEntrusted(seatID, false)
}

// RecordGame records a finished game.
func (c *Collector) RecordGame(winner string, rounds int, duration time.Duration) {
	c.games.Record(winner, rounds, duration)
}

// RecordPhase records how long one phase took.
func (c *Collector) RecordPhase(phase string, duration time.Duration) {
	c.games.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
