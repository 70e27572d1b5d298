// Package metrics exports arbiter metrics to Prometheus.
//
// # Metrics Categories
//
//   - Dispatch metrics: dispatch count by phase and outcome, backend latency,
//     admission wait, retries, errors by type, opened circuits
//   - Seat metrics: probe health, entrusted flag, registrations
//   - Game metrics: finished games by winner, rounds, game and phase duration
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//
//	// The dispatcher reports every dispatch and opened circuit
//	d := dispatch.New(registry, backend, dispatch.WithObserver(collector))
//
//	// Expose the endpoint
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// The in-process counters of dispatch.Metrics remain the source for the game
// summary; this package only exports.
package metrics
