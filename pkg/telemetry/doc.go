// Package telemetry groups the observability of an arbiter process.
//
//   - logging: structured slog logging with credential redaction
//   - metrics: Prometheus metrics for dispatches, seats and games
//   - tracing: OpenTelemetry spans per game, phase and dispatch
//   - health: seat readiness probes and HTTP health endpoints
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig and wired together by the arbiter command.
package telemetry
