// Package tracing exports OpenTelemetry spans for games.
//
// A game is one trace. RunToGameOver opens an "orchestrator.game" span, each
// phase is an "orchestrator.phase" child, and every seat dispatch is a
// "dispatch.act" span below its phase. Spans carry the room, round and phase
// attributes plus the seat, provider key, attempt count and fallback flag of
// dispatches.
//
// Spans are batched to an OTLP gRPC collector. The W3C traceparent header is
// injected into act requests, so agents that trace their own work join the
// game trace.
//
// # Sampling
//
//   - always: every game
//   - never: no game
//   - ratio: a fraction of games by trace id
//   - parent_based: follow the caller's decision, ratio for root traces
//
// Configuration:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: parent_based
//	    sample_ratio: 0.25
//	    endpoint: localhost:4317
//	    otlp:
//	      insecure: true
package tracing
