package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the dispatcher and the orchestrator.
const (
	AttrRoom        = "arbiter.room"
	AttrRound       = "arbiter.round"
	AttrPhase       = "arbiter.phase"
	AttrSeat        = "arbiter.seat"
	AttrProviderKey = "arbiter.provider_key"
	AttrFallback    = "arbiter.fallback"
	AttrAttempts    = "arbiter.attempts"
	AttrWinner      = "arbiter.winner"
)

// GameAttributes returns the attributes identifying a point in a game.
func GameAttributes(room string, round int, phase string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRoom, room),
		attribute.Int(AttrRound, round),
		attribute.String(AttrPhase, phase),
	}
}

// SetDispatchOutcome records how a dispatch ended.
func SetDispatchOutcome(span trace.Span, fallback bool, attempts int) {
	span.SetAttributes(
		attribute.Bool(AttrFallback, fallback),
		attribute.Int(AttrAttempts, attempts),
	)
}
