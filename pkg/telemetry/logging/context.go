package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	// RoomKey is the context key for the room id.
	RoomKey contextKey = "room"

	// RoundKey is the context key for the round number.
	RoundKey contextKey = "round"

	// PhaseKey is the context key for the phase being run.
	PhaseKey contextKey = "phase"

	// SeatKey is the context key for the seat being dispatched.
	SeatKey contextKey = "seat"
)

// WithRoom adds the room id to the context.
func WithRoom(ctx context.Context, room string) context.Context {
	return context.WithValue(ctx, RoomKey, room)
}

// WithRound adds the round number to the context.
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, RoundKey, round)
}

// WithPhase adds the phase to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, PhaseKey, phase)
}

// WithSeat adds the seat id to the context.
func WithSeat(ctx context.Context, seat string) context.Context {
	return context.WithValue(ctx, SeatKey, seat)
}

// GetRoom retrieves the room id from the context.
func GetRoom(ctx context.Context) string {
	room, _ := ctx.Value(RoomKey).(string)
	return room
}

// contextAttrs returns the game fields and trace ids carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if room, ok := ctx.Value(RoomKey).(string); ok && room != "" {
		attrs = append(attrs, slog.String("room", room))
	}
	if round, ok := ctx.Value(RoundKey).(int); ok {
		attrs = append(attrs, slog.Int("round", round))
	}
	if phase, ok := ctx.Value(PhaseKey).(string); ok && phase != "" {
		attrs = append(attrs, slog.String("phase", phase))
	}
	if seat, ok := ctx.Value(SeatKey).(string); ok && seat != "" {
		attrs = append(attrs, slog.String("seat", seat))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}
