package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"lycan-hq/arbiter/pkg/config"
)

// InstrumentationName names the tracer used for game, phase and dispatch
// spans.
const InstrumentationName = "lycan-hq/arbiter"

// Tracer produces one span per game with child spans per phase and per
// seat dispatch. A disabled Tracer hands out noop spans.
type Tracer struct {
	trace.Tracer
	provider *sdktrace.TracerProvider
}

// New builds the tracer described by cfg. An enabled tracer batches spans
// to the OTLP gRPC collector at cfg.Endpoint and is installed as the global
// provider with W3C trace-context and baggage propagation. Call Shutdown to
// flush before exit.
func New(ctx context.Context, cfg config.TracingConfig, version string) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{Tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	sampler, err := NewSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	exporter, err := otlpExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to describe service resource: %w", err)
	}

	return install(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	), nil
}

// NewWithExporter returns an enabled tracer that hands every span to
// exporter as soon as it ends.
func NewWithExporter(exporter sdktrace.SpanExporter, sampler sdktrace.Sampler) *Tracer {
	return install(sdktrace.WithSyncer(exporter), sdktrace.WithSampler(sampler))
}

func install(opts ...sdktrace.TracerProviderOption) *Tracer {
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Tracer{Tracer: provider.Tracer(InstrumentationName), provider: provider}
}

// Enabled reports whether spans leave the process.
func (t *Tracer) Enabled() bool { return t.provider != nil }

// Shutdown flushes buffered spans. It is a no-op when disabled.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// otlpExporter dials lazily, so a collector that is down does not delay a
// game from starting.
func otlpExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tracing endpoint is empty")
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.OTLP.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.OTLP.Timeout))
	}
	exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exp, nil
}

// TraceID returns the id of the trace ctx belongs to, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// SetStatus records err on span and marks it failed, or marks it ok.
func SetStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
