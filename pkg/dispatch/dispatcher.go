package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lycan-hq/arbiter/pkg/admission"
	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/perspective"
	"lycan-hq/arbiter/pkg/telemetry/logging"
	"lycan-hq/arbiter/pkg/telemetry/tracing"
)

// Defaults for Config.
const (
	DefaultTimeoutRetries   = 2
	DefaultTransientRetries = 2
	DefaultBackoff          = 800 * time.Millisecond
	DefaultFailureThreshold = 4
)

// Config tunes retries, circuit breaking and payload capture.
type Config struct {
	Limits admission.Limits `yaml:"limits"`

	// TimeoutRetries is how many times a timed-out attempt is retried.
	TimeoutRetries int `yaml:"timeout_retries"`

	// TransientRetries is how many times a 429/5xx answer is retried.
	TransientRetries int `yaml:"transient_retries"`

	// Backoff is the base delay; attempt n waits Backoff * 2^n.
	Backoff time.Duration `yaml:"backoff"`

	// FailureThreshold is the number of consecutive failed dispatches that
	// opens a seat's circuit.
	FailureThreshold int `yaml:"failure_threshold"`

	TextCap    int `yaml:"text_cap"`
	PayloadCap int `yaml:"payload_cap"`

	// Debug records the View sent to every seat as evidence.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the production dispatch settings.
func DefaultConfig() Config {
	return Config{
		Limits:           admission.DefaultLimits(),
		TimeoutRetries:   DefaultTimeoutRetries,
		TransientRetries: DefaultTransientRetries,
		Backoff:          DefaultBackoff,
		FailureThreshold: DefaultFailureThreshold,
		TextCap:          DefaultTextCap,
		PayloadCap:       DefaultPayloadCap,
	}
}

// Recorder receives dispatch evidence. evidence/recorder.Recorder
// implements it.
type Recorder interface {
	Record(ctx context.Context, rec *evidence.Record) error
}

// Observation summarizes one finished dispatch for metrics.
type Observation struct {
	SeatID      string
	ProviderKey string
	Phase       game.Phase
	Outcome     string // "success" or "fallback"
	ErrorType   string
	Attempts    int
	Latency     time.Duration
	QueueWait   time.Duration
}

// Observer exports dispatch metrics. telemetry/metrics.Collector
// implements it.
type Observer interface {
	ObserveDispatch(o Observation)
	ObserveCircuitOpen(seatID, providerKey string)
}

// Request asks one seat to act.
type Request struct {
	Seat  string
	Role  game.Role
	Phase game.Phase

	// View is the seat's visible state. Its RoomID and Round also seed the
	// fallback random source.
	View perspective.View

	// Instruction is the prompt template sent with the request.
	Instruction string

	// FallbackKey overrides the strategy derived from Phase.
	FallbackKey FallbackKey
}

// Result is the answer used for the seat, from its backend or from the
// fallback policy.
type Result struct {
	Action    Action
	Reasoning string
	Speech    string
	Thinking  string

	Fallback       bool
	FallbackReason string

	// CircuitOpened is set on the dispatch that took the seat offline.
	CircuitOpened bool

	Attempts int
	Latency  time.Duration
}

// Target returns the action target or "".
func (r Result) Target() string {
	return r.Action.TargetString()
}

// Dispatcher sends requests to seat backends.
//
// # Flow
//
// A seat whose circuit is open is answered by the fallback policy without a
// network call. Otherwise the dispatcher takes an admission slot keyed by the
// backend's provider key, then calls the backend up to
// max(TimeoutRetries, TransientRetries)+1 times. Timeouts and 429/5xx answers
// are retried with exponential backoff while their own retry budget lasts;
// any other error, or an answer that fails validation, ends the dispatch.
//
// A dispatch that ends without a valid answer counts as one failure of the
// seat. FailureThreshold consecutive failures mark the seat offline and
// entrusted. Every dispatch still returns an action: the fallback answer
// carries the failure reason.
//
// # Thread Safety
//
// Dispatch is safe for concurrent use. Concurrency per backend is bounded by
// the admission pool.
type Dispatcher struct {
	cfg       Config
	registry  *Registry
	backend   Backend
	pool      *admission.Pool
	policy    *Policy
	sanitizer *Sanitizer
	metrics   *Metrics
	recorder  Recorder
	observer  Observer
	tracer    trace.Tracer
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) { d.cfg = cfg }
}

// WithPool shares an admission pool between dispatchers.
func WithPool(p *admission.Pool) Option {
	return func(d *Dispatcher) { d.pool = p }
}

// WithPolicy sets the fallback policy.
func WithPolicy(p *Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithRecorder sets the evidence recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTracer sets the tracer. The global otel tracer is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a Dispatcher.
func New(registry *Registry, backend Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      DefaultConfig(),
		registry: registry,
		backend:  backend,
		metrics:  NewMetrics(),
		logger:   slog.Default().With("component", "dispatch"),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pool == nil {
		d.pool = admission.NewPool()
	}
	if d.policy == nil {
		d.policy = NewPolicy(nil)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	d.sanitizer = NewSanitizer(d.cfg.TextCap, d.cfg.PayloadCap)
	return d
}

// Registry returns the seat registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Metrics returns the process-local counters.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// Sanitizer returns the sanitizer applied to backend text.
func (d *Dispatcher) Sanitizer() *Sanitizer { return d.sanitizer }

// Dispatch asks req.Seat to act and always returns an answer. The error is
// non-nil only when ctx ends before the seat could be asked.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	if req.FallbackKey == "" {
		req.FallbackKey = FallbackKeyFor(req.Phase)
	}

	attrs := append(tracing.GameAttributes(req.View.RoomID, req.View.Round, string(req.Phase)),
		attribute.String(tracing.AttrSeat, req.Seat))
	ctx, span := d.tracer.Start(ctx, "dispatch.act", trace.WithAttributes(attrs...))
	defer span.End()
	ctx = logging.WithSeat(logging.WithPhase(ctx, string(req.Phase)), req.Seat)

	reg, ok := d.registry.Get(req.Seat)
	if !ok || !reg.Online {
		d.metrics.ObserveOffline()
		res := d.fallback(ctx, req, reg, "offline", "", 0, start)
		span.SetAttributes(attribute.Bool(tracing.AttrFallback, true))
		return res, nil
	}
	key := ProviderKey(reg)
	span.SetAttributes(attribute.String(tracing.AttrProviderKey, key))

	if d.cfg.Debug {
		d.record(ctx, &evidence.Record{
			Event:    evidence.EventVisibleState,
			Status:   evidence.StatusDebug,
			Request:  d.sanitizer.Payload(req.View),
			Response: "",
		}, req, reg)
	}

	queued := time.Now()
	release, err := d.pool.Acquire(ctx, key, d.cfg.Limits.Capacity(reg.Kind(), req.Phase))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission")
		return Result{}, err
	}
	defer release()
	wait := time.Since(queued)

	actReq := d.buildRequest(req, reg)
	budget := OuterBudget(reg.Timeout, req.Phase)
	maxAttempts := max(d.cfg.TimeoutRetries, d.cfg.TransientRetries) + 1

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts = attempt + 1
		body, err := d.backend.Act(ctx, reg, actReq, budget)
		if err == nil {
			resp, perr := ParseResponse(body, d.sanitizer)
			if perr != nil {
				lastErr = &FatalError{Seat: reg.SeatID, Reason: "invalid_response", Cause: perr}
				break
			}
			return d.succeed(ctx, span, req, reg, actReq, resp, attempts, start, wait), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if !d.retryable(err, attempt) {
			break
		}

		delay := d.cfg.Backoff << attempt
		d.logger.DebugContext(ctx, "retrying dispatch",
			"attempt", attempts,
			"error_type", ErrorType(err),
			"backoff", delay,
		)
		if err := d.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	errType := ErrorType(lastErr)
	var timeout *TimeoutError
	if errors.As(lastErr, &timeout) {
		d.metrics.ObserveTimeout()
	} else {
		d.metrics.ObserveError(errType)
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, errType)

	reason := errType
	opened := d.registry.recordFailure(req.Seat, reason, d.cfg.FailureThreshold)
	if opened && d.observer != nil {
		d.observer.ObserveCircuitOpen(req.Seat, key)
	}

	d.logger.WarnContext(ctx, "dispatch failed, using fallback",
		"provider_key", key,
		"attempts", attempts,
		"error", lastErr,
		"circuit_opened", opened,
	)

	res := d.fallback(ctx, req, reg, reason, errType, attempts, start)
	res.CircuitOpened = opened
	if d.observer != nil {
		d.observer.ObserveDispatch(Observation{
			SeatID: req.Seat, ProviderKey: key, Phase: req.Phase, Outcome: evidence.StatusFallback,
			ErrorType: errType, Attempts: attempts, Latency: res.Latency, QueueWait: wait,
		})
	}
	tracing.SetDispatchOutcome(span, true, attempts)
	return res, nil
}

// retryable reports whether err may be retried after attempt (0-based).
func (d *Dispatcher) retryable(err error, attempt int) bool {
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return attempt < d.cfg.TimeoutRetries
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return attempt < d.cfg.TransientRetries
	}
	return false
}

func (d *Dispatcher) succeed(ctx context.Context, span trace.Span, req Request, reg Registration, actReq ActRequest, resp ActResponse, attempts int, start time.Time, wait time.Duration) Result {
	latency := time.Since(start)
	d.metrics.ObserveSuccess(latency)
	d.registry.recordSuccess(req.Seat)

	d.record(ctx, &evidence.Record{
		Event:    evidence.EventAgentResponse,
		Status:   evidence.StatusSuccess,
		Attempts: attempts,
		Latency:  latency,
		Request:  d.sanitizer.Payload(actReq),
		Response: d.sanitizer.Payload(resp),
	}, req, reg)

	if d.observer != nil {
		d.observer.ObserveDispatch(Observation{
			SeatID: req.Seat, ProviderKey: ProviderKey(reg), Phase: req.Phase, Outcome: evidence.StatusSuccess,
			Attempts: attempts, Latency: latency, QueueWait: wait,
		})
	}
	tracing.SetDispatchOutcome(span, false, attempts)

	return Result{
		Action:    resp.Action,
		Reasoning: resp.Reasoning,
		Speech:    resp.Speech,
		Thinking:  resp.Thinking,
		Attempts:  attempts,
		Latency:   latency,
	}
}

// fallback answers for a seat from its own View. The random source is
// seeded by room, round, phase and seat so replays pick the same target.
func (d *Dispatcher) fallback(ctx context.Context, req Request, reg Registration, reason, errType string, attempts int, start time.Time) Result {
	rng := game.NewRand(req.View.RoomID, req.View.Round, fmt.Sprintf("fallback|%s|%s", req.Phase, req.Seat))
	resp := d.policy.Action(req.FallbackKey, req.View, rng)

	latency := time.Since(start)
	d.record(ctx, &evidence.Record{
		Event:          evidence.EventFallback,
		Status:         evidence.StatusFallback,
		FallbackReason: reason,
		ErrorType:      errType,
		Attempts:       attempts,
		Latency:        latency,
		Request:        d.sanitizer.Payload(map[string]any{"strategy": string(req.FallbackKey), "reason": reason}),
		Response:       d.sanitizer.Payload(resp),
	}, req, reg)

	if reason == "offline" && d.observer != nil {
		d.observer.ObserveDispatch(Observation{
			SeatID: req.Seat, ProviderKey: ProviderKey(reg), Phase: req.Phase,
			Outcome: evidence.StatusFallback, ErrorType: reason, Latency: latency,
		})
	}

	return Result{
		Action:         resp.Action,
		Reasoning:      resp.Reasoning,
		Speech:         resp.Speech,
		Thinking:       resp.Thinking,
		Fallback:       true,
		FallbackReason: reason,
		Attempts:       attempts,
		Latency:        latency,
	}
}

func (d *Dispatcher) buildRequest(req Request, reg Registration) ActRequest {
	model := reg.ModelName
	if model == "" {
		model = reg.ModelType
	}
	return ActRequest{
		SessionID:      req.View.RoomID,
		PlayerID:       req.Seat,
		Role:           string(req.Role),
		Phase:          string(req.Phase),
		VisibleState:   req.View,
		PromptTemplate: req.Instruction,
		AgentConfig: AgentConfig{
			Provider:      reg.ModelType,
			APIURL:        reg.APIURL,
			APIKey:        reg.APIKey,
			ModelName:     model,
			APITimeoutSec: int(InnerBudget(reg.Timeout, req.Phase) / time.Second),
			CLICommand:    reg.CLICommand,
			CLITimeoutSec: int(reg.CLITimeout / time.Second),
		},
	}
}

func (d *Dispatcher) record(ctx context.Context, rec *evidence.Record, req Request, reg Registration) {
	if d.recorder == nil {
		return
	}
	rec.RoomID = req.View.RoomID
	rec.Round = req.View.Round
	rec.Phase = string(req.Phase)
	rec.SeatID = req.Seat
	rec.Role = string(req.Role)
	if reg.SeatID != "" {
		rec.ProviderKey = ProviderKey(reg)
		rec.Model = reg.ModelName
	}
	if err := d.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.WarnContext(ctx, "failed to record dispatch evidence",
			"event", rec.Event,
			"error", err,
		)
	}
}

// Probe checks a seat's backend health. It never closes an open circuit;
// only re-registering the seat does.
func (d *Dispatcher) Probe(ctx context.Context, seatID string) error {
	reg, ok := d.registry.Get(seatID)
	if !ok {
		return fmt.Errorf("seat %s has no registered backend", seatID)
	}
	if err := d.backend.Health(ctx, reg); err != nil {
		return err
	}
	if !reg.Online {
		return fmt.Errorf("seat %s is healthy but its circuit is open", seatID)
	}
	return nil
}

// AllReady reports whether every seat has an online backend.
func (d *Dispatcher) AllReady(seatIDs []string) bool {
	for _, id := range seatIDs {
		reg, ok := d.registry.Get(id)
		if !ok || !reg.Online {
			return false
		}
	}
	return len(seatIDs) > 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
