package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lycan-hq/arbiter/pkg/consensus"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/perspective"
	"lycan-hq/arbiter/pkg/telemetry/logging"
	"lycan-hq/arbiter/pkg/telemetry/tracing"
)

const (
	// DefaultMaxSteps bounds RunToGameOver when the caller passes zero.
	DefaultMaxSteps = 500

	// DefaultVoteConcurrency bounds the day-vote fan-out.
	DefaultVoteConcurrency = 8
)

// ErrStepLimit is returned by RunToGameOver when the game is still running
// after the step budget.
var ErrStepLimit = errors.New("step limit reached before game over")

// Orchestrator drives a game phase by phase. It is the only component that
// mutates the engine in response to backend answers.
type Orchestrator interface {
	// AllReady reports whether every listed seat's backend answers its
	// health probe.
	AllReady(seatIDs []string) bool

	// RunSinglePhase runs the current phase and advances the engine once.
	RunSinglePhase(ctx context.Context, eng *game.Engine) error

	// RunToGameOver runs phases until the game ends, ctx is done or
	// maxSteps phases have run.
	RunToGameOver(ctx context.Context, eng *game.Engine, maxSteps int) (Summary, error)
}

// Summary describes a finished (or abandoned) run.
type Summary struct {
	RoomID    string        `json:"room_id"`
	Over      bool          `json:"game_over"`
	Winner    game.Team     `json:"winner,omitempty"`
	Rounds    int           `json:"rounds"`
	Steps     int           `json:"steps"`
	Fallbacks int64         `json:"fallbacks"`
	Duration  time.Duration `json:"duration"`
}

// Config tunes an orchestrator.
type Config struct {
	// VoteConcurrency bounds concurrent day-vote dispatches.
	VoteConcurrency int `yaml:"vote_concurrency"`

	// ConsensusRounds is the number of wolf discussion rounds.
	ConsensusRounds int `yaml:"consensus_rounds"`

	// PhaseTimeout bounds one RunSinglePhase call. Zero means no bound
	// beyond the per-dispatch budgets.
	PhaseTimeout time.Duration `yaml:"phase_timeout"`
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		VoteConcurrency: DefaultVoteConcurrency,
		ConsensusRounds: consensus.DefaultMaxRounds,
	}
}

// Option configures an orchestrator.
type Option func(*runner)

// WithConfig sets the orchestrator configuration.
func WithConfig(cfg Config) Option {
	return func(r *runner) { r.cfg = cfg }
}

// WithInstructions replaces the prompt templates sent to seats.
func WithInstructions(in Instructions) Option {
	return func(r *runner) { r.instructions = in }
}

// WithViewOptions sets the limits used when building seat views.
func WithViewOptions(o perspective.Options) Option {
	return func(r *runner) { r.views = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// WithTracer sets the tracer. The global otel tracer is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(r *runner) { r.tracer = t }
}

// WithPhaseHook registers a function called after every completed phase
// with the time the phase took, e.g. to export phase latency.
func WithPhaseHook(fn func(phase game.Phase, elapsed time.Duration)) Option {
	return func(r *runner) { r.phaseHook = fn }
}

// narrator produces the judge's lines. RuleBased runs without one.
type narrator interface {
	narrate(ctx context.Context, snap game.Snapshot, phase game.Phase, instruction string) string
	announce(snap game.Snapshot) (public, settlement string)
}

// runner holds the phase flows shared by both orchestrators.
type runner struct {
	dispatcher   *dispatch.Dispatcher
	narrator     narrator
	cfg          Config
	instructions Instructions
	views        perspective.Options
	logger       *slog.Logger
	tracer       trace.Tracer
	phaseHook    func(game.Phase, time.Duration)

	fallbacks atomic.Int64
}

func newRunner(d *dispatch.Dispatcher, component string, opts []Option) *runner {
	r := &runner{
		dispatcher:   d,
		cfg:          DefaultConfig(),
		instructions: DefaultInstructions(),
		views:        perspective.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.VoteConcurrency <= 0 {
		r.cfg.VoteConcurrency = DefaultVoteConcurrency
	}
	if r.cfg.ConsensusRounds <= 0 {
		r.cfg.ConsensusRounds = consensus.DefaultMaxRounds
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", component)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	return r
}

// AllReady implements Orchestrator.
func (r *runner) AllReady(seatIDs []string) bool {
	return r.dispatcher.AllReady(seatIDs)
}

// RunSinglePhase implements Orchestrator.
func (r *runner) RunSinglePhase(ctx context.Context, eng *game.Engine) error {
	if eng.Over() {
		return nil
	}
	if !eng.Started() {
		return errors.New("game not started")
	}
	if r.cfg.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PhaseTimeout)
		defer cancel()
	}

	phase := eng.Phase()
	if r.phaseHook != nil {
		start := time.Now()
		defer func() { r.phaseHook(phase, time.Since(start)) }()
	}
	ctx, span := r.tracer.Start(ctx, "orchestrator.phase",
		trace.WithAttributes(tracing.GameAttributes(eng.RoomID(), eng.Round(), string(phase))...))
	defer span.End()
	ctx = logging.WithPhase(logging.WithRound(ctx, eng.Round()), string(phase))

	if err := r.runPhase(ctx, eng, phase); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("run %s: %w", phase, err)
	}
	if eng.Over() {
		return nil
	}
	if err := eng.AdvancePhase(); err != nil {
		return fmt.Errorf("advance from %s: %w", phase, err)
	}
	if err := r.runRetaliation(ctx, eng); err != nil {
		return fmt.Errorf("retaliation after %s: %w", phase, err)
	}
	return nil
}

func (r *runner) runPhase(ctx context.Context, eng *game.Engine, phase game.Phase) error {
	switch phase {
	case game.PhaseNightWolf:
		return r.runWolves(ctx, eng)
	case game.PhaseNightGuard:
		return r.runGuard(ctx, eng)
	case game.PhaseNightWitch:
		return r.runWitch(ctx, eng)
	case game.PhaseNightSeer:
		return r.runSeer(ctx, eng)
	case game.PhaseDayAnnounce:
		r.runAnnounce(eng)
		return nil
	case game.PhaseDayDiscuss:
		return r.runDiscussion(ctx, eng)
	case game.PhaseDayVote:
		return r.runVote(ctx, eng)
	}
	return fmt.Errorf("no flow for phase %q", phase)
}

// RunToGameOver implements Orchestrator.
func (r *runner) RunToGameOver(ctx context.Context, eng *game.Engine, maxSteps int) (Summary, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	ctx, span := r.tracer.Start(ctx, "orchestrator.game",
		trace.WithAttributes(attribute.String(tracing.AttrRoom, eng.RoomID())))
	defer span.End()

	start := time.Now()
	summary := Summary{RoomID: eng.RoomID()}
	finish := func() Summary {
		summary.Over = eng.Over()
		summary.Winner = eng.Winner()
		summary.Rounds = eng.Round()
		summary.Fallbacks = r.fallbacks.Load()
		summary.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String(tracing.AttrWinner, string(summary.Winner)),
			attribute.Int(tracing.AttrRound, summary.Rounds),
		)
		return summary
	}

	r.logger.Info("running game", "room", eng.RoomID(), "max_steps", maxSteps)
	for !eng.Over() {
		if summary.Steps >= maxSteps {
			r.logger.Warn("step limit reached", "room", eng.RoomID(), "steps", summary.Steps, "phase", eng.Phase())
			span.SetStatus(codes.Error, ErrStepLimit.Error())
			return finish(), ErrStepLimit
		}
		if err := ctx.Err(); err != nil {
			return finish(), err
		}
		if err := r.RunSinglePhase(ctx, eng); err != nil {
			tracing.SetStatus(span, err)
			return finish(), err
		}
		summary.Steps++
	}

	s := finish()
	r.logger.Info("game finished",
		"room", s.RoomID,
		"winner", s.Winner,
		"rounds", s.Rounds,
		"steps", s.Steps,
		"fallbacks", s.Fallbacks,
		"duration", s.Duration,
	)
	return s, nil
}

// ask dispatches one seat. extra is merged into the view.
func (r *runner) ask(ctx context.Context, snap game.Snapshot, seat game.Seat, phase game.Phase, extra map[string]any) (dispatch.Result, error) {
	view, err := r.views.Build(snap, seat.ID)
	if err != nil {
		return dispatch.Result{}, err
	}
	for k, v := range extra {
		view = view.With(k, v)
	}
	res, err := r.dispatcher.Dispatch(ctx, dispatch.Request{
		Seat:        seat.ID,
		Role:        seat.Role,
		Phase:       phase,
		View:        view,
		Instruction: r.instructions.For(phase),
		FallbackKey: dispatch.FallbackKeyFor(phase),
	})
	if err != nil {
		return res, err
	}
	if res.Fallback {
		r.fallbacks.Add(1)
		r.logger.Debug("seat answered by fallback",
			"seat", seat.ID,
			"phase", phase,
			"reason", res.FallbackReason,
		)
	}
	return res, nil
}

// settle applies the engine side effects of a dispatch result. Callers
// running dispatches concurrently hold their submit lock. A seat answered
// by its own backend is online and no longer entrusted, which is how a
// hot-swapped seat rejoins.
func (r *runner) settle(eng *game.Engine, seatID string, res dispatch.Result) {
	if !res.CircuitOpened {
		if !res.Fallback {
			_ = eng.MarkOnline(seatID, true)
			_ = eng.SetEntrusted(seatID, false)
		}
		return
	}
	if err := eng.SetEntrusted(seatID, true); err != nil {
		r.logger.Warn("failed to entrust seat", "seat", seatID, "error", err)
		return
	}
	r.logger.Warn("seat entrusted to fallback", "seat", seatID, "reason", res.FallbackReason)
}

// say records a speech entry. Thinking is kept in the entry's fields only.
func say(eng *game.Engine, round int, phase game.Phase, actor string, vis game.Visibility, text, thinking string, fields map[string]string) {
	if fields == nil && thinking != "" {
		fields = map[string]string{}
	}
	if thinking != "" {
		fields["thinking"] = thinking
	}
	eng.Record(game.AuditEntry{
		Round:      round,
		Phase:      phase,
		Kind:       game.EventSpeech,
		Actor:      actor,
		Text:       text,
		Visibility: vis,
		Fields:     fields,
	})
}

// judgeLine records a line spoken by the judge.
func judgeLine(eng *game.Engine, phase game.Phase, vis game.Visibility, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	eng.Record(game.AuditEntry{
		Round:      eng.Round(),
		Phase:      phase,
		Kind:       game.EventNarration,
		Actor:      "judge",
		Text:       text,
		Visibility: vis,
	})
}

// narrate asks the narrator for the phase narration and records it. Night
// narration is written from the full table and stays with the judge; the
// acting seats get it through their view. It returns "" for RuleBased.
func (r *runner) narrate(ctx context.Context, eng *game.Engine, phase game.Phase) string {
	if r.narrator == nil {
		return ""
	}
	text := r.narrator.narrate(ctx, eng.Snapshot(), phase, r.instructions.For(phase))
	vis := game.VisibilityPublic
	if phase.IsNight() {
		vis = game.VisibilityJudge
	}
	judgeLine(eng, phase, vis, text)
	return text
}

// randomTarget picks a living seat other than self and exclude, seeded by
// the room, the round and salt. When exclude leaves nothing it picks among
// every living seat but self.
func randomTarget(snap game.Snapshot, salt, self string, exclude ...string) string {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var pool, wide []string
	for _, s := range snap.Living() {
		if s.ID == self {
			continue
		}
		wide = append(wide, s.ID)
		if !skip[s.ID] {
			pool = append(pool, s.ID)
		}
	}
	if len(pool) == 0 {
		pool = wide
	}
	return game.Pick(game.NewRand(snap.RoomID, snap.Round.Round, salt), pool)
}
