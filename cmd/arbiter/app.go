package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/evidence/recorder"
	"lycan-hq/arbiter/pkg/evidence/retention"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/orchestrator"
	"lycan-hq/arbiter/pkg/providerfactory"
	"lycan-hq/arbiter/pkg/records"
	"lycan-hq/arbiter/pkg/secrets"
	"lycan-hq/arbiter/pkg/server"
	"lycan-hq/arbiter/pkg/telemetry/health"
	"lycan-hq/arbiter/pkg/telemetry/logging"
	"lycan-hq/arbiter/pkg/telemetry/metrics"
	"lycan-hq/arbiter/pkg/telemetry/tracing"
)

const (
	shutdownTimeout = 5 * time.Second
	saveTimeout     = 10 * time.Second
)

type appOptions struct {
	// progress receives one line per finished phase. Nil means stderr.
	progress io.Writer

	// configPath enables hot swapping of seat registrations when set.
	configPath string

	// requireReady fails the run when a seat misses the readiness wait
	// instead of entrusting it to fallback.
	requireReady bool
}

// app holds every component of one "arbiter run" invocation.
type app struct {
	cfg    *config.Config
	opts   appOptions
	logger *slog.Logger

	secrets    *secrets.Resolver
	tracer     *tracing.Tracer
	collector  *metrics.Collector
	evidence   evidence.Storage
	recorder   *recorder.Recorder
	pruner     *retention.Pruner
	registry   *dispatch.Registry
	backend    *dispatch.HTTPBackend
	dispatcher *dispatch.Dispatcher
	checker    *health.Checker
	records    records.Repository
	orch       orchestrator.Orchestrator
	progress   *cli.PhaseReporter
	server     *server.Server

	closers []func() error
}

// newApp assembles the components described by cfg. On error everything
// opened so far is closed again.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (a *app, err error) {
	a = &app{
		cfg:    cfg,
		opts:   opts,
		logger: slog.Default().With("component", "arbiter"),
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	resolver, closeSecrets, err := newResolver(cfg.Secrets)
	if err != nil {
		return a, fmt.Errorf("failed to initialize secrets: %w", err)
	}
	a.secrets = resolver
	a.onClose(closeSecrets)

	a.tracer, err = tracing.New(ctx, cfg.Telemetry.Tracing, Version)
	if err != nil {
		return a, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.onClose(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.tracer.Shutdown(sctx)
	})

	a.collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	dispatchOpts := []dispatch.Option{
		dispatch.WithConfig(dispatchConfig(cfg.Dispatch)),
		dispatch.WithObserver(a.collector),
		dispatch.WithTracer(a.tracer.Tracer),
	}
	if config.BoolValue(cfg.Evidence.Enabled, true) {
		if err := a.openEvidence(ctx); err != nil {
			return a, err
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithRecorder(a.recorder))
	}

	a.registry = dispatch.NewRegistry()
	seatIDs := make([]string, 0, len(cfg.Seats))
	for _, seat := range cfg.Seats {
		seat, err := resolveSeat(ctx, a.secrets, seat)
		if err != nil {
			return a, err
		}
		a.registry.Register(registration(seat))
		a.collector.SeatRegistered(seat.ID)
		seatIDs = append(seatIDs, seat.ID)
	}
	a.backend = dispatch.NewHTTPBackend(dispatch.HTTPOptions{})
	a.onClose(a.backend.Close)
	a.dispatcher = dispatch.New(a.registry, a.backend, dispatchOpts...)

	a.checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	a.checker.RegisterSeats(a.dispatcher, seatIDs)
	a.checker.OnResult(func(name string, healthy bool) {
		if id, ok := health.SeatID(name); ok {
			a.collector.UpdateSeatHealth(id, healthy)
		}
	})

	if config.BoolValue(cfg.Records.Enabled, true) {
		repo, err := records.OpenSQLite(ctx, cfg.Records.Path)
		if err != nil {
			return a, err
		}
		a.records = repo
		a.onClose(repo.Close)
		a.checker.RegisterCheck("records", repo.Ping)
	}

	if err := a.buildOrchestrator(ctx); err != nil {
		return a, err
	}

	if cfg.Telemetry.Metrics.Enabled {
		if err := a.serveTelemetry(); err != nil {
			return a, err
		}
	}
	return a, nil
}

func (a *app) openEvidence(ctx context.Context) error {
	st, err := openEvidence(a.cfg.Evidence)
	if err != nil {
		return err
	}
	a.evidence = st
	a.onClose(st.Close)

	a.recorder = recorder.NewRecorder(st, recorderConfig(a.cfg.Evidence))
	a.onClose(a.recorder.Close)

	if a.cfg.Evidence.Retention.PruneSchedule == "" {
		return nil
	}
	a.pruner = retention.NewPruner(st, retentionConfig(a.cfg.Evidence.Retention))
	if err := a.pruner.Start(ctx); err != nil {
		a.logger.Warn("evidence pruner not started", "error", err)
		a.pruner = nil
		return nil
	}
	a.onClose(func() error {
		a.pruner.Stop()
		return nil
	})
	return nil
}

func (a *app) buildOrchestrator(ctx context.Context) error {
	a.progress = cli.NewPhaseReporter(a.opts.progress)
	opts := []orchestrator.Option{
		orchestrator.WithConfig(orchestratorConfig(a.cfg)),
		orchestrator.WithInstructions(instructions(a.cfg.Orchestrator.Instructions)),
		orchestrator.WithViewOptions(viewOptions(a.cfg.Perspective)),
		orchestrator.WithTracer(a.tracer.Tracer),
		orchestrator.WithPhaseHook(func(phase game.Phase, elapsed time.Duration) {
			a.progress.Phase(phase, elapsed)
			a.collector.RecordPhase(string(phase), elapsed)
		}),
	}

	switch a.cfg.Orchestrator.Mode {
	case config.ModeJudge:
		judge := a.cfg.Orchestrator.Judge
		key, err := a.secrets.Expand(ctx, judge.APIKey)
		if err != nil {
			return fmt.Errorf("judge: %w", err)
		}
		judge.APIKey = key
		provider, err := providerfactory.NewProvider(judge)
		if err != nil {
			return fmt.Errorf("failed to create judge provider: %w", err)
		}
		a.onClose(provider.Close)
		a.orch = orchestrator.NewJudge(a.dispatcher, provider, opts...)
	default:
		a.orch = orchestrator.NewRuleBased(a.dispatcher, opts...)
	}
	return nil
}

// serveTelemetry exposes metrics, health and version on the metrics address.
func (a *app) serveTelemetry() error {
	mc := a.cfg.Telemetry.Metrics
	mux := http.NewServeMux()
	mux.Handle(mc.Path, a.collector.Handler())
	a.checker.Mount(mux, health.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate})

	ln, err := net.Listen("tcp", mc.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", mc.ListenAddress, err)
	}
	a.server = server.New("telemetry", tracing.HTTPMiddleware(mux), server.Config{ShutdownTimeout: shutdownTimeout})
	if err := a.server.Start(ln); err != nil {
		_ = ln.Close()
		return err
	}
	a.logger.Info("telemetry server listening", "address", a.server.Addr(), "metrics_path", mc.Path)
	a.onClose(func() error {
		return a.server.Shutdown(context.Background())
	})
	return nil
}

// newEngine seats every configured backend in a fresh room.
func (a *app) newEngine(roomID string) (*game.Engine, error) {
	setup, err := a.cfg.Game.Setup()
	if err != nil {
		return nil, fmt.Errorf("invalid game setup: %w", err)
	}
	eng, err := game.NewEngine(roomID, a.cfg.Game.Owner, setup)
	if err != nil {
		return nil, err
	}
	for _, seat := range a.cfg.Seats {
		if err := eng.AddSeat(seat.ID, seat.Name); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// waitReady probes every seat until all answer or the wait runs out. Seats
// still failing are marked offline and played by fallback, unless
// requireReady is set.
func (a *app) waitReady(ctx context.Context, eng *game.Engine) error {
	hc := a.cfg.Telemetry.Health

	var status health.HealthStatus
	if hc.WaitForReady <= 0 {
		status = a.checker.CheckReadiness(ctx)
	} else {
		wctx, cancel := context.WithTimeout(ctx, hc.WaitForReady)
		status, _ = a.checker.WaitReady(wctx, hc.PollInterval)
		cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if status.Ready() {
		return nil
	}

	failed := status.Unhealthy()
	if a.opts.requireReady {
		return cli.NotReadyError("run", failed)
	}
	for _, name := range failed {
		id, ok := health.SeatID(name)
		if !ok {
			a.logger.Warn("health check failing", "check", name, "reason", status.Checks[name].Message)
			continue
		}
		a.registry.MarkOffline(id)
		if err := eng.MarkOnline(id, false); err != nil {
			return err
		}
		a.logger.Warn("seat not ready, entrusted to fallback", "seat", id, "reason", status.Checks[name].Message)
	}
	return nil
}

// play runs one complete game in roomID and persists its record. The record
// is returned even when the game ends with an error.
func (a *app) play(ctx context.Context, roomID string, maxSteps int) (*records.Game, orchestrator.Summary, error) {
	eng, err := a.newEngine(roomID)
	if err != nil {
		return nil, orchestrator.Summary{}, err
	}
	if err := a.waitReady(ctx, eng); err != nil {
		return nil, orchestrator.Summary{}, err
	}
	if err := eng.Start(a.cfg.Game.Owner); err != nil {
		return nil, orchestrator.Summary{}, err
	}
	for _, w := range eng.Warnings() {
		a.logger.Warn("role template warning", "room", roomID, "warning", w)
	}

	started := time.Now()
	ctx = logging.WithRoom(ctx, roomID)
	summary, runErr := a.orch.RunToGameOver(ctx, eng, maxSteps)
	finished := time.Now()

	a.progress.Finish(summary.Winner, summary.Rounds)
	if summary.Over {
		a.collector.RecordGame(string(summary.Winner), summary.Rounds, summary.Duration)
	}

	rec := records.NewGame(eng.Snapshot(), started, finished)
	rec.Steps = summary.Steps
	rec.Fallbacks = summary.Fallbacks
	if a.records != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if err := a.records.Save(sctx, rec); err != nil {
			a.logger.Error("failed to save game record", "room", roomID, "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return rec, summary, runErr
}

// watch reloads the configuration file in the background and swaps changed
// seat registrations into the running registry.
func (a *app) watch(ctx context.Context) error {
	if a.opts.configPath == "" {
		return nil
	}
	fw, err := config.NewFileWatcher(a.opts.configPath, a.cfg, 0)
	if err != nil {
		return err
	}
	a.onClose(fw.Close)
	go func() {
		if err := fw.Watch(ctx, a.hotSwap); err != nil {
			a.logger.Warn("config watcher stopped", "error", err)
		}
	}()
	return nil
}

// hotSwap replaces the backends of seats already at the table. Seats that
// were not configured at startup cannot join a running game.
func (a *app) hotSwap(_ *config.Config, changed []config.SeatConfig) {
	for _, seat := range changed {
		if _, ok := a.registry.Get(seat.ID); !ok {
			a.logger.Warn("ignoring seat added after start", "seat", seat.ID)
			continue
		}
		seat, err := resolveSeat(context.Background(), a.secrets, seat)
		if err != nil {
			a.logger.Warn("keeping previous seat backend", "seat", seat.ID, "error", err)
			continue
		}
		a.registry.Register(registration(seat))
		a.collector.SeatRegistered(seat.ID)
		a.logger.Info("seat backend swapped", "seat", seat.ID, "endpoint", seat.Endpoint)
	}
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
