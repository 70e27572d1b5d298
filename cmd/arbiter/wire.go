package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/evidence/recorder"
	"lycan-hq/arbiter/pkg/evidence/retention"
	"lycan-hq/arbiter/pkg/evidence/storage"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/orchestrator"
	"lycan-hq/arbiter/pkg/perspective"
	"lycan-hq/arbiter/pkg/secrets"
)

func dispatchConfig(c config.DispatchConfig) dispatch.Config {
	return dispatch.Config{
		Limits:           c.Limits,
		TimeoutRetries:   c.TimeoutRetries,
		TransientRetries: c.TransientRetries,
		Backoff:          c.Backoff,
		FailureThreshold: c.FailureThreshold,
		TextCap:          c.TextCap,
		PayloadCap:       c.PayloadCap,
		Debug:            c.Debug,
	}
}

func registration(s config.SeatConfig) dispatch.Registration {
	return dispatch.Registration{
		SeatID:     s.ID,
		Endpoint:   s.Endpoint,
		ModelType:  s.ModelType,
		APIURL:     s.APIURL,
		APIKey:     s.APIKey,
		ModelName:  s.ModelName,
		CLICommand: s.CLICommand,
		CLITimeout: s.CLITimeout,
		Timeout:    s.Timeout,
	}
}

// instructions overlays the configured templates on the built-in ones.
func instructions(m map[string]string) orchestrator.Instructions {
	in := orchestrator.DefaultInstructions()
	for key, text := range m {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		switch key {
		case config.InstructionDefault:
			in.Default = text
		case config.InstructionJudgeSystem:
			in.JudgeSystem = text
		default:
			in.Phases[game.Phase(key)] = text
		}
	}
	return in
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		VoteConcurrency: cfg.Orchestrator.VoteConcurrency,
		ConsensusRounds: cfg.Consensus.MaxRounds,
		PhaseTimeout:    cfg.Orchestrator.PhaseTimeout,
	}
}

func viewOptions(c config.PerspectiveConfig) perspective.Options {
	return perspective.Options{
		VoteLogLimit:       c.VoteLogLimit,
		MemoryLimit:        c.MemoryLimit,
		HighlightRounds:    c.HighlightRounds,
		HighlightsPerRound: c.HighlightsPerRound,
	}
}

func recorderConfig(c config.EvidenceConfig) *recorder.Config {
	return &recorder.Config{
		Enabled:        config.BoolValue(c.Enabled, true),
		AsyncBuffer:    c.Recorder.AsyncBuffer,
		WriteTimeout:   c.Recorder.WriteTimeout,
		HashPayloads:   config.BoolValue(c.Recorder.HashPayloads, true),
		MaxFieldLength: c.Recorder.MaxFieldLength,
	}
}

func retentionConfig(c config.RetentionConfig) *retention.Config {
	return &retention.Config{
		RetentionDays:       c.Days,
		PruneSchedule:       c.PruneSchedule,
		ArchiveBeforeDelete: c.ArchiveBeforeDelete,
		ArchivePath:         c.ArchivePath,
		MaxRecords:          c.MaxRecords,
	}
}

// openEvidence opens the configured evidence store.
func openEvidence(c config.EvidenceConfig) (evidence.Storage, error) {
	switch c.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite", "":
		if dir := filepath.Dir(c.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create evidence directory: %w", err)
			}
		}
		st, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         c.SQLite.Path,
			MaxOpenConns: c.SQLite.MaxOpenConns,
			MaxIdleConns: c.SQLite.MaxIdleConns,
			WALMode:      config.BoolValue(c.SQLite.WALMode, true),
			BusyTimeout:  c.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open evidence store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported evidence backend: %s", c.Backend)
	}
}

// newResolver builds the secret resolver. Files in the secrets directory
// win over the environment. The returned close func releases the file
// watcher.
func newResolver(c config.SecretsConfig) (*secrets.Resolver, func() error, error) {
	var providers []secrets.Provider
	closeFn := func() error { return nil }
	if c.Dir != "" {
		fp, err := secrets.NewFileProvider(c.Dir, c.Watch)
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, fp)
		closeFn = fp.Close
	}
	providers = append(providers, secrets.NewEnvProvider(c.EnvPrefix))
	return secrets.NewResolver(c.CacheTTL, providers...), closeFn, nil
}

// resolveSeat expands secret references in the credentials of a seat.
func resolveSeat(ctx context.Context, r *secrets.Resolver, s config.SeatConfig) (config.SeatConfig, error) {
	for _, field := range []*string{&s.Endpoint, &s.APIURL, &s.APIKey} {
		v, err := r.Expand(ctx, *field)
		if err != nil {
			return s, fmt.Errorf("seat %s: %w", s.ID, err)
		}
		*field = v
	}
	return s, nil
}
