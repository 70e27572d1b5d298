package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"lycan-hq/arbiter/pkg/game"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "game.player_count").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGame(&cfg.Game)...)
	errs = append(errs, validateSeats(cfg)...)
	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateOrchestrator(&cfg.Orchestrator)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Consensus.MaxRounds < 0 {
		errs = append(errs, FieldError{
			Field:   "consensus.max_rounds",
			Message: "max rounds must be non-negative",
		})
	}
	if cfg.Records.Path == "" && BoolValue(cfg.Records.Enabled, DefaultRecordsEnabled) {
		errs = append(errs, FieldError{
			Field:   "records.path",
			Message: "records path is required when records are enabled",
		})
	}
	if cfg.Secrets.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "secrets.cache_ttl",
			Message: "cache ttl must be non-negative",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// Warnings returns the non-fatal remarks about the table composition, such
// as an unusual fool count. It assumes Validate passed.
func Warnings(cfg *Config) []string {
	setup, err := cfg.Game.Setup()
	if err != nil {
		return nil
	}
	warnings, _ := setup.Validate()
	return warnings
}

// validateGame validates the role template and house rules.
func validateGame(cfg *GameConfig) []FieldError {
	var errs []FieldError

	if cfg.Owner == "" {
		errs = append(errs, FieldError{
			Field:   "game.owner",
			Message: "owner is required",
		})
	}
	if cfg.PlayerCount < game.MinPlayers || cfg.PlayerCount > game.MaxPlayers {
		errs = append(errs, FieldError{
			Field:   "game.player_count",
			Message: fmt.Sprintf("player count must be between %d and %d, got %d", game.MinPlayers, game.MaxPlayers, cfg.PlayerCount),
		})
		return errs
	}

	for name := range cfg.Distribution {
		if _, ok := game.ParseRole(name); !ok {
			errs = append(errs, FieldError{
				Field:   "game.distribution." + name,
				Message: fmt.Sprintf("unknown role %q", name),
			})
		}
	}
	for i, name := range cfg.NightOrder {
		role, ok := game.ParseRole(name)
		if !ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("game.night_order[%d]", i),
				Message: fmt.Sprintf("unknown role %q", name),
			})
			continue
		}
		if _, acts := role.NightPhase(); !acts {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("game.night_order[%d]", i),
				Message: fmt.Sprintf("role %q does not act at night", name),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if cfg.IsCustom() && !cfg.AdminOverride {
		errs = append(errs, FieldError{
			Field:   "game.distribution",
			Message: "custom role distributions require game.admin_override",
		})
	}

	setup, err := cfg.Setup()
	if err != nil {
		return append(errs, FieldError{Field: "game", Message: err.Error()})
	}
	if _, err := setup.Validate(); err != nil {
		errs = append(errs, FieldError{
			Field:   "game.distribution",
			Message: err.Error(),
		})
	}

	if cfg.NightActionTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "game.night_action_timeout",
			Message: "night action timeout must be positive",
		})
	}
	if cfg.DayVoteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "game.day_vote_timeout",
			Message: "day vote timeout must be positive",
		})
	}

	return errs
}

// validateSeats checks the seat registrations. Seats are optional, but when
// listed there must be exactly one per player with unique ids.
func validateSeats(cfg *Config) []FieldError {
	var errs []FieldError
	if len(cfg.Seats) == 0 {
		return errs
	}

	if len(cfg.Seats) != cfg.Game.PlayerCount {
		errs = append(errs, FieldError{
			Field:   "seats",
			Message: fmt.Sprintf("expected %d seats, got %d", cfg.Game.PlayerCount, len(cfg.Seats)),
		})
	}

	seen := make(map[string]bool, len(cfg.Seats))
	for i, seat := range cfg.Seats {
		prefix := fmt.Sprintf("seats[%d]", i)
		if seat.ID == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".id",
				Message: "seat id is required",
			})
		} else if seen[seat.ID] {
			errs = append(errs, FieldError{
				Field:   prefix + ".id",
				Message: fmt.Sprintf("duplicate seat id %q", seat.ID),
			})
		}
		seen[seat.ID] = true

		if seat.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".endpoint",
				Message: "endpoint is required",
			})
		} else if u, err := url.Parse(seat.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid endpoint %q", seat.Endpoint),
			})
		}

		if seat.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}
	}

	return errs
}

// validateDispatch validates retry, circuit and admission settings.
func validateDispatch(cfg *DispatchConfig) []FieldError {
	var errs []FieldError

	limits := []struct {
		field string
		value int
	}{
		{"dispatch.limits.global", cfg.Limits.Global},
		{"dispatch.limits.same_provider", cfg.Limits.SameProvider},
		{"dispatch.limits.day_discuss", cfg.Limits.DayDiscuss},
		{"dispatch.limits.day_vote", cfg.Limits.DayVote},
	}
	for _, l := range limits {
		if l.value < 0 {
			errs = append(errs, FieldError{
				Field:   l.field,
				Message: "limit must be non-negative",
			})
		}
	}

	if cfg.TimeoutRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.timeout_retries",
			Message: "timeout retries must be non-negative",
		})
	}
	if cfg.TransientRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.transient_retries",
			Message: "transient retries must be non-negative",
		})
	}
	if cfg.Backoff < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.backoff",
			Message: "backoff must be positive",
		})
	}
	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "dispatch.failure_threshold",
			Message: "failure threshold must be at least 1",
		})
	}
	if cfg.TextCap < 0 || cfg.PayloadCap < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.text_cap",
			Message: "caps must be non-negative",
		})
	}

	return errs
}

// validateOrchestrator validates the phase driver settings.
func validateOrchestrator(cfg *OrchestratorConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case ModeRuleBased:
	case ModeJudge:
		if cfg.Judge.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   "orchestrator.judge.api_url",
				Message: "api url is required in judge mode",
			})
		}
		if cfg.Judge.APIKey == "" {
			errs = append(errs, FieldError{
				Field:   "orchestrator.judge.api_key",
				Message: "api key is required in judge mode",
			})
		}
		switch strings.ToLower(cfg.Judge.Type) {
		case "", "openai", "anthropic", "claude":
		default:
			errs = append(errs, FieldError{
				Field:   "orchestrator.judge.provider",
				Message: fmt.Sprintf("unsupported provider %q: must be 'openai' or 'anthropic'", cfg.Judge.Type),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "orchestrator.mode",
			Message: fmt.Sprintf("invalid mode %q: must be 'rule_based' or 'judge'", cfg.Mode),
		})
	}

	if cfg.MaxSteps < 1 {
		errs = append(errs, FieldError{
			Field:   "orchestrator.max_steps",
			Message: "max steps must be at least 1",
		})
	}
	if cfg.VoteConcurrency < 1 {
		errs = append(errs, FieldError{
			Field:   "orchestrator.vote_concurrency",
			Message: "vote concurrency must be at least 1",
		})
	}
	if cfg.PhaseTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "orchestrator.phase_timeout",
			Message: "phase timeout must be positive",
		})
	}
	for phase := range cfg.Instructions {
		if !knownPhase(phase) {
			errs = append(errs, FieldError{
				Field:   "orchestrator.instructions." + phase,
				Message: fmt.Sprintf("unknown phase %q", phase),
			})
		}
	}

	return errs
}

func knownPhase(name string) bool {
	switch game.Phase(name) {
	case game.PhasePrepare, game.PhaseNightWolf, game.PhaseNightGuard, game.PhaseNightWitch,
		game.PhaseNightSeer, game.PhaseDayAnnounce, game.PhaseDayDiscuss, game.PhaseDayVote,
		game.PhaseGameOver:
		return true
	}
	switch name {
	case "night_wolf_discuss", "hunter_shot", InstructionDefault, InstructionJudgeSystem:
		return true
	}
	return false
}

// validateEvidence validates evidence configuration.
func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	// If evidence is disabled, skip validation
	if !BoolValue(cfg.Enabled, DefaultEvidenceEnabled) {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
	case "":
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: "backend is required when evidence is enabled",
		})
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.Days > 3650 {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.days",
			Message: "retention days exceeds reasonable limit (3650 days / 10 years)",
		})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "evidence.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.PruneSchedule, err),
			})
		}
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.archive_path",
			Message: "archive path is required when archiving is enabled",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid pattern: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
		if cfg.Metrics.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: "listen address is required when metrics are enabled",
			})
		}
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true, "parent_based": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', 'ratio' or 'parent_based'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}
	if cfg.Health.CheckTimeout > 60*time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout exceeds reasonable limit (60s)",
		})
	}

	return errs
}
