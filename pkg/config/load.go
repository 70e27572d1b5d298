package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARBITER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ARBITER_SECTION_FIELD (e.g., ARBITER_GAME_PLAYER_COUNT).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// Secrets such as seat api keys may therefore be left out of the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Game overrides
	envString("GAME_ROOM_ID", &cfg.Game.RoomID)
	envString("GAME_OWNER", &cfg.Game.Owner)
	envInt("GAME_PLAYER_COUNT", &cfg.Game.PlayerCount)
	envBool("GAME_ADMIN_OVERRIDE", &cfg.Game.AdminOverride)
	if val := os.Getenv(EnvPrefix + "GAME_NIGHT_ORDER"); val != "" {
		cfg.Game.NightOrder = splitList(val)
	}
	envDuration("GAME_NIGHT_ACTION_TIMEOUT", &cfg.Game.NightActionTimeout)
	envDuration("GAME_DAY_VOTE_TIMEOUT", &cfg.Game.DayVoteTimeout)

	// Dispatch overrides
	envInt("DISPATCH_LIMITS_GLOBAL", &cfg.Dispatch.Limits.Global)
	envInt("DISPATCH_LIMITS_SAME_PROVIDER", &cfg.Dispatch.Limits.SameProvider)
	envInt("DISPATCH_LIMITS_DAY_DISCUSS", &cfg.Dispatch.Limits.DayDiscuss)
	envInt("DISPATCH_LIMITS_DAY_VOTE", &cfg.Dispatch.Limits.DayVote)
	envInt("DISPATCH_TIMEOUT_RETRIES", &cfg.Dispatch.TimeoutRetries)
	envInt("DISPATCH_TRANSIENT_RETRIES", &cfg.Dispatch.TransientRetries)
	envDuration("DISPATCH_BACKOFF", &cfg.Dispatch.Backoff)
	envInt("DISPATCH_FAILURE_THRESHOLD", &cfg.Dispatch.FailureThreshold)
	envInt("DISPATCH_TEXT_CAP", &cfg.Dispatch.TextCap)
	envInt("DISPATCH_PAYLOAD_CAP", &cfg.Dispatch.PayloadCap)
	envDuration("DISPATCH_SEAT_TIMEOUT", &cfg.Dispatch.SeatTimeout)
	envBool("DISPATCH_DEBUG", &cfg.Dispatch.Debug)

	envInt("CONSENSUS_MAX_ROUNDS", &cfg.Consensus.MaxRounds)

	// Orchestrator overrides
	envString("ORCHESTRATOR_MODE", &cfg.Orchestrator.Mode)
	envInt("ORCHESTRATOR_MAX_STEPS", &cfg.Orchestrator.MaxSteps)
	envInt("ORCHESTRATOR_VOTE_CONCURRENCY", &cfg.Orchestrator.VoteConcurrency)
	envDuration("ORCHESTRATOR_PHASE_TIMEOUT", &cfg.Orchestrator.PhaseTimeout)
	envString("ORCHESTRATOR_JUDGE_PROVIDER", &cfg.Orchestrator.Judge.Type)
	envString("ORCHESTRATOR_JUDGE_API_URL", &cfg.Orchestrator.Judge.BaseURL)
	envString("ORCHESTRATOR_JUDGE_API_KEY", &cfg.Orchestrator.Judge.APIKey)
	envString("ORCHESTRATOR_JUDGE_MODEL_NAME", &cfg.Orchestrator.Judge.Model)
	envDuration("ORCHESTRATOR_JUDGE_TIMEOUT", &cfg.Orchestrator.Judge.Timeout)

	// Seat overrides, keyed by upper-cased seat id
	for i := range cfg.Seats {
		applySeatEnvOverrides(&cfg.Seats[i])
	}

	// Evidence overrides
	if val := os.Getenv(EnvPrefix + "EVIDENCE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Evidence.Enabled = Bool(b)
		}
	}
	envString("EVIDENCE_BACKEND", &cfg.Evidence.Backend)
	envString("EVIDENCE_SQLITE_PATH", &cfg.Evidence.SQLite.Path)
	envInt("EVIDENCE_RETENTION_DAYS", &cfg.Evidence.Retention.Days)
	envString("EVIDENCE_RETENTION_PRUNE_SCHEDULE", &cfg.Evidence.Retention.PruneSchedule)

	// Records overrides
	if val := os.Getenv(EnvPrefix + "RECORDS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Records.Enabled = Bool(b)
		}
	}
	envString("RECORDS_PATH", &cfg.Records.Path)

	// Secrets overrides
	envString("SECRETS_DIR", &cfg.Secrets.Dir)
	envString("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix)
	envBool("SECRETS_WATCH", &cfg.Secrets.Watch)
	envDuration("SECRETS_CACHE_TTL", &cfg.Secrets.CacheTTL)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
	envBool("TELEMETRY_TRACING_OTLP_INSECURE", &cfg.Telemetry.Tracing.OTLP.Insecure)
	envDuration("TELEMETRY_HEALTH_WAIT_FOR_READY", &cfg.Telemetry.Health.WaitForReady)
}

// applySeatEnvOverrides applies overrides for one seat. Seat variables
// follow the format ARBITER_SEATS_<ID>_<FIELD>, so the api key of seat "p1"
// is ARBITER_SEATS_P1_API_KEY.
func applySeatEnvOverrides(seat *SeatConfig) {
	if seat.ID == "" {
		return
	}
	prefix := "SEATS_" + envKey(seat.ID) + "_"
	envString(prefix+"ENDPOINT", &seat.Endpoint)
	envString(prefix+"API_URL", &seat.APIURL)
	envString(prefix+"API_KEY", &seat.APIKey)
	envString(prefix+"MODEL_NAME", &seat.ModelName)
	envString(prefix+"MODEL_TYPE", &seat.ModelType)
	envDuration(prefix+"TIMEOUT", &seat.Timeout)
}

func envKey(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, id)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
