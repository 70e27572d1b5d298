package config

import (
	"time"

	"lycan-hq/arbiter/pkg/admission"
	"lycan-hq/arbiter/pkg/providers"
)

// Config is the root configuration for an arbiter table.
// It is loaded from YAML and may be overridden by environment variables.
type Config struct {
	// Game describes the table: seat count, roles, night order and house rules.
	Game GameConfig `yaml:"game"`

	// Seats lists the agent backends that play the table, one per seat.
	Seats []SeatConfig `yaml:"seats"`

	// Dispatch tunes admission, retries and circuit breaking.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Consensus tunes the wolf team discussion.
	Consensus ConsensusConfig `yaml:"consensus"`

	// Orchestrator selects and tunes the phase driver.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Perspective caps the history included in each seat's view.
	Perspective PerspectiveConfig `yaml:"perspective"`

	// Evidence configures the dispatch evidence trail.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Records configures the finished-game repository.
	Records RecordsConfig `yaml:"records"`

	// Secrets configures ${secret:name} resolution in api keys.
	Secrets SecretsConfig `yaml:"secrets"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GameConfig describes the table.
type GameConfig struct {
	// RoomID identifies the game. A random id is generated when empty.
	RoomID string `yaml:"room_id"`

	// Owner is the only identity allowed to start the game.
	// Default: "admin"
	Owner string `yaml:"owner"`

	// PlayerCount is the number of seats.
	// Default: the number of configured seats, or 10 when none are listed.
	PlayerCount int `yaml:"player_count"`

	// Distribution maps role names to counts. When empty the built-in
	// template for PlayerCount is used. A custom distribution needs
	// AdminOverride.
	Distribution map[string]int `yaml:"distribution"`

	// AdminOverride allows a custom role distribution.
	AdminOverride bool `yaml:"admin_override"`

	// NightOrder lists the roles that act at night, in order.
	// Default: werewolf, guard, witch, seer
	NightOrder []string `yaml:"night_order"`

	// Rules toggles the optional house rules. Unset rules are on.
	Rules RulesConfig `yaml:"rules"`

	// NightActionTimeout and DayVoteTimeout are the phase deadlines.
	// Default: 60s
	NightActionTimeout time.Duration `yaml:"night_action_timeout"`
	DayVoteTimeout     time.Duration `yaml:"day_vote_timeout"`
}

// RulesConfig toggles house rules. A nil field means the rule is on.
type RulesConfig struct {
	GuardNoConsecutive           *bool `yaml:"guard_no_consecutive"`
	WitchSelfSaveFirstNightOnly  *bool `yaml:"witch_self_save_first_night_only"`
	WitchAntidoteOnlyUnprotected *bool `yaml:"witch_antidote_only_unprotected"`
	HunterNoShotWhenPoisoned     *bool `yaml:"hunter_no_shot_when_poisoned"`
	VoteTieNoExile               *bool `yaml:"vote_tie_no_exile"`
	FoolRevealImmuneOnce         *bool `yaml:"fool_reveal_immune_once"`
}

// SeatConfig registers one agent backend for a seat.
type SeatConfig struct {
	// ID is the seat id, e.g. "p1".
	ID string `yaml:"id"`

	// Name is the nickname shown to other seats. Default: the seat id.
	Name string `yaml:"name"`

	// Endpoint is the backend base URL; /act and /health are appended.
	Endpoint string `yaml:"endpoint"`

	// ModelType is the backend's model family. Seats sharing a model type
	// share the same-provider admission limit.
	ModelType string `yaml:"model_type"`

	// APIURL, APIKey and ModelName are forwarded to the backend.
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	ModelName string `yaml:"model_name"`

	// CLICommand makes the backend drive a local command instead of an API.
	CLICommand string        `yaml:"cli_command"`
	CLITimeout time.Duration `yaml:"cli_timeout"`

	// Timeout is the per-dispatch budget. Default: dispatch.seat_timeout
	Timeout time.Duration `yaml:"timeout"`
}

// DispatchConfig tunes the dispatch layer.
type DispatchConfig struct {
	// Limits are the admission capacities.
	Limits admission.Limits `yaml:"limits"`

	// TimeoutRetries is how many times a timed-out attempt is retried.
	// Default: 2
	TimeoutRetries int `yaml:"timeout_retries"`

	// TransientRetries is how many times a 429/5xx answer is retried.
	// Default: 2
	TransientRetries int `yaml:"transient_retries"`

	// Backoff is the base retry delay.
	// Default: 800ms
	Backoff time.Duration `yaml:"backoff"`

	// FailureThreshold is the number of consecutive failed dispatches that
	// opens a seat's circuit.
	// Default: 4
	FailureThreshold int `yaml:"failure_threshold"`

	// TextCap bounds speech and reasoning text. Default: 300
	TextCap int `yaml:"text_cap"`

	// PayloadCap bounds payloads kept in evidence. Default: 1000
	PayloadCap int `yaml:"payload_cap"`

	// SeatTimeout is the per-dispatch budget for seats without their own.
	// Default: 15s
	SeatTimeout time.Duration `yaml:"seat_timeout"`

	// Debug records the view sent to every seat as evidence.
	Debug bool `yaml:"debug"`
}

// ConsensusConfig tunes the wolf discussion.
type ConsensusConfig struct {
	// MaxRounds is the number of discussion rounds before a random pick.
	// Default: 3
	MaxRounds int `yaml:"max_rounds"`
}

// OrchestratorConfig selects the phase driver.
type OrchestratorConfig struct {
	// Mode is "rule_based" or "judge".
	// Default: "rule_based"
	Mode string `yaml:"mode"`

	// MaxSteps bounds the number of phases in one game.
	// Default: 500
	MaxSteps int `yaml:"max_steps"`

	// VoteConcurrency caps parallel day-vote dispatches.
	// Default: 8
	VoteConcurrency int `yaml:"vote_concurrency"`

	// PhaseTimeout bounds one phase. Zero means no phase deadline.
	PhaseTimeout time.Duration `yaml:"phase_timeout"`

	// Instructions overrides the per-phase prompt template, keyed by phase.
	Instructions map[string]string `yaml:"instructions"`

	// Judge is the model used in judge mode.
	Judge providers.ProviderConfig `yaml:"judge"`
}

// PerspectiveConfig caps the history in a seat's view.
type PerspectiveConfig struct {
	// VoteLogLimit caps the public vote log. Default: 50
	VoteLogLimit int `yaml:"vote_log_limit"`

	// MemoryLimit caps the memory digest. Default: 40
	MemoryLimit int `yaml:"memory_limit"`

	// HighlightRounds caps the number of per-round summaries. Default: 3
	HighlightRounds int `yaml:"highlight_rounds"`

	// HighlightsPerRound caps each summary. Default: 5
	HighlightsPerRound int `yaml:"highlights_per_round"`
}

// EvidenceConfig contains configuration for the dispatch evidence trail.
type EvidenceConfig struct {
	// Enabled controls whether dispatch evidence is recorded.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Backend is the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is the time to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains evidence recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds the enqueue wait and each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// HashPayloads stores SHA-256 digests of full payloads.
	// Default: true
	HashPayloads *bool `yaml:"hash_payloads"`

	// MaxFieldLength is the number of characters kept per payload field.
	// Default: 1000
	MaxFieldLength int `yaml:"max_field_length"`
}

// RetentionConfig contains evidence retention configuration.
type RetentionConfig struct {
	// Days is the number of days to keep evidence. 0 keeps it forever.
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete exports records as JSON before deleting them.
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the number of kept records. 0 means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// RecordsConfig configures the finished-game repository.
type RecordsConfig struct {
	// Enabled controls whether finished games are persisted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database path.
	// Default: "data/games.db"
	Path string `yaml:"path"`
}

// SecretsConfig configures where ${secret:name} references in seat and
// judge api keys are resolved.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name.
	// Default: "ARBITER_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret. Empty disables the file provider.
	// Files take precedence over the environment.
	Dir string `yaml:"dir"`

	// Watch invalidates cached secrets when a file in Dir changes.
	Watch bool `yaml:"watch"`

	// CacheTTL is how long resolved values are cached.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains backend readiness configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII enables redaction of API keys, tokens and passwords.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is where the metrics endpoint listens.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "arbiter"
	Namespace string `yaml:"namespace"`

	// DispatchDurationBuckets defines histogram buckets for dispatch latency (seconds).
	// Default: [0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60]
	DispatchDurationBuckets []float64 `yaml:"dispatch_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_based"
	// Default: "parent_based"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "arbiter"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter settings.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the collector connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains backend readiness configuration.
type HealthConfig struct {
	// CheckTimeout bounds each seat probe.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// WaitForReady is how long "run" waits for every seat to answer its
	// health probe before starting. Zero skips the wait.
	// Default: 30s
	WaitForReady time.Duration `yaml:"wait_for_ready"`

	// PollInterval is the delay between readiness probes.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Bool returns a pointer to v, for optional boolean fields.
func Bool(v bool) *bool {
	return &v
}

// BoolValue reports the value of an optional boolean, or def when unset.
func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
