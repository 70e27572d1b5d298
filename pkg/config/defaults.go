package config

import (
	"time"

	"lycan-hq/arbiter/pkg/admission"
)

// Default values for configuration fields.
const (
	// Game defaults
	DefaultOwner              = "admin"
	DefaultPlayerCount        = 10
	DefaultNightActionTimeout = 60 * time.Second
	DefaultDayVoteTimeout     = 60 * time.Second

	// Dispatch defaults
	DefaultTimeoutRetries   = 2
	DefaultTransientRetries = 2
	DefaultBackoff          = 800 * time.Millisecond
	DefaultFailureThreshold = 4
	DefaultTextCap          = 300
	DefaultPayloadCap       = 1000
	DefaultSeatTimeout      = 15 * time.Second
	DefaultCLITimeout       = 20 * time.Second

	// Consensus defaults
	DefaultConsensusMaxRounds = 3

	// Orchestrator defaults
	DefaultOrchestratorMode = ModeRuleBased
	DefaultMaxSteps         = 500
	DefaultVoteConcurrency  = 8

	// Perspective defaults
	DefaultVoteLogLimit       = 50
	DefaultMemoryLimit        = 40
	DefaultHighlightRounds    = 3
	DefaultHighlightsPerRound = 5

	// Evidence defaults
	DefaultEvidenceEnabled              = true
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLitePath           = "data/evidence.db"
	DefaultEvidenceSQLiteMaxOpenConns   = 10
	DefaultEvidenceSQLiteMaxIdleConns   = 5
	DefaultEvidenceSQLiteWALMode        = true
	DefaultEvidenceSQLiteBusyTimeout    = 5 * time.Second
	DefaultEvidenceRecorderAsyncBuffer  = 1000
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRecorderHashPayloads = true
	DefaultEvidenceRecorderMaxFieldLen  = 1000
	DefaultEvidenceRetentionDays        = 30
	DefaultEvidenceRetentionSchedule    = "0 3 * * *"
	DefaultEvidenceRetentionArchivePath = "data/archives/"

	// Records defaults
	DefaultRecordsEnabled = true
	DefaultRecordsPath    = "data/games.db"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "ARBITER_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultLoggingRedactPII     = true
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "arbiter"
	DefaultTracingSampler       = "parent_based"
	DefaultTracingSampleRatio   = 1.0
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "arbiter"
	DefaultTracingOTLPTimeout   = 10 * time.Second
	DefaultHealthCheckTimeout   = 5 * time.Second
	DefaultHealthWaitForReady   = 30 * time.Second
	DefaultHealthPollInterval   = time.Second
)

// Orchestrator modes.
const (
	ModeRuleBased = "rule_based"
	ModeJudge     = "judge"

	// InstructionDefault and InstructionJudgeSystem are the non-phase keys
	// of orchestrator.instructions.
	InstructionDefault     = "default"
	InstructionJudgeSystem = "judge_system"
)

// DefaultNightOrder is the night order used when none is configured.
var DefaultNightOrder = []string{"werewolf", "guard", "witch", "seer"}

// DefaultDispatchDurationBuckets are the dispatch latency histogram buckets.
var DefaultDispatchDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyGameDefaults(cfg)

	// Dispatch defaults
	d := &cfg.Dispatch
	limits := admission.DefaultLimits()
	if d.Limits.Global == 0 {
		d.Limits.Global = limits.Global
	}
	if d.Limits.SameProvider == 0 {
		d.Limits.SameProvider = limits.SameProvider
	}
	if d.Limits.DayDiscuss == 0 {
		d.Limits.DayDiscuss = limits.DayDiscuss
	}
	if d.Limits.DayVote == 0 {
		d.Limits.DayVote = limits.DayVote
	}
	if d.TimeoutRetries == 0 {
		d.TimeoutRetries = DefaultTimeoutRetries
	}
	if d.TransientRetries == 0 {
		d.TransientRetries = DefaultTransientRetries
	}
	if d.Backoff == 0 {
		d.Backoff = DefaultBackoff
	}
	if d.FailureThreshold == 0 {
		d.FailureThreshold = DefaultFailureThreshold
	}
	if d.TextCap == 0 {
		d.TextCap = DefaultTextCap
	}
	if d.PayloadCap == 0 {
		d.PayloadCap = DefaultPayloadCap
	}
	if d.SeatTimeout == 0 {
		d.SeatTimeout = DefaultSeatTimeout
	}
	applySeatDefaults(cfg)

	if cfg.Consensus.MaxRounds == 0 {
		cfg.Consensus.MaxRounds = DefaultConsensusMaxRounds
	}

	// Orchestrator defaults
	o := &cfg.Orchestrator
	if o.Mode == "" {
		o.Mode = DefaultOrchestratorMode
	}
	if o.MaxSteps == 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.VoteConcurrency == 0 {
		o.VoteConcurrency = DefaultVoteConcurrency
	}
	if o.Mode == ModeJudge {
		o.Judge = o.Judge.WithDefaults()
	}

	// Perspective defaults
	p := &cfg.Perspective
	if p.VoteLogLimit == 0 {
		p.VoteLogLimit = DefaultVoteLogLimit
	}
	if p.MemoryLimit == 0 {
		p.MemoryLimit = DefaultMemoryLimit
	}
	if p.HighlightRounds == 0 {
		p.HighlightRounds = DefaultHighlightRounds
	}
	if p.HighlightsPerRound == 0 {
		p.HighlightsPerRound = DefaultHighlightsPerRound
	}

	applyEvidenceDefaults(&cfg.Evidence)

	// Records defaults
	if cfg.Records.Enabled == nil {
		cfg.Records.Enabled = Bool(DefaultRecordsEnabled)
	}
	if cfg.Records.Path == "" {
		cfg.Records.Path = DefaultRecordsPath
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyGameDefaults(cfg *Config) {
	g := &cfg.Game
	if g.Owner == "" {
		g.Owner = DefaultOwner
	}
	if g.PlayerCount == 0 {
		if len(cfg.Seats) > 0 {
			g.PlayerCount = len(cfg.Seats)
		} else {
			g.PlayerCount = DefaultPlayerCount
		}
	}
	if len(g.NightOrder) == 0 {
		g.NightOrder = append([]string(nil), DefaultNightOrder...)
	}
	if g.NightActionTimeout == 0 {
		g.NightActionTimeout = DefaultNightActionTimeout
	}
	if g.DayVoteTimeout == 0 {
		g.DayVoteTimeout = DefaultDayVoteTimeout
	}
}

func applySeatDefaults(cfg *Config) {
	for i := range cfg.Seats {
		seat := &cfg.Seats[i]
		if seat.Name == "" {
			seat.Name = seat.ID
		}
		if seat.Timeout == 0 {
			seat.Timeout = cfg.Dispatch.SeatTimeout
		}
		if seat.CLITimeout == 0 {
			seat.CLITimeout = DefaultCLITimeout
		}
	}
}

func applyEvidenceDefaults(e *EvidenceConfig) {
	if e.Enabled == nil {
		e.Enabled = Bool(DefaultEvidenceEnabled)
	}
	if e.Backend == "" {
		e.Backend = DefaultEvidenceBackend
	}

	if e.SQLite.Path == "" {
		e.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if e.SQLite.MaxOpenConns == 0 {
		e.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if e.SQLite.MaxIdleConns == 0 {
		e.SQLite.MaxIdleConns = DefaultEvidenceSQLiteMaxIdleConns
	}
	if e.SQLite.WALMode == nil {
		e.SQLite.WALMode = Bool(DefaultEvidenceSQLiteWALMode)
	}
	if e.SQLite.BusyTimeout == 0 {
		e.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}

	if e.Recorder.AsyncBuffer == 0 {
		e.Recorder.AsyncBuffer = DefaultEvidenceRecorderAsyncBuffer
	}
	if e.Recorder.WriteTimeout == 0 {
		e.Recorder.WriteTimeout = DefaultEvidenceRecorderWriteTimeout
	}
	if e.Recorder.HashPayloads == nil {
		e.Recorder.HashPayloads = Bool(DefaultEvidenceRecorderHashPayloads)
	}
	if e.Recorder.MaxFieldLength == 0 {
		e.Recorder.MaxFieldLength = DefaultEvidenceRecorderMaxFieldLen
	}

	if e.Retention.Days == 0 {
		e.Retention.Days = DefaultEvidenceRetentionDays
	}
	if e.Retention.PruneSchedule == "" {
		e.Retention.PruneSchedule = DefaultEvidenceRetentionSchedule
	}
	if e.Retention.ArchivePath == "" {
		e.Retention.ArchivePath = DefaultEvidenceRetentionArchivePath
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Logging.RedactPII == nil {
		t.Logging.RedactPII = Bool(DefaultLoggingRedactPII)
	}

	if t.Metrics.ListenAddress == "" {
		t.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.DispatchDurationBuckets) == 0 {
		t.Metrics.DispatchDurationBuckets = append([]float64(nil), DefaultDispatchDurationBuckets...)
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}

	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	if t.Health.WaitForReady == 0 {
		t.Health.WaitForReady = DefaultHealthWaitForReady
	}
	if t.Health.PollInterval == 0 {
		t.Health.PollInterval = DefaultHealthPollInterval
	}
}
