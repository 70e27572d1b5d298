package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lycan-hq/arbiter/pkg/game"
)

func seatsYAML(n int) string {
	var sb strings.Builder
	sb.WriteString("seats:\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "  - id: p%d\n    endpoint: http://127.0.0.1:%d\n    model_type: gpt\n", i, 9000+i)
	}
	return sb.String()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbiter.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, seatsYAML(8))

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Game.PlayerCount != 8 {
		t.Errorf("Expected player count 8 from seats, got %d", cfg.Game.PlayerCount)
	}
	if cfg.Game.Owner != DefaultOwner {
		t.Errorf("Expected owner %q, got %q", DefaultOwner, cfg.Game.Owner)
	}
	if len(cfg.Game.NightOrder) != 4 || cfg.Game.NightOrder[0] != "werewolf" {
		t.Errorf("Expected default night order, got %v", cfg.Game.NightOrder)
	}
	if cfg.Seats[0].Name != "p1" {
		t.Errorf("Expected seat name to default to its id, got %q", cfg.Seats[0].Name)
	}
	if cfg.Seats[0].Timeout != DefaultSeatTimeout {
		t.Errorf("Expected seat timeout %v, got %v", DefaultSeatTimeout, cfg.Seats[0].Timeout)
	}
	if cfg.Dispatch.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("Expected failure threshold %d, got %d", DefaultFailureThreshold, cfg.Dispatch.FailureThreshold)
	}
	if cfg.Dispatch.Limits.Global != 8 {
		t.Errorf("Expected global limit 8, got %d", cfg.Dispatch.Limits.Global)
	}
	if cfg.Orchestrator.Mode != ModeRuleBased {
		t.Errorf("Expected mode %q, got %q", ModeRuleBased, cfg.Orchestrator.Mode)
	}
	if !BoolValue(cfg.Evidence.Enabled, false) {
		t.Error("Expected evidence to be enabled by default")
	}
	if !BoolValue(cfg.Telemetry.Logging.RedactPII, false) {
		t.Error("Expected redaction to be enabled by default")
	}
	if cfg.Telemetry.Tracing.Sampler != DefaultTracingSampler {
		t.Errorf("Expected sampler %q, got %q", DefaultTracingSampler, cfg.Telemetry.Tracing.Sampler)
	}
	if cfg.Secrets.EnvPrefix != DefaultSecretsEnvPrefix || cfg.Secrets.CacheTTL != DefaultSecretsCacheTTL {
		t.Errorf("Expected secrets defaults, got %+v", cfg.Secrets)
	}
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	content := `
game:
  room_id: room-7
  player_count: 10
  rules:
    vote_tie_no_exile: false
dispatch:
  backoff: 50ms
  failure_threshold: 2
  limits:
    same_provider: 3
evidence:
  enabled: false
telemetry:
  logging:
    level: debug
    format: text
` + seatsYAML(10)

	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Game.RoomID != "room-7" {
		t.Errorf("Expected room id room-7, got %q", cfg.Game.RoomID)
	}
	if cfg.Dispatch.Backoff != 50*time.Millisecond {
		t.Errorf("Expected backoff 50ms, got %v", cfg.Dispatch.Backoff)
	}
	if cfg.Dispatch.Limits.SameProvider != 3 {
		t.Errorf("Expected same-provider limit 3, got %d", cfg.Dispatch.Limits.SameProvider)
	}
	if BoolValue(cfg.Evidence.Enabled, true) {
		t.Error("Expected evidence to stay disabled")
	}

	setup, err := cfg.Game.Setup()
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if setup.Rules.VoteTieNoExile {
		t.Error("Expected vote_tie_no_exile to be off")
	}
	if !setup.Rules.GuardNoConsecutive {
		t.Error("Expected unset rules to stay on")
	}
	if setup.Distribution[game.RoleGuard] != 1 {
		t.Errorf("Expected the 10-player template to include a guard, got %v", setup.Distribution)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}

	if _, err := LoadConfig(writeConfig(t, "game: [")); err == nil {
		t.Error("Expected error for malformed YAML")
	}

	_, err := LoadConfig(writeConfig(t, "game:\n  player_count: 7\n"))
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Errors[0].Field != "game.player_count" {
		t.Errorf("Expected game.player_count error, got %q", verr.Errors[0].Field)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "negative secrets cache ttl",
			mutate: func(c *Config) { c.Secrets.CacheTTL = -time.Second },
			field:  "secrets.cache_ttl",
		},
		{
			name:   "player count too large",
			mutate: func(c *Config) { c.Game.PlayerCount = 13 },
			field:  "game.player_count",
		},
		{
			name: "custom distribution without override",
			mutate: func(c *Config) {
				c.Game.Distribution = map[string]int{"werewolf": 2, "villager": 4, "seer": 1, "witch": 1}
			},
			field: "game.distribution",
		},
		{
			name: "template distribution needs no override",
			mutate: func(c *Config) {
				c.Game.Distribution = map[string]int{"wolves": 2, "villagers": 3, "seer": 1, "witch": 1, "hunter": 1}
			},
		},
		{
			name: "custom distribution with override",
			mutate: func(c *Config) {
				c.Game.AdminOverride = true
				c.Game.Distribution = map[string]int{"werewolf": 2, "villager": 4, "seer": 1, "witch": 1}
			},
		},
		{
			name: "wolf ratio too high",
			mutate: func(c *Config) {
				c.Game.AdminOverride = true
				c.Game.Distribution = map[string]int{"werewolf": 4, "villager": 2, "seer": 1, "witch": 1}
			},
			field: "game.distribution",
		},
		{
			name: "role sum mismatch",
			mutate: func(c *Config) {
				c.Game.AdminOverride = true
				c.Game.Distribution = map[string]int{"werewolf": 2, "villager": 3}
			},
			field: "game.distribution",
		},
		{
			name:   "unknown role",
			mutate: func(c *Config) { c.Game.Distribution = map[string]int{"vampire": 1} },
			field:  "game.distribution.vampire",
		},
		{
			name:   "villager in night order",
			mutate: func(c *Config) { c.Game.NightOrder = []string{"werewolf", "villager"} },
			field:  "game.night_order[1]",
		},
		{
			name:   "duplicate seat",
			mutate: func(c *Config) { c.Seats[1].ID = "p1" },
			field:  "seats[1].id",
		},
		{
			name:   "seat count mismatch",
			mutate: func(c *Config) { c.Seats = c.Seats[:7] },
			field:  "seats",
		},
		{
			name:   "bad endpoint",
			mutate: func(c *Config) { c.Seats[2].Endpoint = "not a url" },
			field:  "seats[2].endpoint",
		},
		{
			name:   "zero failure threshold",
			mutate: func(c *Config) { c.Dispatch.FailureThreshold = 0 },
			field:  "dispatch.failure_threshold",
		},
		{
			name:   "negative limit",
			mutate: func(c *Config) { c.Dispatch.Limits.DayVote = -1 },
			field:  "dispatch.limits.day_vote",
		},
		{
			name:   "unknown mode",
			mutate: func(c *Config) { c.Orchestrator.Mode = "chaos" },
			field:  "orchestrator.mode",
		},
		{
			name: "judge without api key",
			mutate: func(c *Config) {
				c.Orchestrator.Mode = ModeJudge
				c.Orchestrator.Judge.BaseURL = "https://api.example.com/v1"
			},
			field: "orchestrator.judge.api_key",
		},
		{
			name:   "unknown instruction phase",
			mutate: func(c *Config) { c.Orchestrator.Instructions = map[string]string{"night_vampire": "bite"} },
			field:  "orchestrator.instructions.night_vampire",
		},
		{
			name:   "bad cron schedule",
			mutate: func(c *Config) { c.Evidence.Retention.PruneSchedule = "every day" },
			field:  "evidence.retention.prune_schedule",
		},
		{
			name:   "bad backend",
			mutate: func(c *Config) { c.Evidence.Backend = "s3" },
			field:  "evidence.backend",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "loud" },
			field:  "telemetry.logging.level",
		},
		{
			name: "bad redact pattern",
			mutate: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "x", Pattern: "("}}
			},
			field: "telemetry.logging.redact_patterns[0].pattern",
		},
		{
			name:   "sample ratio out of range",
			mutate: func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			field:  "telemetry.tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(seatsYAML(8)))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			tt.mutate(cfg)

			err = Validate(cfg)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					return
				}
			}
			t.Errorf("Expected an error on %q, got %v", tt.field, verr.Errors)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("Unexpected message %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(multi.Error(), "2 errors") || !strings.Contains(multi.Error(), "b: worse") {
		t.Errorf("Unexpected message %q", multi.Error())
	}
}

func TestGameConfig_Setup(t *testing.T) {
	g := GameConfig{
		PlayerCount:   9,
		AdminOverride: true,
		Distribution:  map[string]int{"wolf": 2, "villager": 4, "seer": 1, "witch": 1, "guardian": 1},
		NightOrder:    []string{"guard", "werewolf", "seer"},
		Rules:         RulesConfig{GuardNoConsecutive: Bool(false)},
	}

	setup, err := g.Setup()
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if setup.Distribution[game.RoleWerewolf] != 2 || setup.Distribution[game.RoleGuard] != 1 {
		t.Errorf("Expected aliases to resolve, got %v", setup.Distribution)
	}
	if len(setup.NightOrder) != 3 || setup.NightOrder[0] != game.RoleGuard {
		t.Errorf("Expected custom night order, got %v", setup.NightOrder)
	}
	if setup.Rules.GuardNoConsecutive {
		t.Error("Expected guard rule to be off")
	}
	if !g.IsCustom() {
		t.Error("Expected distribution to be custom")
	}
	if _, err := setup.Validate(); err != nil {
		t.Errorf("Expected valid setup, got %v", err)
	}

	if _, err := (GameConfig{PlayerCount: 9, NightOrder: []string{"dragon"}}).Setup(); err == nil {
		t.Error("Expected error for unknown night role")
	}
}

func TestWarnings(t *testing.T) {
	cfg, err := Parse([]byte("game:\n  player_count: 8\n  admin_override: true\n  distribution: {werewolf: 2, villager: 2, seer: 1, witch: 1, fool: 2}\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	warnings := Warnings(cfg)
	if len(warnings) != 2 {
		t.Errorf("Expected fool and equal-count warnings, got %v", warnings)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	content := `
orchestrator:
  mode: judge
  judge:
    api_url: https://api.example.com/v1
` + seatsYAML(8)
	path := writeConfig(t, content)

	t.Setenv("ARBITER_GAME_ROOM_ID", "env-room")
	t.Setenv("ARBITER_ORCHESTRATOR_JUDGE_API_KEY", "sk-env")
	t.Setenv("ARBITER_DISPATCH_BACKOFF", "25ms")
	t.Setenv("ARBITER_DISPATCH_DEBUG", "true")
	t.Setenv("ARBITER_SEATS_P3_API_KEY", "sk-seat")
	t.Setenv("ARBITER_EVIDENCE_ENABLED", "false")
	t.Setenv("ARBITER_TELEMETRY_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("ARBITER_GAME_NIGHT_ORDER", "werewolf, seer")
	t.Setenv("ARBITER_SECRETS_DIR", "/run/secrets")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected the file alone to fail without the judge api key")
	}

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Game.RoomID != "env-room" {
		t.Errorf("Expected room id env-room, got %q", cfg.Game.RoomID)
	}
	if cfg.Orchestrator.Judge.APIKey != "sk-env" {
		t.Errorf("Expected judge key from env, got %q", cfg.Orchestrator.Judge.APIKey)
	}
	if cfg.Orchestrator.Judge.Model == "" {
		t.Error("Expected judge defaults to be applied")
	}
	if cfg.Dispatch.Backoff != 25*time.Millisecond || !cfg.Dispatch.Debug {
		t.Errorf("Expected dispatch overrides, got backoff=%v debug=%v", cfg.Dispatch.Backoff, cfg.Dispatch.Debug)
	}
	if cfg.Seats[2].APIKey != "sk-seat" {
		t.Errorf("Expected seat p3 key from env, got %q", cfg.Seats[2].APIKey)
	}
	if cfg.Seats[0].APIKey != "" {
		t.Errorf("Expected seat p1 key untouched, got %q", cfg.Seats[0].APIKey)
	}
	if BoolValue(cfg.Evidence.Enabled, true) {
		t.Error("Expected evidence disabled from env")
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("Expected sample ratio 0.25, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
	if len(cfg.Game.NightOrder) != 2 || cfg.Game.NightOrder[1] != "seer" {
		t.Errorf("Expected night order from env, got %v", cfg.Game.NightOrder)
	}
	if cfg.Secrets.Dir != "/run/secrets" {
		t.Errorf("Expected secrets dir from env, got %q", cfg.Secrets.Dir)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"p1":      "P1",
		"seat-10": "SEAT_10",
		"Wolf.A":  "WOLF_A",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestChangedSeats(t *testing.T) {
	prev, _ := Parse([]byte(seatsYAML(8)))
	next, _ := Parse([]byte(seatsYAML(8)))
	next.Seats[1].Endpoint = "http://127.0.0.1:9100"
	next.Seats[4].APIKey = "rotated"

	changed := ChangedSeats(prev, next)
	if len(changed) != 2 || changed[0].ID != "p2" || changed[1].ID != "p5" {
		t.Errorf("Expected p2 and p5 to change, got %v", changed)
	}

	if got := ChangedSeats(nil, next); len(got) != 8 {
		t.Errorf("Expected every seat without a previous config, got %d", len(got))
	}
	if got := ChangedSeats(next, next); len(got) != 0 {
		t.Errorf("Expected no change against itself, got %d", len(got))
	}
}
