package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/evidence/storage"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/orchestrator"
)

func TestInstructions_Overlay(t *testing.T) {
	defaults := orchestrator.DefaultInstructions()

	in := instructions(map[string]string{
		"day_vote":                    "  Vote for the quietest player.  ",
		config.InstructionDefault:     "Answer in JSON.",
		config.InstructionJudgeSystem: "You narrate.",
		"night_seer":                  "   ",
	})

	if got := in.Phases[game.PhaseDayVote]; got != "Vote for the quietest player." {
		t.Errorf("Expected trimmed day_vote instruction, got %q", got)
	}
	if in.Default != "Answer in JSON." {
		t.Errorf("Expected default instruction override, got %q", in.Default)
	}
	if in.JudgeSystem != "You narrate." {
		t.Errorf("Expected judge system override, got %q", in.JudgeSystem)
	}
	if in.Phases[game.PhaseNightSeer] != defaults.Phases[game.PhaseNightSeer] {
		t.Error("Expected a blank template to keep the built-in one")
	}
	if in.Phases[game.PhaseNightWolf] != defaults.Phases[game.PhaseNightWolf] {
		t.Error("Expected unconfigured phases to keep the built-in template")
	}
}

func TestRegistration(t *testing.T) {
	reg := registration(config.SeatConfig{
		ID:        "p4",
		Endpoint:  "http://agent:9000",
		ModelType: "claude",
		ModelName: "sonnet",
		Timeout:   3 * time.Second,
	})
	if reg.SeatID != "p4" || reg.Endpoint != "http://agent:9000" {
		t.Errorf("Expected seat and endpoint to carry over, got %+v", reg)
	}
	if reg.ModelType != "claude" || reg.ModelName != "sonnet" || reg.Timeout != 3*time.Second {
		t.Errorf("Expected model fields to carry over, got %+v", reg)
	}
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Orchestrator.VoteConcurrency = 4
	cfg.Orchestrator.PhaseTimeout = time.Minute
	cfg.Consensus.MaxRounds = 3

	oc := orchestratorConfig(cfg)
	if oc.VoteConcurrency != 4 || oc.ConsensusRounds != 3 || oc.PhaseTimeout != time.Minute {
		t.Errorf("Unexpected orchestrator config %+v", oc)
	}
}

func TestRecorderConfig_Defaults(t *testing.T) {
	rc := recorderConfig(config.EvidenceConfig{})
	if !rc.Enabled || !rc.HashPayloads {
		t.Errorf("Expected unset booleans to default to true, got %+v", rc)
	}

	rc = recorderConfig(config.EvidenceConfig{Enabled: config.Bool(false)})
	if rc.Enabled {
		t.Error("Expected explicit false to disable the recorder")
	}
}

func TestOpenEvidence(t *testing.T) {
	st, err := openEvidence(config.EvidenceConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory backend failed: %v", err)
	}
	if _, ok := st.(*storage.MemoryStorage); !ok {
		t.Errorf("Expected *storage.MemoryStorage, got %T", st)
	}
	st.Close()

	path := filepath.Join(t.TempDir(), "nested", "evidence.db")
	st, err = openEvidence(config.EvidenceConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Path: path, MaxOpenConns: 1, MaxIdleConns: 1, BusyTimeout: time.Second},
	})
	if err != nil {
		t.Fatalf("sqlite backend failed: %v", err)
	}
	st.Close()

	if _, err := openEvidence(config.EvidenceConfig{Backend: "s3"}); err == nil {
		t.Error("Expected an error for an unsupported backend")
	}
}

func TestResolveSeat(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p1-key"), []byte("sk-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	t.Setenv("ARBITER_SECRET_GATEWAY_HOST", "gw.example.com")

	r, closeFn, err := newResolver(config.SecretsConfig{EnvPrefix: config.DefaultSecretsEnvPrefix, Dir: dir})
	if err != nil {
		t.Fatalf("newResolver failed: %v", err)
	}
	defer closeFn()

	seat, err := resolveSeat(context.Background(), r, config.SeatConfig{
		ID:       "p1",
		Endpoint: "http://127.0.0.1:9000",
		APIURL:   "https://${secret:gateway-host}/v1",
		APIKey:   "${secret:p1-key}",
	})
	if err != nil {
		t.Fatalf("resolveSeat failed: %v", err)
	}
	if seat.APIKey != "sk-file" {
		t.Errorf("Expected key from file, got %q", seat.APIKey)
	}
	if seat.APIURL != "https://gw.example.com/v1" {
		t.Errorf("Expected url from env, got %q", seat.APIURL)
	}
	if seat.Endpoint != "http://127.0.0.1:9000" {
		t.Errorf("Expected endpoint untouched, got %q", seat.Endpoint)
	}

	if _, err := resolveSeat(context.Background(), r, config.SeatConfig{ID: "p2", APIKey: "${secret:missing}"}); err == nil {
		t.Error("Expected an error for an unknown secret")
	}
}

func TestNewResolver_MissingDir(t *testing.T) {
	if _, _, err := newResolver(config.SecretsConfig{Dir: filepath.Join(t.TempDir(), "absent")}); err == nil {
		t.Error("Expected an error for a missing secrets directory")
	}
}
