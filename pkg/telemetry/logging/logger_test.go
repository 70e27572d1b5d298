package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Writer = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return logger, &buf
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad level", Config{Level: "loud"}},
		{"bad format", Config{Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info message to be filtered")
	}
	if !strings.Contains(out, "shown") {
		t.Error("Expected warn message to be written")
	}
}

func TestLogger_RedactsCredentials(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Level: "info", Format: "json"})

	logger.With("api_key", "sk-should-not-appear").Info("registered", "detail", "using sk-abc123")

	out := buf.String()
	if strings.Contains(out, "should-not-appear") || strings.Contains(out, "sk-abc123") {
		t.Errorf("Expected credentials redacted, got %s", out)
	}
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Level: "info", Format: "json"})

	ctx := WithRoom(context.Background(), "room-7")
	ctx = WithRound(ctx, 2)
	ctx = WithPhase(ctx, "day_vote")
	ctx = WithSeat(ctx, "p4")
	logger.InfoContext(ctx, "dispatching")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log line: %v", err)
	}
	if entry["room"] != "room-7" {
		t.Errorf("Expected room room-7, got %v", entry["room"])
	}
	if entry["round"] != float64(2) {
		t.Errorf("Expected round 2, got %v", entry["round"])
	}
	if entry["phase"] != "day_vote" {
		t.Errorf("Expected phase day_vote, got %v", entry["phase"])
	}
	if entry["seat"] != "p4" {
		t.Errorf("Expected seat p4, got %v", entry["seat"])
	}
	if GetRoom(ctx) != "room-7" {
		t.Errorf("Expected GetRoom room-7, got %q", GetRoom(ctx))
	}
}

func TestLogger_SetDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger, buf := newBufferLogger(t, Config{Level: "debug", Format: "text"})
	logger.SetDefault()

	slog.Default().With("component", "test").Debug("via default", "password", "hunter22")

	out := buf.String()
	if !strings.Contains(out, "via default") {
		t.Errorf("Expected message through default logger, got %s", out)
	}
	if strings.Contains(out, "hunter22") {
		t.Errorf("Expected password redacted, got %s", out)
	}
}
