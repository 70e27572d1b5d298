package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"lycan-hq/arbiter/internal/agenttest"
	"lycan-hq/arbiter/pkg/cli"
	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/evidence/storage"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/records"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func finishedGame(id string, winner game.Team, finished time.Time) *records.Game {
	snap := game.Snapshot{
		RoomID: id,
		Owner:  "admin",
		Over:   true,
		Winner: winner,
		Seats: []game.Seat{
			{ID: "p1", Name: "Cat1", Role: game.RoleWerewolf, Alive: true},
			{ID: "p2", Name: "Cat2", Role: game.RoleSeer, Entrusted: true},
		},
		Round: game.RoundContext{Round: 3},
		Audit: []game.AuditEntry{
			{Seq: 1, Round: 1, Phase: game.PhaseDayVote, Kind: "vote", Actor: "p1", Target: "p2"},
		},
	}
	g := records.NewGame(snap, finished.Add(-time.Minute), finished)
	g.Steps = 12
	g.Fallbacks = 2
	return g
}

func seedRecords(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.db")
	repo, err := records.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer repo.Close()

	now := time.Now().UTC().Truncate(time.Second)
	for _, g := range []*records.Game{
		finishedGame("room-a", game.TeamWolf, now.Add(-2*time.Hour)),
		finishedGame("room-b", game.TeamGood, now.Add(-time.Hour)),
	} {
		if err := repo.Save(context.Background(), g); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	return path
}

func TestRecordsList(t *testing.T) {
	db := seedRecords(t)

	out, err := execute(t, "records", "list", "--db", db, "-o", "text", "--winner", "")
	if err != nil {
		t.Fatalf("records list failed: %v", err)
	}
	if !strings.Contains(out, "ROOM") || !strings.Contains(out, "room-a") || !strings.Contains(out, "room-b") {
		t.Errorf("Expected both games in the table, got:\n%s", out)
	}
	if strings.Index(out, "room-b") > strings.Index(out, "room-a") {
		t.Errorf("Expected newest game first, got:\n%s", out)
	}

	out, err = execute(t, "records", "list", "--db", db, "-o", "json", "--winner", "wolf")
	if err != nil {
		t.Fatalf("records list --winner failed: %v", err)
	}
	var games []records.Game
	if err := json.Unmarshal([]byte(out), &games); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out, err)
	}
	if len(games) != 1 || games[0].ID != "room-a" {
		t.Errorf("Expected only room-a, got %+v", games)
	}

	if _, err := execute(t, "records", "list", "--db", db, "--winner", "villagers"); cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("Expected a config error for an unknown team, got %v", err)
	}
}

func TestRecordsShow(t *testing.T) {
	db := seedRecords(t)

	out, err := execute(t, "records", "show", "room-a", "--db", db, "-o", "text", "--audit")
	if err != nil {
		t.Fatalf("records show failed: %v", err)
	}
	for _, want := range []string{"Winner:    wolf", "Fallbacks: 2", "Cat2", "werewolf", "SEQ"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	if _, err := execute(t, "records", "show", "missing", "--db", db, "-o", "text", "--audit=false"); err == nil {
		t.Error("Expected an error for an unknown game")
	}
}

func TestEvidenceQuery(t *testing.T) {
	db := filepath.Join(t.TempDir(), "evidence.db")
	st, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: db, MaxOpenConns: 1, MaxIdleConns: 1, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	now := time.Now()
	for i, status := range []string{evidence.StatusSuccess, evidence.StatusFallback} {
		rec := &evidence.Record{
			ID:             "rec-" + status,
			RoomID:         "room-ev",
			Round:          1,
			Phase:          string(game.PhaseDayVote),
			SeatID:         "p1",
			Event:          evidence.EventAgentResponse,
			Status:         status,
			Attempts:       1,
			Latency:        time.Duration(i+1) * time.Second,
			RecordedTime:   now.Add(time.Duration(i) * time.Second),
			FallbackReason: "",
		}
		if status == evidence.StatusFallback {
			rec.Event = evidence.EventFallback
			rec.FallbackReason = "timeout"
		}
		if err := st.Store(context.Background(), rec); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
	st.Close()

	out, err := execute(t, "evidence", "query", "--db", db, "--status", "fallback", "-o", "text")
	if err != nil {
		t.Fatalf("evidence query failed: %v", err)
	}
	if !strings.Contains(out, "timeout") || strings.Contains(out, "success") {
		t.Errorf("Expected only the fallback record, got:\n%s", out)
	}

	if _, err := execute(t, "evidence", "query", "--db", db, "--status", "bogus"); err == nil {
		t.Error("Expected an invalid status to be rejected")
	}

	out = filepath.Join(t.TempDir(), "evidence.csv")
	t.Cleanup(func() { evidenceFlags.out = "" })
	if _, err := execute(t, "evidence", "query", "--db", db, "--status", "", "-o", "csv", "--out", out); err != nil {
		t.Fatalf("evidence query --out failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected an export file: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("Expected header plus 2 rows, got %d", len(rows))
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z", false},
		{"missing end", "2026-10-01T00:00:00Z", true},
		{"bad start", "yesterday/2026-10-02T00:00:00Z", true},
		{"bad end", "2026-10-01T00:00:00Z/tomorrow", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseTimeRange(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && !start.Before(end) {
				t.Errorf("Expected start before end, got %v and %v", start, end)
			}
		})
	}
}

func TestWriteResult(t *testing.T) {
	g := finishedGame("room-out", game.TeamGood, time.Now())

	var buf bytes.Buffer
	if err := writeResult(&buf, cli.FormatCSV, g); err != nil {
		t.Fatalf("writeResult csv failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "SEAT,NAME,ROLE,ALIVE,ENTRUSTED" {
		t.Errorf("Expected header and two seat rows, got %q", lines)
	}
	if lines[2] != "p2,Cat2,seer,false,true" {
		t.Errorf("Unexpected row %q", lines[2])
	}

	buf.Reset()
	if err := writeResult(&buf, cli.FormatJSON, g); err != nil {
		t.Fatalf("writeResult json failed: %v", err)
	}
	var decoded records.Game
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected JSON, got %v", err)
	}
	if decoded.ID != "room-out" || decoded.Steps != 12 {
		t.Errorf("Unexpected decoded record %+v", decoded)
	}
}

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("Expected use %q, got %q", "version", versionCmd.Use)
	}
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "Arbiter "+Version) || !strings.Contains(out, runtime.Version()) {
		t.Errorf("Unexpected version output:\n%s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "-o", "text", "--strict=false")
	if err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
	if cli.ExitCode(err) == cli.ExitOK {
		t.Error("Expected a non-zero exit code")
	}
}

func TestRunAgentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runAgentServer(ctx, ln, agenttest.New("scripted", agenttest.Deterministic))
	}()

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		cancel()
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("agent server did not stop")
	}
}
