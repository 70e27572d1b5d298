package config

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func resetCurrent(t *testing.T) {
	t.Helper()
	prev := Publish(nil)
	t.Cleanup(func() { Publish(prev) })
}

func TestReload(t *testing.T) {
	resetCurrent(t)

	if Current() != nil {
		t.Fatal("Expected nil config before Publish")
	}

	path := writeConfig(t, "game:\n  room_id: before\n"+seatsYAML(8))
	cfg, err := Reload(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if Current() != cfg || cfg.Game.RoomID != "before" {
		t.Errorf("Expected room id before to be current, got %+v", Current())
	}

	if err := os.WriteFile(path, []byte("game:\n  room_id: after\n"+seatsYAML(8)), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Reload(path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if Current().Game.RoomID != "after" {
		t.Errorf("Expected reloaded room id after, got %q", Current().Game.RoomID)
	}

	if err := os.WriteFile(path, []byte("game:\n  player_count: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Reload(path); err == nil {
		t.Fatal("Expected reload of an invalid file to fail")
	}
	if Current().Game.RoomID != "after" {
		t.Errorf("Expected the current config to survive a failed reload, got %q", Current().Game.RoomID)
	}
}

func TestPublish_ReturnsPrevious(t *testing.T) {
	resetCurrent(t)

	first := &Config{Game: GameConfig{RoomID: "first"}}
	if prev := Publish(first); prev != nil {
		t.Errorf("Expected no previous config, got %+v", prev)
	}
	if prev := Publish(&Config{}); prev != first {
		t.Errorf("Expected first to be returned, got %+v", prev)
	}
}

func TestPublish_Concurrent(t *testing.T) {
	resetCurrent(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Publish(&Config{})
		}()
		go func() {
			defer wg.Done()
			_ = Current()
		}()
	}
	wg.Wait()

	if Current() == nil {
		t.Error("Expected a config after Publish")
	}
}

func TestFileWatcher_ReportsChangedSeats(t *testing.T) {
	resetCurrent(t)

	path := writeConfig(t, seatsYAML(8))
	cfg, err := Reload(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	fw, err := NewFileWatcher(path, cfg, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}

	reloaded := make(chan []SeatConfig, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func(_ *Config, changed []SeatConfig) {
			reloaded <- changed
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(seatsYAML(8), "http://127.0.0.1:9004", "http://127.0.0.1:9904", 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for found := false; !found; {
		select {
		case changed := <-reloaded:
			for _, seat := range changed {
				if seat.ID != "p4" {
					t.Errorf("Expected only p4 to change, got %s", seat.ID)
				}
				found = true
			}
		case <-deadline:
			t.Fatal("Expected a reload after the file changed")
		}
	}

	if Current().Seats[3].Endpoint != "http://127.0.0.1:9904" {
		t.Errorf("Expected the current config to hold the new endpoint, got %q", Current().Seats[3].Endpoint)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
