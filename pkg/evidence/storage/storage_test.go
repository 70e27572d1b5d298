package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lycan-hq/arbiter/pkg/evidence"
)

// createTempDB creates a temporary SQLite database for testing.
func createTempDB(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         dbPath,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	return store, dbPath
}

// backends runs fn against every Storage implementation.
func backends(t *testing.T, fn func(t *testing.T, s evidence.Storage)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStorage()
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, _ := createTempDB(t)
		defer s.Close()
		fn(t, s)
	})
}

func sampleRecords(base time.Time) []*evidence.Record {
	return []*evidence.Record{
		{ID: "r1", RoomID: "room-1", Round: 1, Phase: "night_wolf", SeatID: "w1", Role: "werewolf",
			Event: evidence.EventAgentResponse, Status: evidence.StatusSuccess, Attempts: 1,
			Latency: 120 * time.Millisecond, ProviderKey: "api:api.example.com|model:m1", Model: "m1",
			Request: `{"phase":"night_wolf"}`, Response: `{"action":{"type":"kill"}}`, RecordedTime: base},
		{ID: "r2", RoomID: "room-1", Round: 1, Phase: "night_seer", SeatID: "s1", Role: "seer",
			Event: evidence.EventFallback, Status: evidence.StatusFallback, FallbackReason: "timeout",
			ErrorType: "timeout", Attempts: 3, Latency: 30 * time.Second, ProviderKey: "cli",
			RecordedTime: base.Add(time.Second)},
		{ID: "r3", RoomID: "room-2", Round: 2, Phase: "day_vote", SeatID: "v1", Role: "villager",
			Event: evidence.EventAgentResponse, Status: evidence.StatusSuccess, Attempts: 2,
			Latency: 900 * time.Millisecond, ProviderKey: "cli", RecordedTime: base.Add(2 * time.Second)},
	}
}

func seed(t *testing.T, s evidence.Storage, base time.Time) {
	t.Helper()
	for _, r := range sampleRecords(base) {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store(%s) failed: %v", r.ID, err)
		}
	}
}

func TestSQLiteStorage_Initialize(t *testing.T) {
	store, dbPath := createTempDB(t)
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	var version int
	if err := store.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("Expected schema version %d, got %d", SchemaVersion, version)
	}
}

func TestStorage_StoreAndQuery(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)

	backends(t, func(t *testing.T, s evidence.Storage) {
		seed(t, s, base)

		records, err := s.Query(context.Background(), &evidence.Query{RoomID: "room-1", SortOrder: "asc"})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}

		got := records[0]
		if got.ID != "r1" {
			t.Errorf("Expected first record r1, got %s", got.ID)
		}
		if got.Event != evidence.EventAgentResponse {
			t.Errorf("Expected event %s, got %s", evidence.EventAgentResponse, got.Event)
		}
		if got.Latency != 120*time.Millisecond {
			t.Errorf("Expected latency 120ms, got %v", got.Latency)
		}
		if got.Response != `{"action":{"type":"kill"}}` {
			t.Errorf("Expected response to round-trip, got %q", got.Response)
		}
		if !got.RecordedTime.Equal(base) {
			t.Errorf("Expected recorded time %v, got %v", base, got.RecordedTime)
		}
		if records[1].FallbackReason != "timeout" {
			t.Errorf("Expected fallback reason timeout, got %q", records[1].FallbackReason)
		}
	})
}

func TestStorage_QueryFilters(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)
	minLatency := time.Second

	tests := []struct {
		name  string
		query evidence.Query
		want  int
	}{
		{"no filter", evidence.Query{}, 3},
		{"by seat", evidence.Query{SeatID: "s1"}, 1},
		{"by status", evidence.Query{Status: evidence.StatusSuccess}, 2},
		{"by event", evidence.Query{Event: evidence.EventFallback}, 1},
		{"by phase", evidence.Query{Phase: "day_vote"}, 1},
		{"by provider key", evidence.Query{ProviderKey: "cli"}, 2},
		{"by min latency", evidence.Query{MinLatency: &minLatency}, 1},
		{"combined", evidence.Query{RoomID: "room-1", Status: evidence.StatusFallback}, 1},
		{"no match", evidence.Query{RoomID: "room-9"}, 0},
	}

	backends(t, func(t *testing.T, s evidence.Storage) {
		seed(t, s, base)

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				q := tt.query
				records, err := s.Query(context.Background(), &q)
				if err != nil {
					t.Fatalf("Query() failed: %v", err)
				}
				if len(records) != tt.want {
					t.Errorf("Expected %d records, got %d", tt.want, len(records))
				}

				count, err := s.Count(context.Background(), &q)
				if err != nil {
					t.Fatalf("Count() failed: %v", err)
				}
				if count != int64(tt.want) {
					t.Errorf("Expected count %d, got %d", tt.want, count)
				}
			})
		}
	})
}

func TestStorage_TimeRangeAndPagination(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)

	backends(t, func(t *testing.T, s evidence.Storage) {
		seed(t, s, base)

		start := base.Add(500 * time.Millisecond)
		records, err := s.Query(context.Background(), &evidence.Query{StartTime: &start})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 records after start, got %d", len(records))
		}

		page, err := s.Query(context.Background(), &evidence.Query{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(page) != 1 {
			t.Fatalf("Expected 1 record on page, got %d", len(page))
		}
		// Default order is newest first.
		if page[0].ID != "r2" {
			t.Errorf("Expected r2 on second page, got %s", page[0].ID)
		}

		byLatency, err := s.Query(context.Background(), &evidence.Query{SortBy: "latency", SortOrder: "asc"})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if byLatency[0].ID != "r1" || byLatency[2].ID != "r2" {
			t.Errorf("Expected latency order r1..r2, got %s..%s", byLatency[0].ID, byLatency[2].ID)
		}
	})
}

func TestStorage_Delete(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)

	backends(t, func(t *testing.T, s evidence.Storage) {
		seed(t, s, base)

		cutoff := base.Add(1500 * time.Millisecond)
		deleted, err := s.Delete(context.Background(), &evidence.Query{EndTime: &cutoff})
		if err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if deleted != 2 {
			t.Errorf("Expected 2 deleted, got %d", deleted)
		}

		count, _ := s.Count(context.Background(), &evidence.Query{})
		if count != 1 {
			t.Errorf("Expected 1 remaining, got %d", count)
		}
	})
}

func TestStorage_QueryStream(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)

	backends(t, func(t *testing.T, s evidence.Storage) {
		seed(t, s, base)

		recordsCh, errCh, err := s.QueryStream(context.Background(), &evidence.Query{RoomID: "room-1"})
		if err != nil {
			t.Fatalf("QueryStream() failed: %v", err)
		}

		var ids []string
		for r := range recordsCh {
			ids = append(ids, r.ID)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("Stream error: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Expected 2 streamed records, got %d", len(ids))
		}
	})
}

func TestSQLiteStorage_RejectsUnknownSort(t *testing.T) {
	store, _ := createTempDB(t)
	defer store.Close()

	_, err := store.Query(context.Background(), &evidence.Query{SortBy: "id; DROP TABLE evidence"})
	if err == nil {
		t.Fatal("Expected error for unknown sort field")
	}
}

func TestStorage_ConcurrentWrites(t *testing.T) {
	backends(t, func(t *testing.T, s evidence.Storage) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Store(context.Background(), &evidence.Record{
					ID:           fmt.Sprintf("c%d", i),
					RoomID:       "room-c",
					Phase:        "day_vote",
					SeatID:       fmt.Sprintf("p%d", i),
					Event:        evidence.EventAgentResponse,
					Status:       evidence.StatusSuccess,
					RecordedTime: time.Now(),
				})
				if err != nil {
					t.Errorf("Store() failed: %v", err)
				}
			}(i)
		}
		wg.Wait()

		count, err := s.Count(context.Background(), &evidence.Query{RoomID: "room-c"})
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if count != 20 {
			t.Errorf("Expected 20 records, got %d", count)
		}
	})
}
