// Package storage provides storage backends for dispatch evidence.
//
// # Storage Backends
//
//   - SQLite: durable storage for the records CLI and long games
//   - Memory: in-process storage for tests and runs without a database
//
// # SQLite Backend
//
// The SQLite backend runs in WAL mode with a busy timeout and indexes on
// room, seat, status, provider key and record time. The schema is created on
// first use and its version is tracked in the schema_version table.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:        "data/evidence.db",
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	records, err := store.Query(ctx, &evidence.Query{
//	    RoomID: "room-1",
//	    Status: evidence.StatusFallback,
//	})
//
// # Thread Safety
//
// Both backends are safe for concurrent use. Store may run concurrently with
// Query, Count and Delete.
package storage
