// Package evidence records what every seat dispatch did: which backend was
// asked, what came back or why a fallback was used, and how long it took.
//
// # Architecture
//
//  1. recorder: builds and asynchronously writes Records
//  2. storage: SQLite and in-memory backends behind the Storage interface
//  3. query, export, retention: filtering, JSON/CSV export and pruning
//
// # Records
//
// Each Record carries the room, round, phase and seat of the dispatch, the
// event (agent_response, fallback_action, or god_visible_state in debug mode),
// the provider key and model, attempt count and latency. Request and Response
// hold sanitized payloads capped to a configured length; their SHA-256
// digests are taken before truncation.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:    "data/evidence.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	defer rec.Close()
//
//	// The dispatcher calls Record for every dispatch.
//	d := dispatch.New(registry, backend, dispatch.WithRecorder(rec))
//
// # Error Handling
//
// Failures are reported as StorageError, QueryError, RecorderError,
// RetentionError or ExportError, all of which unwrap to their cause.
package evidence
