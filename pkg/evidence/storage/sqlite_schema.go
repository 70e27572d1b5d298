package storage

// SchemaVersion is the schema this build writes. Version 1 had no room or
// seat columns and cannot be read.
const SchemaVersion = 2

// Schema creates the evidence table, one row per dispatch or fallback, and
// the version ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS evidence (
    id              TEXT PRIMARY KEY,
    room_id         TEXT NOT NULL,
    round           INTEGER NOT NULL,
    phase           TEXT NOT NULL,
    seat_id         TEXT NOT NULL,
    role            TEXT,
    event           TEXT NOT NULL,
    status          TEXT NOT NULL,
    fallback_reason TEXT,
    error_type      TEXT,
    attempts        INTEGER,
    latency_ns      INTEGER,
    provider_key    TEXT,
    model           TEXT,
    request         TEXT,
    response        TEXT,
    request_hash    TEXT,
    response_hash   TEXT,
    recorded_time   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_recorded_time ON evidence(recorded_time);
CREATE INDEX IF NOT EXISTS idx_evidence_room ON evidence(room_id, round);
CREATE INDEX IF NOT EXISTS idx_evidence_seat ON evidence(seat_id);
CREATE INDEX IF NOT EXISTS idx_evidence_status ON evidence(status);
CREATE INDEX IF NOT EXISTS idx_evidence_provider_key ON evidence(provider_key);
`

// InsertSchemaVersion records a version once; rerunning it is harmless.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`

// GetSchemaVersion reads the newest version the database has seen.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const selectColumns = `id, room_id, round, phase, seat_id, role,
	event, status, fallback_reason, error_type, attempts, latency_ns,
	provider_key, model, request, response, request_hash, response_hash,
	recorded_time`

// sortColumns maps Query.SortBy values to columns.
var sortColumns = map[string]string{
	"":              "recorded_time",
	"recorded_time": "recorded_time",
	"timestamp":     "recorded_time",
	"latency":       "latency_ns",
	"round":         "round",
}
