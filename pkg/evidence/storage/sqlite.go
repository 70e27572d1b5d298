package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lycan-hq/arbiter/pkg/evidence"
)

// SQLiteConfig configures the SQLite evidence store.
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int

	// WALMode lets the retention pruner and CLI read while a game writes.
	WALMode bool

	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration
}

func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// dsn carries the pragmas as go-sqlite3 connection parameters so every
// pooled connection gets them, not just the first.
func (c *SQLiteConfig) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	if c.WALMode {
		q.Set("_journal_mode", "WAL")
	}
	return c.Path + "?" + q.Encode()
}

// SQLiteStorage is the durable evidence store used by "arbiter run" and
// the evidence commands.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStorage opens or creates the database at config.Path and brings
// its schema to SchemaVersion. A database written by a newer schema is
// rejected.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	db, err := sql.Open("sqlite3", config.dsn())
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{db: db, logger: slog.Default().With("component", "evidence.storage.sqlite")}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("evidence store opened", "path", config.Path, "wal", config.WALMode)
	return s, nil
}

func (s *SQLiteStorage) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return evidence.NewStorageError("sqlite", "migrate", err)
	}
	defer tx.Rollback()

	for _, stmt := range []struct {
		op, sql string
		args    []any
	}{
		{"create_schema", Schema, nil},
		{"insert_schema_version", InsertSchemaVersion, []any{SchemaVersion}},
	} {
		if _, err := tx.ExecContext(ctx, stmt.sql, stmt.args...); err != nil {
			return evidence.NewStorageError("sqlite", stmt.op, err)
		}
	}

	var version int
	if err := tx.QueryRowContext(ctx, GetSchemaVersion).Scan(&version); err != nil {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("database is at schema %d, this build writes %d", version, SchemaVersion))
	}
	if err := tx.Commit(); err != nil {
		return evidence.NewStorageError("sqlite", "migrate", err)
	}
	return nil
}

func (s *SQLiteStorage) Store(ctx context.Context, r *evidence.Record) error {
	const insert = `INSERT INTO evidence (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, insert,
		r.ID, r.RoomID, r.Round, r.Phase, r.SeatID, r.Role,
		string(r.Event), r.Status, nullable(r.FallbackReason), nullable(r.ErrorType),
		r.Attempts, int64(r.Latency), r.ProviderKey, r.Model,
		r.Request, r.Response, r.RequestHash, r.ResponseHash,
		r.RecordedTime.UTC(),
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	out := []*evidence.Record{}
	err := s.each(ctx, query, func(r *evidence.Record) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryStream sends the records Query would return on the first channel.
// Both channels are closed when the rows run out; at most one error is
// sent on the second.
func (s *SQLiteStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	if _, _, err := selectQuery(query); err != nil {
		return nil, nil, err
	}
	records := make(chan *evidence.Record, 100)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(records)
		err := s.each(ctx, query, func(r *evidence.Record) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case records <- r:
				return nil
			}
		})
		if err != nil {
			errs <- err
		}
	}()
	return records, errs, nil
}

// each runs the select for query and calls fn per row until fn fails.
func (s *SQLiteStorage) each(ctx context.Context, query *evidence.Query, fn func(*evidence.Record) error) error {
	stmt, args, err := selectQuery(query)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return evidence.NewStorageError("sqlite", "scan", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return evidence.NewStorageError("sqlite", "query", err)
	}
	return nil
}

func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := filter(query)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evidence"+where, args...).Scan(&n); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Delete removes the records matching query's filters, ignoring paging,
// and returns how many went.
func (s *SQLiteStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := filter(query)
	res, err := s.db.ExecContext(ctx, "DELETE FROM evidence"+where, args...)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	return nil
}

func selectQuery(query *evidence.Query) (string, []any, error) {
	column, ok := sortColumns[query.SortBy]
	if !ok {
		return "", nil, evidence.NewQueryError(query, fmt.Errorf("unsupported sort field %q", query.SortBy))
	}
	order := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		order = "ASC"
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	where, args := filter(query)
	stmt := fmt.Sprintf("SELECT %s FROM evidence%s ORDER BY %s %s LIMIT %d", selectColumns, where, column, order, limit)
	if query.Offset > 0 {
		stmt += " OFFSET " + strconv.Itoa(query.Offset)
	}
	return stmt, args, nil
}

// filter renders query's filters as " WHERE ..." or "".
func filter(query *evidence.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	eq := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	eq("room_id", query.RoomID)
	eq("seat_id", query.SeatID)
	eq("phase", query.Phase)
	eq("event", string(query.Event))
	eq("status", query.Status)
	eq("provider_key", query.ProviderKey)

	if query.StartTime != nil {
		conds = append(conds, "recorded_time >= ?")
		args = append(args, query.StartTime.UTC())
	}
	if query.EndTime != nil {
		conds = append(conds, "recorded_time <= ?")
		args = append(args, query.EndTime.UTC())
	}
	if query.MinLatency != nil {
		conds = append(conds, "latency_ns >= ?")
		args = append(args, int64(*query.MinLatency))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRow(rows *sql.Rows) (*evidence.Record, error) {
	var (
		r                                         evidence.Record
		event                                     string
		latency                                   int64
		role, reason, errType, providerKey, model sql.NullString
		request, response, reqHash, respHash      sql.NullString
	)
	err := rows.Scan(
		&r.ID, &r.RoomID, &r.Round, &r.Phase, &r.SeatID, &role,
		&event, &r.Status, &reason, &errType, &r.Attempts, &latency,
		&providerKey, &model, &request, &response, &reqHash, &respHash,
		&r.RecordedTime,
	)
	if err != nil {
		return nil, err
	}
	r.Event = evidence.Event(event)
	r.Latency = time.Duration(latency)
	r.Role, r.FallbackReason, r.ErrorType = role.String, reason.String, errType.String
	r.ProviderKey, r.Model = providerKey.String, model.String
	r.Request, r.Response = request.String, response.String
	r.RequestHash, r.ResponseHash = reqHash.String, respHash.String
	return &r, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
