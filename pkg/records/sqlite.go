package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"lycan-hq/arbiter/pkg/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	over INTEGER NOT NULL,
	winner TEXT NOT NULL,
	rounds INTEGER NOT NULL,
	steps INTEGER NOT NULL,
	fallbacks INTEGER NOT NULL,
	player_count INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	snapshot TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_games_finished_at ON games(finished_at);
CREATE INDEX IF NOT EXISTS idx_games_winner ON games(winner);
`

// SQLiteRepository implements Repository on a SQLite file.
//
// # Thread Safety
//
// The database allows a single connection, so writes are serialized by
// database/sql. Close is idempotent.
type SQLiteRepository struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	closeOnce sync.Once

	saveStmt *sql.Stmt
	getStmt  *sql.Stmt
}

// OpenSQLite opens (and creates) the repository at path. The parent
// directory is created when missing.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errors.New("records path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create records directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	r := &SQLiteRepository{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "records.sqlite"),
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := r.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, err
	}

	r.logger.Info("records repository opened", "path", path)
	return r, nil
}

func (r *SQLiteRepository) prepareStatements(ctx context.Context) error {
	var err error

	r.saveStmt, err = r.db.PrepareContext(ctx, `
		INSERT INTO games (id, owner, over, winner, rounds, steps, fallbacks, player_count, started_at, finished_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner = excluded.owner,
			over = excluded.over,
			winner = excluded.winner,
			rounds = excluded.rounds,
			steps = excluded.steps,
			fallbacks = excluded.fallbacks,
			player_count = excluded.player_count,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			snapshot = excluded.snapshot
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	r.getStmt, err = r.db.PrepareContext(ctx, `
		SELECT id, owner, over, winner, rounds, steps, fallbacks, player_count, started_at, finished_at, snapshot
		FROM games WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}
	return nil
}

// Save implements Repository.
func (r *SQLiteRepository) Save(ctx context.Context, g *Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	snapshot, err := json.Marshal(g.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.saveStmt.ExecContext(ctx,
		g.ID, g.Owner, boolInt(g.Over), string(g.Winner),
		g.Rounds, g.Steps, g.Fallbacks, g.PlayerCount,
		g.StartedAt.UnixNano(), g.FinishedAt.UnixNano(),
		string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}

	r.logger.Debug("game saved", "room", g.ID, "winner", g.Winner, "rounds", g.Rounds)
	return nil
}

// Get implements Repository.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Game, error) {
	var snapshot string
	g, err := scanGame(r.getStmt.QueryRowContext(ctx, id), &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(snapshot), &g.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of %s: %w", id, err)
	}
	return g, nil
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) ([]*Game, error) {
	var (
		where []string
		args  []any
	)
	if opts.Winner != "" {
		where = append(where, "winner = ?")
		args = append(args, string(opts.Winner))
	}
	if !opts.Since.IsZero() {
		where = append(where, "finished_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, owner, over, winner, rounds, steps, fallbacks, player_count, started_at, finished_at, '' FROM games`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY finished_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		var unused string
		g, err := scanGame(rows, &unused)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

// Delete implements Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.saveStmt != nil {
			r.saveStmt.Close()
		}
		if r.getStmt != nil {
			r.getStmt.Close()
		}
		err = r.db.Close()
	})
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner, snapshot *string) (*Game, error) {
	var (
		g          Game
		over       int
		winner     string
		startedAt  int64
		finishedAt int64
	)
	err := s.Scan(&g.ID, &g.Owner, &over, &winner, &g.Rounds, &g.Steps, &g.Fallbacks,
		&g.PlayerCount, &startedAt, &finishedAt, snapshot)
	if err != nil {
		return nil, err
	}
	g.Over = over != 0
	g.Winner = game.Team(winner)
	g.StartedAt = time.Unix(0, startedAt)
	g.FinishedAt = time.Unix(0, finishedAt)
	return &g, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
