package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lycan-hq/arbiter/pkg/game"
)

// ErrNotFound is returned when no game is stored under an id.
var ErrNotFound = errors.New("game record not found")

// Game is a finished (or abandoned) game.
type Game struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Over        bool          `json:"game_over"`
	Winner      game.Team     `json:"winner,omitempty"`
	Rounds      int           `json:"rounds"`
	Steps       int           `json:"steps"`
	Fallbacks   int64         `json:"fallbacks"`
	PlayerCount int           `json:"player_count"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Snapshot    game.Snapshot `json:"snapshot"`
}

// NewGame builds a record from the final snapshot of a room.
func NewGame(snap game.Snapshot, startedAt, finishedAt time.Time) *Game {
	return &Game{
		ID:          snap.RoomID,
		Owner:       snap.Owner,
		Over:        snap.Over,
		Winner:      snap.Winner,
		Rounds:      snap.Round.Round,
		PlayerCount: len(snap.Seats),
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Snapshot:    snap,
	}
}

// Duration returns the wall time of the game.
func (g *Game) Duration() time.Duration {
	return g.FinishedAt.Sub(g.StartedAt)
}

// Validate checks the fields the repository keys on.
func (g *Game) Validate() error {
	if g.ID == "" {
		return errors.New("game record id is empty")
	}
	if g.FinishedAt.IsZero() {
		return fmt.Errorf("game record %s has no finish time", g.ID)
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	// Winner keeps only games won by this team when set.
	Winner game.Team

	// Since keeps only games finished at or after this time when set.
	Since time.Time

	// Limit caps the number of games. Zero means DefaultListLimit.
	Limit int
}

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Repository stores finished games.
type Repository interface {
	// Save stores g, replacing a game with the same id.
	Save(ctx context.Context, g *Game) error

	// Get returns the game stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Game, error)

	// List returns games newest first. Listed games carry no snapshot.
	List(ctx context.Context, opts ListOptions) ([]*Game, error)

	// Delete removes the game stored under id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}
