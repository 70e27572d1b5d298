package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"lycan-hq/arbiter/pkg/game"
)

// DefaultMaxRounds is the number of discussion rounds before the target is
// drawn at random.
const DefaultMaxRounds = 3

// DefaultPhase labels the team discussion in seeds and evidence.
const DefaultPhase = "night_wolf_discuss"

// Proposal is one team member's contribution to a discussion round.
type Proposal struct {
	Round    int    `json:"round"`
	Seat     string `json:"player_id"`
	Name     string `json:"nickname,omitempty"`
	Target   string `json:"target"`
	Speech   string `json:"content"`
	Fallback bool   `json:"is_fallback"`
}

// Outcome is the result of a discussion. When Reached is false the
// discussion was exhausted and Target was drawn at random from the legal
// targets; Round is then 0.
type Outcome struct {
	Target    string
	Round     int
	Reached   bool
	Proposals []Proposal
}

// Asker asks one team member for a proposal. prior holds every proposal made
// so far in this discussion, across rounds, in speaking order.
type Asker interface {
	Propose(ctx context.Context, seat string, round int, prior []Proposal) (Proposal, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, seat string, round int, prior []Proposal) (Proposal, error)

// Propose implements Asker.
func (f AskerFunc) Propose(ctx context.Context, seat string, round int, prior []Proposal) (Proposal, error) {
	return f(ctx, seat, round, prior)
}

// Params describes one discussion.
type Params struct {
	RoomID string
	Round  int

	// Team holds the living members taking part.
	Team []string

	// Legal holds the targets the team may agree on.
	Legal []string

	MaxRounds int

	// Phase labels the discussion in seeds; DefaultPhase when empty.
	Phase string
}

// Quorum returns the votes needed for agreement in a team of size members:
// 1 for a lone member, 2 for a pair, a strict majority otherwise.
func Quorum(size int) int {
	switch {
	case size <= 1:
		return 1
	case size == 2:
		return 2
	}
	return size/2 + 1
}

// Tally counts the proposals of one round, ignoring targets outside legal.
func Tally(proposals []Proposal, legal []string) map[string]int {
	counts := make(map[string]int)
	for _, p := range proposals {
		if p.Target == "" || !slices.Contains(legal, p.Target) {
			continue
		}
		counts[p.Target]++
	}
	return counts
}

// Agreed returns the unique leader of counts when it meets the quorum for a
// team of size members.
func Agreed(counts map[string]int, size int) (string, bool) {
	best, leader, tied := 0, "", false
	for target, n := range counts {
		switch {
		case n > best:
			best, leader, tied = n, target, false
		case n == best:
			tied = true
		}
	}
	if leader == "" || tied || best < Quorum(size) {
		return "", false
	}
	return leader, true
}

// Order returns the speaking order of team: sorted, then shuffled with a
// seed derived from the room, round and phase, so a replay hears the same
// order.
func Order(team []string, roomID string, round int, phase string) []string {
	order := slices.Clone(team)
	slices.Sort(order)
	if len(order) <= 1 {
		return order
	}
	rng := game.NewRand(roomID, round, phase)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// Run holds the discussion. Members speak in Order for up to MaxRounds
// rounds; the first round whose tally has a unique leader meeting the
// quorum ends the discussion. An exhausted discussion is not an error: the
// outcome carries a random legal target with Reached false.
//
// Run returns an error only when ask does.
func Run(ctx context.Context, p Params, ask Asker) (Outcome, error) {
	if p.MaxRounds <= 0 {
		p.MaxRounds = DefaultMaxRounds
	}
	if p.Phase == "" {
		p.Phase = DefaultPhase
	}
	logger := slog.Default().With("component", "consensus", "room", p.RoomID, "round", p.Round)

	ctx, span := otel.Tracer("lycan-hq/arbiter/consensus").Start(ctx, "consensus.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("arbiter.room", p.RoomID),
		attribute.Int("arbiter.round", p.Round),
		attribute.Int("arbiter.team_size", len(p.Team)),
	)

	var out Outcome
	if len(p.Team) == 0 || len(p.Legal) == 0 {
		return out, nil
	}

	order := Order(p.Team, p.RoomID, p.Round, p.Phase)
	for r := 1; r <= p.MaxRounds; r++ {
		var current []Proposal
		for _, seat := range order {
			prop, err := ask.Propose(ctx, seat, r, slices.Clone(out.Proposals))
			if err != nil {
				return out, fmt.Errorf("consensus round %d, seat %s: %w", r, seat, err)
			}
			prop.Round = r
			prop.Seat = seat
			out.Proposals = append(out.Proposals, prop)
			current = append(current, prop)
		}

		if target, ok := Agreed(Tally(current, p.Legal), len(order)); ok {
			out.Target, out.Round, out.Reached = target, r, true
			span.SetAttributes(attribute.Int("arbiter.consensus_round", r))
			logger.Debug("team agreed", "target", target, "discussion_round", r)
			return out, nil
		}
		logger.Debug("no agreement", "discussion_round", r)
	}

	rng := game.NewRand(p.RoomID, p.Round, p.Phase+"|exhausted")
	out.Target = game.Pick(rng, p.Legal)
	span.SetAttributes(attribute.Bool("arbiter.consensus_exhausted", true))
	logger.Info("discussion exhausted, target drawn at random",
		"target", out.Target,
		"rounds", p.MaxRounds,
	)
	return out, nil
}
