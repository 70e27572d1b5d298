package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
)

// Statement is one public speech of the day discussion.
type Statement struct {
	Seat    string `json:"player_id"`
	Name    string `json:"nickname"`
	Content string `json:"content"`
}

// runAnnounce publishes the night result. Only the judge speaks here.
func (r *runner) runAnnounce(eng *game.Engine) {
	if r.narrator == nil {
		return
	}
	public, settlement := r.narrator.announce(eng.Snapshot())
	judgeLine(eng, game.PhaseDayAnnounce, game.VisibilityJudge, settlement)
	judgeLine(eng, game.PhaseDayAnnounce, game.VisibilityPublic, public)
}

// runDiscussion lets every living seat speak once, in seat id order. Each
// speaker sees the statements made before it.
func (r *runner) runDiscussion(ctx context.Context, eng *game.Engine) error {
	narration := r.narrate(ctx, eng, game.PhaseDayDiscuss)

	speakers := eng.Snapshot().Living()
	slices.SortFunc(speakers, func(a, b game.Seat) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	round := eng.Round()
	var statements []Statement
	for _, seat := range speakers {
		snap := eng.Snapshot()
		res, err := r.ask(ctx, snap, seat, game.PhaseDayDiscuss, map[string]any{
			"god_narration":         narration,
			"day_discussion_so_far": slices.Clone(statements),
		})
		if err != nil {
			return err
		}
		r.settle(eng, seat.ID, res)

		speech, thinking := splitSpeech(res)
		if seat.Role != game.RoleSeer {
			speech = scrubClaims(speech)
		}
		if speech == "" {
			speech = DefaultSpeech
		}
		say(eng, round, game.PhaseDayDiscuss, seat.ID, game.VisibilityPublic, speech, thinking, nil)
		statements = append(statements, Statement{Seat: seat.ID, Name: seat.DisplayName(), Content: speech})
	}
	return nil
}

// runVote dispatches every eligible voter concurrently. Submissions are
// serialized in completion order and each is validated on its own.
func (r *runner) runVote(ctx context.Context, eng *game.Engine) error {
	r.narrate(ctx, eng, game.PhaseDayVote)

	snap := eng.Snapshot()
	round := snap.Round.Round

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.cfg.VoteConcurrency)
	for _, voter := range snap.Living() {
		if !voter.CanVote {
			continue
		}
		g.Go(func() error {
			res, err := r.ask(ctx, snap, voter, game.PhaseDayVote, nil)
			if err != nil {
				return err
			}
			target := dispatch.NormalizeTarget(snap, res.Target(), dispatch.TargetOptions{})

			mu.Lock()
			defer mu.Unlock()
			r.settle(eng, voter.ID, res)
			if err := eng.SubmitVote(voter.ID, target); err != nil {
				r.logger.WarnContext(ctx, "dropped vote", "seat", voter.ID, "target", target, "error", err)
				return nil
			}
			speech := "I abstain."
			if target != "" {
				speech = fmt.Sprintf("I vote for %s.", snap.NameOf(target))
			}
			_, thinking := splitSpeech(res)
			say(eng, round, game.PhaseDayVote, voter.ID, game.VisibilityPublic, speech, thinking, nil)
			return nil
		})
	}
	return g.Wait()
}

// runRetaliation lets a dead hunter with a pending shot act.
func (r *runner) runRetaliation(ctx context.Context, eng *game.Engine) error {
	for range 2 {
		hunterID, ok := eng.PendingRetaliation()
		if !ok {
			return nil
		}
		r.narrate(ctx, eng, dispatch.PhaseHunterShot)

		snap := eng.Snapshot()
		hunter, _ := snap.Seat(hunterID)
		res, err := r.ask(ctx, snap, hunter, dispatch.PhaseHunterShot, nil)
		if err != nil {
			return err
		}
		r.settle(eng, hunterID, res)

		_, thinking := splitSpeech(res)
		target := dispatch.NormalizeTarget(snap, res.Target(), dispatch.TargetOptions{})
		if target == "" || target == hunterID {
			eng.DeclineRetaliation(hunterID)
			say(eng, snap.Round.Round, eng.Phase(), hunterID, game.VisibilityPublic, "I hold my fire.", thinking, nil)
			continue
		}
		if err := eng.SubmitRetaliationShot(hunterID, target); err != nil {
			r.logger.WarnContext(ctx, "retaliation rejected", "seat", hunterID, "target", target, "error", err)
			eng.DeclineRetaliation(hunterID)
			continue
		}
		say(eng, snap.Round.Round, eng.Phase(), hunterID, game.VisibilityPublic,
			fmt.Sprintf("I shoot %s.", snap.NameOf(target)), thinking, nil)
	}
	return nil
}
