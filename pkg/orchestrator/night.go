package orchestrator

import (
	"context"
	"fmt"
	"strconv"

	"lycan-hq/arbiter/pkg/consensus"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
)

// runWolves runs the wolf discussion and forces every wolf's declaration to
// the agreed target.
func (r *runner) runWolves(ctx context.Context, eng *game.Engine) error {
	narration := r.narrate(ctx, eng, game.PhaseNightWolf)

	snap := eng.Snapshot()
	wolves := snap.LivingWithRole(game.RoleWerewolf)
	if len(wolves) == 0 {
		return nil
	}
	team := make([]string, 0, len(wolves))
	for _, w := range wolves {
		team = append(team, w.ID)
	}
	var legal []string
	for _, s := range snap.Living() {
		if s.Role != game.RoleWerewolf {
			legal = append(legal, s.ID)
		}
	}

	round := snap.Round.Round
	ask := consensus.AskerFunc(func(ctx context.Context, seatID string, discussion int, prior []consensus.Proposal) (consensus.Proposal, error) {
		snap := eng.Snapshot()
		seat, _ := snap.Seat(seatID)

		var mates []string
		for _, w := range wolves {
			if w.ID != seatID {
				mates = append(mates, w.DisplayName())
			}
		}
		res, err := r.ask(ctx, snap, seat, dispatch.PhaseWolfDiscuss, map[string]any{
			"god_narration":          narration,
			"wolf_teammates":         mates,
			"wolf_discussion_round":  discussion,
			"wolf_discussion_so_far": prior,
		})
		if err != nil {
			return consensus.Proposal{}, err
		}
		r.settle(eng, seatID, res)

		excl := dispatch.TargetOptions{ExcludeWolves: true}
		target := dispatch.NormalizeTarget(snap, res.Target(), excl)
		if target == "" {
			target = dispatch.NormalizeTarget(snap, res.Speech, excl)
		}
		if target == "" {
			target = game.Pick(game.NewRand(snap.RoomID, round, "wolf_proposal|"+seatID+"|"+strconv.Itoa(discussion)), legal)
		}

		speech, thinking := splitSpeech(res)
		if speech == "" {
			speech = fmt.Sprintf("I propose %s.", snap.NameOf(target))
		}
		say(eng, round, game.PhaseNightWolf, seatID, game.VisibilityTeam, speech, thinking, map[string]string{
			"discussion_round": strconv.Itoa(discussion),
			"target":           target,
		})
		return consensus.Proposal{
			Name:     seat.DisplayName(),
			Target:   target,
			Speech:   speech,
			Fallback: res.Fallback,
		}, nil
	})

	outcome, err := consensus.Run(ctx, consensus.Params{
		RoomID:    snap.RoomID,
		Round:     round,
		Team:      team,
		Legal:     legal,
		MaxRounds: r.cfg.ConsensusRounds,
		Phase:     string(dispatch.PhaseWolfDiscuss),
	}, ask)
	if err != nil {
		return err
	}
	if outcome.Target == "" {
		return nil
	}

	name := snap.NameOf(outcome.Target)
	if outcome.Reached {
		judgeLine(eng, game.PhaseNightWolf, game.VisibilityTeam,
			fmt.Sprintf("The wolves agreed on %s in discussion round %d.", name, outcome.Round))
	} else {
		judgeLine(eng, game.PhaseNightWolf, game.VisibilityTeam,
			fmt.Sprintf("The wolves could not agree; %s was drawn at random.", name))
	}
	r.logger.InfoContext(ctx, "wolf discussion settled",
		"room", snap.RoomID,
		"round", round,
		"target", outcome.Target,
		"reached", outcome.Reached,
		"proposals", len(outcome.Proposals),
	)

	for _, id := range team {
		if err := eng.SubmitNightAction(id, outcome.Target, false); err != nil {
			r.logger.WarnContext(ctx, "dropped wolf declaration", "seat", id, "target", outcome.Target, "error", err)
		}
	}
	return nil
}

// runGuard asks the guard for a protection target.
func (r *runner) runGuard(ctx context.Context, eng *game.Engine) error {
	r.narrate(ctx, eng, game.PhaseNightGuard)

	snap := eng.Snapshot()
	guards := snap.LivingWithRole(game.RoleGuard)
	if len(guards) == 0 {
		return nil
	}
	guard := guards[0]

	res, err := r.ask(ctx, snap, guard, game.PhaseNightGuard, nil)
	if err != nil {
		return err
	}
	r.settle(eng, guard.ID, res)

	target := dispatch.NormalizeTarget(snap, res.Target(), dispatch.TargetOptions{})
	if target == "" {
		target = randomTarget(snap, "guard|fill", "", guard.LastGuardTarget)
	}
	if err := eng.SubmitNightAction(guard.ID, target, false); err != nil {
		r.logger.InfoContext(ctx, "guard target rejected, picking another", "seat", guard.ID, "target", target, "error", err)
		target = randomTarget(snap, "guard|retry", "", guard.LastGuardTarget, target)
		if err := eng.SubmitNightAction(guard.ID, target, false); err != nil {
			r.logger.WarnContext(ctx, "dropped guard declaration", "seat", guard.ID, "target", target, "error", err)
			return nil
		}
	}

	_, thinking := splitSpeech(res)
	say(eng, snap.Round.Round, game.PhaseNightGuard, guard.ID, game.VisibilityPrivate,
		fmt.Sprintf("I protected %s.", snap.NameOf(target)), thinking, nil)
	return nil
}

// runWitch asks the witch whether to save the attacked seat and whom to
// poison.
func (r *runner) runWitch(ctx context.Context, eng *game.Engine) error {
	r.narrate(ctx, eng, game.PhaseNightWitch)

	snap := eng.Snapshot()
	witches := snap.LivingWithRole(game.RoleWitch)
	if len(witches) == 0 {
		return nil
	}
	witch := witches[0]

	res, err := r.ask(ctx, snap, witch, game.PhaseNightWitch, nil)
	if err != nil {
		return err
	}
	r.settle(eng, witch.ID, res)

	save := res.Action.Save && snap.CanSave(witch.ID)
	poison := dispatch.NormalizeTarget(snap, res.Target(), dispatch.TargetOptions{})
	switch {
	case poison == witch.ID:
		poison = ""
	case save && poison == snap.Round.WolfTarget:
		// The target names the seat being saved.
		poison = ""
	case witch.PoisonUsed:
		poison = ""
	}

	err = eng.SubmitNightAction(witch.ID, poison, save)
	if err != nil && save && poison != "" {
		// Keep whichever half the engine did not object to.
		r.logger.WarnContext(ctx, "witch declaration partly refused", "seat", witch.ID, "error", err)
		if game.SaveRefused(err) {
			save = false
		} else {
			poison = ""
		}
		err = eng.SubmitNightAction(witch.ID, poison, save)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "dropped witch declaration", "seat", witch.ID, "save", save, "poison", poison, "error", err)
		return nil
	}

	antidote, potion := "no", "no"
	if save {
		antidote = "yes"
	}
	if poison != "" {
		potion = "yes, on " + snap.NameOf(poison)
	}
	_, thinking := splitSpeech(res)
	say(eng, snap.Round.Round, game.PhaseNightWitch, witch.ID, game.VisibilityPrivate,
		fmt.Sprintf("Antidote used: %s. Poison used: %s.", antidote, potion), thinking, nil)
	return nil
}

// runSeer asks the seer whom to inspect.
func (r *runner) runSeer(ctx context.Context, eng *game.Engine) error {
	r.narrate(ctx, eng, game.PhaseNightSeer)

	snap := eng.Snapshot()
	seers := snap.LivingWithRole(game.RoleSeer)
	if len(seers) == 0 {
		return nil
	}
	seer := seers[0]

	res, err := r.ask(ctx, snap, seer, game.PhaseNightSeer, nil)
	if err != nil {
		return err
	}
	r.settle(eng, seer.ID, res)

	target := dispatch.NormalizeTarget(snap, res.Target(), dispatch.TargetOptions{})
	if target == "" || target == seer.ID {
		target = randomTarget(snap, "seer|fill", seer.ID, seer.LastInspectTarget)
	}
	if err := eng.SubmitNightAction(seer.ID, target, false); err != nil {
		r.logger.InfoContext(ctx, "seer target rejected, picking another", "seat", seer.ID, "target", target, "error", err)
		target = randomTarget(snap, "seer|retry", seer.ID, seer.LastInspectTarget, target)
		if err := eng.SubmitNightAction(seer.ID, target, false); err != nil {
			r.logger.WarnContext(ctx, "dropped seer declaration", "seat", seer.ID, "target", target, "error", err)
			return nil
		}
	}

	_, thinking := splitSpeech(res)
	say(eng, snap.Round.Round, game.PhaseNightSeer, seer.ID, game.VisibilityPrivate,
		fmt.Sprintf("I inspected %s.", snap.NameOf(target)), thinking, nil)
	return nil
}
