package perspective

import (
	"fmt"

	"lycan-hq/arbiter/pkg/game"
)

const (
	DefaultVoteLogLimit       = 50
	DefaultMemoryLimit        = 40
	DefaultHighlightRounds    = 3
	DefaultHighlightsPerRound = 5
)

// Options bounds the size of the derived view.
type Options struct {
	// VoteLogLimit caps the public vote log (most recent rows kept)
	VoteLogLimit int

	// MemoryLimit caps the memory digest (most recent lines kept)
	MemoryLimit int

	// HighlightRounds caps the number of per-round summaries
	HighlightRounds int

	// HighlightsPerRound caps the lines kept in each summary
	HighlightsPerRound int
}

// DefaultOptions returns the standard view limits.
func DefaultOptions() Options {
	return Options{
		VoteLogLimit:       DefaultVoteLogLimit,
		MemoryLimit:        DefaultMemoryLimit,
		HighlightRounds:    DefaultHighlightRounds,
		HighlightsPerRound: DefaultHighlightsPerRound,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.VoteLogLimit <= 0 {
		o.VoteLogLimit = d.VoteLogLimit
	}
	if o.MemoryLimit <= 0 {
		o.MemoryLimit = d.MemoryLimit
	}
	if o.HighlightRounds <= 0 {
		o.HighlightRounds = d.HighlightRounds
	}
	if o.HighlightsPerRound <= 0 {
		o.HighlightsPerRound = d.HighlightsPerRound
	}
	return o
}

// Build derives the view of snap for viewer using DefaultOptions.
func Build(snap game.Snapshot, viewer string) (View, error) {
	return DefaultOptions().Build(snap, viewer)
}

// Build derives the view of snap for viewer. It is a pure function of its
// inputs and never mutates snap.
func (o Options) Build(snap game.Snapshot, viewer string) (View, error) {
	o = o.withDefaults()

	me, ok := snap.Seat(viewer)
	if !ok {
		return View{}, fmt.Errorf("unknown viewer %q", viewer)
	}

	v := View{
		RoomID:       snap.RoomID,
		Round:        snap.Round.Round,
		Phase:        snap.Phase,
		PlayerID:     me.ID,
		PlayerName:   me.DisplayName(),
		Role:         me.Role,
		PublicDeaths: make(map[string]game.DeathCause, len(snap.Round.Deaths)),
		IdentityHint: IdentityHint(me.Role),
		Capability: Capability{
			CanUseAntidote: me.Role == game.RoleWitch && !me.AntidoteUsed && (snap.Round.WolfTarget == "" || snap.CanSave(me.ID)),
			CanUsePoison:   me.Role == game.RoleWitch && !me.PoisonUsed,
			CanRetaliate:   me.Role == game.RoleHunter && me.RetaliationEnabled,
		},
	}

	for _, s := range snap.Seats {
		if s.Alive {
			v.AlivePlayers = append(v.AlivePlayers, s.DisplayName())
			v.AlivePlayerIDs = append(v.AlivePlayerIDs, s.ID)
			if s.ID != me.ID {
				v.TargetCandidates = append(v.TargetCandidates, SeatRef{ID: s.ID, Name: s.DisplayName()})
			}
		} else {
			v.DeadPlayers = append(v.DeadPlayers, s.DisplayName())
			v.DeadPlayerIDs = append(v.DeadPlayerIDs, s.ID)
		}
	}
	for id, cause := range snap.Round.Deaths {
		v.PublicDeaths[snap.NameOf(id)] = cause
	}
	v.PublicVoteLog = voteLog(snap, o.VoteLogLimit)

	switch me.Role {
	case game.RoleWerewolf:
		for _, s := range snap.LivingWithRole(game.RoleWerewolf) {
			if s.ID != me.ID {
				v.WolfTeam = append(v.WolfTeam, SeatRef{ID: s.ID, Name: s.DisplayName()})
			}
		}
		if v.WolfTeam == nil {
			v.WolfTeam = []SeatRef{}
		}
	case game.RoleWitch:
		if snap.Phase == game.PhaseNightWitch {
			v.WolfTarget = ref(snap, snap.Round.WolfTarget)
		}
	case game.RoleSeer:
		for _, in := range me.Inspections {
			v.SeerHistory = append(v.SeerHistory, inspectionView(snap, in))
		}
		if n := len(v.SeerHistory); n > 0 {
			latest := v.SeerHistory[n-1]
			v.SeerResult = &latest
		}
	case game.RoleGuard:
		v.LastGuardTarget = ref(snap, me.LastGuardTarget)
	}

	v.Memory = Digest(snap, me, o.MemoryLimit)
	v.Highlights = Highlights(snap, me, o.HighlightRounds, o.HighlightsPerRound)
	return v, nil
}

func voteLog(snap game.Snapshot, limit int) []VoteRow {
	rows := make([]VoteRow, 0, len(snap.VoteLog))
	for _, r := range snap.VoteLog {
		target := "none"
		if r.Target != "" {
			target = snap.NameOf(r.Target)
		}
		actor := r.Actor
		if actor != "system" {
			actor = snap.NameOf(r.Actor)
		}
		rows = append(rows, VoteRow{Round: r.Round, Kind: r.Kind, Actor: actor, Target: target, Time: r.Time})
	}
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows
}
