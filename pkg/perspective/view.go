package perspective

import (
	"fmt"
	"time"

	"lycan-hq/arbiter/pkg/game"
)

// SeatRef names a seat by id and display name.
type SeatRef struct {
	ID   string `json:"player_id"`
	Name string `json:"nickname"`
}

// Capability lists the one-shot abilities still available to the viewer.
type Capability struct {
	CanUseAntidote bool `json:"can_use_antidote"`
	CanUsePoison   bool `json:"can_use_poison"`
	CanRetaliate   bool `json:"can_hunter_shoot"`
}

// VoteRow is one public vote or vote result.
type VoteRow struct {
	Round  int            `json:"round"`
	Kind   game.EventKind `json:"event_type"`
	Actor  string         `json:"actor"`
	Target string         `json:"target"`
	Time   time.Time      `json:"ts"`
}

// InspectionView is a seer result as shown to the seer.
type InspectionView struct {
	Round    int    `json:"round"`
	TargetID string `json:"target_id"`
	Target   string `json:"target"`
	IsWolf   bool   `json:"is_wolf"`
}

// RoundHighlight summarizes the memorable lines of one round.
type RoundHighlight struct {
	Round int      `json:"round"`
	Lines []string `json:"lines"`
}

// View is the role-scoped, leak-free state handed to one seat for one
// decision.
type View struct {
	RoomID     string     `json:"room_id"`
	Round      int        `json:"round_no"`
	Phase      game.Phase `json:"phase"`
	PlayerID   string     `json:"player_id"`
	PlayerName string     `json:"player_name"`
	Role       game.Role  `json:"role"`

	AlivePlayers     []string  `json:"alive_players"`
	DeadPlayers      []string  `json:"dead_players"`
	AlivePlayerIDs   []string  `json:"alive_player_ids"`
	DeadPlayerIDs    []string  `json:"dead_player_ids"`
	TargetCandidates []SeatRef `json:"target_candidates"`

	PublicDeaths  map[string]game.DeathCause `json:"public_deaths_this_round"`
	PublicVoteLog []VoteRow                  `json:"public_vote_log"`

	IdentityHint string     `json:"your_identity_hint"`
	Capability   Capability `json:"role_capability"`

	WolfTeam        []SeatRef        `json:"wolf_team,omitempty"`
	WolfTarget      *SeatRef         `json:"wolf_target,omitempty"`
	SeerResult      *InspectionView  `json:"seer_result,omitempty"`
	SeerHistory     []InspectionView `json:"seer_history,omitempty"`
	LastGuardTarget *SeatRef         `json:"last_guard_target,omitempty"`

	Memory     []string         `json:"memory"`
	Highlights []RoundHighlight `json:"highlights"`

	// Extra carries orchestrator-supplied context such as judge narration
	// or the discussion so far.
	Extra map[string]any `json:"extra,omitempty"`
}

// Candidate reports whether id is among the viewer's target candidates.
func (v View) Candidate(id string) bool {
	for _, c := range v.TargetCandidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// With returns a copy of v carrying an extra context value.
func (v View) With(key string, value any) View {
	extra := make(map[string]any, len(v.Extra)+1)
	for k, val := range v.Extra {
		extra[k] = val
	}
	extra[key] = value
	v.Extra = extra
	return v
}

var identityHints = map[game.Role]string{
	game.RoleWerewolf: "Each night you choose a victim together with your wolf teammates. Hide your identity during the day.",
	game.RoleVillager: "You are a plain villager. Find the wolves through discussion and votes.",
	game.RoleSeer:     "Each night you may inspect one player and learn whether they are a wolf.",
	game.RoleWitch:    "You hold one antidote and one poison, each usable once.",
	game.RoleHunter:   "When killed by wolves or exiled you may shoot one player (not when poisoned).",
	game.RoleGuard:    "Each night you protect one player, never the same player two nights running.",
	game.RoleFool:     "If exiled by vote you reveal yourself and survive once, but lose your vote.",
}

// IdentityHint returns the short role briefing shown to a seat.
func IdentityHint(role game.Role) string {
	if hint, ok := identityHints[role]; ok {
		return hint
	}
	return "Reason carefully and follow the rules."
}

func ref(snap game.Snapshot, id string) *SeatRef {
	if id == "" {
		return nil
	}
	return &SeatRef{ID: id, Name: snap.NameOf(id)}
}

func inspectionView(snap game.Snapshot, in game.Inspection) InspectionView {
	return InspectionView{Round: in.Round, TargetID: in.Target, Target: snap.NameOf(in.Target), IsWolf: in.IsWolf}
}

func (iv InspectionView) String() string {
	verdict := "good"
	if iv.IsWolf {
		verdict = "wolf"
	}
	return fmt.Sprintf("%s is %s", iv.Target, verdict)
}
