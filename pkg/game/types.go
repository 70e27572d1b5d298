package game

import (
	"strings"
	"time"
)

// Role is one of the fixed set of roles a seat can hold.
type Role string

const (
	RoleWerewolf Role = "werewolf"
	RoleVillager Role = "villager"
	RoleSeer     Role = "seer"
	RoleWitch    Role = "witch"
	RoleHunter   Role = "hunter"
	RoleGuard    Role = "guard"
	RoleFool     Role = "fool"
)

// AllRoles lists every role in canonical order.
var AllRoles = []Role{RoleWerewolf, RoleVillager, RoleSeer, RoleWitch, RoleHunter, RoleGuard, RoleFool}

// ParseRole resolves a role name, accepting the aliases used in role
// templates ("guardian", "wolf", "wolves", "villagers").
func ParseRole(name string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "werewolf", "wolf", "wolves":
		return RoleWerewolf, true
	case "villager", "villagers":
		return RoleVillager, true
	case "seer":
		return RoleSeer, true
	case "witch":
		return RoleWitch, true
	case "hunter":
		return RoleHunter, true
	case "guard", "guardian":
		return RoleGuard, true
	case "fool":
		return RoleFool, true
	}
	return "", false
}

// Team returns the side the role plays for.
func (r Role) Team() Team {
	if r == RoleWerewolf {
		return TeamWolf
	}
	return TeamGood
}

// TeamAware reports whether the role knows its teammates.
func (r Role) TeamAware() bool {
	return r == RoleWerewolf
}

// Special reports whether the role counts toward the special-role budget.
func (r Role) Special() bool {
	switch r {
	case RoleSeer, RoleWitch, RoleHunter, RoleGuard, RoleFool:
		return true
	}
	return false
}

// NightPhase returns the night sub-phase in which the role acts.
func (r Role) NightPhase() (Phase, bool) {
	switch r {
	case RoleWerewolf:
		return PhaseNightWolf, true
	case RoleGuard:
		return PhaseNightGuard, true
	case RoleWitch:
		return PhaseNightWitch, true
	case RoleSeer:
		return PhaseNightSeer, true
	}
	return "", false
}

// Team identifies one of the two competing sides. The empty Team means
// no winner yet.
type Team string

const (
	TeamNone Team = ""
	TeamWolf Team = "wolf"
	TeamGood Team = "good"
)

// Phase is one step of the night/day cycle.
type Phase string

const (
	PhasePrepare     Phase = "prepare"
	PhaseNightWolf   Phase = "night_wolf"
	PhaseNightGuard  Phase = "night_guard"
	PhaseNightWitch  Phase = "night_witch"
	PhaseNightSeer   Phase = "night_seer"
	PhaseDayAnnounce Phase = "day_announce"
	PhaseDayDiscuss  Phase = "day_discuss"
	PhaseDayVote     Phase = "day_vote"
	PhaseGameOver    Phase = "game_over"
)

// IsNight reports whether p is a night sub-phase.
func (p Phase) IsNight() bool {
	return strings.HasPrefix(string(p), "night_")
}

// IsDay reports whether p is a day phase.
func (p Phase) IsDay() bool {
	return strings.HasPrefix(string(p), "day_")
}

// DeathCause records how a seat died.
type DeathCause string

const (
	CauseWolf   DeathCause = "wolf"
	CausePoison DeathCause = "poison"
	CauseVote   DeathCause = "vote"
	CauseHunter DeathCause = "hunter"
)

// Inspection is one seer check result. It is private to the seer.
type Inspection struct {
	Round  int    `json:"round"`
	Target string `json:"target_id"`
	IsWolf bool   `json:"is_wolf"`
}

// Seat is one participant slot. Seats are never removed, only marked dead.
type Seat struct {
	ID   string `json:"player_id"`
	Name string `json:"nickname"`
	Role Role   `json:"role,omitempty"`

	Alive     bool `json:"alive"`
	Online    bool `json:"online"`
	Entrusted bool `json:"entrusted"`
	CanVote   bool `json:"can_vote"`

	// RevealUsed is set once a fool has used the one-time exile immunity.
	RevealUsed bool `json:"reveal_used"`

	// RetaliationEnabled is set for a hunter killed by wolves or by vote.
	RetaliationEnabled bool `json:"retaliation_enabled"`

	AntidoteUsed bool `json:"antidote_used"`
	PoisonUsed   bool `json:"poison_used"`

	LastGuardTarget   string `json:"last_guard_target,omitempty"`
	LastInspectTarget string `json:"last_inspect_target,omitempty"`

	Inspections []Inspection `json:"inspections,omitempty"`
	DeathCause  DeathCause   `json:"death_cause,omitempty"`
}

// DisplayName returns the nickname, falling back to the id.
func (s Seat) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// NightActions holds the declarations collected during one night.
type NightActions struct {
	WolfVotes   map[string]string `json:"wolf_votes"`
	GuardTarget string            `json:"guard_target,omitempty"`
	WitchSave   bool              `json:"witch_save"`
	WitchPoison string            `json:"witch_poison,omitempty"`
	SeerTarget  string            `json:"seer_target,omitempty"`
}

// RoundContext is the per-round scratch state. Every field is reset when a
// new round begins.
type RoundContext struct {
	Round      int                   `json:"round_no"`
	Phase      Phase                 `json:"phase"`
	Night      NightActions          `json:"night_actions"`
	DayVotes   map[string]string     `json:"day_votes"`
	Protected  map[string]bool       `json:"protected"`
	WolfTarget string                `json:"wolf_target,omitempty"`
	Deaths     map[string]DeathCause `json:"deaths"`
	DeadlineAt time.Time             `json:"deadline_at,omitempty"`
}

func newRoundContext(round int) RoundContext {
	return RoundContext{
		Round:     round,
		Phase:     PhasePrepare,
		Night:     NightActions{WolfVotes: map[string]string{}},
		DayVotes:  map[string]string{},
		Protected: map[string]bool{},
		Deaths:    map[string]DeathCause{},
	}
}

func (rc RoundContext) clone() RoundContext {
	out := rc
	out.Night.WolfVotes = cloneMap(rc.Night.WolfVotes)
	out.DayVotes = cloneMap(rc.DayVotes)
	out.Protected = cloneMap(rc.Protected)
	out.Deaths = cloneMap(rc.Deaths)
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// VoteRecord is one row of the public vote log.
type VoteRecord struct {
	Round  int       `json:"round"`
	Kind   EventKind `json:"event_type"`
	Actor  string    `json:"actor"`
	Target string    `json:"target"`
	Time   time.Time `json:"ts"`
}

// Snapshot is a deep copy of the engine state at one moment.
type Snapshot struct {
	RoomID      string       `json:"room_id"`
	Owner       string       `json:"owner_id"`
	Started     bool         `json:"started"`
	Over        bool         `json:"game_over"`
	Winner      Team         `json:"winner,omitempty"`
	Seats       []Seat       `json:"players"`
	Phase       Phase        `json:"phase"`
	NightPhases []Phase      `json:"night_phases"`
	Round       RoundContext `json:"round_context"`
	Rules       RuleFlags    `json:"rules"`
	Audit       []AuditEntry `json:"audit_log"`
	VoteLog     []VoteRecord `json:"vote_log"`
}

// Seat looks up a seat by id.
func (s Snapshot) Seat(id string) (Seat, bool) {
	for _, seat := range s.Seats {
		if seat.ID == id {
			return seat, true
		}
	}
	return Seat{}, false
}

// Living returns the living seats in join order.
func (s Snapshot) Living() []Seat {
	out := make([]Seat, 0, len(s.Seats))
	for _, seat := range s.Seats {
		if seat.Alive {
			out = append(out, seat)
		}
	}
	return out
}

// LivingWithRole returns the living seats holding role.
func (s Snapshot) LivingWithRole(role Role) []Seat {
	var out []Seat
	for _, seat := range s.Seats {
		if seat.Alive && seat.Role == role {
			out = append(out, seat)
		}
	}
	return out
}

// NameOf returns the display name for id, or "unknown".
func (s Snapshot) NameOf(id string) string {
	if id == "" {
		return "unknown"
	}
	if seat, ok := s.Seat(id); ok {
		return seat.DisplayName()
	}
	return "unknown"
}
