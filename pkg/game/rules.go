package game

import (
	"fmt"
	"slices"
	"time"
)

const (
	// MinPlayers and MaxPlayers bound the supported table sizes.
	MinPlayers = 8
	MaxPlayers = 12

	// MinWolfRatio and MaxWolfRatio bound the share of wolves at the table.
	MinWolfRatio = 0.15
	MaxWolfRatio = 0.40

	// MaxSpecialRatio caps the share of special roles.
	MaxSpecialRatio = 0.5

	DefaultNightActionTimeout = 60 * time.Second
	DefaultDayVoteTimeout     = 60 * time.Second
)

// DefaultNightOrder is the night sub-phase order used by the built-in templates.
var DefaultNightOrder = []Role{RoleWerewolf, RoleGuard, RoleWitch, RoleSeer}

// RuleFlags toggles the optional house rules.
type RuleFlags struct {
	// GuardNoConsecutive forbids protecting the same seat two nights running.
	GuardNoConsecutive bool

	// WitchSelfSaveFirstNightOnly restricts the witch saving herself to round 1.
	WitchSelfSaveFirstNightOnly bool

	// WitchAntidoteOnlyUnprotected forbids the antidote on an already protected target.
	WitchAntidoteOnlyUnprotected bool

	// HunterNoShotWhenPoisoned disables retaliation for a poisoned hunter.
	HunterNoShotWhenPoisoned bool

	// VoteTieNoExile makes a tied day vote exile nobody. When false a random
	// tied leader is exiled.
	VoteTieNoExile bool

	// FoolRevealImmuneOnce lets an exiled fool survive once and lose the vote.
	FoolRevealImmuneOnce bool
}

// DefaultRules returns the standard rule set with every flag on.
func DefaultRules() RuleFlags {
	return RuleFlags{
		GuardNoConsecutive:           true,
		WitchSelfSaveFirstNightOnly:  true,
		WitchAntidoteOnlyUnprotected: true,
		HunterNoShotWhenPoisoned:     true,
		VoteTieNoExile:               true,
		FoolRevealImmuneOnce:         true,
	}
}

// Setup is the validated table configuration for one game.
type Setup struct {
	PlayerCount  int
	Distribution map[Role]int
	NightOrder   []Role
	Rules        RuleFlags

	NightActionTimeout time.Duration
	DayVoteTimeout     time.Duration
}

var templates = map[int]map[Role]int{
	8:  {RoleWerewolf: 2, RoleVillager: 3, RoleSeer: 1, RoleWitch: 1, RoleHunter: 1},
	9:  {RoleWerewolf: 3, RoleVillager: 3, RoleSeer: 1, RoleWitch: 1, RoleHunter: 1},
	10: {RoleWerewolf: 3, RoleVillager: 3, RoleSeer: 1, RoleWitch: 1, RoleHunter: 1, RoleGuard: 1},
	11: {RoleWerewolf: 3, RoleVillager: 4, RoleSeer: 1, RoleWitch: 1, RoleHunter: 1, RoleGuard: 1},
	12: {RoleWerewolf: 4, RoleVillager: 3, RoleSeer: 1, RoleWitch: 1, RoleHunter: 1, RoleGuard: 1, RoleFool: 1},
}

// Template returns the built-in setup for a table of n players.
func Template(n int) (Setup, error) {
	dist, ok := templates[n]
	if !ok {
		return Setup{}, invalid(KindInvalidSetup, "", "no role template for %d players", n)
	}
	return Setup{
		PlayerCount:        n,
		Distribution:       cloneMap(dist),
		NightOrder:         slices.Clone(DefaultNightOrder),
		Rules:              DefaultRules(),
		NightActionTimeout: DefaultNightActionTimeout,
		DayVoteTimeout:     DefaultDayVoteTimeout,
	}, nil
}

// Validate checks the table composition and returns non-fatal warnings.
func (s Setup) Validate() ([]string, error) {
	if s.PlayerCount < MinPlayers || s.PlayerCount > MaxPlayers {
		return nil, invalid(KindInvalidSetup, "", "player count must be between %d and %d, got %d", MinPlayers, MaxPlayers, s.PlayerCount)
	}

	total, specials := 0, 0
	for role, n := range s.Distribution {
		if n < 0 {
			return nil, invalid(KindInvalidSetup, "", "negative count for role %s", role)
		}
		total += n
		if role.Special() {
			specials += n
		}
	}
	if total != s.PlayerCount {
		return nil, invalid(KindInvalidSetup, "", "role sum mismatch: expected %d, got %d", s.PlayerCount, total)
	}

	wolves := s.Distribution[RoleWerewolf]
	if wolves < 1 {
		return nil, invalid(KindInvalidSetup, "", "at least one werewolf is required")
	}
	if float64(specials) > float64(s.PlayerCount)*MaxSpecialRatio {
		return nil, invalid(KindInvalidSetup, "", "special roles must be at most %.0f%% of players", MaxSpecialRatio*100)
	}
	ratio := float64(wolves) / float64(s.PlayerCount)
	if ratio < MinWolfRatio || ratio > MaxWolfRatio {
		return nil, invalid(KindInvalidSetup, "", "werewolf ratio %.2f outside [%.2f, %.2f]", ratio, MinWolfRatio, MaxWolfRatio)
	}

	for _, role := range s.NightOrder {
		if _, ok := role.NightPhase(); !ok {
			return nil, invalid(KindInvalidSetup, "", "role %q cannot act at night", role)
		}
	}

	var warnings []string
	if s.Distribution[RoleFool] > 1 {
		warnings = append(warnings, "fool count > 1 may heavily bias the village side")
	}
	if wolves == s.Distribution[RoleVillager] {
		warnings = append(warnings, "wolf and villager counts are equal; the game may end quickly")
	}
	return warnings, nil
}

// RolePool expands the distribution into one role per seat in canonical
// role order.
func (s Setup) RolePool() []Role {
	pool := make([]Role, 0, s.PlayerCount)
	for _, role := range AllRoles {
		for i := 0; i < s.Distribution[role]; i++ {
			pool = append(pool, role)
		}
	}
	return pool
}

// NightPhases returns the night order filtered to roles in the distribution.
func (s Setup) NightPhases() []Phase {
	var phases []Phase
	for _, role := range s.NightOrder {
		if s.Distribution[role] == 0 {
			continue
		}
		phase, ok := role.NightPhase()
		if !ok || slices.Contains(phases, phase) {
			continue
		}
		phases = append(phases, phase)
	}
	return phases
}

// String summarizes the distribution for logs.
func (s Setup) String() string {
	return fmt.Sprintf("%d players %v night=%v", s.PlayerCount, s.Distribution, s.NightOrder)
}
