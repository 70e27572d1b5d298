package config

import (
	"fmt"

	"lycan-hq/arbiter/pkg/game"
)

// Setup resolves the game section into a table setup. The built-in
// template for PlayerCount is the base; a configured distribution replaces
// its role counts. Setup does not validate ratios, see game.Setup.Validate.
func (g GameConfig) Setup() (game.Setup, error) {
	setup, err := game.Template(g.PlayerCount)
	if err != nil {
		setup = game.Setup{
			PlayerCount: g.PlayerCount,
			Rules:       game.DefaultRules(),
		}
	}

	if len(g.Distribution) > 0 {
		dist := make(map[game.Role]int, len(g.Distribution))
		for name, n := range g.Distribution {
			role, ok := game.ParseRole(name)
			if !ok {
				return game.Setup{}, fmt.Errorf("unknown role %q", name)
			}
			dist[role] += n
		}
		setup.Distribution = dist
	} else if err != nil {
		return game.Setup{}, err
	}

	if len(g.NightOrder) > 0 {
		order := make([]game.Role, 0, len(g.NightOrder))
		for _, name := range g.NightOrder {
			role, ok := game.ParseRole(name)
			if !ok {
				return game.Setup{}, fmt.Errorf("unknown night role %q", name)
			}
			order = append(order, role)
		}
		setup.NightOrder = order
	}

	rules := game.DefaultRules()
	rules.GuardNoConsecutive = BoolValue(g.Rules.GuardNoConsecutive, rules.GuardNoConsecutive)
	rules.WitchSelfSaveFirstNightOnly = BoolValue(g.Rules.WitchSelfSaveFirstNightOnly, rules.WitchSelfSaveFirstNightOnly)
	rules.WitchAntidoteOnlyUnprotected = BoolValue(g.Rules.WitchAntidoteOnlyUnprotected, rules.WitchAntidoteOnlyUnprotected)
	rules.HunterNoShotWhenPoisoned = BoolValue(g.Rules.HunterNoShotWhenPoisoned, rules.HunterNoShotWhenPoisoned)
	rules.VoteTieNoExile = BoolValue(g.Rules.VoteTieNoExile, rules.VoteTieNoExile)
	rules.FoolRevealImmuneOnce = BoolValue(g.Rules.FoolRevealImmuneOnce, rules.FoolRevealImmuneOnce)
	setup.Rules = rules

	if g.NightActionTimeout > 0 {
		setup.NightActionTimeout = g.NightActionTimeout
	}
	if g.DayVoteTimeout > 0 {
		setup.DayVoteTimeout = g.DayVoteTimeout
	}
	return setup, nil
}

// IsCustom reports whether the distribution differs from the built-in
// template for the player count.
func (g GameConfig) IsCustom() bool {
	if len(g.Distribution) == 0 {
		return false
	}
	tmpl, err := game.Template(g.PlayerCount)
	if err != nil {
		return true
	}
	counts := make(map[game.Role]int, len(g.Distribution))
	for name, n := range g.Distribution {
		role, ok := game.ParseRole(name)
		if !ok {
			return true
		}
		counts[role] += n
	}
	for _, role := range game.AllRoles {
		if counts[role] != tmpl.Distribution[role] {
			return true
		}
	}
	return false
}
