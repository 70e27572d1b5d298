package dispatch

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/perspective"
)

// FallbackKey selects the fallback strategy of a dispatch.
type FallbackKey string

const (
	FallbackDefault    FallbackKey = "default"
	FallbackNightWolf  FallbackKey = "night_wolf"
	FallbackNightGuard FallbackKey = "night_guard"
	FallbackNightWitch FallbackKey = "night_witch"
	FallbackNightSeer  FallbackKey = "night_seer"
	FallbackDayVote    FallbackKey = "day_vote"
	FallbackDayDiscuss FallbackKey = "day_discuss"
	FallbackHunterShot FallbackKey = "hunter_shot"
)

// RandomAlive is the template target placeholder replaced by a random
// living seat.
const RandomAlive = "__RANDOM_ALIVE__"

// Template overrides the built-in strategy of one fallback key.
type Template struct {
	Type      string `yaml:"type" json:"type"`
	Target    string `yaml:"target" json:"target"`
	Save      bool   `yaml:"save" json:"save"`
	Reasoning string `yaml:"reasoning" json:"reasoning"`
}

// Policy produces the action taken on behalf of a seat whose backend could
// not answer. It only reads the seat's own View, so a fallback never acts on
// information the seat could not see.
type Policy struct {
	templates map[FallbackKey]Template
}

// NewPolicy creates a fallback policy. templates may be nil.
func NewPolicy(templates map[FallbackKey]Template) *Policy {
	return &Policy{templates: templates}
}

// Action returns the fallback answer for key. All randomness comes from rng.
func (p *Policy) Action(key FallbackKey, view perspective.View, rng *rand.Rand) ActResponse {
	if tpl, ok := p.templates[key]; ok {
		return p.render(tpl, view, rng)
	}

	switch key {
	case FallbackNightWolf:
		team := make([]string, 0, len(view.WolfTeam)+1)
		team = append(team, view.PlayerID)
		for _, w := range view.WolfTeam {
			team = append(team, w.ID)
		}
		candidates := filterAlive(view, func(id string) bool { return !slices.Contains(team, id) })
		return answer("kill", pick(rng, candidates), false, "fallback/wolf_random")

	case FallbackNightGuard:
		last := ""
		if view.LastGuardTarget != nil {
			last = view.LastGuardTarget.ID
		}
		candidates := filterAlive(view, func(id string) bool { return id != last })
		if len(candidates) == 0 {
			candidates = view.AlivePlayerIDs
		}
		return answer("guard", pick(rng, candidates), false, "fallback/guard_random")

	case FallbackNightWitch:
		if view.WolfTarget != nil && view.Capability.CanUseAntidote {
			return answer("save", view.WolfTarget.ID, true, "fallback/witch_save")
		}
		target := ""
		if view.Capability.CanUsePoison {
			target = pick(rng, filterAlive(view, func(id string) bool { return id != view.PlayerID }))
		}
		return answer("poison", target, false, "fallback/witch_skip_or_poison")

	case FallbackNightSeer:
		return answer("check", pick(rng, others(view)), false, "fallback/seer_random")

	case FallbackDayVote:
		return answer("vote", pick(rng, others(view)), false, "fallback/vote_random")

	case FallbackDayDiscuss:
		resp := answer("speak", "", false, fmt.Sprintf("As %s I have little to go on yet; I will listen first.", view.Role))
		resp.Speech = resp.Reasoning
		return resp

	case FallbackHunterShot:
		return answer("shoot", pick(rng, others(view)), false, "fallback/hunter_random")
	}
	return answer("skip", "", false, "fallback/default")
}

func (p *Policy) render(tpl Template, view perspective.View, rng *rand.Rand) ActResponse {
	target := tpl.Target
	if target == RandomAlive {
		target = pick(rng, view.AlivePlayerIDs)
	}
	reasoning := tpl.Reasoning
	if reasoning == "" {
		reasoning = "fallback/template"
	}
	return answer(tpl.Type, target, tpl.Save, reasoning)
}

func answer(kind, target string, save bool, reasoning string) ActResponse {
	resp := ActResponse{Action: Action{Type: kind, Save: save}, Reasoning: reasoning}
	if target != "" {
		resp.Action.Target = &target
	}
	return resp
}

func others(view perspective.View) []string {
	return filterAlive(view, func(id string) bool { return id != view.PlayerID })
}

func filterAlive(view perspective.View, keep func(string) bool) []string {
	var out []string
	for _, id := range view.AlivePlayerIDs {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func pick(rng *rand.Rand, ids []string) string {
	return game.Pick(rng, ids)
}

// FallbackKeyFor maps a dispatch phase to its default fallback key.
func FallbackKeyFor(phase game.Phase) FallbackKey {
	switch phase {
	case game.PhaseNightWolf, PhaseWolfDiscuss:
		return FallbackNightWolf
	case game.PhaseNightGuard:
		return FallbackNightGuard
	case game.PhaseNightWitch:
		return FallbackNightWitch
	case game.PhaseNightSeer:
		return FallbackNightSeer
	case game.PhaseDayVote:
		return FallbackDayVote
	case game.PhaseDayDiscuss:
		return FallbackDayDiscuss
	case PhaseHunterShot:
		return FallbackHunterShot
	}
	return FallbackDefault
}
