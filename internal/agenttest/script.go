package agenttest

import (
	"fmt"
	"net/http"
	"slices"

	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/perspective"
)

// Deterministic answers every call with Decide.
func Deterministic(req dispatch.ActRequest, _ int) Reply {
	return Reply{Body: Decide(req)}
}

// Always answers every call with reply.
func Always(reply Reply) Script {
	return func(dispatch.ActRequest, int) Reply { return reply }
}

// Sequence answers the n-th call of a seat with replies[n-1]; calls past the
// end get Decide.
func Sequence(replies ...Reply) Script {
	return func(req dispatch.ActRequest, call int) Reply {
		if call <= len(replies) {
			return replies[call-1]
		}
		return Deterministic(req, call)
	}
}

// Status returns a reply with an error status and a JSON error body.
func Status(code int) Reply {
	return Reply{
		StatusCode: code,
		Body: map[string]any{
			"error": map[string]any{"message": http.StatusText(code), "code": code},
		},
	}
}

// Target returns a Decide-style reply aimed at a fixed target.
func Target(kind, target string) Reply {
	return Reply{Body: answer(kind, target, false, "scripted")}
}

// Decide is the built-in strategy: it always picks the first legal
// candidate of the visible state, so whole games are reproducible.
func Decide(req dispatch.ActRequest) dispatch.ActResponse {
	view := req.VisibleState
	candidates := make([]string, 0, len(view.TargetCandidates))
	for _, c := range view.TargetCandidates {
		candidates = append(candidates, c.ID)
	}
	first := func(skip func(string) bool) string {
		for _, id := range candidates {
			if skip == nil || !skip(id) {
				return id
			}
		}
		return ""
	}

	switch game.Phase(req.Phase) {
	case game.PhaseNightWolf, dispatch.PhaseWolfDiscuss:
		target := first(func(id string) bool {
			return slices.ContainsFunc(view.WolfTeam, func(w perspective.SeatRef) bool { return w.ID == id })
		})
		resp := answer("kill", target, false, "first non-wolf candidate")
		resp.Speech = fmt.Sprintf("I propose %s.", target)
		return resp

	case game.PhaseNightGuard:
		last := ""
		if view.LastGuardTarget != nil {
			last = view.LastGuardTarget.ID
		}
		return answer("guard", first(func(id string) bool { return id == last }), false, "first candidate not guarded last night")

	case game.PhaseNightWitch:
		if view.WolfTarget != nil && view.Capability.CanUseAntidote {
			return answer("save", view.WolfTarget.ID, true, "antidote on the attacked seat")
		}
		return answer("skip", "", false, "keep the poison")

	case game.PhaseNightSeer:
		checked := map[string]bool{}
		for _, h := range view.SeerHistory {
			checked[h.TargetID] = true
		}
		target := first(func(id string) bool { return checked[id] })
		if target == "" {
			target = first(nil)
		}
		return answer("check", target, false, "first unchecked candidate")

	case game.PhaseDayDiscuss:
		resp := answer("speak", "", false, "scripted speech")
		resp.Speech = fmt.Sprintf("%s here. I have doubts about %s.", view.PlayerName, first(nil))
		return resp

	case game.PhaseDayVote:
		return answer("vote", first(nil), false, "first candidate")

	case dispatch.PhaseHunterShot:
		return answer("shoot", first(nil), false, "first candidate")
	}
	return answer("skip", "", false, "nothing to do")
}

func answer(kind, target string, save bool, reasoning string) dispatch.ActResponse {
	resp := dispatch.ActResponse{Action: dispatch.Action{Type: kind, Save: save}, Reasoning: reasoning}
	if target != "" {
		resp.Action.Target = &target
	}
	return resp
}
