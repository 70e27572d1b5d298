package dispatch

import (
	"time"

	"lycan-hq/arbiter/pkg/game"
)

// Phases dispatched outside the engine's own phase set.
const (
	PhaseWolfDiscuss game.Phase = "night_wolf_discuss"
	PhaseHunterShot  game.Phase = "hunter_shot"
)

func isDayDecision(phase game.Phase) bool {
	return phase == game.PhaseDayDiscuss || phase == game.PhaseDayVote
}

// InnerBudget is the time the backend is told it may spend on its own LLM
// call (api_timeout_sec).
func InnerBudget(timeout time.Duration, phase game.Phase) time.Duration {
	if isDayDecision(phase) {
		return max(timeout-time.Second, 20*time.Second)
	}
	return max(timeout-2*time.Second, 15*time.Second)
}

// OuterBudget is the transport timeout for one attempt. It is always
// strictly larger than InnerBudget for the same inputs.
func OuterBudget(timeout time.Duration, phase game.Phase) time.Duration {
	if isDayDecision(phase) {
		return max(timeout+10*time.Second, 35*time.Second)
	}
	return max(timeout+5*time.Second, 25*time.Second)
}
