package orchestrator

import (
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
)

// Instructions are the prompt templates sent to seats, keyed by dispatch
// phase. Default is used for phases without an entry.
type Instructions struct {
	Phases  map[game.Phase]string `yaml:"phases"`
	Default string                `yaml:"default"`

	// JudgeSystem is the judge backend's system prompt.
	JudgeSystem string `yaml:"judge_system"`
}

// DefaultInstructions returns the built-in templates.
func DefaultInstructions() Instructions {
	return Instructions{
		Phases: map[game.Phase]string{
			game.PhaseNightWolf: "Night falls. Choose a non-werewolf living player to attack. " +
				`Answer with {"action":{"type":"kill","target":"<player_id>"},"reasoning":"..."}.`,
			dispatch.PhaseWolfDiscuss: "Discuss tonight's target with your teammates. Read wolf_discussion_so_far, " +
				"then propose one non-werewolf living player. Put your proposal in action.target and a short " +
				"message to your team in speech.",
			game.PhaseNightGuard: "Choose a living player to protect tonight. You may not protect the same " +
				`player two nights in a row. Answer with {"action":{"type":"guard","target":"<player_id>"}}.`,
			game.PhaseNightWitch: "wolf_target shows tonight's victim. Set action.save to true to use your " +
				"antidote on them, and set action.target to poison a player, or null to keep the poison.",
			game.PhaseNightSeer: "Choose a living player to inspect. You will learn whether they are a werewolf. " +
				`Answer with {"action":{"type":"check","target":"<player_id>"}}.`,
			game.PhaseDayDiscuss: "It is your turn to speak. Read day_discussion_so_far and put your public " +
				"statement in speech. Put private notes in thinking; nobody else will see them.",
			game.PhaseDayVote: "Vote to exile one living player, or set action.target to null to abstain. " +
				"The result is announced after everyone has voted.",
			dispatch.PhaseHunterShot: "You have died as the hunter. You may shoot one living player now, " +
				"or set action.target to null to hold your fire.",
		},
		Default: "Decide your action for the current phase and answer with a JSON object.",
		JudgeSystem: "You are the judge of a werewolf game. Narrate the current phase for the players " +
			"without revealing any hidden role, night action or vote result. " +
			`Answer with a JSON object {"narration":"..."}.`,
	}
}

// For returns the template for phase.
func (in Instructions) For(phase game.Phase) string {
	if text, ok := in.Phases[phase]; ok && text != "" {
		return text
	}
	return in.Default
}
