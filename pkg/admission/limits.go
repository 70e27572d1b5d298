package admission

import "lycan-hq/arbiter/pkg/game"

// BackendKind is the connection class of a backend, derived from its
// registration.
type BackendKind int

const (
	// KindModel is a backend identified only by its model type.
	KindModel BackendKind = iota
	// KindAPI is a backend that calls a remote API url with a model name.
	KindAPI
	// KindCLI is a backend driven through a local command.
	KindCLI
)

// Default concurrency limits.
const (
	DefaultGlobal       = 8
	DefaultSameProvider = 1
	DefaultDayDiscuss   = 2
	DefaultDayVote      = 1
)

// Limits holds the per-provider concurrency tunables.
type Limits struct {
	// Global caps any single provider key
	Global int `yaml:"global"`

	// SameProvider caps an API provider outside the day phases
	SameProvider int `yaml:"same_provider"`

	// DayDiscuss caps an API provider during day_discuss
	DayDiscuss int `yaml:"day_discuss"`

	// DayVote caps an API provider during day_vote
	DayVote int `yaml:"day_vote"`
}

// DefaultLimits returns the standard concurrency limits.
func DefaultLimits() Limits {
	return Limits{
		Global:       DefaultGlobal,
		SameProvider: DefaultSameProvider,
		DayDiscuss:   DefaultDayDiscuss,
		DayVote:      DefaultDayVote,
	}
}

// Capacity returns the admission capacity for a backend of kind in phase.
// CLI and model-only backends use the global limit; API backends use the
// phase limit, never above the global one. Values below 1 count as 1.
func (l Limits) Capacity(kind BackendKind, phase game.Phase) int {
	global := atLeastOne(l.Global)
	if kind != KindAPI {
		return global
	}
	var phaseLimit int
	switch phase {
	case game.PhaseDayVote:
		phaseLimit = l.DayVote
	case game.PhaseDayDiscuss:
		phaseLimit = l.DayDiscuss
	default:
		phaseLimit = l.SameProvider
	}
	return min(global, atLeastOne(phaseLimit))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
