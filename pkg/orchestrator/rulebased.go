package orchestrator

import (
	"lycan-hq/arbiter/pkg/dispatch"
)

// RuleBased drives a game with seat backends only. Phases carry no
// narration; the engine's own audit entries are the only announcements.
//
// # Thread Safety
//
// A RuleBased may drive several games, each from its own goroutine. One
// game must not be driven from two goroutines.
type RuleBased struct {
	*runner
}

// NewRuleBased creates a rule-based orchestrator.
func NewRuleBased(d *dispatch.Dispatcher, opts ...Option) *RuleBased {
	return &RuleBased{runner: newRunner(d, "orchestrator", opts)}
}

var _ Orchestrator = (*RuleBased)(nil)
