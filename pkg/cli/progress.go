package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"lycan-hq/arbiter/pkg/game"
)

// PhaseReporter prints one line per finished phase of a running game.
type PhaseReporter struct {
	mu      sync.Mutex
	writer  io.Writer
	started time.Time
	phases  int
}

// NewPhaseReporter creates a reporter writing to w, or to os.Stderr when
// w is nil.
func NewPhaseReporter(w io.Writer) *PhaseReporter {
	if w == nil {
		w = os.Stderr
	}
	return &PhaseReporter{writer: w, started: time.Now()}
}

// Phase records a finished phase. Its signature matches the orchestrator's
// phase hook.
func (p *PhaseReporter) Phase(phase game.Phase, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phases++
	fmt.Fprintf(p.writer, "[%4d] %-20s %8s  (total %s)\n",
		p.phases, phase, elapsed.Round(time.Millisecond), time.Since(p.started).Round(time.Second))
}

// Finish prints the final line of a game.
func (p *PhaseReporter) Finish(winner game.Team, rounds int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if winner == "" {
		fmt.Fprintf(p.writer, "✗ game stopped after %d phases in round %d\n", p.phases, rounds)
		return
	}
	fmt.Fprintf(p.writer, "✓ %s wins after %d rounds (%d phases)\n", winner, rounds, p.phases)
}

// Phases returns the number of reported phases.
func (p *PhaseReporter) Phases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phases
}
