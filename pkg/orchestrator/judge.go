package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/providers"
)

// RecentAuditWindow is the number of audit entries shown to the judge.
const RecentAuditWindow = 20

// Judge drives a game like RuleBased and adds a judge backend that narrates
// every phase. Narration the backend cannot produce, or that leaks results
// during the vote, is replaced by fixed text. day_announce is settled
// without the backend.
//
// # Thread Safety
//
// Same as RuleBased.
type Judge struct {
	*runner
}

// NewJudge creates a judge orchestrator. A nil provider narrates with the
// fixed texts only.
func NewJudge(d *dispatch.Dispatcher, provider providers.Provider, opts ...Option) *Judge {
	r := newRunner(d, "judge", opts)
	r.narrator = &judgeNarrator{
		provider: provider,
		system:   r.instructions.JudgeSystem,
		logger:   r.logger,
	}
	return &Judge{runner: r}
}

var _ Orchestrator = (*Judge)(nil)

type judgeNarrator struct {
	provider providers.Provider
	system   string
	logger   *slog.Logger
}

func (n *judgeNarrator) narrate(ctx context.Context, snap game.Snapshot, phase game.Phase, instruction string) string {
	if n.provider == nil {
		return FallbackNarration(phase)
	}
	resp, err := n.provider.SendCompletion(ctx, &providers.CompletionRequest{
		System: n.system,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: JudgePrompt(snap, phase, instruction)},
		},
	})
	if err != nil {
		n.logger.Warn("judge narration failed, using fallback",
			"room", snap.RoomID,
			"phase", phase,
			"error", err,
		)
		return FallbackNarration(phase)
	}

	text := CoerceNarration(ParseNarration(resp.Content), phase)
	return SanitizeNarration(snap, phase, text, instruction)
}

func (n *judgeNarrator) announce(snap game.Snapshot) (string, string) {
	return Settlement(snap)
}

// JudgePrompt renders the game state for the judge backend. The judge sees
// every role.
func JudgePrompt(snap game.Snapshot, phase game.Phase, instruction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "phase: %s\n", phase)
	fmt.Fprintf(&b, "round: %d\n", snap.Round.Round)

	var alive, dead, roles []string
	for _, s := range snap.Seats {
		label := fmt.Sprintf("%s(%s)", s.DisplayName(), s.ID)
		if s.Alive {
			alive = append(alive, label)
		} else {
			dead = append(dead, label)
		}
		roles = append(roles, fmt.Sprintf("%s=%s", s.DisplayName(), s.Role))
	}
	fmt.Fprintf(&b, "alive: %s\n", strings.Join(alive, ", "))
	fmt.Fprintf(&b, "dead: %s\n", strings.Join(dead, ", "))
	fmt.Fprintf(&b, "roles: %s\n", strings.Join(roles, ", "))

	var deaths []string
	for _, s := range snap.Seats {
		if cause, ok := snap.Round.Deaths[s.ID]; ok {
			deaths = append(deaths, fmt.Sprintf("%s(%s)", s.DisplayName(), cause))
		}
	}
	fmt.Fprintf(&b, "deaths this round: %s\n", strings.Join(deaths, ", "))

	b.WriteString("recent events:\n")
	events := snap.Audit
	if len(events) > RecentAuditWindow {
		events = events[len(events)-RecentAuditWindow:]
	}
	for _, e := range events {
		fmt.Fprintf(&b, "- [r%d %s] %s", e.Round, e.Phase, e.Kind)
		if e.Actor != "" && e.Actor != "system" {
			fmt.Fprintf(&b, " by %s", snap.NameOf(e.Actor))
		}
		if e.Target != "" {
			fmt.Fprintf(&b, " on %s", snap.NameOf(e.Target))
		}
		if e.Text != "" {
			fmt.Fprintf(&b, ": %s", e.Text)
		}
		b.WriteByte('\n')
	}

	if instruction != "" {
		fmt.Fprintf(&b, "instruction for players: %s\n", instruction)
	}
	if phase == dispatch.PhaseHunterShot {
		b.WriteString("Announce that the hunter may shoot, without naming a target.\n")
	}
	return b.String()
}
