package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"lycan-hq/arbiter/internal/agenttest"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
)

const testRoom = "room-orch"

func newGame(t *testing.T, n int) *game.Engine {
	t.Helper()
	setup, err := game.Template(n)
	if err != nil {
		t.Fatalf("Template(%d) failed: %v", n, err)
	}
	eng, err := game.NewEngine(testRoom, "p1", setup, game.WithRand(game.NewRand(testRoom, 0, "test")))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	for i := 1; i <= n; i++ {
		if err := eng.AddSeat(fmt.Sprintf("p%d", i), fmt.Sprintf("Cat%d", i)); err != nil {
			t.Fatalf("AddSeat failed: %v", err)
		}
	}
	if err := eng.Start("p1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return eng
}

func newDispatcher(t *testing.T, eng *game.Engine, srv *agenttest.Server) *dispatch.Dispatcher {
	t.Helper()
	registry := dispatch.NewRegistry()
	for _, s := range eng.Snapshot().Seats {
		registry.Register(dispatch.Registration{SeatID: s.ID, Endpoint: srv.URL(), ModelType: "mock"})
	}
	cfg := dispatch.DefaultConfig()
	cfg.Backoff = time.Millisecond
	backend := dispatch.NewHTTPBackend(dispatch.HTTPOptions{})
	t.Cleanup(func() { backend.Close() })
	return dispatch.New(registry, backend, dispatch.WithConfig(cfg))
}

func newServer(t *testing.T, script agenttest.Script) *agenttest.Server {
	t.Helper()
	srv := agenttest.NewServer(script)
	t.Cleanup(srv.Close)
	return srv
}

func seatIDs(eng *game.Engine) []string {
	var ids []string
	for _, s := range eng.Snapshot().Seats {
		ids = append(ids, s.ID)
	}
	return ids
}

func findEntries(eng *game.Engine, keep func(game.AuditEntry) bool) []game.AuditEntry {
	var out []game.AuditEntry
	for _, e := range eng.Snapshot().Audit {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func TestRuleBased_RunToGameOver(t *testing.T) {
	eng := newGame(t, 10)
	srv := newServer(t, nil)
	orch := NewRuleBased(newDispatcher(t, eng, srv))

	if !orch.AllReady(seatIDs(eng)) {
		t.Fatal("Expected all seats ready")
	}

	summary, err := orch.RunToGameOver(context.Background(), eng, 0)
	if err != nil {
		t.Fatalf("RunToGameOver failed: %v", err)
	}
	if !summary.Over {
		t.Fatal("Expected game over")
	}
	if summary.Winner != game.TeamGood && summary.Winner != game.TeamWolf {
		t.Errorf("Expected a winning team, got %q", summary.Winner)
	}
	if summary.Steps == 0 || summary.Rounds == 0 {
		t.Errorf("Expected steps and rounds to be counted, got %+v", summary)
	}
	if summary.Fallbacks != 0 {
		t.Errorf("Expected no fallbacks, got %d", summary.Fallbacks)
	}
	if eng.Phase() != game.PhaseGameOver {
		t.Errorf("Expected phase %s, got %s", game.PhaseGameOver, eng.Phase())
	}
}

func TestRunToGameOver_StepLimit(t *testing.T) {
	eng := newGame(t, 10)
	orch := NewRuleBased(newDispatcher(t, eng, newServer(t, nil)))

	summary, err := orch.RunToGameOver(context.Background(), eng, 1)
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("Expected ErrStepLimit, got %v", err)
	}
	if summary.Steps != 1 || summary.Over {
		t.Errorf("Expected one step and a running game, got %+v", summary)
	}
}

func TestRunSinglePhase_WolvesAgree(t *testing.T) {
	eng := newGame(t, 10)
	orch := NewRuleBased(newDispatcher(t, eng, newServer(t, nil)))

	if eng.Phase() != game.PhaseNightWolf {
		t.Fatalf("Expected first phase %s, got %s", game.PhaseNightWolf, eng.Phase())
	}
	if err := orch.RunSinglePhase(context.Background(), eng); err != nil {
		t.Fatalf("RunSinglePhase failed: %v", err)
	}
	if eng.Phase() != game.PhaseNightGuard {
		t.Errorf("Expected phase %s, got %s", game.PhaseNightGuard, eng.Phase())
	}

	snap := eng.Snapshot()
	target := snap.Round.WolfTarget
	seat, ok := snap.Seat(target)
	if !ok || seat.Role == game.RoleWerewolf {
		t.Fatalf("Expected a non-wolf target, got %q", target)
	}
	wolves := snap.LivingWithRole(game.RoleWerewolf)
	for _, w := range wolves {
		if got := snap.Round.Night.WolfVotes[w.ID]; got != target {
			t.Errorf("Expected wolf %s declaration %s, got %q", w.ID, target, got)
		}
	}

	speeches := findEntries(eng, func(e game.AuditEntry) bool {
		return e.Kind == game.EventSpeech && e.Phase == game.PhaseNightWolf
	})
	if len(speeches) != len(wolves) {
		t.Errorf("Expected %d wolf speeches, got %d", len(wolves), len(speeches))
	}
	for _, s := range speeches {
		if s.Visibility != game.VisibilityTeam {
			t.Errorf("Expected team visibility, got %s", s.Visibility)
		}
	}

	settled := findEntries(eng, func(e game.AuditEntry) bool {
		return e.Kind == game.EventNarration && strings.Contains(e.Text, "agreed on")
	})
	if len(settled) != 1 {
		t.Errorf("Expected one settlement line, got %d", len(settled))
	}
}

func TestRunSinglePhase_DayVoteCollectsEveryVote(t *testing.T) {
	eng := newGame(t, 10)
	orch := NewRuleBased(newDispatcher(t, eng, newServer(t, nil)))
	ctx := context.Background()

	for i := 0; i < 10 && eng.Phase() != game.PhaseDayVote; i++ {
		if err := orch.RunSinglePhase(ctx, eng); err != nil {
			t.Fatalf("RunSinglePhase failed: %v", err)
		}
	}
	if eng.Phase() != game.PhaseDayVote {
		t.Fatalf("Expected to reach %s, got %s", game.PhaseDayVote, eng.Phase())
	}

	round := eng.Round()
	voters := 0
	for _, s := range eng.Snapshot().Living() {
		if s.CanVote {
			voters++
		}
	}
	if err := orch.RunSinglePhase(ctx, eng); err != nil {
		t.Fatalf("RunSinglePhase failed: %v", err)
	}

	votes := 0
	for _, row := range eng.Snapshot().VoteLog {
		if row.Round == round && row.Kind == game.EventVote {
			votes++
		}
	}
	if votes != voters {
		t.Errorf("Expected %d votes, got %d", voters, votes)
	}

	speeches := findEntries(eng, func(e game.AuditEntry) bool {
		return e.Kind == game.EventSpeech && e.Phase == game.PhaseDayVote && e.Round == round
	})
	if len(speeches) != voters {
		t.Errorf("Expected %d vote speeches, got %d", voters, len(speeches))
	}
}

func TestRunSinglePhase_DiscussionOrderAndContext(t *testing.T) {
	eng := newGame(t, 10)
	srv := newServer(t, nil)
	orch := NewRuleBased(newDispatcher(t, eng, srv))
	ctx := context.Background()

	for i := 0; i < 10 && eng.Phase() != game.PhaseDayDiscuss; i++ {
		if err := orch.RunSinglePhase(ctx, eng); err != nil {
			t.Fatalf("RunSinglePhase failed: %v", err)
		}
	}
	living := len(eng.Snapshot().Living())
	before := len(srv.Requests())
	if err := orch.RunSinglePhase(ctx, eng); err != nil {
		t.Fatalf("RunSinglePhase failed: %v", err)
	}

	reqs := srv.Requests()[before:]
	if len(reqs) != living {
		t.Fatalf("Expected %d discussion requests, got %d", living, len(reqs))
	}
	for i := 1; i < len(reqs); i++ {
		if reqs[i-1].PlayerID >= reqs[i].PlayerID {
			t.Errorf("Expected speakers in id order, got %s before %s", reqs[i-1].PlayerID, reqs[i].PlayerID)
		}
	}
	last := reqs[len(reqs)-1].VisibleState.Extra["day_discussion_so_far"]
	so, ok := last.([]any)
	if !ok || len(so) != living-1 {
		t.Errorf("Expected last speaker to see %d statements, got %v", living-1, last)
	}
}

func TestRunToGameOver_BrokenBackendsStillFinish(t *testing.T) {
	eng := newGame(t, 10)
	srv := newServer(t, agenttest.Always(agenttest.Status(400)))
	d := newDispatcher(t, eng, srv)
	orch := NewRuleBased(d)

	summary, err := orch.RunToGameOver(context.Background(), eng, 0)
	if err != nil {
		t.Fatalf("RunToGameOver failed: %v", err)
	}
	if !summary.Over {
		t.Fatal("Expected game over")
	}
	if summary.Fallbacks == 0 {
		t.Error("Expected fallbacks to be counted")
	}

	entrusted := 0
	for _, s := range eng.Snapshot().Seats {
		if s.Entrusted {
			entrusted++
		}
	}
	if entrusted == 0 {
		t.Error("Expected seats with an open circuit to be entrusted")
	}
	if orch.AllReady(seatIDs(eng)) {
		t.Error("Expected AllReady to be false with open circuits")
	}
}

func TestRunSinglePhase_HunterShootsAfterExile(t *testing.T) {
	eng := newGame(t, 10)
	hunters := eng.Snapshot().LivingWithRole(game.RoleHunter)
	if len(hunters) != 1 {
		t.Fatalf("Expected one hunter, got %d", len(hunters))
	}
	hunter := hunters[0].ID

	srv := newServer(t, func(req dispatch.ActRequest, call int) agenttest.Reply {
		if game.Phase(req.Phase) == game.PhaseDayVote && req.PlayerID != hunter {
			return agenttest.Target("vote", hunter)
		}
		return agenttest.Deterministic(req, call)
	})
	orch := NewRuleBased(newDispatcher(t, eng, srv))

	var shots []game.AuditEntry
	for i := 0; i < 20 && !eng.Over() && len(shots) == 0; i++ {
		if err := orch.RunSinglePhase(context.Background(), eng); err != nil {
			t.Fatalf("RunSinglePhase failed: %v", err)
		}
		shots = findEntries(eng, func(e game.AuditEntry) bool {
			return e.Kind == game.EventRetaliation && e.Actor == hunter
		})
	}
	if len(shots) != 1 {
		t.Fatalf("Expected one retaliation entry, got %d", len(shots))
	}
	if shots[0].Target == "" {
		t.Fatal("Expected the hunter to shoot")
	}

	snap := eng.Snapshot()
	victim, _ := snap.Seat(shots[0].Target)
	if victim.Alive || victim.DeathCause != game.CauseHunter {
		t.Errorf("Expected %s shot dead, got alive=%v cause=%q", victim.ID, victim.Alive, victim.DeathCause)
	}
	if _, pending := eng.PendingRetaliation(); pending {
		t.Error("Expected no pending retaliation")
	}
}

func TestRandomTarget(t *testing.T) {
	snap := game.Snapshot{
		RoomID: "r",
		Seats: []game.Seat{
			{ID: "p1", Alive: true},
			{ID: "p2", Alive: true},
			{ID: "p3", Alive: false},
		},
	}

	if got := randomTarget(snap, "salt", "p1"); got != "p2" {
		t.Errorf("Expected p2, got %q", got)
	}
	if got := randomTarget(snap, "salt", "p1", "p2"); got != "p2" {
		t.Errorf("Expected fallback to p2 when everything is excluded, got %q", got)
	}
	a := randomTarget(snap, "salt", "")
	b := randomTarget(snap, "salt", "")
	if a != b {
		t.Errorf("Expected a seeded pick, got %q and %q", a, b)
	}
}

func TestRunSinglePhase_PhaseHook(t *testing.T) {
	eng := newGame(t, 10)
	var seen []game.Phase
	orch := NewRuleBased(newDispatcher(t, eng, newServer(t, nil)),
		WithPhaseHook(func(phase game.Phase, elapsed time.Duration) {
			if elapsed < 0 {
				t.Errorf("Expected non-negative elapsed time, got %v", elapsed)
			}
			seen = append(seen, phase)
		}))

	first := eng.Phase()
	if err := orch.RunSinglePhase(context.Background(), eng); err != nil {
		t.Fatalf("RunSinglePhase failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != first {
		t.Errorf("Expected hook for %s, got %v", first, seen)
	}
}

func TestRunSinglePhase_AnsweringSeatLeavesFallback(t *testing.T) {
	eng := newGame(t, 10)
	wolf := eng.Snapshot().LivingWithRole(game.RoleWerewolf)[0].ID
	if err := eng.MarkOnline(wolf, false); err != nil {
		t.Fatalf("MarkOnline failed: %v", err)
	}

	srv := newServer(t, nil)
	orch := NewRuleBased(newDispatcher(t, eng, srv))
	for i := 0; i < 5 && srv.Calls(wolf) == 0; i++ {
		if err := orch.RunSinglePhase(context.Background(), eng); err != nil {
			t.Fatalf("RunSinglePhase failed: %v", err)
		}
	}
	if srv.Calls(wolf) == 0 {
		t.Fatal("Expected the wolf to be dispatched to")
	}

	seat, _ := eng.Snapshot().Seat(wolf)
	if seat.Entrusted || !seat.Online {
		t.Errorf("Expected %s back online and not entrusted, got online=%v entrusted=%v", wolf, seat.Online, seat.Entrusted)
	}
}

func TestRunSinglePhase_WitchKeepsPoisonWhenSaveRefused(t *testing.T) {
	eng := newGame(t, 10)
	snap := eng.Snapshot()
	witch := snap.LivingWithRole(game.RoleWitch)[0].ID
	wolves := snap.LivingWithRole(game.RoleWerewolf)
	villagers := snap.LivingWithRole(game.RoleVillager)

	attack := func(target string) {
		t.Helper()
		for _, w := range wolves {
			if err := eng.SubmitNightAction(w.ID, target, false); err != nil {
				t.Fatalf("SubmitNightAction(%s) failed: %v", w.ID, err)
			}
		}
		if err := eng.AdvancePhase(); err != nil {
			t.Fatalf("AdvancePhase failed: %v", err)
		}
	}
	advanceTo := func(phase game.Phase) {
		t.Helper()
		for i := 0; i < 10 && eng.Phase() != phase; i++ {
			if err := eng.AdvancePhase(); err != nil {
				t.Fatalf("AdvancePhase failed: %v", err)
			}
		}
		if eng.Phase() != phase {
			t.Fatalf("Expected to reach %s, got %s", phase, eng.Phase())
		}
	}

	// Night one takes a villager, night two goes for the witch herself.
	attack(villagers[0].ID)
	advanceTo(game.PhaseNightWolf)
	if eng.Round() != 2 {
		t.Fatalf("Expected round 2, got %d", eng.Round())
	}
	attack(witch)
	advanceTo(game.PhaseNightWitch)

	poison := villagers[1].ID
	srv := newServer(t, agenttest.Always(agenttest.Reply{
		Body: dispatch.ActResponse{Action: dispatch.Action{Type: "poison", Target: &poison, Save: true}},
	}))
	orch := NewRuleBased(newDispatcher(t, eng, srv))

	if err := orch.RunSinglePhase(context.Background(), eng); err != nil {
		t.Fatalf("RunSinglePhase failed: %v", err)
	}

	after := eng.Snapshot()
	if after.Round.Night.WitchSave {
		t.Error("Expected the self-save on night two to be refused")
	}
	if after.Round.Night.WitchPoison != poison {
		t.Errorf("Expected poison on %s, got %q", poison, after.Round.Night.WitchPoison)
	}
	me, _ := after.Seat(witch)
	if me.AntidoteUsed || !me.PoisonUsed {
		t.Errorf("Expected only the poison to be spent, got antidote=%v poison=%v", me.AntidoteUsed, me.PoisonUsed)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Expected one witch request, got %d", len(reqs))
	}
	if reqs[0].VisibleState.Capability.CanUseAntidote {
		t.Error("Expected the witch view to withhold an antidote the rules forbid")
	}
}
