package perspective

import (
	"encoding/json"
	"strings"
	"testing"

	"lycan-hq/arbiter/pkg/game"
)

func testSnapshot(phase game.Phase) game.Snapshot {
	seats := []game.Seat{
		{ID: "w1", Name: "Tom", Role: game.RoleWerewolf, Alive: true, CanVote: true},
		{ID: "w2", Name: "Jerry", Role: game.RoleWerewolf, Alive: true, CanVote: true},
		{ID: "w3", Name: "Spike", Role: game.RoleWerewolf, Alive: false, CanVote: true},
		{ID: "s1", Name: "Luna", Role: game.RoleSeer, Alive: true, CanVote: true,
			Inspections: []game.Inspection{{Round: 1, Target: "w1", IsWolf: true}}},
		{ID: "h1", Name: "Mia", Role: game.RoleWitch, Alive: true, CanVote: true, PoisonUsed: true},
		{ID: "g1", Name: "Max", Role: game.RoleGuard, Alive: true, CanVote: true, LastGuardTarget: "h1"},
		{ID: "v1", Name: "Kit", Role: game.RoleVillager, Alive: true, CanVote: true},
	}
	rc := game.RoundContext{
		Round:      1,
		Phase:      phase,
		WolfTarget: "v1",
		Deaths:     map[string]game.DeathCause{},
	}
	audit := []game.AuditEntry{
		{Seq: 1, Round: 1, Phase: game.PhaseNightWolf, Kind: game.EventNightAction, Actor: "w1", Target: "v1",
			Visibility: game.VisibilityTeam, Fields: map[string]string{"role": "werewolf"}},
		{Seq: 2, Round: 1, Phase: game.PhaseNightWolf, Kind: game.EventNightAction, Actor: "system", Target: "v1",
			Visibility: game.VisibilityTeam},
		{Seq: 3, Round: 1, Phase: game.PhaseNightSeer, Kind: game.EventNightAction, Actor: "s1", Target: "w1",
			Visibility: game.VisibilityPrivate, Fields: map[string]string{"role": "seer"}},
		{Seq: 4, Round: 1, Phase: game.PhaseNightGuard, Kind: game.EventNarration, Actor: "judge",
			Text: "Guard, choose someone to protect.", Visibility: game.VisibilityPublic},
		{Seq: 5, Round: 1, Phase: game.PhaseDayAnnounce, Kind: game.EventDeath, Actor: "system", Target: "w3",
			Visibility: game.VisibilityPublic, Fields: map[string]string{"cause": "poison"}},
		{Seq: 6, Round: 1, Phase: game.PhaseDayDiscuss, Kind: game.EventSpeech, Actor: "v1",
			Text: "I am sure the attack target was me.", Visibility: game.VisibilityPublic},
		{Seq: 7, Round: 1, Phase: game.PhaseDayDiscuss, Kind: game.EventSpeech, Actor: "h1",
			Text: "Let us vote carefully.", Visibility: game.VisibilityPublic},
		{Seq: 8, Round: 1, Phase: game.PhaseDayDiscuss, Kind: game.EventSpeech, Actor: "g1",
			Text: "My API_KEY is hunter2", Visibility: game.VisibilityPublic},
	}
	return game.Snapshot{
		RoomID:  "room",
		Owner:   "w1",
		Started: true,
		Seats:   seats,
		Phase:   phase,
		Round:   rc,
		Audit:   audit,
		VoteLog: []game.VoteRecord{{Round: 1, Kind: game.EventVote, Actor: "v1", Target: "w1"}},
	}
}

func mustBuild(t *testing.T, snap game.Snapshot, viewer string) View {
	t.Helper()
	v, err := Build(snap, viewer)
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", viewer, err)
	}
	return v
}

func TestBuild_TeamRoster(t *testing.T) {
	snap := testSnapshot(game.PhaseDayDiscuss)

	wolf := mustBuild(t, snap, "w1")
	if len(wolf.WolfTeam) != 1 || wolf.WolfTeam[0].ID != "w2" {
		t.Errorf("Expected wolf team [w2], got %+v", wolf.WolfTeam)
	}

	for _, id := range []string{"s1", "h1", "g1", "v1"} {
		v := mustBuild(t, snap, id)
		if v.WolfTeam != nil {
			t.Errorf("Seat %s must not see the wolf team", id)
		}
		raw, _ := json.Marshal(v)
		if strings.Contains(string(raw), "wolf_team") {
			t.Errorf("Seat %s view serialized a wolf_team field", id)
		}
	}
}

func TestBuild_SeerResultIsPrivate(t *testing.T) {
	snap := testSnapshot(game.PhaseDayDiscuss)

	seer := mustBuild(t, snap, "s1")
	if seer.SeerResult == nil || seer.SeerResult.TargetID != "w1" || !seer.SeerResult.IsWolf {
		t.Fatalf("Expected seer result for w1, got %+v", seer.SeerResult)
	}
	for _, id := range []string{"w1", "h1", "g1", "v1"} {
		if v := mustBuild(t, snap, id); v.SeerResult != nil || v.SeerHistory != nil {
			t.Errorf("Seat %s must not see seer results", id)
		}
	}
}

func TestBuild_WitchSeesAttackOnlyInHerPhase(t *testing.T) {
	witch := mustBuild(t, testSnapshot(game.PhaseNightWitch), "h1")
	if witch.WolfTarget == nil || witch.WolfTarget.ID != "v1" {
		t.Errorf("Expected witch to see attack target v1, got %+v", witch.WolfTarget)
	}
	if !witch.Capability.CanUseAntidote || witch.Capability.CanUsePoison {
		t.Errorf("Unexpected capability %+v", witch.Capability)
	}

	for _, phase := range []game.Phase{game.PhaseNightSeer, game.PhaseDayAnnounce} {
		if v := mustBuild(t, testSnapshot(phase), "h1"); v.WolfTarget != nil {
			t.Errorf("Witch must not see attack target in %s", phase)
		}
	}
	if v := mustBuild(t, testSnapshot(game.PhaseNightWitch), "g1"); v.WolfTarget != nil {
		t.Error("Guard must never see the attack target")
	}
}

func TestBuild_WitchAntidoteFollowsSaveRules(t *testing.T) {
	tests := []struct {
		name      string
		round     int
		target    string
		protected bool
		want      bool
	}{
		{"attack on another seat", 2, "v1", false, true},
		{"self-save on night one", 1, "h1", false, true},
		{"self-save after night one", 2, "h1", false, false},
		{"target already protected", 1, "v1", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot(game.PhaseNightWitch)
			snap.Rules = game.DefaultRules()
			snap.Round.Round = tt.round
			snap.Round.WolfTarget = tt.target
			snap.Round.Protected = map[string]bool{tt.target: tt.protected}

			if got := mustBuild(t, snap, "h1").Capability.CanUseAntidote; got != tt.want {
				t.Errorf("Expected CanUseAntidote %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBuild_BaseFields(t *testing.T) {
	v := mustBuild(t, testSnapshot(game.PhaseDayVote), "g1")

	if v.LastGuardTarget == nil || v.LastGuardTarget.ID != "h1" {
		t.Errorf("Expected last guard target h1, got %+v", v.LastGuardTarget)
	}
	if v.Candidate("g1") {
		t.Error("Viewer must not be its own candidate")
	}
	if v.Candidate("w3") {
		t.Error("Dead seats must not be candidates")
	}
	if len(v.DeadPlayerIDs) != 1 || v.DeadPlayerIDs[0] != "w3" {
		t.Errorf("Expected dead [w3], got %v", v.DeadPlayerIDs)
	}
	if len(v.PublicVoteLog) != 1 || v.PublicVoteLog[0].Actor != "Kit" || v.PublicVoteLog[0].Target != "Tom" {
		t.Errorf("Unexpected vote log %+v", v.PublicVoteLog)
	}
	if v.IdentityHint == "" {
		t.Error("Expected identity hint")
	}

	if _, err := Build(testSnapshot(game.PhaseDayVote), "nobody"); err == nil {
		t.Error("Expected error for unknown viewer")
	}
}

func TestMemory_RoleDependentBlocklist(t *testing.T) {
	snap := testSnapshot(game.PhaseDayVote)
	contains := func(lines []string, sub string) bool {
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l), strings.ToLower(sub)) {
				return true
			}
		}
		return false
	}

	wolf := mustBuild(t, snap, "w1").Memory
	if !contains(wolf, "tonight's target is Kit") {
		t.Errorf("Wolf should remember the team target: %v", wolf)
	}
	if !contains(wolf, "attack target was me") {
		t.Errorf("Wolf may see team markers in public speech: %v", wolf)
	}
	if contains(wolf, "inspection result") {
		t.Errorf("Wolf must not see inspection lines: %v", wolf)
	}

	seer := mustBuild(t, snap, "s1").Memory
	if !contains(seer, "inspection result: Tom is wolf") {
		t.Errorf("Seer should remember its inspection: %v", seer)
	}
	if contains(seer, "tonight's target") || contains(seer, "attack target") {
		t.Errorf("Seer must not see team markers: %v", seer)
	}

	villager := mustBuild(t, snap, "v1").Memory
	for _, banned := range []string{"tonight's target", "attack target", "inspection result", "api_key"} {
		if contains(villager, banned) {
			t.Errorf("Villager memory leaked %q: %v", banned, villager)
		}
	}
	if !contains(villager, "Spike died (poison)") || !contains(villager, "Let us vote carefully") {
		t.Errorf("Villager should see public events: %v", villager)
	}
	if contains(villager, "Guard, choose") {
		t.Errorf("Night narration must not enter memory: %v", villager)
	}
}

func TestHighlights_DedupAndCap(t *testing.T) {
	snap := testSnapshot(game.PhaseDayVote)
	for round := 2; round <= 5; round++ {
		for i := 0; i < 3; i++ {
			snap.Audit = append(snap.Audit, game.AuditEntry{
				Round: round, Phase: game.PhaseDayDiscuss, Kind: game.EventSpeech, Actor: "v1",
				Text: "same line", Visibility: game.VisibilityPublic,
			})
		}
		snap.Audit = append(snap.Audit, game.AuditEntry{
			Round: round, Phase: game.PhaseDayDiscuss, Kind: game.EventSpeech, Actor: "h1",
			Text: "different line", Visibility: game.VisibilityPublic,
		})
	}

	h := Options{HighlightRounds: 2, HighlightsPerRound: 5}.withDefaults()
	got := Highlights(snap, snap.Seats[6], h.HighlightRounds, h.HighlightsPerRound)
	if len(got) != 2 {
		t.Fatalf("Expected 2 rounds, got %d", len(got))
	}
	if got[0].Round != 5 || got[1].Round != 4 {
		t.Errorf("Expected most recent rounds first, got %d, %d", got[0].Round, got[1].Round)
	}
	if len(got[0].Lines) != 2 {
		t.Errorf("Expected duplicates dropped, got %v", got[0].Lines)
	}
	if !strings.Contains(got[0].Lines[0], "different line") {
		t.Errorf("Expected most recent line first, got %v", got[0].Lines)
	}

	capped := Highlights(snap, snap.Seats[6], 10, 1)
	for _, r := range capped {
		if len(r.Lines) > 1 {
			t.Errorf("Round %d exceeded per-round cap: %v", r.Round, r.Lines)
		}
	}
}

func TestDigest_Limit(t *testing.T) {
	snap := testSnapshot(game.PhaseDayVote)
	lines := Digest(snap, snap.Seats[6], 1)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "[R1]") {
		t.Errorf("Expected one prefixed line, got %v", lines)
	}
}

func TestBlocked_CaseInsensitive(t *testing.T) {
	if !Blocked(game.RoleVillager, "TONIGHT'S TARGET is Kit") {
		t.Error("Expected upper-case marker to be blocked")
	}
	if Blocked(game.RoleWerewolf, "Tonight's target is Kit") {
		t.Error("Wolves may see team markers")
	}
	if !Blocked(game.RoleWerewolf, "my Password is x") {
		t.Error("Credential markers are blocked for everyone")
	}
}
