package consensus

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestQuorum(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {5, 3}, {6, 4},
	}
	for _, tt := range tests {
		if got := Quorum(tt.size); got != tt.want {
			t.Errorf("Quorum(%d) = %d, expected %d", tt.size, got, tt.want)
		}
	}
}

func TestAgreed(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		size   int
		want   string
		wantOK bool
	}{
		{"lone member", map[string]int{"p5": 1}, 1, "p5", true},
		{"pair must agree", map[string]int{"p5": 1, "p6": 1}, 2, "", false},
		{"pair agrees", map[string]int{"p5": 2}, 2, "p5", true},
		{"majority of three", map[string]int{"p5": 2, "p6": 1}, 3, "p5", true},
		{"tie at top", map[string]int{"p5": 2, "p6": 2}, 4, "", false},
		{"leader below quorum", map[string]int{"p5": 2, "p6": 1, "p7": 1}, 4, "", false},
		{"empty tally", map[string]int{}, 3, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Agreed(tt.counts, tt.size)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestTally_IgnoresIllegalTargets(t *testing.T) {
	counts := Tally([]Proposal{
		{Seat: "w1", Target: "p5"},
		{Seat: "w2", Target: "w1"},
		{Seat: "w3", Target: ""},
		{Seat: "w4", Target: "p5"},
	}, []string{"p5", "p6"})

	if len(counts) != 1 || counts["p5"] != 2 {
		t.Errorf("Expected only p5 counted twice, got %v", counts)
	}
}

func TestOrder_IsSeededPermutation(t *testing.T) {
	team := []string{"w3", "w1", "w2"}

	first := Order(team, "room-1", 2, DefaultPhase)
	second := Order([]string{"w2", "w3", "w1"}, "room-1", 2, DefaultPhase)
	if !slices.Equal(first, second) {
		t.Errorf("Expected order independent of input order, got %v and %v", first, second)
	}

	sorted := slices.Clone(first)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []string{"w1", "w2", "w3"}) {
		t.Errorf("Expected a permutation of the team, got %v", first)
	}
	if !slices.Equal(team, []string{"w3", "w1", "w2"}) {
		t.Error("Expected input slice untouched")
	}
}

// scripted answers with targets[seat][round-1] and records what each
// speaker saw.
type scripted struct {
	targets map[string][]string
	seen    map[string][]int
	calls   int
}

func (s *scripted) Propose(_ context.Context, seat string, round int, prior []Proposal) (Proposal, error) {
	s.calls++
	if s.seen == nil {
		s.seen = make(map[string][]int)
	}
	s.seen[seat] = append(s.seen[seat], len(prior))
	plan := s.targets[seat]
	target := plan[min(round, len(plan))-1]
	return Proposal{Target: target, Speech: "kill " + target}, nil
}

func TestRun(t *testing.T) {
	legal := []string{"p4", "p5", "p6"}

	tests := []struct {
		name        string
		team        []string
		targets     map[string][]string
		wantReached bool
		wantRound   int
		wantTarget  string
		wantCalls   int
	}{
		{
			name:        "agree in first round",
			team:        []string{"w1", "w2", "w3"},
			targets:     map[string][]string{"w1": {"p5"}, "w2": {"p5"}, "w3": {"p6"}},
			wantReached: true, wantRound: 1, wantTarget: "p5", wantCalls: 3,
		},
		{
			name:        "agree in second round",
			team:        []string{"w1", "w2"},
			targets:     map[string][]string{"w1": {"p4", "p5"}, "w2": {"p5", "p5"}},
			wantReached: true, wantRound: 2, wantTarget: "p5", wantCalls: 4,
		},
		{
			name:        "illegal proposals never agree",
			team:        []string{"w1", "w2"},
			targets:     map[string][]string{"w1": {"w2"}, "w2": {"w2"}},
			wantReached: false, wantRound: 0, wantCalls: 6,
		},
		{
			name:        "lone wolf decides alone",
			team:        []string{"w1"},
			targets:     map[string][]string{"w1": {"p6"}},
			wantReached: true, wantRound: 1, wantTarget: "p6", wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ask := &scripted{targets: tt.targets}
			out, err := Run(context.Background(), Params{
				RoomID: "room-1", Round: 1, Team: tt.team, Legal: legal,
			}, ask)
			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
			if out.Reached != tt.wantReached || out.Round != tt.wantRound {
				t.Errorf("Expected reached=%v round=%d, got reached=%v round=%d",
					tt.wantReached, tt.wantRound, out.Reached, out.Round)
			}
			if tt.wantTarget != "" && out.Target != tt.wantTarget {
				t.Errorf("Expected target %q, got %q", tt.wantTarget, out.Target)
			}
			if !slices.Contains(legal, out.Target) {
				t.Errorf("Expected a legal target, got %q", out.Target)
			}
			if ask.calls != tt.wantCalls || len(out.Proposals) != tt.wantCalls {
				t.Errorf("Expected %d proposals, got %d calls and %d proposals", tt.wantCalls, ask.calls, len(out.Proposals))
			}
		})
	}
}

func TestRun_SpeakersSeePriorProposals(t *testing.T) {
	ask := &scripted{targets: map[string][]string{"w1": {"p4"}, "w2": {"p5"}, "w3": {"p6"}}}
	out, err := Run(context.Background(), Params{
		RoomID: "room-1", Round: 1, Team: []string{"w1", "w2", "w3"}, Legal: []string{"p4", "p5", "p6"}, MaxRounds: 2,
	}, ask)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if out.Reached {
		t.Fatal("Expected no agreement")
	}

	order := Order([]string{"w1", "w2", "w3"}, "room-1", 1, DefaultPhase)
	for i, seat := range order {
		want := []int{i, i + 3}
		if !slices.Equal(ask.seen[seat], want) {
			t.Errorf("Expected %s to see %v prior proposals, got %v", seat, want, ask.seen[seat])
		}
	}
	for i, p := range out.Proposals {
		if p.Seat != order[i%3] || p.Round != i/3+1 {
			t.Errorf("Proposal %d: expected %s in round %d, got %s in round %d", i, order[i%3], i/3+1, p.Seat, p.Round)
		}
	}
}

func TestRun_ExhaustedIsDeterministic(t *testing.T) {
	params := Params{RoomID: "room-9", Round: 3, Team: []string{"w1", "w2"}, Legal: []string{"p4", "p5", "p6"}}
	split := map[string][]string{"w1": {"p4"}, "w2": {"p5"}}

	first, _ := Run(context.Background(), params, &scripted{targets: split})
	second, _ := Run(context.Background(), params, &scripted{targets: split})

	if first.Reached {
		t.Fatal("Expected exhausted discussion")
	}
	if first.Target != second.Target {
		t.Errorf("Expected the same random target, got %q and %q", first.Target, second.Target)
	}
}

func TestRun_PropagatesAskerError(t *testing.T) {
	boom := errors.New("context canceled")
	ask := AskerFunc(func(context.Context, string, int, []Proposal) (Proposal, error) {
		return Proposal{}, boom
	})

	_, err := Run(context.Background(), Params{RoomID: "r", Round: 1, Team: []string{"w1"}, Legal: []string{"p2"}}, ask)
	if !errors.Is(err, boom) {
		t.Errorf("Expected asker error, got %v", err)
	}
}

func TestRun_NothingToDecide(t *testing.T) {
	out, err := Run(context.Background(), Params{RoomID: "r", Round: 1, Team: []string{"w1"}}, &scripted{})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if out.Target != "" || out.Reached {
		t.Errorf("Expected empty outcome without legal targets, got %+v", out)
	}
}
