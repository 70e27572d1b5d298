package dispatch

import (
	"testing"
	"time"

	"lycan-hq/arbiter/pkg/game"
)

func TestBudgets(t *testing.T) {
	tests := []struct {
		name      string
		timeout   time.Duration
		phase     game.Phase
		wantInner time.Duration
		wantOuter time.Duration
	}{
		{"night floor", 5 * time.Second, game.PhaseNightWolf, 15 * time.Second, 25 * time.Second},
		{"night long timeout", 60 * time.Second, game.PhaseNightSeer, 58 * time.Second, 65 * time.Second},
		{"vote floor", 5 * time.Second, game.PhaseDayVote, 20 * time.Second, 35 * time.Second},
		{"discuss long timeout", 40 * time.Second, game.PhaseDayDiscuss, 39 * time.Second, 50 * time.Second},
		{"hunter uses night budget", 15 * time.Second, PhaseHunterShot, 15 * time.Second, 25 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := InnerBudget(tt.timeout, tt.phase)
			outer := OuterBudget(tt.timeout, tt.phase)
			if inner != tt.wantInner {
				t.Errorf("Expected inner %v, got %v", tt.wantInner, inner)
			}
			if outer != tt.wantOuter {
				t.Errorf("Expected outer %v, got %v", tt.wantOuter, outer)
			}
			if outer <= inner {
				t.Errorf("Expected outer %v > inner %v", outer, inner)
			}
		})
	}
}
