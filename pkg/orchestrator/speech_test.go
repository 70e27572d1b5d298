package orchestrator

import (
	"testing"

	"lycan-hq/arbiter/pkg/dispatch"
)

func TestSplitSpeech(t *testing.T) {
	tests := []struct {
		name         string
		res          dispatch.Result
		wantSpeech   string
		wantThinking string
	}{
		{
			name:         "explicit fields",
			res:          dispatch.Result{Speech: " hello ", Thinking: "t"},
			wantSpeech:   "hello",
			wantThinking: "t",
		},
		{
			name:         "reasoning lines",
			res:          dispatch.Result{Reasoning: "Speech: I trust Bob\nthinking: Bob is the seer"},
			wantSpeech:   "I trust Bob",
			wantThinking: "Bob is the seer",
		},
		{
			name:         "private marker",
			res:          dispatch.Result{Reasoning: "[private] careful now\nsomething else"},
			wantThinking: "careful now",
		},
		{
			name:       "full-width colon",
			res:        dispatch.Result{Reasoning: "发言：我是好人"},
			wantSpeech: "我是好人",
		},
		{
			name:       "speech field wins",
			res:        dispatch.Result{Speech: "field", Reasoning: "speech: line"},
			wantSpeech: "field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speech, thinking := splitSpeech(tt.res)
			if speech != tt.wantSpeech {
				t.Errorf("Expected speech %q, got %q", tt.wantSpeech, speech)
			}
			if thinking != tt.wantThinking {
				t.Errorf("Expected thinking %q, got %q", tt.wantThinking, thinking)
			}
		})
	}
}

func TestScrubClaims(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bob is a wolf. I think we should vote him.", "I think we should vote him."},
		{"I checked Carol and she is good.", ""},
		{"我验了3号，是狼。大家跟我投。", "大家跟我投。"},
		{"Nothing suspicious yet.", "Nothing suspicious yet."},
		{"They are werewolves! Trust me.", "Trust me."},
	}
	for _, tt := range tests {
		if got := scrubClaims(tt.in); got != tt.want {
			t.Errorf("scrubClaims(%q): Expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
