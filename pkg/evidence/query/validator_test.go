package query

import (
	"errors"
	"testing"
	"time"

	"lycan-hq/arbiter/pkg/evidence"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	negative := -time.Second

	tests := []struct {
		name    string
		query   evidence.Query
		wantErr bool
	}{
		{"empty", evidence.Query{}, false},
		{"full valid", evidence.Query{Limit: 10, SortBy: "latency", SortOrder: "asc", Status: "fallback", Event: evidence.EventFallback}, false},
		{"negative limit", evidence.Query{Limit: -1}, true},
		{"limit too large", evidence.Query{Limit: MaxLimit + 1}, true},
		{"negative offset", evidence.Query{Offset: -5}, true},
		{"bad sort field", evidence.Query{SortBy: "cost"}, true},
		{"bad sort order", evidence.Query{SortOrder: "up"}, true},
		{"inverted range", evidence.Query{StartTime: &now, EndTime: &earlier}, true},
		{"negative latency", evidence.Query{MinLatency: &negative}, true},
		{"bad status", evidence.Query{Status: "blocked"}, true},
		{"bad event", evidence.Query{Event: "agent_speech"}, true},
		{"night phase", evidence.Query{Phase: "night_witch"}, false},
		{"day phase", evidence.Query{Phase: "day_vote"}, false},
		{"non-dispatch phase", evidence.Query{Phase: "game_over"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			err := Validate(&q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil {
				var qe *evidence.QueryError
				if !errors.As(err, &qe) {
					t.Errorf("Expected QueryError, got %T", err)
				}
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.Query{}
	ApplyDefaults(q)

	if q.Limit != DefaultLimit {
		t.Errorf("Expected limit %d, got %d", DefaultLimit, q.Limit)
	}
	if q.SortBy != DefaultSortBy {
		t.Errorf("Expected sort %s, got %s", DefaultSortBy, q.SortBy)
	}
	if q.SortOrder != DefaultSortOrder {
		t.Errorf("Expected order %s, got %s", DefaultSortOrder, q.SortOrder)
	}

	q = &evidence.Query{Limit: 5, SortBy: "round", SortOrder: "asc"}
	ApplyDefaults(q)
	if q.Limit != 5 || q.SortBy != "round" || q.SortOrder != "asc" {
		t.Errorf("Expected explicit values kept, got %+v", q)
	}
}
