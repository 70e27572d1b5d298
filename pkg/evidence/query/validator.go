package query

import (
	"fmt"
	"slices"

	"lycan-hq/arbiter/pkg/evidence"
	"lycan-hq/arbiter/pkg/game"
)

const (
	DefaultLimit = 100
	MaxLimit     = 10000

	DefaultSortBy    = "recorded_time"
	DefaultSortOrder = "desc"
)

// SortFields lists the columns a query may sort on.
var SortFields = []string{"recorded_time", "latency", "round"}

var (
	sortOrders = []string{"asc", "desc"}
	statuses   = []string{evidence.StatusSuccess, evidence.StatusFallback, evidence.StatusDebug}
	events     = []evidence.Event{evidence.EventAgentResponse, evidence.EventFallback, evidence.EventVisibleState}
)

// Validate rejects queries a storage backend cannot serve. Only the first
// problem found is reported.
func Validate(q *evidence.Query) error {
	if err := check(q); err != nil {
		return evidence.NewQueryError(q, err)
	}
	return nil
}

func check(q *evidence.Query) error {
	switch {
	case q.Limit < 0 || q.Limit > MaxLimit:
		return fmt.Errorf("limit %d outside [0, %d]", q.Limit, MaxLimit)
	case q.Offset < 0:
		return fmt.Errorf("negative offset %d", q.Offset)
	case q.SortBy != "" && !slices.Contains(SortFields, q.SortBy):
		return fmt.Errorf("cannot sort by %q (valid: %v)", q.SortBy, SortFields)
	case q.SortOrder != "" && !slices.Contains(sortOrders, q.SortOrder):
		return fmt.Errorf("sort order %q is neither asc nor desc", q.SortOrder)
	case q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime):
		return fmt.Errorf("time range starts after it ends")
	case q.MinLatency != nil && *q.MinLatency < 0:
		return fmt.Errorf("negative min latency %s", *q.MinLatency)
	case q.Status != "" && !slices.Contains(statuses, q.Status):
		return fmt.Errorf("unknown status %q (valid: %v)", q.Status, statuses)
	case q.Event != "" && !slices.Contains(events, q.Event):
		return fmt.Errorf("unknown event %q", q.Event)
	}
	if p := game.Phase(q.Phase); p != "" && !p.IsNight() && !p.IsDay() {
		return fmt.Errorf("phase %q never dispatches to seats", q.Phase)
	}
	return nil
}

// ApplyDefaults fills the paging and ordering fields left empty.
func ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	if q.SortOrder == "" {
		q.SortOrder = DefaultSortOrder
	}
}
