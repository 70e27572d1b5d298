package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"lycan-hq/arbiter/pkg/evidence"
)

// MemoryStorage holds evidence for the life of the process. Games started
// without an evidence database use it, and so do the tests.
//
// Records are copied on the way in and on the way out. Storing an id twice
// replaces the first record.
type MemoryStorage struct {
	mu   sync.RWMutex
	byID map[string]*evidence.Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byID: make(map[string]*evidence.Record)}
}

func (s *MemoryStorage) Store(_ context.Context, r *evidence.Record) error {
	c := *r
	s.mu.Lock()
	s.byID[r.ID] = &c
	s.mu.Unlock()
	return nil
}

// Query returns the matching records in the requested order. Unlike the
// SQLite store a zero Limit returns everything.
func (s *MemoryStorage) Query(_ context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	return s.snapshot(query), nil
}

func (s *MemoryStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	matched := s.snapshot(query)
	records := make(chan *evidence.Record, min(len(matched), 100))
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(records)
		for _, r := range matched {
			select {
			case records <- r:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return records, errs, nil
}

func (s *MemoryStorage) Count(_ context.Context, query *evidence.Query) (int64, error) {
	keep := matcher(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.byID {
		if keep(r) {
			n++
		}
	}
	return n, nil
}

// Delete ignores paging, as the SQLite store does.
func (s *MemoryStorage) Delete(_ context.Context, query *evidence.Query) (int64, error) {
	keep := matcher(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.byID {
		if keep(r) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Close drops every record.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	clear(s.byID)
	s.mu.Unlock()
	return nil
}

// Size is the number of records held.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// snapshot copies out the matching records, sorted and paged.
func (s *MemoryStorage) snapshot(query *evidence.Query) []*evidence.Record {
	keep := matcher(query)
	out := []*evidence.Record{}
	s.mu.RLock()
	for _, r := range s.byID {
		if keep(r) {
			c := *r
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	key := sortKey(query.SortBy)
	slices.SortStableFunc(out, func(a, b *evidence.Record) int {
		if query.SortOrder == "asc" {
			return key(a, b)
		}
		return key(b, a)
	})

	if query.Offset >= len(out) {
		return []*evidence.Record{}
	}
	out = out[query.Offset:]
	if query.Limit > 0 && query.Limit < len(out) {
		out = out[:query.Limit]
	}
	return out
}

// sortKey mirrors sortColumns for the in-memory store. Ties fall back to
// the record id so map iteration order never leaks into results.
func sortKey(field string) func(a, b *evidence.Record) int {
	var primary func(a, b *evidence.Record) int
	switch field {
	case "latency":
		primary = func(a, b *evidence.Record) int { return cmp.Compare(a.Latency, b.Latency) }
	case "round":
		primary = func(a, b *evidence.Record) int { return cmp.Compare(a.Round, b.Round) }
	default:
		primary = func(a, b *evidence.Record) int { return a.RecordedTime.Compare(b.RecordedTime) }
	}
	return func(a, b *evidence.Record) int {
		return cmp.Or(primary(a, b), cmp.Compare(a.ID, b.ID))
	}
}

// matcher builds the predicate for query's filters.
func matcher(query *evidence.Query) func(*evidence.Record) bool {
	var preds []func(*evidence.Record) bool
	eq := func(want string, field func(*evidence.Record) string) {
		if want != "" {
			preds = append(preds, func(r *evidence.Record) bool { return field(r) == want })
		}
	}
	eq(query.RoomID, func(r *evidence.Record) string { return r.RoomID })
	eq(query.SeatID, func(r *evidence.Record) string { return r.SeatID })
	eq(query.Phase, func(r *evidence.Record) string { return r.Phase })
	eq(string(query.Event), func(r *evidence.Record) string { return string(r.Event) })
	eq(query.Status, func(r *evidence.Record) string { return r.Status })
	eq(query.ProviderKey, func(r *evidence.Record) string { return r.ProviderKey })

	if from := query.StartTime; from != nil {
		preds = append(preds, func(r *evidence.Record) bool { return !r.RecordedTime.Before(*from) })
	}
	if to := query.EndTime; to != nil {
		preds = append(preds, func(r *evidence.Record) bool { return !r.RecordedTime.After(*to) })
	}
	if floor := query.MinLatency; floor != nil {
		preds = append(preds, func(r *evidence.Record) bool { return r.Latency >= *floor })
	}

	return func(r *evidence.Record) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}
