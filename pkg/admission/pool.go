package admission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool keeps one admission limiter per provider key.
//
// A limiter is a weighted semaphore sized to the capacity the caller asks
// for. Capacity is phase-dependent, so the same key can be requested with
// different capacities over the life of a game.
//
// # Capacity Changes
//
// When Acquire sees a capacity different from the one the current limiter
// was built with, it installs a fresh limiter for the key. Holders of the
// old limiter keep their slots and release against the old limiter; new
// callers are admitted against the new one. During the changeover the total
// in flight for the key may briefly exceed either capacity.
//
// # Thread Safety
//
// Pool is safe for concurrent use. The key map is guarded by a mutex that is
// never held while waiting for a slot.
type Pool struct {
	mu       sync.Mutex
	limiters map[string]*limiter
}

type limiter struct {
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// Stats describes the current limiter of one key.
type Stats struct {
	Key      string
	Capacity int64
	InFlight int64
}

// NewPool creates an empty admission pool.
func NewPool() *Pool {
	return &Pool{limiters: make(map[string]*limiter)}
}

// Acquire waits for a slot on key's limiter with the given capacity.
//
// On success the returned release func must be called exactly once; extra
// calls are ignored. Acquire returns the context error if ctx ends before a
// slot frees up.
//
// Example:
//
//	release, err := pool.Acquire(ctx, "api:llm.example.com|model:m1", 1)
//	if err != nil {
//	    return err
//	}
//	defer release()
func (p *Pool) Acquire(ctx context.Context, key string, capacity int) (func(), error) {
	if capacity < 1 {
		capacity = 1
	}
	l := p.limiterFor(key, int64(capacity))

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("admission %s: %w", key, err)
	}
	l.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.inFlight.Add(-1)
			l.sem.Release(1)
		})
	}, nil
}

// TryAcquire takes a slot without waiting. It reports false when the key is
// at capacity.
func (p *Pool) TryAcquire(key string, capacity int) (func(), bool) {
	if capacity < 1 {
		capacity = 1
	}
	l := p.limiterFor(key, int64(capacity))
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	l.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.inFlight.Add(-1)
			l.sem.Release(1)
		})
	}, true
}

func (p *Pool) limiterFor(key string, capacity int64) *limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[key]
	if ok && l.capacity == capacity {
		return l
	}
	l = &limiter{capacity: capacity, sem: semaphore.NewWeighted(capacity)}
	p.limiters[key] = l
	return l
}

// Stats returns the current limiter of key. In-flight counts only holders
// admitted by the current limiter.
func (p *Pool) Stats(key string) (Stats, bool) {
	p.mu.Lock()
	l, ok := p.limiters[key]
	p.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return Stats{Key: key, Capacity: l.capacity, InFlight: l.inFlight.Load()}, true
}

// Keys returns the provider keys seen so far.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.limiters))
	for k := range p.limiters {
		keys = append(keys, k)
	}
	return keys
}
