package health

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check statuses.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
)

// DefaultCheckTimeout bounds a single check when New is given zero.
const DefaultCheckTimeout = 5 * time.Second

// ErrCheckTimeout is the message of a check that outlived its timeout.
var ErrCheckTimeout = errors.New("health check timeout")

// CheckFunc returns nil when the component it probes is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthStatus aggregates every check. Status is StatusOK for liveness and
// StatusReady or StatusDegraded for readiness.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (s HealthStatus) Ready() bool { return s.Status == StatusReady }

// Unhealthy returns the sorted names of the failing checks.
func (s HealthStatus) Unhealthy() []string {
	var names []string
	for name, r := range s.Checks {
		if r.Status != StatusOK {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Checker runs named readiness checks, one per seat backend plus any
// storage the game depends on.
//
// # Thread Safety
//
// All methods are safe for concurrent use. CheckReadiness runs the checks
// in parallel, each under its own timeout.
type Checker struct {
	timeout time.Duration

	mu       sync.RWMutex
	checks   map[string]CheckFunc
	onResult func(name string, healthy bool)
}

func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}
	return &Checker{timeout: checkTimeout, checks: make(map[string]CheckFunc)}
}

// OnResult sets a callback invoked with every check outcome. The metrics
// layer uses it to export seat readiness.
func (c *Checker) OnResult(fn func(name string, healthy bool)) {
	c.mu.Lock()
	c.onResult = fn
	c.mu.Unlock()
}

// RegisterCheck adds check under name, replacing an existing one.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// ListChecks returns the registered names in sorted order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.checks))
}

// CheckLiveness reports that the process is up. It runs no checks.
func (c *Checker) CheckLiveness(context.Context) HealthStatus {
	return HealthStatus{Status: StatusOK, Timestamp: time.Now()}
}

// CheckReadiness runs every check and is ready only if all pass. With no
// checks registered it is ready.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	onResult := c.onResult
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(checks))
		g       errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			res := c.run(ctx, check)
			if onResult != nil {
				onResult(name, res.Status == StatusOK)
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{Status: StatusReady, Checks: results, Timestamp: time.Now()}
	if len(status.Unhealthy()) > 0 {
		status.Status = StatusDegraded
	}
	return status
}

// WaitReady repeats CheckReadiness every interval until it is ready or ctx
// ends, and returns the last status. The error is ctx's when the wait was
// cut short.
func (c *Checker) WaitReady(ctx context.Context, interval time.Duration) (HealthStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := c.CheckReadiness(ctx)
		if status.Ready() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// run executes check under the check timeout. A check that ignores its
// context is abandoned when the timeout fires.
func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}
	res := CheckResult{Status: StatusOK, DurationMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status, res.Message = StatusUnhealthy, err.Error()
	}
	return res
}
