package dispatch

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates process-local dispatch counters. All methods are safe
// for concurrent use.
type Metrics struct {
	total     atomic.Int64
	timeouts  atomic.Int64
	errors    atomic.Int64
	offline   atomic.Int64
	latencyNs atomic.Int64

	mu     sync.Mutex
	byType map[string]int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TotalCalls   int64            `json:"total_calls"`
	TimeoutCalls int64            `json:"timeout_calls"`
	ErrorCalls   int64            `json:"error_calls"`
	OfflineCalls int64            `json:"offline_calls"`
	AvgLatencyMs float64          `json:"avg_latency_ms"`
	TimeoutRate  float64          `json:"timeout_rate"`
	ByErrorType  map[string]int64 `json:"by_error_type"`
}

// NewMetrics creates zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{byType: make(map[string]int64)}
}

// ObserveSuccess counts a successful call and its latency.
func (m *Metrics) ObserveSuccess(latency time.Duration) {
	m.total.Add(1)
	m.latencyNs.Add(int64(latency))
}

// ObserveTimeout counts a call that exhausted its timeout retries.
func (m *Metrics) ObserveTimeout() {
	m.total.Add(1)
	m.timeouts.Add(1)
	m.countType("timeout")
}

// ObserveError counts a failed call under errType.
func (m *Metrics) ObserveError(errType string) {
	m.total.Add(1)
	m.errors.Add(1)
	m.countType(errType)
}

// ObserveOffline counts a call answered by fallback because the seat was
// offline or never registered.
func (m *Metrics) ObserveOffline() {
	m.total.Add(1)
	m.offline.Add(1)
	m.countType("offline")
}

func (m *Metrics) countType(errType string) {
	m.mu.Lock()
	m.byType[errType]++
	m.mu.Unlock()
}

// Snapshot returns the current counters with derived averages.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		TotalCalls:   m.total.Load(),
		TimeoutCalls: m.timeouts.Load(),
		ErrorCalls:   m.errors.Load(),
		OfflineCalls: m.offline.Load(),
		ByErrorType:  make(map[string]int64),
	}
	if s.TotalCalls > 0 {
		s.AvgLatencyMs = float64(m.latencyNs.Load()) / float64(time.Millisecond) / float64(s.TotalCalls)
		s.TimeoutRate = float64(s.TimeoutCalls) / float64(s.TotalCalls)
	}
	m.mu.Lock()
	for k, v := range m.byType {
		s.ByErrorType[k] = v
	}
	m.mu.Unlock()
	return s
}

// ErrorTypes returns the error labels seen so far, sorted.
func (s MetricsSnapshot) ErrorTypes() []string {
	out := make([]string, 0, len(s.ByErrorType))
	for k := range s.ByErrorType {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
