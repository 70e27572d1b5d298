package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"lycan-hq/arbiter/pkg/config"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
)

func testConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Enabled:                 true,
		Namespace:               "test",
		DispatchDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}

	if c := NewCollector(config.MetricsConfig{}, nil); c.Registry() == nil {
		t.Error("Expected a fresh registry when none is given")
	}
}

func TestCollector_ObserveDispatch(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	tests := []struct {
		name string
		obs  dispatch.Observation
	}{
		{
			name: "success after one retry",
			obs: dispatch.Observation{
				SeatID: "p1", ProviderKey: "gpt", Phase: game.PhaseDayVote,
				Outcome: "success", Attempts: 2, Latency: 300 * time.Millisecond,
			},
		},
		{
			name: "success",
			obs: dispatch.Observation{
				SeatID: "p2", ProviderKey: "gpt", Phase: game.PhaseDayVote,
				Outcome: "success", Attempts: 1, Latency: 200 * time.Millisecond,
			},
		},
		{
			name: "timeout fallback",
			obs: dispatch.Observation{
				SeatID: "p3", ProviderKey: "claude", Phase: game.PhaseNightSeer,
				Outcome: "fallback", ErrorType: "timeout", Attempts: 3,
			},
		},
	}
	for _, tt := range tests {
		collector.ObserveDispatch(tt.obs)
	}

	dm := collector.dispatch
	if got := testutil.ToFloat64(dm.dispatches.WithLabelValues("day_vote", "gpt", "success")); got != 2 {
		t.Errorf("Expected 2 successful votes, got %v", got)
	}
	if got := testutil.ToFloat64(dm.dispatches.WithLabelValues("night_seer", "claude", "fallback")); got != 1 {
		t.Errorf("Expected 1 seer fallback, got %v", got)
	}
	if got := testutil.ToFloat64(dm.retries.WithLabelValues("gpt")); got != 1 {
		t.Errorf("Expected 1 gpt retry, got %v", got)
	}
	if got := testutil.ToFloat64(dm.retries.WithLabelValues("claude")); got != 2 {
		t.Errorf("Expected 2 claude retries, got %v", got)
	}
	if got := testutil.ToFloat64(dm.errors.WithLabelValues("claude", "timeout")); got != 1 {
		t.Errorf("Expected 1 timeout error, got %v", got)
	}
	if got := testutil.CollectAndCount(dm.duration); got != 1 {
		t.Errorf("Expected one latency series, got %d", got)
	}
}

func TestCollector_ObserveDispatch_UnknownLabels(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.ObserveDispatch(dispatch.Observation{Phase: game.PhaseDayDiscuss, Outcome: "fallback"})

	if got := testutil.ToFloat64(collector.dispatch.errors.WithLabelValues("unknown", "unknown")); got != 1 {
		t.Errorf("Expected unknown provider and error type, got %v", got)
	}
}

func TestCollector_SeatMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.UpdateSeatHealth("p1", true)
	if got := testutil.ToFloat64(collector.seats.healthy.WithLabelValues("p1")); got != 1 {
		t.Errorf("Expected healthy gauge 1, got %v", got)
	}
	collector.UpdateSeatHealth("p1", false)
	if got := testutil.ToFloat64(collector.seats.healthy.WithLabelValues("p1")); got != 0 {
		t.Errorf("Expected healthy gauge 0, got %v", got)
	}

	collector.ObserveCircuitOpen("p2", "gpt")
	if got := testutil.ToFloat64(collector.seats.entrusted.WithLabelValues("p2")); got != 1 {
		t.Errorf("Expected entrusted gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(collector.dispatch.circuitOpens.WithLabelValues("gpt")); got != 1 {
		t.Errorf("Expected 1 opened circuit, got %v", got)
	}

	collector.SeatRegistered("p2")
	if got := testutil.ToFloat64(collector.seats.entrusted.WithLabelValues("p2")); got != 0 {
		t.Errorf("Expected re-registration to clear entrusted, got %v", got)
	}
	if got := testutil.ToFloat64(collector.seats.registrations.WithLabelValues("p2")); got != 1 {
		t.Errorf("Expected 1 registration, got %v", got)
	}
}

func TestCollector_GameMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordGame("good", 4, 3*time.Minute)
	collector.RecordGame("", 50, time.Hour)
	collector.RecordPhase("day_vote", 2*time.Second)

	if got := testutil.ToFloat64(collector.games.games.WithLabelValues("good")); got != 1 {
		t.Errorf("Expected 1 good win, got %v", got)
	}
	if got := testutil.ToFloat64(collector.games.games.WithLabelValues("none")); got != 1 {
		t.Errorf("Expected 1 unfinished game, got %v", got)
	}
	if got := testutil.CollectAndCount(collector.games.phaseDuration); got != 1 {
		t.Errorf("Expected one phase series, got %d", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordGame("wolf", 3, time.Minute)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_games_total{winner="wolf"} 1`) {
		t.Errorf("Expected games counter in output, got:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "promhttp_metric_handler_requests_total") {
		t.Errorf("Expected scrape counter in output, got:\n%s", rec.Body.String())
	}
}
