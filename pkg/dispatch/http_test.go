package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lycan-hq/arbiter/internal/agenttest"
	"lycan-hq/arbiter/pkg/dispatch"
	"lycan-hq/arbiter/pkg/game"
	"lycan-hq/arbiter/pkg/perspective"
)

func newHTTPDispatcher(t *testing.T, script agenttest.Script) (*dispatch.Dispatcher, *agenttest.Server) {
	t.Helper()
	srv := agenttest.NewServer(script)
	t.Cleanup(srv.Close)

	registry := dispatch.NewRegistry()
	registry.Register(dispatch.Registration{SeatID: "p1", Endpoint: srv.URL(), ModelType: "mock"})

	cfg := dispatch.DefaultConfig()
	cfg.Backoff = time.Millisecond
	backend := dispatch.NewHTTPBackend(dispatch.HTTPOptions{})
	t.Cleanup(func() { backend.Close() })

	return dispatch.New(registry, backend, dispatch.WithConfig(cfg)), srv
}

func voteRequest() dispatch.Request {
	return dispatch.Request{
		Seat:  "p1",
		Role:  game.RoleVillager,
		Phase: game.PhaseDayVote,
		View: perspective.View{
			RoomID:         "room-http",
			Round:          1,
			Phase:          game.PhaseDayVote,
			PlayerID:       "p1",
			AlivePlayerIDs: []string{"p1", "p2", "p3"},
			TargetCandidates: []perspective.SeatRef{
				{ID: "p2", Name: "Bob"},
				{ID: "p3", Name: "Carol"},
			},
		},
	}
}

func TestHTTPDispatch(t *testing.T) {
	tests := []struct {
		name         string
		script       agenttest.Script
		wantCalls    int
		wantTarget   string
		wantFallback string
	}{
		{"deterministic agent", nil, 1, "p2", ""},
		{"503 then answer", agenttest.Sequence(agenttest.Status(503), agenttest.Target("vote", "p3")), 2, "p3", ""},
		{"429 exhausts retries", agenttest.Always(agenttest.Status(429)), 3, "", "http_429"},
		{"400 is final", agenttest.Always(agenttest.Status(400)), 1, "", "http_400"},
		{"prose answer", agenttest.Always(agenttest.Reply{Body: "I vote for Carol"}), 1, "", "invalid_response"},
		{"fenced answer", agenttest.Always(agenttest.Reply{
			Body: "```json\n{\"action\":{\"type\":\"vote\",\"target\":\"p3\"}}\n```",
		}), 1, "p3", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, srv := newHTTPDispatcher(t, tt.script)

			res, err := d.Dispatch(context.Background(), voteRequest())
			if err != nil {
				t.Fatalf("Dispatch() failed: %v", err)
			}
			if got := srv.Calls("p1"); got != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, got)
			}
			if res.FallbackReason != tt.wantFallback {
				t.Errorf("Expected fallback reason %q, got %q", tt.wantFallback, res.FallbackReason)
			}
			if tt.wantTarget != "" && res.Target() != tt.wantTarget {
				t.Errorf("Expected target %q, got %q", tt.wantTarget, res.Target())
			}
		})
	}
}

func TestHTTPDispatch_RequestBody(t *testing.T) {
	d, srv := newHTTPDispatcher(t, nil)

	req := voteRequest()
	req.Instruction = "Pick one."
	if _, err := d.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(reqs))
	}
	got := reqs[0]
	if got.SessionID != "room-http" || got.Role != "villager" || got.PromptTemplate != "Pick one." {
		t.Errorf("Unexpected request envelope: %+v", got)
	}
	if len(got.VisibleState.TargetCandidates) != 2 {
		t.Errorf("Expected visible state forwarded, got %+v", got.VisibleState)
	}
	if got.AgentConfig.APITimeoutSec != 20 {
		t.Errorf("Expected api_timeout_sec 20, got %d", got.AgentConfig.APITimeoutSec)
	}
}

func TestHTTPBackend_Timeout(t *testing.T) {
	srv := agenttest.NewServer(agenttest.Always(agenttest.Reply{Delay: 2 * time.Second, Body: "{}"}))
	defer srv.Close()

	backend := dispatch.NewHTTPBackend(dispatch.HTTPOptions{})
	defer backend.Close()

	reg := dispatch.Registration{SeatID: "p1", Endpoint: srv.URL()}
	_, err := backend.Act(context.Background(), reg, dispatch.ActRequest{PlayerID: "p1"}, 50*time.Millisecond)

	var timeout *dispatch.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
	if dispatch.ErrorType(err) != "timeout" {
		t.Errorf("Expected error type timeout, got %q", dispatch.ErrorType(err))
	}
}

func TestHTTPProbe(t *testing.T) {
	d, srv := newHTTPDispatcher(t, nil)

	if err := d.Probe(context.Background(), "p1"); err != nil {
		t.Fatalf("Expected healthy agent, got %v", err)
	}

	srv.SetHealthy(false)
	if err := d.Probe(context.Background(), "p1"); err == nil {
		t.Error("Expected unhealthy agent to fail the probe")
	}
}
