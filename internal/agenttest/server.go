package agenttest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"lycan-hq/arbiter/pkg/dispatch"
)

// Reply is one scripted answer to an /act call.
type Reply struct {
	StatusCode int
	Body       any
	Delay      time.Duration
}

// Script decides the reply to an /act call. call counts the seat's calls
// starting at 1.
type Script func(req dispatch.ActRequest, call int) Reply

// Agent is a seat backend serving /act and /health. It plays every seat
// that is registered against its URL.
type Agent struct {
	modelType string
	script    Script

	mu        sync.Mutex
	calls     map[string]int
	requests  []dispatch.ActRequest
	unhealthy bool
	paths     map[string]Reply
	captured  map[string][]Captured
}

// Captured is one request received on a SetResponse path.
type Captured struct {
	Header http.Header
	Body   []byte
}

// New creates an agent. A nil script answers with Deterministic.
func New(modelType string, script Script) *Agent {
	if script == nil {
		script = Deterministic
	}
	return &Agent{
		modelType: modelType,
		script:    script,
		calls:     make(map[string]int),
		paths:     make(map[string]Reply),
		captured:  make(map[string][]Captured),
	}
}

// Server is an Agent listening on a local httptest server.
type Server struct {
	*Agent
	server *httptest.Server
}

// NewServer starts an agent on a local port.
func NewServer(script Script) *Server {
	a := New("mock", script)
	return &Server{Agent: a, server: httptest.NewServer(a)}
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// Calls returns the number of /act calls made for seat.
func (a *Agent) Calls(seat string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[seat]
}

// Requests returns every decoded /act request in arrival order.
func (a *Agent) Requests() []dispatch.ActRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]dispatch.ActRequest(nil), a.requests...)
}

// SetHealthy toggles the /health answer.
func (a *Agent) SetHealthy(healthy bool) {
	a.mu.Lock()
	a.unhealthy = !healthy
	a.mu.Unlock()
}

// SetResponse serves a fixed reply on path. It is used for the judge's
// chat endpoints.
func (a *Agent) SetResponse(path string, reply Reply) {
	a.mu.Lock()
	a.paths[path] = reply
	a.mu.Unlock()
}

// Received returns the requests received on path in arrival order.
func (a *Agent) Received(path string) []Captured {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Captured(nil), a.captured[path]...)
}

// ServeHTTP implements http.Handler.
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/act":
		a.handleAct(w, r)
		return
	case "/health":
		a.handleHealth(w)
		return
	}

	body, _ := io.ReadAll(r.Body)
	a.mu.Lock()
	reply, ok := a.paths[r.URL.Path]
	if ok {
		a.captured[r.URL.Path] = append(a.captured[r.URL.Path], Captured{Header: r.Header.Clone(), Body: body})
	}
	a.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	write(w, r, reply)
}

func (a *Agent) handleAct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dispatch.ActRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	a.calls[req.PlayerID]++
	call := a.calls[req.PlayerID]
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	write(w, r, a.script(req, call))
}

func (a *Agent) handleHealth(w http.ResponseWriter) {
	a.mu.Lock()
	unhealthy := a.unhealthy
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if unhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "down"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "model_type": a.modelType})
}

// write sends reply, waiting out its delay unless the client gives up first.
func write(w http.ResponseWriter, r *http.Request, reply Reply) {
	if reply.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(reply.Delay):
		}
	}

	status := reply.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	switch v := reply.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}
