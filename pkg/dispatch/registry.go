package dispatch

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"lycan-hq/arbiter/pkg/admission"
)

// Default registration values.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultCLITimeout = 20 * time.Second
)

// Registration is the connection descriptor and circuit state of the
// backend driving one seat.
type Registration struct {
	// SeatID is the seat this backend plays
	SeatID string `json:"player_id"`

	// Endpoint is the backend base url; /act and /health are appended
	Endpoint string `json:"endpoint"`

	// ModelType is the backend's self-declared model family
	ModelType string `json:"model_type"`

	// APIURL, APIKey and ModelName describe the LLM the backend calls
	APIURL    string `json:"api_url,omitempty"`
	APIKey    string `json:"-"`
	ModelName string `json:"model_name,omitempty"`

	// CLICommand, when set, makes the backend drive a local command
	CLICommand string        `json:"cli_command,omitempty"`
	CLITimeout time.Duration `json:"cli_timeout"`

	// Timeout is the per-dispatch budget the inner and outer budgets derive from
	Timeout time.Duration `json:"timeout"`

	Online              bool      `json:"online"`
	Entrusted           bool      `json:"entrusted"`
	ConsecutiveFailures int       `json:"failed_count"`
	LastError           string    `json:"last_error,omitempty"`
	RegisteredAt        time.Time `json:"registered_at"`
	LastHeartbeat       time.Time `json:"last_heartbeat"`
}

// Kind returns the admission class of the backend.
func (r Registration) Kind() admission.BackendKind {
	if strings.TrimSpace(r.CLICommand) != "" {
		return admission.KindCLI
	}
	if strings.TrimSpace(r.APIURL) != "" {
		return admission.KindAPI
	}
	return admission.KindModel
}

// ProviderKey groups backends that share an upstream provider:
//
//	cli                               any CLI-driven backend
//	api:<host>|model:<model name>     API backends, lower-cased
//	model:<model type>                everything else
func ProviderKey(r Registration) string {
	switch r.Kind() {
	case admission.KindCLI:
		return "cli"
	case admission.KindAPI:
		raw := strings.ToLower(strings.TrimSpace(r.APIURL))
		host := raw
		if u, err := url.Parse(raw); err == nil {
			host = u.Host
			if host == "" {
				host = u.Path
			}
		}
		model := strings.ToLower(strings.TrimSpace(r.ModelName))
		if model == "" {
			model = "unknown-model"
		}
		return fmt.Sprintf("api:%s|model:%s", host, model)
	}
	model := strings.ToLower(strings.TrimSpace(r.ModelType))
	if model == "" {
		model = "unknown"
	}
	return "model:" + model
}

// Registry holds the backend registration of each seat.
//
// # Circuit Breaking
//
// Every exhausted dispatch increments the seat's consecutive failure count.
// When the count reaches the threshold the backend is marked offline and
// the seat entrusted to the fallback policy. The circuit stays open until
// the seat is registered again.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Get and All return copies.
type Registry struct {
	mu     sync.RWMutex
	seats  map[string]*Registration
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		seats:  make(map[string]*Registration),
		now:    time.Now,
		logger: slog.Default().With("component", "dispatch.registry"),
	}
}

// Register adds or replaces the backend of a seat. Replacing a backend
// closes its circuit: the new registration starts online, not entrusted,
// with no failures.
func (r *Registry) Register(reg Registration) Registration {
	if reg.Timeout <= 0 {
		reg.Timeout = DefaultTimeout
	}
	if reg.CLITimeout <= 0 {
		reg.CLITimeout = DefaultCLITimeout
	}
	reg.Endpoint = strings.TrimRight(reg.Endpoint, "/")
	now := r.now()
	reg.Online = true
	reg.Entrusted = false
	reg.ConsecutiveFailures = 0
	reg.LastError = ""
	reg.RegisteredAt = now
	reg.LastHeartbeat = now

	r.mu.Lock()
	_, replaced := r.seats[reg.SeatID]
	stored := reg
	r.seats[reg.SeatID] = &stored
	r.mu.Unlock()

	r.logger.Info("backend registered",
		"seat", reg.SeatID,
		"provider_key", ProviderKey(reg),
		"replaced", replaced,
	)
	return reg
}

// Get returns a copy of the seat's registration.
func (r *Registry) Get(seatID string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.seats[seatID]
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

// All returns copies of every registration ordered by seat id.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	out := make([]Registration, 0, len(r.seats))
	for _, reg := range r.seats {
		out = append(out, *reg)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out
}

// MarkOffline opens the circuit of a seat: offline and entrusted.
func (r *Registry) MarkOffline(seatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.seats[seatID]; ok {
		reg.Online = false
		reg.Entrusted = true
	}
}

// MarkOnline closes the circuit of a seat without re-registering it.
func (r *Registry) MarkOnline(seatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.seats[seatID]; ok {
		reg.Online = true
		reg.Entrusted = false
		reg.ConsecutiveFailures = 0
		reg.LastHeartbeat = r.now()
	}
}

// recordSuccess resets the failure count of a seat.
func (r *Registry) recordSuccess(seatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.seats[seatID]; ok {
		reg.ConsecutiveFailures = 0
		reg.LastError = ""
		reg.LastHeartbeat = r.now()
	}
}

// recordFailure counts an exhausted dispatch and reports whether it opened
// the circuit.
func (r *Registry) recordFailure(seatID, reason string, threshold int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.seats[seatID]
	if !ok {
		return false
	}
	reg.ConsecutiveFailures++
	reg.LastError = reason
	if threshold > 0 && reg.ConsecutiveFailures >= threshold && reg.Online {
		reg.Online = false
		reg.Entrusted = true
		r.logger.Warn("backend marked offline",
			"seat", seatID,
			"consecutive_failures", reg.ConsecutiveFailures,
			"last_error", reason,
		)
		return true
	}
	return false
}
