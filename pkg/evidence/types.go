package evidence

import (
	"context"
	"io"
	"time"
)

// Event names a dispatch evidence record.
type Event string

const (
	// EventAgentResponse is a validated answer from a seat's backend.
	EventAgentResponse Event = "agent_response"

	// EventFallback is an action synthesized after the backend failed or
	// the seat was offline.
	EventFallback Event = "fallback_action"

	// EventVisibleState captures the View sent to a seat. Only recorded in
	// debug mode.
	EventVisibleState Event = "god_visible_state"
)

// Record statuses.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusDebug    = "debug"
)

// Record is the evidence of one dispatch to one seat. Request and Response
// hold the payloads cut to the recorder's MaxFieldLength; the hashes cover
// them whole.
type Record struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`

	Round  int    `json:"round"`
	Phase  string `json:"phase"`
	SeatID string `json:"seat_id"`
	Role   string `json:"role"`

	Event          Event         `json:"event"`
	Status         string        `json:"status"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	ErrorType      string        `json:"error_type,omitempty"`
	Attempts       int           `json:"attempts"`
	Latency        time.Duration `json:"latency"`

	ProviderKey string `json:"provider_key"`
	Model       string `json:"model"`

	Request      string `json:"request"`
	Response     string `json:"response"`
	RequestHash  string `json:"request_hash"`
	ResponseHash string `json:"response_hash"`

	RecordedTime time.Time `json:"recorded_time"`
}

// Query selects evidence. Zero-valued filters match everything; time
// bounds are inclusive.
type Query struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	RoomID      string         `json:"room_id,omitempty"`
	SeatID      string         `json:"seat_id,omitempty"`
	Phase       string         `json:"phase,omitempty"`
	Event       Event          `json:"event,omitempty"`
	Status      string         `json:"status,omitempty"`
	ProviderKey string         `json:"provider_key,omitempty"`
	MinLatency  *time.Duration `json:"min_latency,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortBy is one of recorded_time, latency or round; SortOrder is asc or
	// desc, desc when empty.
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage is where the recorder writes and the evidence commands read.
// Implementations are safe for concurrent use.
type Storage interface {
	Store(ctx context.Context, record *Record) error

	// Query returns an empty, non-nil slice when nothing matches.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// QueryStream yields Query's results one at a time. Both channels close
	// when the results run out; read the error channel after draining the
	// records.
	QueryStream(ctx context.Context, query *Query) (<-chan *Record, <-chan error, error)

	Count(ctx context.Context, query *Query) (int64, error)

	// Delete ignores Limit and Offset and reports how many records went.
	Delete(ctx context.Context, query *Query) (int64, error)

	Close() error
}

// Exporter renders a batch of records to w.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
