package game

import (
	"sync"
	"time"
)

// EventKind labels an audit entry.
type EventKind string

const (
	EventPhaseChange EventKind = "phase_change"
	EventNightAction EventKind = "night_action"
	EventAutoAction  EventKind = "auto_action"
	EventVote        EventKind = "vote"
	EventVoteResult  EventKind = "vote_result"
	EventDeath       EventKind = "death"
	EventFoolReveal  EventKind = "fool_reveal"
	EventRetaliation EventKind = "hunter_shot"
	EventNarration   EventKind = "narration"
	EventSpeech      EventKind = "speech"
	EventGameOver    EventKind = "game_over"
)

// Visibility controls who may later see an audit entry in their memory.
type Visibility string

const (
	// VisibilityPublic entries are announced to every seat.
	VisibilityPublic Visibility = "public"
	// VisibilityTeam entries are visible to the wolf team only.
	VisibilityTeam Visibility = "team"
	// VisibilityPrivate entries are visible to the actor only.
	VisibilityPrivate Visibility = "private"
	// VisibilityJudge entries are kept for the judge and spectators.
	VisibilityJudge Visibility = "judge"
)

// AuditEntry is one state-changing event.
type AuditEntry struct {
	Seq        int               `json:"seq"`
	Time       time.Time         `json:"ts"`
	Round      int               `json:"round"`
	Phase      Phase             `json:"phase"`
	Kind       EventKind         `json:"event_type"`
	Actor      string            `json:"actor_id"`
	Target     string            `json:"target_id,omitempty"`
	Text       string            `json:"content,omitempty"`
	Visibility Visibility        `json:"visibility"`
	Fields     map[string]string `json:"payload,omitempty"`
}

// AuditLog is an append-only event log. Appends are safe from multiple
// goroutines; entries are never modified or removed.
type AuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
	now     func() time.Time
}

// NewAuditLog creates an empty log. A nil clock defaults to time.Now.
func NewAuditLog(now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{now: now}
}

// Append stamps the entry with a sequence number and time and stores it.
func (l *AuditLog) Append(e AuditEntry) AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Seq = len(l.entries) + 1
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	if e.Visibility == "" {
		e.Visibility = VisibilityJudge
	}
	if e.Fields != nil {
		e.Fields = cloneMap(e.Fields)
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a copy of every entry in append order.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns the entries with Seq > seq.
func (l *AuditLog) Since(seq int) []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq < 0 {
		seq = 0
	}
	if seq >= len(l.entries) {
		return nil
	}
	out := make([]AuditEntry, len(l.entries)-seq)
	copy(out, l.entries[seq:])
	return out
}

// Len returns the number of entries.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
