// Package history keeps a per-process view of submitted deliveries so the
// compose surface can show what it sent. The authoritative record lives
// server-side; this log is never persisted.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks an entry through its delivery lifecycle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
)

// Entry is one recorded delivery.
type Entry struct {
	ID           string     `json:"id"`
	PersonaID    int        `json:"personaId"`
	Recipient    string     `json:"recipientAddress"`
	Subject      string     `json:"subject"`
	OriginalText string     `json:"originalText"`
	RenderedText string     `json:"renderedText"`
	Fallback     bool       `json:"fallback"` // rendered locally, not by the remote voice
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
}

// Log is an in-memory, newest-first delivery log.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	nowFn   func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{nowFn: time.Now}
}

// Record stores a delivery, assigning it an ID and creation time.
func (l *Log) Record(e Entry) Entry {
	e.ID = uuid.NewString()
	e.CreatedAt = l.nowFn().UTC()
	if e.Status == StatusSent && e.SentAt == nil {
		sentAt := e.CreatedAt
		e.SentAt = &sentAt
	}

	l.mu.Lock()
	l.entries = append([]Entry{e}, l.entries...)
	l.mu.Unlock()
	return e
}

// List returns entries, optionally filtered by status. Scheduled entries
// whose dispatch time has passed are promoted to sent first, so callers
// always see the current lifecycle state.
func (l *Log) List(status Status) []Entry {
	now := l.nowFn()

	l.mu.Lock()
	for i := range l.entries {
		e := &l.entries[i]
		if e.Status == StatusScheduled && e.ScheduledAt != nil && !e.ScheduledAt.After(now) {
			e.Status = StatusSent
			if e.SentAt == nil {
				sentAt := *e.ScheduledAt
				e.SentAt = &sentAt
			}
		}
	}
	snapshot := append([]Entry(nil), l.entries...)
	l.mu.Unlock()

	if status == "" {
		return snapshot
	}
	filtered := make([]Entry, 0, len(snapshot))
	for _, e := range snapshot {
		if e.Status == status {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
