package scan

import (
	"slices"
	"sync"
	"time"
)

// Outcome of a single scan.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
)

// Event is an ephemeral record of a scan, never persisted past the session.
type Event struct {
	OrderNumber string
	PayloadHash string
	Timestamp   time.Time
	Outcome     Outcome
	Reason      string
}

// Log is the in-memory scan history of one driver session.
type Log struct {
	mu       sync.RWMutex
	events   []Event
	accepted map[string]struct{}
	limit    int
}

// DefaultLogLimit bounds how many events a session keeps for display.
const DefaultLogLimit = 500

func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return &Log{
		accepted: make(map[string]struct{}),
		limit:    limit,
	}
}

// Record appends an event. Accepted order numbers are remembered for the rest
// of the session even after the event itself is trimmed.
func (l *Log) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Outcome == Accepted && e.OrderNumber != "" {
		l.accepted[e.OrderNumber] = struct{}{}
	}
	l.events = append(l.events, e)
	if over := len(l.events) - l.limit; over > 0 {
		l.events = slices.Delete(l.events, 0, over)
	}
}

// WasAccepted reports whether orderNumber was accepted earlier in this session.
func (l *Log) WasAccepted(orderNumber string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accepted[orderNumber]
	return ok
}

// Events returns the retained events, oldest first.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.events)
}
