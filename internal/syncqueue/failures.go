package syncqueue

import (
	"sync"
	"time"
)

// maxRecordedFailures caps the permanent-failure list. Older entries roll
// off; nothing inside the cap is ever silently discarded.
const maxRecordedFailures = 10

// PermanentFailure describes a queue item dropped after exhausting its
// retry ceiling. Surfaced to the UI as an accumulating, inspectable list.
type PermanentFailure struct {
	ItemID   int64     `json:"item_id"`
	Kind     string    `json:"kind"`
	Endpoint string    `json:"endpoint"`
	EntityID string    `json:"entity_id,omitempty"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// failureLog is a small capped in-memory log of permanent sync failures.
type failureLog struct {
	mu      sync.Mutex
	entries []PermanentFailure
}

func (l *failureLog) add(f PermanentFailure) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, f)
	if len(l.entries) > maxRecordedFailures {
		l.entries = l.entries[len(l.entries)-maxRecordedFailures:]
	}
}

// list returns a copy, oldest first.
func (l *failureLog) list() []PermanentFailure {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]PermanentFailure, len(l.entries))
	copy(out, l.entries)
	return out
}
