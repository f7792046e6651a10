package model

import (
	"encoding/json"
	"time"
)

// OpKind identifies the class of a queued mutation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// DefaultMaxAttempts is the retry ceiling applied when an item does not
// specify its own.
const DefaultMaxAttempts = 5

// SyncQueueItem is one pending mutation waiting to be replayed against the
// backend. The payload is captured at enqueue time and never modified; only
// the sync queue manager increments Attempts.
type SyncQueueItem struct {
	ID          int64           `json:"id"`
	Kind        OpKind          `json:"kind"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Payload     json.RawMessage `json:"payload"`
	EntityID    string          `json:"entity_id,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
}

// OfflineEntity is a record created while disconnected, keyed by a locally
// generated id. Receipt holds the rendered receipt lines as JSON so the UI
// can re-print without regenerating.
type OfflineEntity struct {
	LocalID   string          `json:"local_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Receipt   json.RawMessage `json:"receipt,omitempty"`
	Synced    bool            `json:"synced"`
	CreatedAt time.Time       `json:"created_at"`
	SyncedAt  *time.Time      `json:"synced_at,omitempty"`
}
