package model

import "time"

// CachedEntry is a generic TTL cache record stored in the persistent store's
// cache table, keyed by a cache key string.
type CachedEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at the given instant.
// Expired entries are treated as absent and deleted on the next read.
func (e *CachedEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
