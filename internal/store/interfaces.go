package store

import (
	"context"
	"time"

	"parcelhub-sync-agent/internal/model"
)

// StoreError is a sentinel error type for store-level failures.
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrNotFound indicates the requested record does not exist (or has
	// expired, for cache entries).
	ErrNotFound StoreError = "record not found"

	// ErrStorageUnavailable indicates the underlying storage rejected a
	// write. Callers must treat this as non-fatal: the user-facing
	// operation still succeeds in memory, durability is lost for that
	// write only.
	ErrStorageUnavailable StoreError = "storage unavailable"
)

// Store is the durable local store behind every other component: a TTL cache
// table, the sync queue, offline entity records, and reference-data sets.
// Each operation is atomic with respect to its single key; no caller needs
// cross-table transactions.
type Store interface {
	// GetCache returns the entry for key, or ErrNotFound if absent or
	// expired. Expired entries are deleted as a side effect of the read.
	GetCache(ctx context.Context, key string) (*model.CachedEntry, error)
	PutCache(ctx context.Context, entry model.CachedEntry) error
	DeleteCache(ctx context.Context, key string) error

	// AppendQueueItem persists a new queue item and returns its assigned
	// id. Ids are monotonically increasing, so insertion order is retry
	// order.
	AppendQueueItem(ctx context.Context, item model.SyncQueueItem) (int64, error)
	// ListQueueItems returns all pending items ordered oldest first.
	ListQueueItems(ctx context.Context) ([]model.SyncQueueItem, error)
	UpdateQueueAttempts(ctx context.Context, id int64, attempts int) error
	DeleteQueueItem(ctx context.Context, id int64) error
	CountQueueItems(ctx context.Context) (int, error)

	PutOfflineEntity(ctx context.Context, entity model.OfflineEntity) error
	GetOfflineEntity(ctx context.Context, localID string) (*model.OfflineEntity, error)
	ListUnsyncedEntities(ctx context.Context) ([]model.OfflineEntity, error)
	MarkEntitySynced(ctx context.Context, localID string, at time.Time) error
	// DeleteSyncedEntitiesBefore removes synced entities older than the
	// cutoff and returns how many were deleted. Retention is an explicit
	// policy driven by the prune scheduler.
	DeleteSyncedEntitiesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetReferenceData(ctx context.Context, typ model.ReferenceType) (*model.ReferenceDataSet, error)
	PutReferenceData(ctx context.Context, set model.ReferenceDataSet) error

	Close() error
}
