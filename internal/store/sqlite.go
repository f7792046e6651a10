package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"parcelhub-sync-agent/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using a local SQLite database. This is the
// default backend on field devices: durable across restarts, single file,
// no external process. Thread-safe with WAL mode.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the agent database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// createTables creates the four logical tables.
func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		stored_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		payload BLOB NOT NULL,
		entity_id TEXT NOT NULL DEFAULT '',
		enqueued_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_enqueued ON sync_queue(enqueued_at);
	CREATE TABLE IF NOT EXISTS offline_entities (
		local_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload BLOB NOT NULL,
		receipt BLOB,
		synced INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		synced_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_offline_synced ON offline_entities(synced, synced_at);
	CREATE TABLE IF NOT EXISTS reference_data (
		type TEXT PRIMARY KEY,
		items BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// unavailable tags a write failure so callers can detect it with errors.Is
// and degrade to in-memory behavior instead of failing the user action.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// GetCache returns the cache entry for key. Expired entries are deleted on
// read and reported as ErrNotFound, so no stale value ever leaks.
func (s *SQLiteStore) GetCache(ctx context.Context, key string) (*model.CachedEntry, error) {
	s.mu.RLock()
	entry := model.CachedEntry{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT data, stored_at, expires_at FROM cache WHERE key = ?`, key).
		Scan(&entry.Data, &entry.StoredAt, &entry.ExpiresAt)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if entry.Expired(time.Now()) {
		// Lazy expiry: drop the row now, report absent.
		if derr := s.DeleteCache(ctx, key); derr != nil {
			log.Printf("[SQLiteStore] failed to delete expired cache entry %q: %v", key, derr)
		}
		return nil, ErrNotFound
	}

	return &entry, nil
}

func (s *SQLiteStore) PutCache(ctx context.Context, entry model.CachedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (key, data, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at`,
		entry.Key, entry.Data, entry.StoredAt, entry.ExpiresAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCache(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return unavailable(err)
	}
	return nil
}

// AppendQueueItem persists a new sync queue item and returns its id.
func (s *SQLiteStore) AppendQueueItem(ctx context.Context, item model.SyncQueueItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (kind, endpoint, method, payload, entity_id, enqueued_at, attempts, max_attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.Kind), item.Endpoint, item.Method, []byte(item.Payload),
		item.EntityID, item.EnqueuedAt, item.Attempts, item.MaxAttempts)
	if err != nil {
		return 0, unavailable(err)
	}
	return res.LastInsertId()
}

// ListQueueItems returns all pending items in strict enqueue order.
func (s *SQLiteStore) ListQueueItems(ctx context.Context) ([]model.SyncQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, endpoint, method, payload, entity_id, enqueued_at, attempts, max_attempts
		FROM sync_queue ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var items []model.SyncQueueItem
	for rows.Next() {
		var item model.SyncQueueItem
		var kind string
		var payload []byte
		if err := rows.Scan(&item.ID, &kind, &item.Endpoint, &item.Method, &payload,
			&item.EntityID, &item.EnqueuedAt, &item.Attempts, &item.MaxAttempts); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Kind = model.OpKind(kind)
		item.Payload = payload
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) UpdateQueueAttempts(ctx context.Context, id int64, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = ? WHERE id = ?`, attempts, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) DeleteQueueItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) CountQueueItems(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) PutOfflineEntity(ctx context.Context, entity model.OfflineEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_entities (local_id, kind, payload, receipt, synced, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			payload = excluded.payload,
			receipt = excluded.receipt,
			synced = excluded.synced,
			synced_at = excluded.synced_at`,
		entity.LocalID, entity.Kind, []byte(entity.Payload), []byte(entity.Receipt),
		boolToInt(entity.Synced), entity.CreatedAt, entity.SyncedAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) GetOfflineEntity(ctx context.Context, localID string) (*model.OfflineEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanEntity(s.db.QueryRowContext(ctx, `
		SELECT local_id, kind, payload, receipt, synced, created_at, synced_at
		FROM offline_entities WHERE local_id = ?`, localID))
}

func (s *SQLiteStore) ListUnsyncedEntities(ctx context.Context) ([]model.OfflineEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT local_id, kind, payload, receipt, synced, created_at, synced_at
		FROM offline_entities WHERE synced = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced entities: %w", err)
	}
	defer rows.Close()

	var entities []model.OfflineEntity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

func (s *SQLiteStore) MarkEntitySynced(ctx context.Context, localID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE offline_entities SET synced = 1, synced_at = ? WHERE local_id = ?`, at, localID); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSyncedEntitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_entities WHERE synced = 1 AND synced_at < ?`, cutoff)
	if err != nil {
		return 0, unavailable(err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) GetReferenceData(ctx context.Context, typ model.ReferenceType) (*model.ReferenceDataSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := model.ReferenceDataSet{Type: typ}
	var items []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT items, updated_at FROM reference_data WHERE type = ?`, string(typ)).
		Scan(&items, &set.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference data: %w", err)
	}
	set.Items = items
	return &set, nil
}

// PutReferenceData replaces the full list for one semantic type.
func (s *SQLiteStore) PutReferenceData(ctx context.Context, set model.ReferenceDataSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_data (type, items, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			items = excluded.items,
			updated_at = excluded.updated_at`,
		string(set.Type), []byte(set.Items), set.UpdatedAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*model.OfflineEntity, error) {
	var entity model.OfflineEntity
	var payload, receipt []byte
	var synced int
	var syncedAt sql.NullTime
	err := row.Scan(&entity.LocalID, &entity.Kind, &payload, &receipt,
		&synced, &entity.CreatedAt, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan offline entity: %w", err)
	}
	entity.Payload = payload
	entity.Receipt = receipt
	entity.Synced = synced != 0
	if syncedAt.Valid {
		t := syncedAt.Time
		entity.SyncedAt = &t
	}
	return &entity, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
