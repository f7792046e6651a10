package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"parcelhub-sync-agent/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store on a shared MySQL database. Used on depot
// kiosks where several agent processes on the same box share one queue and
// cache; field devices use the SQLite backend instead.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL using the given DSN. The DSN must include
// parseTime=true.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStore] Initialized")
	return &MySQLStore{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			cache_key VARCHAR(512) PRIMARY KEY,
			data MEDIUMBLOB NOT NULL,
			stored_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			kind VARCHAR(16) NOT NULL,
			endpoint VARCHAR(512) NOT NULL,
			method VARCHAR(8) NOT NULL,
			payload MEDIUMBLOB NOT NULL,
			entity_id VARCHAR(64) NOT NULL DEFAULT '',
			enqueued_at DATETIME(6) NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL,
			INDEX idx_sync_queue_enqueued (enqueued_at)
		)`,
		`CREATE TABLE IF NOT EXISTS offline_entities (
			local_id VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			payload MEDIUMBLOB NOT NULL,
			receipt MEDIUMBLOB,
			synced TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			synced_at DATETIME(6) NULL,
			INDEX idx_offline_synced (synced, synced_at)
		)`,
		`CREATE TABLE IF NOT EXISTS reference_data (
			type VARCHAR(32) PRIMARY KEY,
			items MEDIUMBLOB NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) GetCache(ctx context.Context, key string) (*model.CachedEntry, error) {
	entry := model.CachedEntry{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT data, stored_at, expires_at FROM cache WHERE cache_key = ?`, key).
		Scan(&entry.Data, &entry.StoredAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if entry.Expired(time.Now()) {
		if derr := s.DeleteCache(ctx, key); derr != nil {
			log.Printf("[MySQLStore] failed to delete expired cache entry %q: %v", key, derr)
		}
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *MySQLStore) PutCache(ctx context.Context, entry model.CachedEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache (cache_key, data, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			data = VALUES(data),
			stored_at = VALUES(stored_at),
			expires_at = VALUES(expires_at)`,
		entry.Key, entry.Data, entry.StoredAt, entry.ExpiresAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) DeleteCache(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE cache_key = ?`, key); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) AppendQueueItem(ctx context.Context, item model.SyncQueueItem) (int64, error) {
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

func (s *MySQLStore) ListQueueItems(ctx context.Context) ([]model.SyncQueueItem, error) {
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

func (s *MySQLStore) UpdateQueueAttempts(ctx context.Context, id int64, attempts int) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = ? WHERE id = ?`, attempts, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) DeleteQueueItem(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) CountQueueItems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return count, nil
}

func (s *MySQLStore) PutOfflineEntity(ctx context.Context, entity model.OfflineEntity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_entities (local_id, kind, payload, receipt, synced, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			receipt = VALUES(receipt),
			synced = VALUES(synced),
			synced_at = VALUES(synced_at)`,
		entity.LocalID, entity.Kind, []byte(entity.Payload), []byte(entity.Receipt),
		boolToInt(entity.Synced), entity.CreatedAt, entity.SyncedAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) GetOfflineEntity(ctx context.Context, localID string) (*model.OfflineEntity, error) {
	return scanEntity(s.db.QueryRowContext(ctx, `
		SELECT local_id, kind, payload, receipt, synced, created_at, synced_at
		FROM offline_entities WHERE local_id = ?`, localID))
}

func (s *MySQLStore) ListUnsyncedEntities(ctx context.Context) ([]model.OfflineEntity, error) {
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

func (s *MySQLStore) MarkEntitySynced(ctx context.Context, localID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE offline_entities SET synced = 1, synced_at = ? WHERE local_id = ?`, at, localID); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MySQLStore) DeleteSyncedEntitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_entities WHERE synced = 1 AND synced_at < ?`, cutoff)
	if err != nil {
		return 0, unavailable(err)
	}
	return res.RowsAffected()
}

func (s *MySQLStore) GetReferenceData(ctx context.Context, typ model.ReferenceType) (*model.ReferenceDataSet, error) {
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

func (s *MySQLStore) PutReferenceData(ctx context.Context, set model.ReferenceDataSet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_data (type, items, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			items = VALUES(items),
			updated_at = VALUES(updated_at)`,
		string(set.Type), []byte(set.Items), set.UpdatedAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
