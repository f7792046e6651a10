// Package syncqueue owns the durable FIFO queue of pending mutations and the
// retry state machine that replays them against the backend. It is the sole
// component that talks to the remote API for queued work.
package syncqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/store"
)

// SyncError is a sentinel error type for delivery failures.
type SyncError string

func (e SyncError) Error() string { return string(e) }

const (
	// ErrTokenMissing indicates no valid credential was available at drain
	// time. Retryable.
	ErrTokenMissing SyncError = "no access token available"

	// ErrRemoteRejected indicates a non-2xx response from the backend.
	// Retryable up to the attempt ceiling.
	ErrRemoteRejected SyncError = "backend rejected request"

	// ErrRequestTimeout indicates a single delivery attempt exceeded the
	// per-request timeout. Retryable, and distinct from ErrRemoteRejected
	// so a hung backend never stalls the whole drain pass.
	ErrRequestTimeout SyncError = "delivery attempt timed out"
)

// TokenProvider supplies a fresh backend credential. Called on every
// delivery attempt; the queue never stores credentials.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Connectivity is the read side of the network status monitor.
type Connectivity interface {
	IsOnline() bool
}

// Config holds sync queue manager dependencies and settings.
type Config struct {
	Store        store.Store
	Connectivity Connectivity
	Tokens       TokenProvider

	// BaseURL is prepended to relative item endpoints.
	BaseURL string

	// RequestTimeout bounds one delivery attempt. Default: 15s.
	RequestTimeout time.Duration

	// DefaultMaxAttempts applies to items enqueued without their own
	// ceiling. Default: model.DefaultMaxAttempts.
	DefaultMaxAttempts int

	Client *http.Client

	// OnSyncState is invoked when a drain starts (true) and ends (false).
	OnSyncState func(syncing bool)

	// OnItemSynced is invoked after an item is delivered and removed,
	// so the creation flow can mark its offline entity synced.
	OnItemSynced func(item model.SyncQueueItem)
}

// Manager drives the sync queue. A single in-memory flag guarantees only one
// drain pass runs at a time; concurrent triggers are no-ops.
type Manager struct {
	store       store.Store
	conn        Connectivity
	tokens      TokenProvider
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	client      *http.Client

	onSyncState  func(bool)
	onItemSynced func(model.SyncQueueItem)

	mu        sync.Mutex
	isSyncing bool
	memItems  []model.SyncQueueItem // items whose persist failed; session-local
	memSeq    int64

	failures *failureLog
}

// New creates a sync queue manager.
func New(cfg Config) *Manager {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.DefaultMaxAttempts == 0 {
		cfg.DefaultMaxAttempts = model.DefaultMaxAttempts
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &Manager{
		store:        cfg.Store,
		conn:         cfg.Connectivity,
		tokens:       cfg.Tokens,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      cfg.RequestTimeout,
		maxAttempts:  cfg.DefaultMaxAttempts,
		client:       cfg.Client,
		onSyncState:  cfg.OnSyncState,
		onItemSynced: cfg.OnItemSynced,
		failures:     &failureLog{},
	}
}

// Enqueue appends a pending mutation and, if currently online, kicks off a
// drain in the background. It never blocks the caller and cannot fail: a
// storage write failure is logged and the item is kept in memory for this
// session (durability lost, availability kept).
func (m *Manager) Enqueue(ctx context.Context, item model.SyncQueueItem) {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}
	if item.MaxAttempts == 0 {
		item.MaxAttempts = m.maxAttempts
	}

	id, err := m.store.AppendQueueItem(ctx, item)
	if err != nil {
		log.Printf("[SyncQueue] persist failed, keeping item in memory: %v", err)
		m.mu.Lock()
		m.memSeq--
		item.ID = m.memSeq
		m.memItems = append(m.memItems, item)
		m.mu.Unlock()
	} else {
		item.ID = id
	}

	log.Printf("[SyncQueue] enqueued %s %s (id=%d)", item.Method, item.Endpoint, item.ID)

	if m.conn.IsOnline() {
		go m.drain(context.Background(), "enqueue")
	}
}

// Drain runs one pass over the queue. Returns false if a pass was already in
// flight (the call is then a no-op).
func (m *Manager) Drain(ctx context.Context) bool {
	return m.drain(ctx, "drain")
}

// ForceDrain is Drain triggered by manual user action or a worker
// SYNC_REQUIRED message. Same single-flight guarantee.
func (m *Manager) ForceDrain(ctx context.Context) bool {
	return m.drain(ctx, "force")
}

// Run consumes reconnect edge signals and triggers a drain for each. The
// single-flight guard debounces bursts of signals into one pass.
func (m *Manager) Run(ctx context.Context, reconnected <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnected:
			m.drain(ctx, "reconnect")
		}
	}
}

// IsSyncing reports whether a drain pass is in flight.
func (m *Manager) IsSyncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSyncing
}

// PendingCount returns the number of queued items, including any held only
// in memory after a storage failure.
func (m *Manager) PendingCount(ctx context.Context) int {
	count, err := m.store.CountQueueItems(ctx)
	if err != nil {
		log.Printf("[SyncQueue] count failed: %v", err)
	}
	m.mu.Lock()
	count += len(m.memItems)
	m.mu.Unlock()
	return count
}

// PermanentFailures returns the capped list of items dropped after
// exhausting their retry ceiling, oldest first.
func (m *Manager) PermanentFailures() []PermanentFailure {
	return m.failures.list()
}

func (m *Manager) beginDrain() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isSyncing {
		return false
	}
	m.isSyncing = true
	return true
}

func (m *Manager) endDrain() {
	m.mu.Lock()
	m.isSyncing = false
	m.mu.Unlock()
	if m.onSyncState != nil {
		m.onSyncState(false)
	}
}

// drain processes queued items strictly oldest first. Items are attempted in
// enqueue order to preserve the device's causal ordering on the backend; a
// permanently failing head item is dropped at its ceiling so it cannot block
// later items forever.
func (m *Manager) drain(ctx context.Context, trigger string) bool {
	if !m.beginDrain() {
		return false
	}
	defer m.endDrain()
	if m.onSyncState != nil {
		m.onSyncState(true)
	}

	items, err := m.store.ListQueueItems(ctx)
	if err != nil {
		log.Printf("[SyncQueue] list failed: %v", err)
	}
	m.mu.Lock()
	items = append(items, m.memItems...)
	m.mu.Unlock()

	if len(items) == 0 {
		return true
	}
	log.Printf("[SyncQueue] draining %d item(s) (trigger=%s)", len(items), trigger)

	for _, item := range items {
		if ctx.Err() != nil {
			return true
		}
		// Connectivity dropped mid-drain: leave the rest queued for the
		// next trigger, never half-sent.
		if !m.conn.IsOnline() {
			log.Printf("[SyncQueue] offline mid-drain, %d item(s) left queued", remaining(items, item.ID))
			return true
		}

		err := m.deliver(ctx, item)
		if err == nil {
			m.remove(ctx, item)
			log.Printf("[SyncQueue] delivered %s %s (id=%d, attempt %d)",
				item.Method, item.Endpoint, item.ID, item.Attempts+1)
			if m.onItemSynced != nil {
				m.onItemSynced(item)
			}
			continue
		}

		item.Attempts++
		if item.Attempts >= item.MaxAttempts {
			m.remove(ctx, item)
			failure := PermanentFailure{
				ItemID:   item.ID,
				Kind:     string(item.Kind),
				Endpoint: item.Endpoint,
				EntityID: item.EntityID,
				Attempts: item.Attempts,
				Reason:   err.Error(),
				FailedAt: time.Now().UTC(),
			}
			m.failures.add(failure)
			log.Printf("[SyncQueue] dropping item %d after %d attempts: %v", item.ID, item.Attempts, err)
			continue
		}

		// Not at the ceiling yet: persist the incremented attempt count
		// and move on. No immediate re-retry within this pass.
		m.persistAttempts(ctx, item)
		log.Printf("[SyncQueue] attempt %d/%d failed for item %d: %v",
			item.Attempts, item.MaxAttempts, item.ID, err)
	}
	return true
}

// deliver replays one item against the backend with a fresh credential and a
// per-attempt timeout.
func (m *Manager) deliver(ctx context.Context, item model.SyncQueueItem) error {
	token, err := m.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMissing, err)
	}
	if token == "" {
		return ErrTokenMissing
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	url := item.Endpoint
	if !strings.HasPrefix(url, "http") {
		url = m.baseURL + url
	}

	req, err := http.NewRequestWithContext(reqCtx, item.Method, url, bytes.NewReader(item.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrRequestTimeout, m.timeout)
		}
		return fmt.Errorf("deliver %s %s: %w", item.Method, url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("%w: status %d", ErrRemoteRejected, resp.StatusCode)
}

// remove deletes an item wherever it lives: the store or the in-memory
// overflow list.
func (m *Manager) remove(ctx context.Context, item model.SyncQueueItem) {
	if item.ID < 0 {
		m.mu.Lock()
		for i := range m.memItems {
			if m.memItems[i].ID == item.ID {
				m.memItems = append(m.memItems[:i], m.memItems[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		return
	}
	if err := m.store.DeleteQueueItem(ctx, item.ID); err != nil {
		log.Printf("[SyncQueue] delete failed for item %d: %v", item.ID, err)
	}
}

func (m *Manager) persistAttempts(ctx context.Context, item model.SyncQueueItem) {
	if item.ID < 0 {
		m.mu.Lock()
		for i := range m.memItems {
			if m.memItems[i].ID == item.ID {
				m.memItems[i].Attempts = item.Attempts
				break
			}
		}
		m.mu.Unlock()
		return
	}
	if err := m.store.UpdateQueueAttempts(ctx, item.ID, item.Attempts); err != nil {
		log.Printf("[SyncQueue] attempt update failed for item %d: %v", item.ID, err)
	}
}

func remaining(items []model.SyncQueueItem, fromID int64) int {
	for i := range items {
		if items[i].ID == fromID {
			return len(items) - i
		}
	}
	return 0
}
