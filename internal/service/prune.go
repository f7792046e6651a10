package service

import (
	"context"
	"log"
	"sync"
	"time"

	"parcelhub-sync-agent/internal/store"
)

// PruneConfig holds configuration for the offline-entity prune scheduler.
type PruneConfig struct {
	// Retention is how long synced entities are kept as a local audit
	// trail before deletion. Default: 7 days.
	Retention time.Duration

	// Interval is how often the prune runs. Default: 1 hour.
	Interval time.Duration
}

// DefaultPruneConfig returns the default retention policy. Synced offline
// entities are kept for a week so receipts can be re-printed, then removed.
func DefaultPruneConfig() PruneConfig {
	return PruneConfig{
		Retention: 7 * 24 * time.Hour,
		Interval:  1 * time.Hour,
	}
}

// PruneScheduler periodically removes synced offline entities past the
// retention window. Unsynced entities are never touched.
type PruneScheduler struct {
	store     store.Store
	config    PruneConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewPruneScheduler creates a prune scheduler.
func NewPruneScheduler(s store.Store, config PruneConfig) *PruneScheduler {
	if config.Retention == 0 {
		config.Retention = 7 * 24 * time.Hour
	}
	if config.Interval == 0 {
		config.Interval = 1 * time.Hour
	}
	return &PruneScheduler{
		store:  s,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the prune loop.
func (s *PruneScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[PruneScheduler] Started - Interval: %v, Retention: %v",
		s.config.Interval, s.config.Retention)

	go s.run()
}

func (s *PruneScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runPrune()
		case <-s.stopCh:
			log.Printf("[PruneScheduler] Stopped")
			return
		}
	}
}

func (s *PruneScheduler) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.config.Retention)
	deleted, err := s.store.DeleteSyncedEntitiesBefore(ctx, cutoff)
	if err != nil {
		log.Printf("[PruneScheduler] Error during prune: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[PruneScheduler] Pruned %d synced offline entities", deleted)
	}
}

// RunNow triggers an immediate prune and returns how many records were
// removed.
func (s *PruneScheduler) RunNow(ctx context.Context) (int64, error) {
	return s.store.DeleteSyncedEntitiesBefore(ctx, time.Now().Add(-s.config.Retention))
}

// Stop stops the prune scheduler.
func (s *PruneScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
