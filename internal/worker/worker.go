// Package worker is the background realm of the agent: it decides when a
// background sync should happen and pre-warms caches, mirroring the
// service-worker side of the original page/worker split. It never touches
// the queue directly; it only posts SYNC_REQUIRED and lets the agent drain.
package worker

import (
	"context"
	"log"
	"time"

	"parcelhub-sync-agent/internal/fetch"
)

// Config holds background worker settings.
type Config struct {
	Bus   *Bus
	Fetch *fetch.Client

	// SyncInterval is how often the worker requests a background sync.
	// Default: 5m.
	SyncInterval time.Duration
}

// Worker runs the background loop.
type Worker struct {
	bus      *Bus
	fetch    *fetch.Client
	interval time.Duration
}

// New creates a background worker.
func New(cfg Config) *Worker {
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	return &Worker{
		bus:      cfg.Bus,
		fetch:    cfg.Fetch,
		interval: cfg.SyncInterval,
	}
}

// Run processes incoming messages and posts periodic sync requests until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("[Worker] Started - sync interval: %v", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] Stopped")
			return
		case <-ticker.C:
			if !w.bus.PostToAgent(Message{Kind: MsgSyncRequired}) {
				log.Printf("[Worker] sync request dropped, agent busy")
			}
		case msg := <-w.bus.WorkerMessages():
			w.handle(ctx, msg, ticker)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message, ticker *time.Ticker) {
	switch msg.Kind {
	case MsgCacheURLs:
		log.Printf("[Worker] pre-warming %d URL(s)", len(msg.URLs))
		w.fetch.PreWarm(ctx, fetch.ClassStatic, msg.URLs)
	case MsgSkipWaiting:
		// Restart the tick cycle immediately and request a sync now.
		ticker.Reset(w.interval)
		w.bus.PostToAgent(Message{Kind: MsgSyncRequired})
	default:
		log.Printf("[Worker] ignoring unknown message kind %q", msg.Kind)
	}
}
