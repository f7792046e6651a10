package handler

import (
	"context"
	"net/http"

	"parcelhub-sync-agent/internal/syncqueue"
	"parcelhub-sync-agent/pkg/response"
)

// SyncHandler exposes manual sync controls and failure inspection.
type SyncHandler struct {
	queue *syncqueue.Manager
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(queue *syncqueue.Manager) *SyncHandler {
	return &SyncHandler{queue: queue}
}

// forceSyncResponse reports whether a drain pass was started.
type forceSyncResponse struct {
	Started bool `json:"started"`
	Pending int  `json:"pending"`
}

// Force handles POST /api/v1/sync - manual pull-to-refresh style drain.
// The drain runs in the background; started=false means a pass was already
// in flight and this call was a no-op.
func (h *SyncHandler) Force(w http.ResponseWriter, r *http.Request) {
	started := !h.queue.IsSyncing()
	go h.queue.ForceDrain(context.Background())
	response.OK(w, forceSyncResponse{
		Started: started,
		Pending: h.queue.PendingCount(r.Context()),
	})
}

// Failures handles GET /api/v1/sync/failures - the capped list of items
// dropped after exhausting their retry ceiling.
func (h *SyncHandler) Failures(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.queue.PermanentFailures())
}
