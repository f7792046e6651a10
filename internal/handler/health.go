package handler

import (
	"net/http"
	"runtime"
	"time"

	"parcelhub-sync-agent/internal/netmon"
	"parcelhub-sync-agent/internal/syncqueue"
	"parcelhub-sync-agent/pkg/response"
)

// StartTime tracks when the agent started for uptime calculation
var StartTime = time.Now()

// Handler contains the status handlers and their dependencies.
type Handler struct {
	monitor *netmon.Monitor
	queue   *syncqueue.Manager
	version string
}

// New creates a status handler.
func New(monitor *netmon.Monitor, queue *syncqueue.Manager, version string) *Handler {
	return &Handler{monitor: monitor, queue: queue, version: version}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	response.OK(w, resp)
}

// StatusChecks represents the checks in the status response. This is what
// the on-device UI polls for its pending-count indicator and online banner.
type StatusChecks struct {
	Online          bool    `json:"online"`
	JustReconnected bool    `json:"just_reconnected"`
	Syncing         bool    `json:"syncing"`
	PendingCount    int     `json:"pending_count"`
	MemoryMB        float64 `json:"memory_mb"`
}

// StatusResponse represents the unified agent status response.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status - unified status for the on-device UI
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       "parcelhub-sync-agent",
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		Checks: StatusChecks{
			Online:          h.monitor.IsOnline(),
			JustReconnected: h.monitor.JustReconnected(),
			Syncing:         h.queue.IsSyncing(),
			PendingCount:    h.queue.PendingCount(r.Context()),
			MemoryMB:        float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
