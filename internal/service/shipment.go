package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/netmon"
	"parcelhub-sync-agent/internal/receipt"
	"parcelhub-sync-agent/internal/store"
	"parcelhub-sync-agent/internal/syncqueue"
	"parcelhub-sync-agent/pkg/uid"
)

// CreateResult is what the UI gets back from a shipment creation. Pending
// creations carry the locally generated receipt; live creations carry the
// backend's response.
type CreateResult struct {
	LocalID        string          `json:"local_id,omitempty"`
	Pending        bool            `json:"pending"`
	ReceiptNumber  string          `json:"receipt_number,omitempty"`
	PackageToken   string          `json:"package_token,omitempty"`
	Receipt        []receipt.Line  `json:"receipt,omitempty"`
	ServerResponse json.RawMessage `json:"server_response,omitempty"`
}

// ShipmentConfig holds shipment service dependencies and settings.
type ShipmentConfig struct {
	Store   store.Store
	Queue   *syncqueue.Manager
	Monitor *netmon.Monitor

	// Endpoint is the backend shipment creation endpoint, relative to
	// BaseURL.
	BaseURL  string
	Endpoint string

	// Template is the optional merchant receipt template; nil selects the
	// default layout.
	Template *receipt.Template

	CompanyName string
	OfficeName  string

	// RequestTimeout bounds the live creation attempt. Default: 15s.
	RequestTimeout time.Duration

	Client *http.Client
}

// ShipmentService owns the shipment creation flow: live creation when
// online, offline receipt + queue fallback otherwise. It is the only writer
// of offline entity records.
type ShipmentService struct {
	store    store.Store
	queue    *syncqueue.Manager
	monitor  *netmon.Monitor
	baseURL  string
	endpoint string
	template *receipt.Template
	company  string
	office   string
	timeout  time.Duration
	client   *http.Client

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// NewShipmentService creates a shipment service.
func NewShipmentService(cfg ShipmentConfig) *ShipmentService {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/api/v1/shipments"
	}
	return &ShipmentService{
		store:    cfg.Store,
		queue:    cfg.Queue,
		monitor:  cfg.Monitor,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		endpoint: cfg.Endpoint,
		template: cfg.Template,
		company:  cfg.CompanyName,
		office:   cfg.OfficeName,
		timeout:  cfg.RequestTimeout,
		client:   cfg.Client,
		Now:      time.Now,
	}
}

// MarkSynced flips the offline entity paired with a delivered queue item.
// Wired as the queue manager's OnItemSynced hook so entity records stay
// exclusively owned by this service.
func (s *ShipmentService) MarkSynced(item model.SyncQueueItem) {
	if item.EntityID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.MarkEntitySynced(ctx, item.EntityID, s.Now().UTC()); err != nil {
		log.Printf("[Shipments] mark synced failed for %s: %v", item.EntityID, err)
	}
}

// Create attempts a live creation when online and falls back to the offline
// path on any failure. The user's create action always succeeds: worst case
// it comes back pending with a locally generated receipt.
func (s *ShipmentService) Create(ctx context.Context, p model.ShipmentPayload, servedBy string) (*CreateResult, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	if s.monitor.IsOnline() {
		if resp, err := s.createLive(ctx, payload); err == nil {
			return &CreateResult{Pending: false, ServerResponse: resp}, nil
		} else {
			log.Printf("[Shipments] live create failed, going offline path: %v", err)
		}
	}

	return s.createOffline(ctx, p, payload, servedBy), nil
}

func (s *ShipmentService) createLive(ctx context.Context, payload []byte) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.baseURL+s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// A failed live request is a connectivity observation; flip the
		// monitor now instead of waiting for the next probe.
		s.monitor.SetOnline(false)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return body, nil
}

// createOffline generates the receipt, records the offline entity, and
// enqueues the mutation. Storage failures are swallowed: the receipt is
// already in hand and must still reach the printer.
func (s *ShipmentService) createOffline(ctx context.Context, p model.ShipmentPayload, payload []byte, servedBy string) *CreateResult {
	now := s.Now()
	localID := uid.NewOfflineID(now)

	lines := receipt.Generate(p, receipt.Context{
		LocalID:     localID,
		ServedBy:    servedBy,
		CompanyName: s.company,
		OfficeName:  s.office,
		CreatedAt:   now,
	}, s.template)

	receiptJSON, _ := json.Marshal(lines)

	entity := model.OfflineEntity{
		LocalID:   localID,
		Kind:      "shipment",
		Payload:   payload,
		Receipt:   receiptJSON,
		CreatedAt: now.UTC(),
	}
	if err := s.store.PutOfflineEntity(ctx, entity); err != nil {
		log.Printf("[Shipments] offline entity write failed (continuing in memory): %v", err)
	}

	s.queue.Enqueue(ctx, model.SyncQueueItem{
		Kind:     model.OpCreate,
		Endpoint: s.endpoint,
		Method:   http.MethodPost,
		Payload:  payload,
		EntityID: localID,
	})

	log.Printf("[Shipments] created offline shipment %s", localID)
	return &CreateResult{
		LocalID:       localID,
		Pending:       true,
		ReceiptNumber: receipt.ReceiptNumber(localID),
		PackageToken:  receipt.PackageToken(localID),
		Receipt:       lines,
	}
}

// UnsyncedEntities lists offline shipments still awaiting reconciliation.
func (s *ShipmentService) UnsyncedEntities(ctx context.Context) ([]model.OfflineEntity, error) {
	return s.store.ListUnsyncedEntities(ctx)
}
