package handler

import (
	"encoding/json"
	"net/http"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/service"
	"parcelhub-sync-agent/pkg/apierror"
	"parcelhub-sync-agent/pkg/response"
)

// ShipmentHandler exposes the shipment creation flow to the on-device UI.
type ShipmentHandler struct {
	svc *service.ShipmentService
}

// NewShipmentHandler creates a shipment handler.
func NewShipmentHandler(svc *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{svc: svc}
}

// createRequest is the UI-facing creation body.
type createRequest struct {
	model.ShipmentPayload
	ServedBy string `json:"served_by"`
}

// Create handles POST /api/v1/shipments. Live creations return 201; offline
// creations return 202 with the locally generated receipt.
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.SenderName == "" || req.ReceiverName == "" || req.Destination == "" {
		response.Error(w, apierror.BadRequest("sender_name, receiver_name and destination are required"))
		return
	}

	result, err := h.svc.Create(r.Context(), req.ShipmentPayload, req.ServedBy)
	if err != nil {
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}

	if result.Pending {
		response.Accepted(w, result)
		return
	}
	response.Created(w, result)
}

// ListOffline handles GET /api/v1/shipments/offline - shipments still
// awaiting reconciliation.
func (h *ShipmentHandler) ListOffline(w http.ResponseWriter, r *http.Request) {
	entities, err := h.svc.UnsyncedEntities(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list offline shipments"))
		return
	}
	response.OK(w, entities)
}
