package handler

import (
	"errors"
	"net/http"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/refdata"
	"parcelhub-sync-agent/internal/store"
	"parcelhub-sync-agent/pkg/apierror"
	"parcelhub-sync-agent/pkg/response"

	"github.com/go-chi/chi/v5"
)

// RefDataHandler serves reference-data lists to the on-device UI.
type RefDataHandler struct {
	mgr    *refdata.Manager
	urlFor func(model.ReferenceType) string
}

// NewRefDataHandler creates a reference-data handler. urlFor maps a semantic
// type to its backend URL.
func NewRefDataHandler(mgr *refdata.Manager, urlFor func(model.ReferenceType) string) *RefDataHandler {
	return &RefDataHandler{mgr: mgr, urlFor: urlFor}
}

// Get handles GET /api/v1/reference/{type} - the last-known list, for
// initial form render.
func (h *RefDataHandler) Get(w http.ResponseWriter, r *http.Request) {
	typ := model.ReferenceType(chi.URLParam(r, "type"))
	set, err := h.mgr.Get(r.Context(), typ)
	if err != nil {
		if errors.Is(err, refdata.ErrUnknownType) {
			response.Error(w, apierror.BadRequest(err.Error()))
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, apierror.NotFound("no cached data for type "+string(typ)))
			return
		}
		response.Error(w, apierror.InternalError("failed to read reference data"))
		return
	}
	response.OK(w, set)
}

// Refresh handles POST /api/v1/reference/{type}/refresh - fetches the live
// list, replacing the cached set. Falls back to the cached set offline.
func (h *RefDataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	typ := model.ReferenceType(chi.URLParam(r, "type"))
	set, err := h.mgr.Refresh(r.Context(), typ, h.urlFor(typ))
	if err != nil {
		if errors.Is(err, refdata.ErrUnknownType) {
			response.Error(w, apierror.BadRequest(err.Error()))
			return
		}
		response.Error(w, apierror.ServiceUnavailable("reference data unavailable"))
		return
	}
	response.OK(w, set)
}
