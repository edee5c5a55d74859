package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aegis-gateway/aegis/internal/models"
)

// FlaggedHandler handles GET /api/flagged and POST
// /api/flagged/{id}/acknowledge: the Tier-3 sentiment review queue,
// per spec.md §4.4's "persisted to a flagged events table for
// parental review" contract.
type FlaggedHandler struct {
	Deps *Deps
}

// FlaggedResponse wraps the list returned by GET /api/flagged.
type FlaggedResponse struct {
	Events []models.FlaggedEvent `json:"events"`
}

func (h *FlaggedHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	onlyUnacknowledged := r.URL.Query().Get("all") != "true"

	events, err := h.Deps.Store.ListFlaggedEvents(r.Context(), onlyUnacknowledged)
	if err != nil {
		h.Deps.Log.Error(r.Context(), "flagged: list failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, FlaggedResponse{Events: events})
}

func (h *FlaggedHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid flagged event id")
		return
	}

	if err := h.Deps.Store.AcknowledgeFlaggedEvent(r.Context(), id); err != nil {
		h.Deps.Log.Error(r.Context(), "flagged: acknowledge failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
