package handlers

import (
	"net/http"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// ProtectionHandler handles GET /api/protection/status and the
// pause/resume/disable mutations. Per spec.md §4.9, pause and resume
// require no session (a parent can toggle from the tray without
// re-authenticating); disable requires a session since it turns
// filtering off entirely.
type ProtectionHandler struct {
	Deps *Deps
}

// StatusResponse is the GET /api/protection/status body.
type StatusResponse struct {
	State      models.ProtectionStateKind `json:"state"`
	PauseUntil *time.Time                 `json:"pause_until,omitempty"`
}

func (h *ProtectionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.Deps.Store.GetProtectionState(ctx, time.Now())
	if err != nil {
		h.Deps.Log.Error(ctx, "protection status: lookup failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := StatusResponse{State: state.Kind}
	if !state.Until.IsZero() {
		resp.PauseUntil = &state.Until
	}
	JSON(w, http.StatusOK, resp)
}

// PauseRequest is the POST /api/protection/pause body. Exactly one of
// DurationMinutes or Indefinite should be set; DurationMinutes wins if
// both are present.
type PauseRequest struct {
	DurationMinutes int  `json:"duration_minutes,omitempty"`
	Indefinite      bool `json:"indefinite,omitempty"`
}

func (h *ProtectionHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := ParseJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state := models.ProtectionState{Kind: models.ProtectionPaused}
	if req.DurationMinutes > 0 {
		state.Until = time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute)
	} else if !req.Indefinite {
		Error(w, http.StatusBadRequest, "either duration_minutes or indefinite must be set")
		return
	}

	if err := h.Deps.Store.SetProtectionState(r.Context(), state); err != nil {
		h.Deps.Log.Error(r.Context(), "protection pause: store failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ProtectionHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	state := models.ProtectionState{Kind: models.ProtectionActive}
	if err := h.Deps.Store.SetProtectionState(r.Context(), state); err != nil {
		h.Deps.Log.Error(r.Context(), "protection resume: store failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ProtectionHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	state := models.ProtectionState{Kind: models.ProtectionDisabled}
	if err := h.Deps.Store.SetProtectionState(r.Context(), state); err != nil {
		h.Deps.Log.Error(r.Context(), "protection disable: store failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
