package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/aegis-gateway/aegis/internal/models"
)

// RulesHandler handles GET/PUT /api/rules against the current
// profile's time and content rules.
type RulesHandler struct {
	Deps *Deps
}

// RulesBody is both the GET response and the PUT request shape.
type RulesBody struct {
	TimeRules     []models.TimeRule    `json:"time_rules"`
	ContentRules  []models.ContentRule `json:"content_rules"`
	NSFWThreshold float64              `json:"nsfw_threshold"`
}

func (h *RulesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile := h.Deps.Profiles.Current()
	JSON(w, http.StatusOK, RulesBody{
		TimeRules:     profile.TimeRules,
		ContentRules:  profile.ContentRules,
		NSFWThreshold: profile.NSFWThreshold,
	})
}

func (h *RulesHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := h.Deps.Profiles.Current()
	if profile.ID == "" {
		// The synthesized Unrestricted/Locked fallback profile is
		// never persisted, per spec.md §4.6; there is nothing to PUT.
		Error(w, http.StatusConflict, "no persisted profile is active for the current OS user")
		return
	}

	var body RulesBody
	if err := ParseJSON(r, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateRules(body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	for i := range body.TimeRules {
		if body.TimeRules[i].ID == "" {
			body.TimeRules[i].ID = uuid.NewString()
		}
	}
	for i := range body.ContentRules {
		if body.ContentRules[i].ID == "" {
			body.ContentRules[i].ID = uuid.NewString()
		}
	}

	profile.TimeRules = body.TimeRules
	profile.ContentRules = body.ContentRules
	profile.NSFWThreshold = body.NSFWThreshold

	if err := h.Deps.Store.PutProfile(ctx, profile); err != nil {
		h.Deps.Log.Error(ctx, "rules put: store failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.Deps.Profiles.Refresh(ctx); err != nil {
		h.Deps.Log.Warn(ctx, "rules put: profile refresh after save failed", "error", err)
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// validateRules rejects an unknown category or action before anything
// is persisted, per spec.md §7's Config error class ("invalid rule ...
// surfaced to UI via /api/rules PUT error; not loaded").
func validateRules(body RulesBody) error {
	known := make(map[models.Category]bool)
	for _, c := range models.AllCategories() {
		known[c] = true
	}

	for _, r := range body.ContentRules {
		if !known[r.Category] {
			return fmt.Errorf("unknown category %q", r.Category)
		}
		switch r.Action {
		case models.ActionAllow, models.ActionWarn, models.ActionBlock:
		default:
			return fmt.Errorf("unknown action %q for category %q", r.Action, r.Category)
		}
		if r.Threshold < 0 || r.Threshold > 1 {
			return fmt.Errorf("threshold for category %q must be within [0,1]", r.Category)
		}
	}
	return nil
}
