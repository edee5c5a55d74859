package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// CheckRequest is the browser interceptor's /api/check body.
type CheckRequest struct {
	Prompt     string `json:"prompt"`
	OSUsername string `json:"os_username,omitempty"`
}

// CheckResponse is the stable wire format spec.md §6 pins.
type CheckResponse struct {
	Action     models.Action          `json:"action"`
	Reason     string                 `json:"reason"`
	Categories []models.CategoryMatch `json:"categories"`
	LatencyMs  int64                  `json:"latency_ms"`
}

// CheckHandler serves POST /api/check: the same verdict path C8 runs
// for proxied traffic, for direct calls from the browser interceptor
// (C10), per spec.md §2's "the browser path substitutes C8 by C10,
// but C3-C7 are identical" data-flow note.
type CheckHandler struct {
	Deps *Deps
}

func (h *CheckHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckRequest
	if err := ParseJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		Error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	ctx := r.Context()
	profile := h.resolveProfile(ctx, req.OSUsername)

	protection, err := h.Deps.Store.GetProtectionState(ctx, time.Now())
	if err != nil {
		h.Deps.Log.Error(ctx, "check: protection state lookup failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	classification := h.Deps.Classifier.Classify(ctx, req.Prompt)
	verdict := h.Deps.Engine.Evaluate(classification, time.Now(), profile, protection)

	h.recordEvent(ctx, profile, verdict, req.Prompt)
	h.recordFlags(ctx, profile, classification, req.Prompt)

	JSON(w, http.StatusOK, CheckResponse{
		Action:     verdict.Action,
		Reason:     verdict.Reason,
		Categories: classification.Matches,
		LatencyMs:  time.Since(start).Milliseconds(),
	})
}

// resolveProfile mirrors profilemgr's own resolution logic for an
// explicitly named OS user: the first enabled profile matching it, or
// else the synthetic fallback (Locked when profiles.forbid_unrestricted
// is set, Unrestricted otherwise). It returns the cached current
// profile when no username is supplied, when the username matches the
// current profile, or when the profile list cannot be read.
func (h *CheckHandler) resolveProfile(ctx context.Context, osUsername string) models.Profile {
	current := h.Deps.Profiles.Current()
	if osUsername == "" || current.MatchesOSUsername(osUsername) {
		return current
	}

	profiles, err := h.Deps.Store.ListProfiles(ctx)
	if err != nil {
		h.Deps.Log.Warn(ctx, "check: profile lookup by os_username failed", "error", err)
		return current
	}
	for _, p := range profiles {
		if p.Enabled && p.MatchesOSUsername(osUsername) {
			return p
		}
	}
	if h.Deps.Cfg != nil && h.Deps.Cfg.Profiles.ForbidUnrestricted {
		return models.Locked(osUsername)
	}
	return models.Unrestricted(osUsername)
}

func (h *CheckHandler) recordEvent(ctx context.Context, profile models.Profile, verdict models.Verdict, prompt string) {
	event := models.Event{
		Timestamp:     time.Now(),
		ProfileID:     profile.ID,
		Source:        "browser",
		Action:        verdict.Action,
		PromptHash:    hashPreview(prompt),
		PromptPreview: truncatePreview(prompt),
	}
	for _, m := range verdict.MatchedCategories {
		event.Categories = append(event.Categories, m.Category)
	}
	if _, err := h.Deps.Store.AppendEvent(ctx, event); err != nil {
		h.Deps.Log.Error(ctx, "check: append event failed", "error", err)
	}
}

func (h *CheckHandler) recordFlags(ctx context.Context, profile models.Profile, c models.Classification, prompt string) {
	for _, flag := range c.Flags {
		f := models.FlaggedEvent{
			Timestamp:     time.Now(),
			ProfileID:     profile.ID,
			Kind:          flag.Kind,
			Confidence:    flag.Confidence,
			PromptPreview: truncatePreview(prompt),
		}
		if err := h.Deps.Store.AppendFlaggedEvent(ctx, f); err != nil {
			h.Deps.Log.Error(ctx, "check: append flagged event failed", "error", err)
		}
	}
}
