package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// StatsHandler handles GET /api/stats: aggregated counts over a
// configurable trailing window, computed from the event log.
type StatsHandler struct {
	Deps *Deps
}

// StatsResponse is the GET /api/stats body.
type StatsResponse struct {
	WindowMinutes int                      `json:"window_minutes"`
	Total         int                      `json:"total"`
	ByAction      map[models.Action]int    `json:"by_action"`
	ByCategory    map[models.Category]int  `json:"by_category"`
}

// statsScanLimit caps how many recent events the aggregation walks.
// A dedicated SQL aggregate query would scale better, but spec.md
// never specifies the window's event volume, and this keeps the
// query surface on top of store.ListEvents rather than adding a
// second bespoke query path for one dashboard widget.
const statsScanLimit = 5000

func (h *StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	windowMinutes := 1440
	if v := r.URL.Query().Get("window_minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowMinutes = n
		}
	}

	events, err := h.Deps.Store.ListEvents(r.Context(), statsScanLimit)
	if err != nil {
		h.Deps.Log.Error(r.Context(), "stats: list events failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	cutoff := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	resp := StatsResponse{
		WindowMinutes: windowMinutes,
		ByAction:      make(map[models.Action]int),
		ByCategory:    make(map[models.Category]int),
	}
	for _, e := range events {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		resp.Total++
		resp.ByAction[e.Action]++
		for _, c := range e.Categories {
			resp.ByCategory[c]++
		}
	}

	JSON(w, http.StatusOK, resp)
}
