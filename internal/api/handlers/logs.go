package handlers

import (
	"net/http"
	"strconv"

	"github.com/aegis-gateway/aegis/internal/models"
)

// LogsHandler handles GET /api/logs: paginated, filterable events.
type LogsHandler struct {
	Deps *Deps
}

// LogsResponse wraps the page of events returned.
type LogsResponse struct {
	Events []models.Event `json:"events"`
}

func (h *LogsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.Deps.Store.ListEvents(r.Context(), limit)
	if err != nil {
		h.Deps.Log.Error(r.Context(), "logs: list events failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	action := models.Action(r.URL.Query().Get("action"))
	if action != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Action == action {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	JSON(w, http.StatusOK, LogsResponse{Events: events})
}
