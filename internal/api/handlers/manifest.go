package handlers

import (
	"net/http"
	"time"

	"github.com/aegis-gateway/aegis/internal/browser"
)

// ManifestHandler serves the browser interceptor's DOM-attached
// config: the in-page registry snapshot and fail-mode, per
// spec.md §4.10.
type ManifestHandler struct {
	Deps *Deps
}

func (h *ManifestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	builder := h.Deps.ManifestBuilder()
	if builder == nil {
		Error(w, http.StatusServiceUnavailable, "registry not wired")
		return
	}

	manifest, err := builder.Build(r.Context(), time.Now())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to build manifest")
		return
	}
	JSON(w, http.StatusOK, manifest)
}

// HandleScript serves the static interceptor script. It never
// changes at runtime, so there's no per-request work beyond the
// write.
func (h *ManifestHandler) HandleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(browser.InterceptorScript)
}
