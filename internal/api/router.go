// Package api implements the Decision API (C9): the loopback-only
// HTTP surface the browser extension and dashboard use for decisions,
// stats, rule edits, and protection control, per spec.md §4.9.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aegis-gateway/aegis/internal/api/handlers"
	"github.com/aegis-gateway/aegis/internal/api/middleware"
)

// ExtensionOrigin is the browser extension's CORS origin. spec.md
// §4.9 requires CORS "restricted to the extension origin and null"
// (null covers a content script with no Origin header), never the
// wildcard the teacher's corsMiddleware used.
const ExtensionOrigin = "chrome-extension://aegis-interceptor"

// NewRouter builds the Decision API's chi router, wiring every
// endpoint spec.md §4.9's table names, replacing the teacher's raw
// http.ServeMux and manual path-prefix splitting.
func NewRouter(deps *handlers.Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors)
	r.Use(requestTimeout(deps.Cfg.API.RequestTimeoutMs))

	check := &handlers.CheckHandler{Deps: deps}
	stats := &handlers.StatsHandler{Deps: deps}
	logs := &handlers.LogsHandler{Deps: deps}
	rulesH := &handlers.RulesHandler{Deps: deps}
	auth := &handlers.AuthHandler{Deps: deps}
	protection := &handlers.ProtectionHandler{Deps: deps}
	flagged := &handlers.FlaggedHandler{Deps: deps}
	manifest := &handlers.ManifestHandler{Deps: deps}

	loginLimiter := middleware.NewLoginLimiter(deps.Cfg.API.LoginRateLimit, time.Minute)
	requireSession := middleware.RequireSession(deps.Store)

	r.Route("/api", func(api chi.Router) {
		api.Post("/check", check.Handle)
		api.Get("/stats", stats.Handle)
		api.Get("/logs", logs.Handle)

		api.Get("/rules", rulesH.HandleGet)
		api.With(requireSession).Put("/rules", rulesH.HandlePut)

		api.With(loginLimiter.Limit).Post("/auth/login", auth.HandleLogin)
		api.With(requireSession).Post("/auth/logout", auth.HandleLogout)

		api.Get("/protection/status", protection.HandleStatus)
		api.Post("/protection/pause", protection.HandlePause)
		api.Post("/protection/resume", protection.HandleResume)
		api.With(requireSession).Post("/protection/disable", protection.HandleDisable)

		api.With(requireSession).Get("/flagged", flagged.HandleList)
		api.With(requireSession).Post("/flagged/{id}/acknowledge", flagged.HandleAcknowledge)
	})

	r.Route("/ext", func(ext chi.Router) {
		ext.Get("/interceptor.js", manifest.HandleScript)
		ext.Get("/manifest.json", manifest.Handle)
	})

	return r
}

// cors restricts cross-origin access to the browser extension's
// origin and to requests with no Origin header (content-script
// fetches, curl).
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == ExtensionOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestTimeout bounds every handler at the 5s default spec.md §5(c)
// names for Decision-API requests.
func requestTimeout(ms int) func(http.Handler) http.Handler {
	if ms <= 0 {
		ms = 5000
	}
	return chimw.Timeout(time.Duration(ms) * time.Millisecond)
}
