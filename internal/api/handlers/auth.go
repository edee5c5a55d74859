package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/store"
)

// AdminUsername is the single dashboard administrator account's fixed
// username. spec.md §4.9's login contract takes only a password, so
// there is exactly one account; `aegisctl auth set-password` is the
// only way to set or change its credential.
const AdminUsername = "admin"

// AuthHandler handles POST /api/auth/login and /api/auth/logout.
type AuthHandler struct {
	Deps *Deps
}

// LoginRequest is the /api/auth/login body.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the /api/auth/login success body.
type LoginResponse struct {
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := ParseJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	_, err := h.Deps.Store.Authenticate(ctx, AdminUsername, req.Password)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidCredentials) {
			h.Deps.Log.Error(ctx, "login: authenticate failed", "error", err)
		}
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := store.NewSessionToken()
	if err != nil {
		h.Deps.Log.Error(ctx, "login: token generation failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	sess := models.Session{Token: token, Created: now, Expires: now.Add(models.SessionTTL), LastUsed: now}
	if err := h.Deps.Store.CreateSession(ctx, sess); err != nil {
		h.Deps.Log.Error(ctx, "login: create session failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, LoginResponse{SessionToken: sess.Token, ExpiresAt: sess.Expires})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.Deps.Store.DeleteSession(r.Context(), token); err != nil {
			h.Deps.Log.Warn(r.Context(), "logout: delete session failed", "error", err)
		}
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
