// Package middleware holds the Decision API's cross-cutting HTTP
// concerns: session authentication, login rate limiting, and CORS.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionStore is the narrow store dependency session auth needs.
type SessionStore interface {
	TouchSession(ctx context.Context, token string, now time.Time) (models.Session, error)
}

// RequireSession authenticates a request against the State Store's
// session table and slides its TTL forward, per spec.md §3's "each
// validating read sets last_used = now and extends expires by a
// sliding 15 min" invariant.
func RequireSession(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"missing session token"}`, http.StatusUnauthorized)
				return
			}

			sess, err := store.TouchSession(r.Context(), token, time.Now())
			if err != nil {
				http.Error(w, `{"error":"invalid or expired session"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return ""
}

// SessionFromContext returns the authenticated session a RequireSession
// middleware attached to the request context.
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(models.Session)
	return sess, ok
}
