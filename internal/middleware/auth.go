// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/chatloom/chatloom/internal/session"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user id.
	UserIDKey ContextKey = "user_id"
)

// Auth gates every request behind a valid session: the session cookie is
// resolved to a user id which is injected into the request context, or
// the request is rejected with 401. A session-store fault is a 500, not
// an authentication decision.
func Auth(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.Resolve(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				if errors.Is(err, session.ErrNoSession) {
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"msg":"Please log in to view this resource"}`))
					return
				}
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"Internal Server Error"}`))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}
