package middlewares

import (
	"context"
	"net/http"
)

// HeaderXUserID carries the authenticated caller's id. Authentication itself
// happens upstream (gateway); this service trusts the header.
const HeaderXUserID = "X-User-ID"

type contextKey string

const contextKeyUserID contextKey = "user_id"

// AttachIdentity copies the caller identity header into the request context
// so handlers and services downstream can read it without touching the
// request.
func AttachIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderXUserID)
		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID extracts the caller id attached by AttachIdentity. Empty when the
// header was absent.
func UserID(ctx context.Context) string {
	// Use comma-ok idiom to safely extract typed context values.
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}
