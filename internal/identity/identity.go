package identity

import (
	"context"
	"encoding/json"
	"net/http"
)

// The auth/session provider sits in front of this service and attaches the
// resolved identity as headers. This core performs no authentication itself.
const (
	UserHeader = "X-User-ID"
	RoleHeader = "X-User-Role"
)

const RoleAdmin = "admin"

type Identity struct {
	UserID string
	Role   string
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

type contextKey struct{}

// FromContext returns the identity attached by Required or RequireAdmin.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Required rejects requests without a resolved user and threads the identity
// through the request context.
func Required(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id := Identity{UserID: userID, Role: r.Header.Get(RoleHeader)}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

// RequireAdmin is Required plus an admin role check.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return Required(func(w http.ResponseWriter, r *http.Request) {
		id, _ := FromContext(r.Context())
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
