package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"hrkpi/internal/transport/http/api"
)

// PermissionStore answers whether a role holds a permission; auth.Policy is
// the static implementation.
type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission gates a route on the caller's role. Ownership rules
// (team manager, record owner) are left to the services.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			allowed, err := store.HasPermission(r.Context(), user.Role, permission)
			switch {
			case err != nil:
				slog.Error("permission check failed", "permission", permission, "role", user.Role, "requestId", requestID, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
			case !allowed:
				slog.Info("permission denied", "permission", permission, "role", user.Role, "userId", user.UserID, "path", r.URL.Path)
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
