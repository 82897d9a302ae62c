package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"hrkpi/internal/domain/auth"
	"hrkpi/internal/transport/http/api"
)

// RevocationChecker reports whether an access token hash is on the denylist.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Auth attaches the caller to the context when the request carries a valid,
// unrevoked bearer token. Requests without one continue anonymously and are
// rejected by RequireAuth or RequirePermission where needed.
func Auth(secret string, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := authenticate(r, secret, revocations); ok {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate fails closed: a revocation lookup error leaves the request
// anonymous.
func authenticate(r *http.Request, secret string, revocations RevocationChecker) (auth.UserContext, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return auth.UserContext{}, false
	}
	claims, err := auth.ParseToken(secret, token)
	if err != nil {
		return auth.UserContext{}, false
	}
	hash := auth.HashToken(token)
	if revocations != nil {
		revoked, err := revocations.IsRevoked(r.Context(), hash)
		if err != nil {
			slog.Warn("token revocation check failed", "err", err, "requestId", GetRequestID(r.Context()))
			return auth.UserContext{}, false
		}
		if revoked {
			return auth.UserContext{}, false
		}
	}
	user := auth.UserContext{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
		TokenHash:      hash,
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user, true
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser returns ctx carrying user. Handler tests use it to skip token
// parsing.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}
