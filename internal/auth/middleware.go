package auth

import (
	"context"
	"net/http"
	"strings"

	pkghttp "github.com/mincykel/backend/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AccountContextKey is the key for storing the authenticated account id in context
	AccountContextKey contextKey = "account_id"
)

// Middleware validates bearer tokens and injects the account id into the
// request context. Refresh tokens are rejected here; they are only valid
// against the refresh endpoint.
func Middleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			if claims.Type != "access" {
				pkghttp.WriteUnauthorized(w, "refresh tokens cannot be used for API access")
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, claims.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIDFromContext returns the authenticated account id, if any.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountContextKey).(string)
	return id, ok && id != ""
}
