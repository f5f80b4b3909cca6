package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/go-otp-service/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the caller's Bearer JWT and injects claims into context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if info := requestInfoFrom(r.Context()); info != nil {
				info.caller = claims.CallerName()
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts caller claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}
