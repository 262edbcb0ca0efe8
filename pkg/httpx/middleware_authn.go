package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

// TokenVerifier resolves a bearer token to an identity. Implementations
// are expected to reject expired, revoked, and stale tokens.
type TokenVerifier func(ctx context.Context, token string) (Identity, error)

// AuthnMiddleware extracts and verifies the bearer token, then injects the
// resulting identity into the request context.
func AuthnMiddleware(verify TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			id, err := verify(ctx, raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("bearer token rejected", "err", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithIdentity(ctx, id)))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
