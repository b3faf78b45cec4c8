package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/contextkeys"
	"github.com/platinummonkey/appr/pkg/observability"
)

// TenantExemptPrefixes are paths that never carry a tenant
var TenantExemptPrefixes = []string{"/health", "/ready", "/metrics", "/api/v1/auth/"}

// TenantMiddleware binds the tenant of a valid bearer access token to the
// request context. Requests without one pass through untouched; the
// Authenticator is what rejects them.
func TenantMiddleware(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isTenantExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.VerifyToken(raw, auth.TokenTypeAccess)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			tenantID, ok := claims.Tenant()
			if !ok {
				observability.FromContext(r.Context()).Debug("access token has no tenant claim")
				next.ServeHTTP(w, r)
				return
			}
			ctx := contextkeys.WithTenantID(r.Context(), tenantID)
			ctx = observability.WithTenantID(ctx, tenantID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isTenantExempt(path string) bool {
	for _, prefix := range TenantExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
