package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/contextkeys"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/observability"
)

// UserResolver loads the user behind verified access-token claims
type UserResolver interface {
	CurrentUser(ctx context.Context, claims *auth.Claims) (*auth.User, error)
}

// Authenticator requires a valid access token and an active user
type Authenticator struct {
	tokens *auth.TokenManager
	users  UserResolver
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(tokens *auth.TokenManager, users UserResolver) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Handler wraps next so it only runs for an authenticated, active user
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			httputil.WriteProblem(w, r, apperrors.Unauthenticated("Not authenticated"))
			return
		}

		claims, err := a.tokens.VerifyToken(raw, auth.TokenTypeAccess)
		if err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}

		user, err := a.users.CurrentUser(r.Context(), claims)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindForbidden {
				observability.FromContext(r.Context()).WithField("user_id", claims.Subject).Warn("deactivated user rejected")
			}
			httputil.WriteProblem(w, r, err)
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), user)
		ctx = contextkeys.WithTenantID(ctx, user.TenantID)
		ctx = observability.WithUserID(ctx, user.ID.String())
		ctx = observability.WithTenantID(ctx, user.TenantID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Wrap is Handler for plain handler functions
func (a *Authenticator) Wrap(fn http.HandlerFunc) http.Handler {
	return a.Handler(fn)
}

// CurrentUser returns the authenticated user stored by the Authenticator
func CurrentUser(ctx context.Context) (*auth.User, bool) {
	user, ok := contextkeys.Principal(ctx).(*auth.User)
	return user, ok && user != nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
