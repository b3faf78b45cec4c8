// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All request-scoped context keys outside of logging must be
// defined here. Logging keys (request ID, logger) live in
// pkg/observability because the logger reads them.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithTenantID(ctx, tenantID)
//	tenantID, ok := contextkeys.GetTenantID(ctx)
package contextkeys

import (
	"context"

	"github.com/google/uuid"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated user
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, role guard
	// Type: *auth.User
	PrincipalKey Key = "principal"

	// TenantKey contains the tenant resolved from the bearer token
	// Set by: middleware.TenantMiddleware (pkg/middleware/tenant.go)
	// Used by: SSO callbacks (tenant of the request), log enrichment
	// Type: uuid.UUID
	TenantKey Key = "tenant_id"

	// ClientInfoKey contains the caller's IP and user agent
	// Set by: middleware.ClientInfoMiddleware
	// Used by: Audit writer, refresh token persistence
	// Type: ClientInfo
	ClientInfoKey Key = "client_info"
)

// ClientInfo describes where a request came from
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithPrincipal adds the authenticated user to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// Principal returns the raw principal value; pkg/middleware offers a typed accessor
func Principal(ctx context.Context) interface{} {
	return ctx.Value(PrincipalKey)
}

// WithTenantID adds the tenant ID to the context
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, TenantKey, tenantID)
}

// GetTenantID retrieves the tenant ID from context
func GetTenantID(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantKey).(uuid.UUID)
	return tenantID, ok
}

// WithClientInfo adds the caller's IP and user agent to the context
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ClientInfoKey, info)
}

// GetClientInfo retrieves the caller's IP and user agent from context
func GetClientInfo(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(ClientInfoKey).(ClientInfo)
	return info
}
