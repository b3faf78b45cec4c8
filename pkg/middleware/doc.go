// Package middleware provides the authentication and tenant middleware of
// the HTTP API.
//
// # Middleware Components
//
// TenantMiddleware: best-effort tenant resolution
//
//	router.Use(middleware.TenantMiddleware(tokenManager))
//	// Reads tenant_id from a valid bearer access token; never rejects
//
// Authenticator: resolves the calling user
//
//	authn := middleware.NewAuthenticator(tokenManager, authService)
//	protected := authn.Handler(handler)
//	// 401 without a valid access token, 403 for deactivated accounts
//
// Role enforcement lives in pkg/rbac and reads the user stored here through
// CurrentUser.
//
// # Related Packages
//
//   - pkg/auth: token verification and user lookup
//   - pkg/rbac: role guard
//   - pkg/httputil: problem responses
package middleware
