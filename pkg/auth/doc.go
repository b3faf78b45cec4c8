// Package auth implements local and SSO-backed authentication.
//
// Passwords are bcrypt hashed. Sessions are a pair of RS256 JWTs: a short
// lived access token carrying the tenant, role and email claims, and a
// refresh token whose SHA-256 hash is persisted in refresh_tokens. Refresh
// tokens are single use. Presenting a revoked one revokes every live
// session of its user.
//
// Service is the entry point used by the HTTP layer:
//
//	tokens, err := authService.Login(ctx, email, password, nil)
//	tokens, err = authService.Refresh(ctx, tokens.RefreshToken)
//	err = authService.Logout(ctx, tokens.RefreshToken)
package auth
