package sso

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/appr/pkg/auth"
)

const (
	MsgSSODisabled         = "SSO is not enabled"
	MsgNoOIDCProvider      = "No OIDC provider configured"
	MsgInvalidState        = "Invalid or expired state parameter"
	MsgMissingClaims       = "OIDC userinfo missing required claims (email, sub)"
	MsgSAMLNotConfigured   = "SAML IdP is not configured"
	MsgSAMLInvalid         = "Invalid SAML assertion"
	MsgSAMLMissingEmail    = "SAML assertion missing email"
	MsgSAMLMetadataFailure = "Failed to load SAML IdP metadata"
	MsgSAMLEncrypted       = "Encrypted SAML assertions are not supported"
)

// PKCETTL bounds how long an authorization request can stay outstanding
const PKCETTL = 10 * time.Minute

// Scopes requested from every OIDC provider
var Scopes = []string{"openid", "email", "profile"}

// LoginCompleter turns a verified identity into an AppR session.
// auth.Service implements it.
type LoginCompleter interface {
	CompleteSSOLogin(ctx context.Context, id auth.SSOIdentity) (*auth.TokenResponse, error)
}

// PKCEKey is the Redis key holding the code verifier for state
func PKCEKey(state string) string {
	return fmt.Sprintf("auth:pkce:%s", state)
}

// userInfoClaims are the profile claims read beyond sub and email
type userInfoClaims struct {
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

// displayName picks name, then preferred_username, then the email
func (c userInfoClaims) displayName(email string) string {
	switch {
	case c.Name != "":
		return c.Name
	case c.PreferredUsername != "":
		return c.PreferredUsername
	default:
		return email
	}
}
