// Package sso exchanges external identity provider assertions for AppR tokens.
//
// # Overview
//
// Two flows are supported, both ending in auth.Service.CompleteSSOLogin which
// provisions (or updates) the user and issues an access/refresh pair:
//
//   - OpenID Connect authorization code with PKCE, against Okta or a generic
//     OIDC issuer
//   - SAML 2.0 HTTP-POST assertions validated against the IdP metadata
//
// # Provider Selection
//
// OKTA_DOMAIN takes precedence over OIDC_ISSUER. Okta uses the default
// authorization server:
//
//	https://{domain}/oauth2/default/v1/authorize
//	https://{domain}/oauth2/default/v1/token
//	https://{domain}/oauth2/default/v1/userinfo
//
// A generic issuer uses {issuer}/authorize, {issuer}/token and
// {issuer}/userinfo. With neither set the OIDC endpoints answer 503.
//
// # PKCE State
//
// AuthorizationURL stores the code verifier in Redis under auth:pkce:{state}
// for ten minutes. ExchangeCode consumes it with GETDEL, so a state value can
// only be redeemed once:
//
//	url, err := oidcSvc.AuthorizationURL(ctx, state, redirectURI)
//	// ... user authenticates at the IdP ...
//	tokens, err := oidcSvc.ExchangeCode(ctx, code, state, redirectURI, tenantID)
//
// # SAML
//
// IdP metadata is fetched from SAML_IDP_METADATA_URL and cached in memory for
// SAML_METADATA_REFRESH. Signing certificates and the SSO URL come from the
// metadata; the assertion audience must equal SAML_SP_ENTITY_ID.
package sso
