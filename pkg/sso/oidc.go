package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
	"github.com/platinummonkey/appr/pkg/storage/postgres"
)

// OIDCService runs the authorization code flow with PKCE
type OIDCService struct {
	cfg    config.SSOConfig
	cache  *postgres.RedisClient
	logins LoginCompleter
	client *http.Client
}

// NewOIDCService creates an OIDC exchange service
func NewOIDCService(cfg config.SSOConfig, cache *postgres.RedisClient, logins LoginCompleter) *OIDCService {
	return &OIDCService{cfg: cfg, cache: cache, logins: logins}
}

// WithHTTPClient overrides the client used for token and userinfo calls
func (s *OIDCService) WithHTTPClient(client *http.Client) *OIDCService {
	s.client = client
	return s
}

// NewState returns an unguessable state value for an authorization request
func NewState() string {
	return oauth2.GenerateVerifier()
}

// AuthorizationURL stores a fresh PKCE verifier under state and returns the
// provider's authorize URL carrying its S256 challenge.
func (s *OIDCService) AuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	if !s.cfg.Enabled {
		return "", apperrors.Unavailable(MsgSSODisabled)
	}
	endpoints, err := ResolveEndpoints(s.cfg)
	if err != nil {
		return "", err
	}

	verifier := oauth2.GenerateVerifier()
	if err := s.cache.SetString(ctx, PKCEKey(state), verifier, PKCETTL); err != nil {
		return "", fmt.Errorf("failed to store PKCE verifier: %w", err)
	}

	return endpoints.OAuth2Config(redirectURI).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// ExchangeCode redeems the state's verifier, exchanges the code, reads the
// userinfo endpoint and completes the login for tenantID.
func (s *OIDCService) ExchangeCode(ctx context.Context, code, state, redirectURI string, tenantID uuid.UUID) (*auth.TokenResponse, error) {
	if !s.cfg.Enabled {
		return nil, apperrors.Unavailable(MsgSSODisabled)
	}
	endpoints, err := ResolveEndpoints(s.cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := s.cache.GetDel(ctx, PKCEKey(state))
	if errors.Is(err, storage.ErrCacheMiss) {
		return nil, apperrors.BadRequest(MsgInvalidState)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load PKCE verifier: %w", err)
	}

	if s.client != nil {
		ctx = oidc.ClientContext(ctx, s.client)
	}

	token, err := endpoints.OAuth2Config(redirectURI).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, exchangeFailed(err)
	}

	info, err := endpoints.OIDCProvider(ctx).UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, exchangeFailed(err)
	}
	var claims userInfoClaims
	if err := info.Claims(&claims); err != nil {
		return nil, exchangeFailed(err)
	}

	email := strings.TrimSpace(info.Email)
	if email == "" || info.Subject == "" {
		return nil, apperrors.BadRequest(MsgMissingClaims)
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"provider": string(endpoints.Provider),
		"subject":  info.Subject,
	}).Info("oidc code exchanged")

	return s.logins.CompleteSSOLogin(ctx, auth.SSOIdentity{
		TenantID:    tenantID,
		Email:       email,
		DisplayName: claims.displayName(email),
		ExternalID:  info.Subject,
		Provider:    endpoints.Provider,
	})
}

func exchangeFailed(err error) error {
	return apperrors.Upstream(fmt.Sprintf("OIDC token exchange failed: %v", err), err)
}
