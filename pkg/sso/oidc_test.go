package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/storage/postgres"
)

type stubLogins struct {
	identities []auth.SSOIdentity
}

func (s *stubLogins) CompleteSSOLogin(ctx context.Context, id auth.SSOIdentity) (*auth.TokenResponse, error) {
	s.identities = append(s.identities, id)
	return &auth.TokenResponse{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresIn: 1800}, nil
}

// fakeIdP serves token and userinfo endpoints for a generic issuer
type fakeIdP struct {
	server   *httptest.Server
	userinfo map[string]interface{}
	verifier string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{userinfo: map[string]interface{}{
		"sub":   "00u-jane",
		"email": "jane@example.com",
		"name":  "Jane Doe",
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		idp.verifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"idp-access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer idp-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(idp.userinfo)
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

type oidcFixture struct {
	svc    *OIDCService
	redis  *miniredis.Miniredis
	logins *stubLogins
	idp    *fakeIdP
}

func newOIDCFixture(t *testing.T, mutate func(*config.SSOConfig)) *oidcFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	idp := newFakeIdP(t)
	cfg := config.SSOConfig{
		Enabled:          true,
		OIDCIssuer:       idp.server.URL,
		OIDCClientID:     "appr",
		OIDCClientSecret: "secret",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logins := &stubLogins{}
	svc := NewOIDCService(cfg, postgres.NewRedisClientFromClient(client), logins).WithHTTPClient(idp.server.Client())
	return &oidcFixture{svc: svc, redis: mr, logins: logins, idp: idp}
}

func TestOIDCService_AuthorizationURL(t *testing.T) {
	f := newOIDCFixture(t, nil)

	raw, err := f.svc.AuthorizationURL(context.Background(), "state-1", "https://app.example.com/callback")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, f.idp.server.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "appr", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))

	verifier, err := f.redis.Get(PKCEKey("state-1"))
	require.NoError(t, err)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.Equal(t, 10*time.Minute, f.redis.TTL(PKCEKey("state-1")))
}

func TestOIDCService_ExchangeCode(t *testing.T) {
	f := newOIDCFixture(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := f.svc.AuthorizationURL(ctx, "state-2", "https://app.example.com/callback")
	require.NoError(t, err)
	stored, err := f.redis.Get(PKCEKey("state-2"))
	require.NoError(t, err)

	tokens, err := f.svc.ExchangeCode(ctx, "good-code", "state-2", "https://app.example.com/callback", tenantID)
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)

	assert.Equal(t, stored, f.idp.verifier, "verifier sent with the token request")
	assert.False(t, f.redis.Exists(PKCEKey("state-2")), "state is single use")

	require.Len(t, f.logins.identities, 1)
	assert.Equal(t, auth.SSOIdentity{
		TenantID:    tenantID,
		Email:       "jane@example.com",
		DisplayName: "Jane Doe",
		ExternalID:  "00u-jane",
		Provider:    auth.ProviderOIDC,
	}, f.logins.identities[0])

	t.Run("state cannot be replayed", func(t *testing.T) {
		_, err := f.svc.ExchangeCode(ctx, "good-code", "state-2", "https://app.example.com/callback", tenantID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
		assert.Equal(t, MsgInvalidState, err.Error())
	})
}

func TestOIDCService_ExchangeCode_Failures(t *testing.T) {
	ctx := context.Background()
	redirect := "https://app.example.com/callback"

	t.Run("unknown state", func(t *testing.T) {
		f := newOIDCFixture(t, nil)
		_, err := f.svc.ExchangeCode(ctx, "good-code", "never-issued", redirect, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.KindBadRequest))
	})

	t.Run("token endpoint rejects code", func(t *testing.T) {
		f := newOIDCFixture(t, nil)
		_, err := f.svc.AuthorizationURL(ctx, "s", redirect)
		require.NoError(t, err)

		_, err = f.svc.ExchangeCode(ctx, "bad-code", "s", redirect, uuid.New())
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindUpstream, appErr.Kind)
		assert.True(t, strings.HasPrefix(appErr.Detail, "OIDC token exchange failed: "))
		assert.Empty(t, f.logins.identities)
	})

	t.Run("userinfo without email", func(t *testing.T) {
		f := newOIDCFixture(t, nil)
		delete(f.idp.userinfo, "email")
		_, err := f.svc.AuthorizationURL(ctx, "s", redirect)
		require.NoError(t, err)

		_, err = f.svc.ExchangeCode(ctx, "good-code", "s", redirect, uuid.New())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
		assert.Equal(t, MsgMissingClaims, err.Error())
	})

	t.Run("display name falls back to preferred_username", func(t *testing.T) {
		f := newOIDCFixture(t, nil)
		delete(f.idp.userinfo, "name")
		f.idp.userinfo["preferred_username"] = "jdoe"
		_, err := f.svc.AuthorizationURL(ctx, "s", redirect)
		require.NoError(t, err)

		_, err = f.svc.ExchangeCode(ctx, "good-code", "s", redirect, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, "jdoe", f.logins.identities[0].DisplayName)
	})

	t.Run("sso disabled", func(t *testing.T) {
		f := newOIDCFixture(t, func(c *config.SSOConfig) { c.Enabled = false })
		_, err := f.svc.AuthorizationURL(ctx, "s", redirect)
		assert.True(t, apperrors.Is(err, apperrors.KindUnavailable))
		_, err = f.svc.ExchangeCode(ctx, "code", "s", redirect, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.KindUnavailable))
	})

	t.Run("no provider configured", func(t *testing.T) {
		f := newOIDCFixture(t, func(c *config.SSOConfig) { c.OIDCIssuer = "" })
		_, err := f.svc.AuthorizationURL(ctx, "s", redirect)
		require.Error(t, err)
		assert.Equal(t, MsgNoOIDCProvider, err.Error())
	})
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
