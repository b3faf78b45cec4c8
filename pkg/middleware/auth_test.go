package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/contextkeys"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func newTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return auth.NewTokenManagerFromKeys(testKey, &testKey.PublicKey, 0, 0)
}

type stubResolver struct {
	user *auth.User
	err  error
	seen *auth.Claims
}

func (s *stubResolver) CurrentUser(ctx context.Context, claims *auth.Claims) (*auth.User, error) {
	s.seen = claims
	return s.user, s.err
}

func accessToken(t *testing.T, tm *auth.TokenManager, user *auth.User) string {
	t.Helper()
	token, err := tm.CreateAccessToken(auth.AccessClaims{
		Subject: user.ID, TenantID: user.TenantID, Role: user.Role, Email: user.Email,
	}, 0)
	require.NoError(t, err)
	return token
}

func problemDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	detail, _ := body["detail"].(string)
	return detail
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"", "", false},
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
		{"Bearer", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(r)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestAuthenticator_Handler(t *testing.T) {
	tm := newTokenManager(t)
	user := &auth.User{ID: uuid.New(), TenantID: uuid.New(), Email: "alice@example.com", Role: auth.RoleEditor, IsActive: true}

	t.Run("missing header", func(t *testing.T) {
		authn := NewAuthenticator(tm, &stubResolver{user: user})
		h := authn.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Not authenticated", problemDetail(t, w))
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		authn := NewAuthenticator(tm, &stubResolver{user: user})
		h := authn.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		refresh, err := tm.CreateRefreshToken(user.ID, 0)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
		r.Header.Set("Authorization", "Bearer "+refresh)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("deactivated user", func(t *testing.T) {
		authn := NewAuthenticator(tm, &stubResolver{err: apperrors.Forbidden("User account is deactivated")})
		h := authn.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))
		r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
		r.Header.Set("Authorization", "Bearer "+accessToken(t, tm, user))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "User account is deactivated", problemDetail(t, w))
	})

	t.Run("stores principal and tenant", func(t *testing.T) {
		resolver := &stubResolver{user: user}
		authn := NewAuthenticator(tm, resolver)
		var got *auth.User
		var tenant uuid.UUID
		h := authn.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = CurrentUser(r.Context())
			tenant, _ = contextkeys.GetTenantID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
		r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
		r.Header.Set("Authorization", "Bearer "+accessToken(t, tm, user))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Same(t, user, got)
		assert.Equal(t, user.TenantID, tenant)
		require.NotNil(t, resolver.seen)
		assert.Equal(t, user.ID.String(), resolver.seen.Subject)
	})
}

func TestCurrentUser_Empty(t *testing.T) {
	_, ok := CurrentUser(context.Background())
	assert.False(t, ok)
}
