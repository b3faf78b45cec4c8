package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/contextkeys"
)

func TestTenantMiddleware(t *testing.T) {
	tm := newTokenManager(t)
	user := &auth.User{ID: uuid.New(), TenantID: uuid.New(), Role: auth.RoleViewer}

	var tenant uuid.UUID
	var found bool
	h := TenantMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, found = contextkeys.GetTenantID(r.Context())
	}))

	serve := func(path, authorization string) {
		tenant, found = uuid.Nil, false
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if authorization != "" {
			r.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, "tenant resolution never rejects")
	}

	t.Run("valid access token", func(t *testing.T) {
		serve("/api/v1/services", "Bearer "+accessToken(t, tm, user))
		assert.True(t, found)
		assert.Equal(t, user.TenantID, tenant)
	})

	t.Run("exempt prefix", func(t *testing.T) {
		serve("/api/v1/auth/me", "Bearer "+accessToken(t, tm, user))
		assert.False(t, found)
	})

	t.Run("garbage token", func(t *testing.T) {
		serve("/api/v1/services", "Bearer not-a-jwt")
		assert.False(t, found)
	})

	t.Run("no token", func(t *testing.T) {
		serve("/api/v1/services", "")
		assert.False(t, found)
	})
}
