package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/appr/pkg/apperrors"
)

func TestWriteData(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteData(w, map[string]string{"name": "checkout"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"name":"checkout"}}`, w.Body.String())
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteCreated(w, map[string]int{"id": 1}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"id":1}}`, w.Body.String())
}

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		total, perPage, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{1000, 500, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.perPage), func(t *testing.T) {
			assert.Equal(t, tt.want, NewPageMeta(tt.total, 1, tt.perPage).TotalPages)
		})
	}
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestWriteProblem(t *testing.T) {
	t.Run("unauthenticated adds challenge header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)

		WriteProblem(w, r, fmt.Errorf("wrapped: %w", apperrors.Unauthenticated("Not authenticated")))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

		p := decodeProblem(t, w)
		assert.Equal(t, "https://appr.example.com/errors/http-401", p.Type)
		assert.Equal(t, "Unauthorized", p.Title)
		assert.Equal(t, "Not authenticated", p.Detail)
		assert.Equal(t, "/api/v1/auth/me", p.Instance)
	})

	t.Run("validation lists field errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/services", nil)

		WriteProblem(w, r, apperrors.Validation(apperrors.FieldError{
			Loc: []string{"body", "name"}, Msg: "Field required", Type: "required",
		}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		p := decodeProblem(t, w)
		assert.Equal(t, "https://appr.example.com/errors/validation", p.Type)
		require.Len(t, p.Errors, 1)
		assert.Equal(t, []string{"body", "name"}, p.Errors[0].Loc)
	})

	t.Run("unknown errors do not leak", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/teams", nil)

		WriteProblem(w, r, errors.New("pq: connection reset by peer"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		p := decodeProblem(t, w)
		assert.Equal(t, "https://appr.example.com/errors/internal", p.Type)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})

	t.Run("rate limited", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

		WriteProblem(w, r, apperrors.RateLimited("Too many failed login attempts. Please try again later."))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "https://appr.example.com/errors/http-429", decodeProblem(t, w).Type)
	})
}
