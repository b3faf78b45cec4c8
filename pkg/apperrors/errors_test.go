package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", Unauthenticated("Invalid credentials"))

	assert.Equal(t, KindUnauthenticated, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.True(t, Is(wrapped, KindUnauthenticated))
	assert.False(t, Is(wrapped, KindForbidden))
}

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindValidation, http.StatusUnprocessableEntity},
		{KindBadRequest, http.StatusBadRequest},
		{KindUpstream, http.StatusBadGateway},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindNotImplemented, http.StatusNotImplemented},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.Status())
	}
}

func TestEntityNotFound(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	err := EntityNotFound("Service", id)

	assert.Equal(t, "Service with id '11111111-1111-1111-1111-111111111111' not found", err.Error())
	assert.Equal(t, KindNotFound, err.Kind)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Upstream("OIDC token exchange failed: dial tcp: refused", cause)

	assert.ErrorIs(t, err, cause)
}
