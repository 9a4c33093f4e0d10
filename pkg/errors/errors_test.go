package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"validation", Validation("description is required"), http.StatusBadRequest},
		{"not found", NotFound("case", "SOS-4000"), http.StatusNotFound},
		{"already completed", AlreadyCompleted("step 1 already completed"), http.StatusConflict},
		{"conflict", Conflict("version mismatch"), http.StatusConflict},
		{"auth failed", AuthFailed(), http.StatusUnauthorized},
		{"forbidden", Forbidden("role cannot archive"), http.StatusForbidden},
		{"rate limited", RateLimited("cooling down"), http.StatusTooManyRequests},
		{"busy", Busy("classification in flight"), http.StatusConflict},
		{"upstream", Upstream(fmt.Errorf("boom"), "classifier failed"), http.StatusBadGateway},
		{"internal", Internal("unexpected"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, GetHTTPStatus(tc.err))
		})
	}
}

func TestIsAndCodeThroughWrapping(t *testing.T) {
	base := NotFound("case", "SOS-1")
	wrapped := fmt.Errorf("apply advance: %w", base)

	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeValidation))
	assert.Equal(t, CodeNotFound, Code(wrapped))
	assert.Equal(t, CodeUnknown, Code(stderrors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(stderrors.New("plain")))
	assert.Equal(t, "SOS-1", base.Details["id"])
}

func TestAuthFailedIsGeneric(t *testing.T) {
	err := AuthFailed()
	assert.Equal(t, "invalid credentials", err.Message)
	assert.NotContains(t, err.Error(), "password")
	assert.NotContains(t, err.Error(), "username")
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := Upstream(cause, "classifier unavailable")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
}
