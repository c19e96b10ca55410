package dto

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"ERR_SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetHTTPStatus(tt.code), "code %s", tt.code)
	}
}

func TestDomainErrorStatus(t *testing.T) {
	tests := []struct {
		kind accounting.ErrorKind
		want int
	}{
		{accounting.ErrorKindAuthentication, http.StatusUnauthorized},
		{accounting.ErrorKindValidation, http.StatusBadRequest},
		{accounting.ErrorKindRateLimit, http.StatusTooManyRequests},
		{accounting.ErrorKindServer, http.StatusBadGateway},
		{accounting.ErrorKindNetwork, http.StatusBadGateway},
		{accounting.ErrorKindRetriesExhausted, http.StatusBadGateway},
		{accounting.ErrorKindNotConnected, http.StatusConflict},
		{accounting.ErrorKindUnauthorizedState, http.StatusUnauthorized},
		{accounting.ErrorKindUnknown, http.StatusInternalServerError},
		{accounting.ErrorKind("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainErrorStatus(tt.kind), "kind %s", tt.kind)
	}
}

func TestFromDomainError(t *testing.T) {
	t.Run("copies kind message and detail", func(t *testing.T) {
		err := accounting.NewValidationError("contact rejected", "email is required", "name too long")

		status, info := FromDomainError(err, "req-42")

		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, info)
		assert.Equal(t, string(accounting.ErrorKindValidation), info.Code)
		assert.Equal(t, "contact rejected", info.Message)
		assert.Equal(t, []string{"email is required", "name too long"}, info.Details)
		assert.Equal(t, "req-42", info.RequestID)
		assert.Zero(t, info.RetryAfterSeconds)
	})

	t.Run("carries retry hint for rate limits", func(t *testing.T) {
		err := accounting.NewRateLimitError("provider throttled", 45*time.Second)

		status, info := FromDomainError(err, "")

		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, 45, info.RetryAfterSeconds)
	})

	t.Run("unwraps domain errors inside wrap chains", func(t *testing.T) {
		wrapped := accounting.NewAuthenticationError("refresh token revoked")
		err := errors.Join(errors.New("sync push failed"), wrapped)

		status, info := FromDomainError(err, "")

		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, string(accounting.ErrorKindAuthentication), info.Code)
		assert.Equal(t, "refresh token revoked", info.Message)
	})

	t.Run("non-domain errors stay opaque", func(t *testing.T) {
		status, info := FromDomainError(errors.New("pq: connection refused"), "req-7")

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, ErrCodeInternal, info.Code)
		assert.Equal(t, "An unexpected error occurred", info.Message)
		assert.Equal(t, "req-7", info.RequestID)
		assert.NotContains(t, info.Message, "pq:")
	})
}
