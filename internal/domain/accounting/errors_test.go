package accounting

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"authentication error", NewAuthenticationError("token expired"), ErrorKindAuthentication},
		{"validation error", NewValidationError("bad request"), ErrorKindValidation},
		{"rate limit error", NewRateLimitError("slow down", 5*time.Second), ErrorKindRateLimit},
		{"server error", NewServerError("upstream 503", nil), ErrorKindServer},
		{"network error", NewNetworkError("connection reset", nil), ErrorKindNetwork},
		{"not connected", NewNotConnectedError(uuid.New()), ErrorKindNotConnected},
		{"unauthorized state", NewUnauthorizedStateError("invalid or expired state"), ErrorKindUnauthorizedState},
		{"wrapped domain error", fmt.Errorf("push contact: %w", NewServerError("boom", nil)), ErrorKindServer},
		{"connection reset syscall", fmt.Errorf("do request: %w", syscall.ECONNRESET), ErrorKindNetwork},
		{"connection refused syscall", syscall.ECONNREFUSED, ErrorKindNetwork},
		{"context canceled", context.Canceled, ErrorKindUnknown},
		{"context deadline", context.DeadlineExceeded, ErrorKindUnknown},
		{"plain error", errors.New("something odd"), ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorKind{ErrorKindRateLimit, ErrorKindServer, ErrorKindNetwork}
	for _, kind := range retryable {
		assert.True(t, IsRetryable(kind), "kind %s should be retryable", kind)
	}

	terminal := []ErrorKind{
		ErrorKindAuthentication, ErrorKindValidation, ErrorKindRetriesExhausted,
		ErrorKindNotConnected, ErrorKindUnauthorizedState, ErrorKindUnknown,
	}
	for _, kind := range terminal {
		assert.False(t, IsRetryable(kind), "kind %s should not be retryable", kind)
	}
}

func TestRetriesExhaustedError(t *testing.T) {
	cause := NewServerError("HTTP 503", nil)
	err := NewRetriesExhaustedError(4, cause)

	assert.Equal(t, 4, err.Attempts)
	assert.Contains(t, err.Error(), "4 attempts")

	var domErr *Error
	require.True(t, errors.As(err, &domErr))
	assert.True(t, errors.Is(err, cause))
}

func TestValidationErrorDetail(t *testing.T) {
	err := NewValidationError("invoice rejected", "line 1: account code missing", "due date in the past")
	assert.Contains(t, err.Error(), "line 1: account code missing")
	assert.Contains(t, err.Error(), "due date in the past")
	assert.Len(t, err.Detail, 2)
}
