package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/ratelimit"
)

// openGate always admits.
type openGate struct{ calls int }

func (g *openGate) AcquireSlot(context.Context, string) (ratelimit.Result, error) {
	g.calls++
	return ratelimit.Result{Allowed: true, Remaining: 10}, nil
}

// closedGate always rejects with a hint.
type closedGate struct{}

func (closedGate) AcquireSlot(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{Allowed: false, RetryAfterSeconds: 17}, nil
}

func newTestExecutor(cfg Config, gate Gate) (*Executor, *[]time.Duration) {
	e := NewExecutor(cfg, gate)
	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e, slept
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	gate := &openGate{}
	e, slept := newTestExecutor(Config{MaxRetries: 2, BaseDelay: time.Second}, gate)

	attempts := 0
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, gate.calls)
	assert.Empty(t, *slept)
}

func TestExecuteRetriesServerErrorThenSucceeds(t *testing.T) {
	// Base delay 1000ms, max 2 retries, a 500 on attempt 1 then success on
	// attempt 2: the operation succeeds with exactly 2 attempts observed.
	e, slept := newTestExecutor(Config{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &openGate{})

	attempts := 0
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return accounting.NewServerError("HTTP 500", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.Len(t, *slept, 1)
	// base * 2^0 plus up to 30% jitter.
	assert.GreaterOrEqual(t, (*slept)[0], time.Second)
	assert.LessOrEqual(t, (*slept)[0], 1300*time.Millisecond)
}

func TestExecuteExponentialBackoff(t *testing.T) {
	e, slept := newTestExecutor(Config{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second}, &openGate{})

	err := e.Execute(context.Background(), "t", func(context.Context) error {
		return accounting.NewNetworkError("connection reset", nil)
	})

	var domErr *accounting.Error
	require.True(t, errors.As(err, &domErr))
	assert.Equal(t, accounting.ErrorKindRetriesExhausted, domErr.Kind)
	assert.Equal(t, 4, domErr.Attempts)

	require.Len(t, *slept, 3)
	for i, base := range []time.Duration{100, 200, 400} {
		baseDelay := base * time.Millisecond
		assert.GreaterOrEqual(t, (*slept)[i], baseDelay, "delay %d", i)
		assert.LessOrEqual(t, (*slept)[i], baseDelay*13/10+time.Millisecond, "delay %d", i)
	}
}

func TestExecuteHonorsWaitHintCapped(t *testing.T) {
	e, slept := newTestExecutor(Config{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 5 * time.Second}, &openGate{})

	attempts := 0
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		attempts++
		if attempts == 1 {
			// Remote 429 with a hint above the cap.
			return accounting.NewRateLimitError("remote throttle", 2*time.Minute)
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *slept, 1)
	assert.Equal(t, 5*time.Second, (*slept)[0])
}

func TestExecuteHonorsShortWaitHint(t *testing.T) {
	e, slept := newTestExecutor(Config{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &openGate{})

	attempts := 0
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return accounting.NewRateLimitError("remote throttle", 3*time.Second)
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *slept, 1)
	assert.Equal(t, 3*time.Second, (*slept)[0])
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  *accounting.Error
	}{
		{"authentication", accounting.NewAuthenticationError("token revoked")},
		{"validation", accounting.NewValidationError("unbalanced journal")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, slept := newTestExecutor(Config{MaxRetries: 5, BaseDelay: time.Second}, &openGate{})

			attempts := 0
			err := e.Execute(context.Background(), "t", func(context.Context) error {
				attempts++
				return tt.err
			})

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, attempts, "non-retryable errors must not consume attempts")
			assert.Empty(t, *slept)
		})
	}
}

func TestExecuteUnknownErrorNotRetried(t *testing.T) {
	e, _ := newTestExecutor(Config{MaxRetries: 5, BaseDelay: time.Second}, &openGate{})

	boom := errors.New("unexpected nil pointer somewhere")
	attempts := 0
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestExecuteGateRejectionNotRetried(t *testing.T) {
	e, slept := newTestExecutor(Config{MaxRetries: 5, BaseDelay: time.Second}, closedGate{})

	attempts := 0
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		attempts++
		return nil
	})

	var domErr *accounting.Error
	require.True(t, errors.As(err, &domErr))
	assert.Equal(t, accounting.ErrorKindRateLimit, domErr.Kind)
	assert.Equal(t, 17*time.Second, domErr.RetryAfter)
	assert.Zero(t, attempts, "operation must not run when the gate rejects")
	assert.Empty(t, *slept, "a rejected slot is never retried internally")
}

func TestExecuteRetriesExhaustedWrapsLastError(t *testing.T) {
	e, _ := newTestExecutor(Config{MaxRetries: 2, BaseDelay: time.Millisecond}, &openGate{})

	last := accounting.NewServerError("HTTP 503", nil)
	err := e.Execute(context.Background(), "t", func(context.Context) error {
		return last
	})

	var domErr *accounting.Error
	require.True(t, errors.As(err, &domErr))
	assert.Equal(t, accounting.ErrorKindRetriesExhausted, domErr.Kind)
	assert.Equal(t, 3, domErr.Attempts)
	assert.True(t, errors.Is(err, last))
}

func TestExecuteContextCancelledDuringSleep(t *testing.T) {
	e := NewExecutor(Config{MaxRetries: 3, BaseDelay: time.Hour}, &openGate{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := e.Execute(ctx, "t", func(context.Context) error {
		return accounting.NewServerError("HTTP 502", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}
