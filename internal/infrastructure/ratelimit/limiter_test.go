package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAcquireSlot(t *testing.T) {
	store := NewLocalWindowStore()
	defer store.Close()

	limiter := NewLimiter(store, 2, time.Minute)
	ctx := context.Background()

	res, err := limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	res, err = limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.RetryAfterSeconds, 1)
}

func TestLimiterStatusDoesNotConsume(t *testing.T) {
	store := NewLocalWindowStore()
	defer store.Close()

	limiter := NewLimiter(store, 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := limiter.Status(ctx, "tenant")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiterReset(t *testing.T) {
	store := NewLocalWindowStore()
	defer store.Close()

	limiter := NewLimiter(store, 1, time.Minute)
	ctx := context.Background()

	_, err := limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)

	res, err := limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	require.NoError(t, limiter.Reset(ctx, "tenant"))

	res, err = limiter.AcquireSlot(ctx, "tenant")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Now()

	// Oldest just admitted: full window remains.
	assert.Equal(t, 60, retryAfterSeconds(now, now, time.Minute))

	// Oldest about to expire: floored at 1.
	assert.Equal(t, 1, retryAfterSeconds(now.Add(-59*time.Second-900*time.Millisecond), now, time.Minute))

	// Already expired (race between prune and compute): still at least 1.
	assert.Equal(t, 1, retryAfterSeconds(now.Add(-2*time.Minute), now, time.Minute))

	// Partial seconds round up.
	assert.Equal(t, 31, retryAfterSeconds(now.Add(-29*time.Second-500*time.Millisecond), now, time.Minute))
}
