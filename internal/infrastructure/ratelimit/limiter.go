// Package ratelimit provides per-tenant sliding-window admission control for
// outbound provider calls. The window is an ordered set of request
// timestamps; entries older than the window are pruned on every access, and
// the prune-count-admit sequence is atomic per key so concurrent callers can
// never together exceed the limit.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	// RetryAfterSeconds is how long until the oldest surviving timestamp
	// leaves the window. Zero when Allowed.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// WindowStore keeps the per-key timestamp windows. Implementations must make
// the prune-count-admit sequence atomic per key.
type WindowStore interface {
	// Admit prunes expired timestamps, then conditionally records now.
	Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Result, error)
	// Inspect reports the window state without consuming a slot.
	Inspect(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Result, error)
	// Reset discards the window for a key.
	Reset(ctx context.Context, key string) error
}

// Limiter applies one limit/window pair across tenant keys. Tenant keys are
// opaque strings; empty or unusual keys get no special handling.
type Limiter struct {
	store  WindowStore
	limit  int
	window time.Duration
	logger *zap.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the limiter's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store WindowStore, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AcquireSlot attempts to consume one slot for the tenant key.
func (l *Limiter) AcquireSlot(ctx context.Context, tenantKey string) (Result, error) {
	res, err := l.store.Admit(ctx, tenantKey, time.Now(), l.window, l.limit)
	if err != nil {
		return Result{}, err
	}
	if !res.Allowed {
		l.logger.Debug("rate limit slot rejected",
			zap.String("tenant_key", tenantKey),
			zap.Int("retry_after_seconds", res.RetryAfterSeconds),
		)
	}
	return res, nil
}

// Status reports the current window state without consuming a slot.
func (l *Limiter) Status(ctx context.Context, tenantKey string) (Result, error) {
	return l.store.Inspect(ctx, tenantKey, time.Now(), l.window, l.limit)
}

// Reset discards the tenant key's window.
func (l *Limiter) Reset(ctx context.Context, tenantKey string) error {
	return l.store.Reset(ctx, tenantKey)
}

// Limit returns the configured per-window limit.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// retryAfterSeconds computes the wait until the oldest surviving timestamp
// exits the window, floored at one second.
func retryAfterSeconds(oldest, now time.Time, window time.Duration) int {
	wait := oldest.Add(window).Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
