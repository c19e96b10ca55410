// Package retry wraps fallible remote calls in bounded retry with backoff.
// Whether a failure is retried is a pure function of its classified kind
// (accounting.KindOf / accounting.IsRetryable), never of exception shape.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/ratelimit"
)

// Gate is the admission control consulted before every attempt. It is
// satisfied by *ratelimit.Limiter.
type Gate interface {
	AcquireSlot(ctx context.Context, tenantKey string) (ratelimit.Result, error)
}

// Config holds retry tuning.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// MaxDelay caps every computed delay, including provider wait hints.
	MaxDelay time.Duration
}

// Executor runs operations with rate-limit gating and classified retry.
type Executor struct {
	cfg    Config
	gate   Gate
	logger *zap.Logger

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an executor over the given gate.
func NewExecutor(cfg Config, gate Gate, opts ...Option) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	e := &Executor{
		cfg:    cfg,
		gate:   gate,
		logger: zap.NewNop(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs op with up to MaxRetries+1 attempts under the tenant's rate
// limit. A rejected slot fails immediately with a rate-limit error carrying
// the limiter's wait hint; the back-off decision belongs to the caller, never to
// this loop. Non-retryable failures surface unchanged without consuming the
// remaining attempts.
func (e *Executor) Execute(ctx context.Context, tenantKey string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		res, err := e.gate.AcquireSlot(ctx, tenantKey)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return accounting.NewRateLimitError(
				"outbound rate limit exceeded",
				time.Duration(res.RetryAfterSeconds)*time.Second,
			)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		kind := accounting.KindOf(lastErr)
		if !accounting.IsRetryable(kind) {
			return lastErr
		}
		if attempt == e.cfg.MaxRetries {
			break
		}

		delay := e.delayFor(lastErr, attempt)
		e.logger.Debug("retrying provider call",
			zap.String("tenant_key", tenantKey),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.String("kind", string(kind)),
			zap.Error(lastErr),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return accounting.NewRetriesExhaustedError(e.cfg.MaxRetries+1, lastErr)
}

// delayFor honors an explicit provider wait hint when present, otherwise
// backs off exponentially with up to 30% jitter. Both paths are capped.
func (e *Executor) delayFor(err error, attempt int) time.Duration {
	var domErr *accounting.Error
	if errors.As(err, &domErr) && domErr.RetryAfter > 0 {
		if domErr.RetryAfter > e.cfg.MaxDelay {
			return e.cfg.MaxDelay
		}
		return domErr.RetryAfter
	}

	delay := e.cfg.BaseDelay << uint(attempt)
	if delay <= 0 || delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)*3/10 + 1))
	delay += jitter
	if delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	return delay
}

// sleepCtx is a true suspension point: it blocks this operation only and
// returns early when the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
