package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalWindowStore keeps windows in process memory behind a mutex. It gives
// the same admission guarantees as the redis store within a single process
// only; it is the explicit fallback when the shared store is unreachable and
// is non-distributed by design.
type LocalWindowStore struct {
	mu      sync.Mutex
	windows map[string]*localWindow

	idleAfter time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

type localWindow struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// LocalStoreOption configures a LocalWindowStore.
type LocalStoreOption func(*LocalWindowStore)

// WithIdleExpiry overrides how long an untouched window survives before the
// janitor collects it.
func WithIdleExpiry(d time.Duration) LocalStoreOption {
	return func(s *LocalWindowStore) { s.idleAfter = d }
}

// NewLocalWindowStore creates an in-memory store. A janitor goroutine
// collects windows idle for longer than the configured expiry; Close stops it.
func NewLocalWindowStore(opts ...LocalStoreOption) *LocalWindowStore {
	s := &LocalWindowStore{
		windows:   make(map[string]*localWindow),
		idleAfter: 10 * time.Minute,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

func (s *LocalWindowStore) janitor() {
	ticker := time.NewTicker(s.idleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, w := range s.windows {
				if now.Sub(w.lastSeen) > s.idleAfter {
					delete(s.windows, key)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// Close stops the janitor goroutine.
func (s *LocalWindowStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Admit implements WindowStore. The whole prune-count-admit sequence runs
// under the store mutex.
func (s *LocalWindowStore) Admit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &localWindow{}
		s.windows[key] = w
	}
	w.lastSeen = now
	w.prune(now, window)

	if len(w.timestamps) >= limit {
		return Result{
			Allowed:           false,
			Remaining:         limit - len(w.timestamps),
			RetryAfterSeconds: retryAfterSeconds(w.timestamps[0], now, window),
		}, nil
	}

	w.timestamps = append(w.timestamps, now)
	return Result{Allowed: true, Remaining: limit - len(w.timestamps)}, nil
}

// Inspect implements WindowStore.
func (s *LocalWindowStore) Inspect(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		return Result{Allowed: true, Remaining: limit}, nil
	}
	w.prune(now, window)

	res := Result{
		Allowed:   len(w.timestamps) < limit,
		Remaining: limit - len(w.timestamps),
	}
	if !res.Allowed {
		res.RetryAfterSeconds = retryAfterSeconds(w.timestamps[0], now, window)
	}
	return res, nil
}

// Reset implements WindowStore.
func (s *LocalWindowStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// prune discards timestamps older than now-window. Timestamps are appended in
// order, so the survivors are a suffix.
func (w *localWindow) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

var _ WindowStore = (*LocalWindowStore)(nil)
