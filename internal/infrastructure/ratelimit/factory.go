package ratelimit

import (
	"fmt"

	"go.uber.org/zap"
)

// StoreFactory creates window stores based on deployment configuration.
type StoreFactory struct {
	redisConfig        RedisConfig
	logger             *zap.Logger
	allowLocalFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory.
type StoreFactoryOption func(*StoreFactory)

// WithFactoryLogger sets the logger for the factory.
func WithFactoryLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) { f.logger = logger }
}

// WithLocalFallback controls whether to fall back to the process-local store
// when redis is unavailable. Default is true.
func WithLocalFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) { f.allowLocalFallback = allow }
}

// NewStoreFactory creates a new factory.
func NewStoreFactory(cfg RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:        cfg,
		logger:             zap.NewNop(),
		allowLocalFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore tries redis first and falls back to the process-local store
// when allowed. The fallback limits each process independently: with N
// processes the effective tenant limit becomes N times the configured one,
// which is why the fallback is logged at warn level.
func (f *StoreFactory) CreateStore() (WindowStore, error) {
	store, err := NewRedisWindowStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using redis rate-limit window store")
		return store, nil
	}

	if !f.allowLocalFallback {
		return nil, fmt.Errorf("redis required for distributed rate limiting but unavailable: %w", err)
	}

	f.logger.Warn("redis unavailable, falling back to process-local rate-limit windows. "+
		"Limits are NOT shared across processes in this mode.",
		zap.Error(err),
	)
	return NewLocalWindowStore(), nil
}
