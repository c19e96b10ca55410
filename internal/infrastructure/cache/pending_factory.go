package cache

import (
	"fmt"

	"go.uber.org/zap"
)

// PendingStoreFactory creates pending-connection stores based on deployment
// configuration.
type PendingStoreFactory struct {
	redisConfig         RedisConfig
	logger              *zap.Logger
	allowMemoryFallback bool
}

// PendingStoreFactoryOption is a functional option for configuring the factory.
type PendingStoreFactoryOption func(*PendingStoreFactory)

// WithPendingFactoryLogger sets the logger for the factory.
func WithPendingFactoryLogger(logger *zap.Logger) PendingStoreFactoryOption {
	return func(f *PendingStoreFactory) { f.logger = logger }
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) PendingStoreFactoryOption {
	return func(f *PendingStoreFactory) { f.allowMemoryFallback = allow }
}

// NewPendingStoreFactory creates a new factory.
func NewPendingStoreFactory(cfg RedisConfig, opts ...PendingStoreFactoryOption) *PendingStoreFactory {
	f := &PendingStoreFactory{
		redisConfig:         cfg,
		logger:              zap.NewNop(),
		allowMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore tries redis first and falls back to the in-memory store when
// allowed. In the fallback mode the OAuth callback must land on the same
// process that issued the connect redirect.
func (f *PendingStoreFactory) CreateStore() (PendingConnectionStore, error) {
	store, err := NewRedisPendingConnectionStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using redis pending-connection store")
		return store, nil
	}

	if !f.allowMemoryFallback {
		return nil, fmt.Errorf("redis required for pending-connection storage but unavailable: %w", err)
	}

	f.logger.Warn("redis unavailable, falling back to in-memory pending-connection store. "+
		"OAuth callbacks must reach the process that started the flow.",
		zap.Error(err),
	)
	return NewInMemoryPendingConnectionStore(), nil
}
