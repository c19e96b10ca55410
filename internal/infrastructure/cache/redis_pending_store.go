package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPendingConnectionStore implements PendingConnectionStore on redis so
// the connect redirect and the callback can land on different processes.
type RedisPendingConnectionStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisPendingConnectionStore connects to redis and verifies the connection.
func NewRedisPendingConnectionStore(cfg RedisConfig) (*RedisPendingConnectionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPendingConnectionStore{client: client, keyPrefix: "oauth:pending:"}, nil
}

// NewRedisPendingConnectionStoreWithClient wraps an existing client.
func NewRedisPendingConnectionStoreWithClient(client *redis.Client, keyPrefix string) *RedisPendingConnectionStore {
	if keyPrefix == "" {
		keyPrefix = "oauth:pending:"
	}
	return &RedisPendingConnectionStore{client: client, keyPrefix: keyPrefix}
}

// Put implements PendingConnectionStore. A plain SET replaces any earlier
// record for the tenant.
func (s *RedisPendingConnectionStore) Put(ctx context.Context, tenantID uuid.UUID, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+tenantID.String(), state, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending connection: %w", err)
	}
	return nil
}

// Get implements PendingConnectionStore.
func (s *RedisPendingConnectionStore) Get(ctx context.Context, tenantID uuid.UUID) (string, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+tenantID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read pending connection: %w", err)
	}
	return val, true, nil
}

// Delete implements PendingConnectionStore.
func (s *RedisPendingConnectionStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	if err := s.client.Del(ctx, s.keyPrefix+tenantID.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete pending connection: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisPendingConnectionStore) Close() error {
	return s.client.Close()
}

var _ PendingConnectionStore = (*RedisPendingConnectionStore)(nil)
