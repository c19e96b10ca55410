package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisWindowStore keeps each window as a redis sorted set scored by
// unix-milli timestamp. The prune-count-admit sequence runs inside one Lua
// script so concurrent processes cannot both admit past the limit.
type RedisWindowStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds redis connection settings for the window store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// admitScript prunes expired members, counts survivors, and conditionally
// admits, returning {allowed, remaining, retryAfterSeconds}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local retry = 1
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if oldest[2] then
    retry = math.ceil((tonumber(oldest[2]) + window - now) / 1000)
    if retry < 1 then retry = 1 end
  end
  return {0, limit - count, retry}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, limit - count - 1, 0}
`)

// NewRedisWindowStore connects to redis and verifies the connection.
func NewRedisWindowStore(cfg RedisConfig) (*RedisWindowStore, error) {
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

	return &RedisWindowStore{client: client, keyPrefix: "ratelimit:window:"}, nil
}

// NewRedisWindowStoreWithClient wraps an existing client, useful for tests
// and for sharing one client across components.
func NewRedisWindowStoreWithClient(client *redis.Client, keyPrefix string) *RedisWindowStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:window:"
	}
	return &RedisWindowStore{client: client, keyPrefix: keyPrefix}
}

// Admit implements WindowStore.
func (s *RedisWindowStore) Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Result, error) {
	// Member carries a random suffix so two admissions in the same
	// millisecond occupy distinct slots.
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())

	vals, err := admitScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit admit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit admit script: unexpected reply length %d", len(vals))
	}

	return Result{
		Allowed:           vals[0] == 1,
		Remaining:         int(vals[1]),
		RetryAfterSeconds: int(vals[2]),
	}, nil
}

// Inspect implements WindowStore. It prunes and reads without admitting.
func (s *RedisWindowStore) Inspect(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Result, error) {
	redisKey := s.keyPrefix + key
	cutoff := now.UnixMilli() - window.Milliseconds()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit inspect: %w", err)
	}

	count := int(countCmd.Val())
	res := Result{Allowed: count < limit, Remaining: limit - count}
	if !res.Allowed {
		oldest := oldestCmd.Val()
		if len(oldest) > 0 {
			oldestAt := time.UnixMilli(int64(oldest[0].Score))
			res.RetryAfterSeconds = retryAfterSeconds(oldestAt, now, window)
		} else {
			res.RetryAfterSeconds = 1
		}
	}
	return res, nil
}

// Reset implements WindowStore.
func (s *RedisWindowStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

// Close closes the underlying redis client.
func (s *RedisWindowStore) Close() error {
	return s.client.Close()
}

var _ WindowStore = (*RedisWindowStore)(nil)
