package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultQuotaTimeout bounds every single counter call.
const DefaultQuotaTimeout = 2 * time.Second

// RedisQuotaStore implements QuotaStore on Redis INCR/GET/EXPIRE.
// A store without a client reports every call as unavailable.
type RedisQuotaStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisQuotaStore wraps an existing client.
func NewRedisQuotaStore(rdb *redis.Client, timeout time.Duration) *RedisQuotaStore {
	if timeout <= 0 {
		timeout = DefaultQuotaTimeout
	}
	return &RedisQuotaStore{rdb: rdb, timeout: timeout}
}

// NewQuotaStoreFromURL connects to redisURL. An empty or malformed URL yields a
// store with no client, so quota checks fail open instead of blocking startup.
// An unreachable server is only logged: the client reconnects on its own.
func NewQuotaStoreFromURL(redisURL string, timeout time.Duration, logger zerolog.Logger) *RedisQuotaStore {
	if redisURL == "" {
		logger.Warn().Msg("redis: no URL configured, quota enforcement disabled (fail-open)")
		return NewRedisQuotaStore(nil, timeout)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error().Err(err).Msg("redis: invalid URL, quota enforcement disabled (fail-open)")
		return NewRedisQuotaStore(nil, timeout)
	}
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis: ping failed at startup, quota checks fail open until it recovers")
	} else {
		logger.Info().Msg("redis: connected, quota enforcement enabled")
	}
	return NewRedisQuotaStore(rdb, timeout)
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (s *RedisQuotaStore) Client() *redis.Client {
	return s.rdb
}

// Get returns the counter value, 0 when the key does not exist.
func (s *RedisQuotaStore) Get(ctx context.Context, key string) (int64, error) {
	if s.rdb == nil {
		return 0, errNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("get", err)
	}
	return n, nil
}

// Increment atomically adds one and returns the new value. Redis creates
// missing keys at 0 before incrementing.
func (s *RedisQuotaStore) Increment(ctx context.Context, key string) (int64, error) {
	if s.rdb == nil {
		return 0, errNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable("incr", err)
	}
	return n, nil
}

// SetTTL sets or refreshes the key expiry.
func (s *RedisQuotaStore) SetTTL(ctx context.Context, key string, ttl time.Duration) error {
	if s.rdb == nil {
		return errNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable("expire", err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (s *RedisQuotaStore) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

var errNoClient = fmt.Errorf("%w: redis not configured", ErrQuotaStoreUnavailable)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrQuotaStoreUnavailable, op, err)
}
