package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis stores tokens in Redis so that several processes share one access token.
type Redis struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix prepends prefix to every key.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithLogger sets the logger for Redis failures.
func WithLogger(logger *zap.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis returns a cache backed by client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// Has reports whether key exists. Redis drops expired keys itself.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		r.logger.Error("failed to check key in redis", zap.Error(err), zap.String("key", r.key(key)))
		return false, fmt.Errorf("redis exists: %w", err)
	}

	return n > 0, nil
}

// Get returns the value stored under key, or [ErrMiss].
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		r.logger.Error("failed to get key from redis", zap.Error(err), zap.String("key", r.key(key)))
		return "", fmt.Errorf("redis get: %w", err)
	}

	return value, nil
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.logger.Error("failed to set key in redis", zap.Error(err), zap.String("key", r.key(key)))
		return fmt.Errorf("redis set: %w", err)
	}

	r.logger.Debug("key stored in redis", zap.String("key", r.key(key)), zap.Duration("ttl", ttl))
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
