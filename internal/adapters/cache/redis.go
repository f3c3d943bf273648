package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/pitchside/internal/domain/analytics"
	"github.com/okian/pitchside/pkg/metrics"
)

// RedisConfig holds the connection settings for the Redis cache.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns settings for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		TTL:          DefaultTTL,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Redis stores progress entries as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &Redis{client: client, ttl: cfg.TTL}, nil
}

// Get returns the stored progress or ErrCacheMiss.
func (r *Redis) Get(ctx context.Context, playerID string) (analytics.Progress, error) {
	data, err := r.client.Get(ctx, Key(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss()
			return analytics.Progress{}, ErrCacheMiss
		}
		metrics.RecordCacheError()
		return analytics.Progress{}, fmt.Errorf("cache: get %s: %w", playerID, err)
	}
	p, err := Decode(data)
	if err != nil {
		metrics.RecordCacheError()
		return analytics.Progress{}, err
	}
	metrics.RecordCacheHit()
	return p, nil
}

// Set stores p with the configured TTL.
func (r *Redis) Set(ctx context.Context, p analytics.Progress) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, Key(p.PlayerID), data, r.ttl).Err(); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache: set %s: %w", p.PlayerID, err)
	}
	return nil
}

// Invalidate deletes the player's entry.
func (r *Redis) Invalidate(ctx context.Context, playerID string) error {
	if err := r.client.Del(ctx, Key(playerID)).Err(); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache: invalidate %s: %w", playerID, err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
