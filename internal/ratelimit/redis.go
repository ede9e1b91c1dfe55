// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "checkin:ratelimit:"

// Redis is a Limiter that keeps last-attempt markers in Redis.
// SET NX with a TTL of one window makes check-and-record a single atomic command.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server at url and verifies it with PING.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: defaultRedisPrefix}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string, window time.Duration) (Decision, error) {
	k := r.prefix + key
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	ok, err := r.client.SetNX(ctx, k, now, window).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if ok {
		return Decision{Allow: true}, nil
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl lookup failed: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return Decision{Allow: false, RetryAfter: ttl}, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
