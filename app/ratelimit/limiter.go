package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inventory:rl"

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter per key. The window starts on the first hit.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, limit: limit, window: window}
}

func (l *Limiter) Allow(ctx context.Context, scope, principal string) (Result, error) {
	key := fmt.Sprintf("%s:%s:%s", keyPrefix, scope, principal)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	window := ttl.Val()
	if window < 0 {
		if err := l.client.PExpire(ctx, key, l.window).Err(); err != nil {
			return Result{}, err
		}
		window = l.window
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := Result{Allowed: count <= l.limit, Remaining: remaining}
	if !result.Allowed {
		result.RetryAfter = window
	}
	return result, nil
}
