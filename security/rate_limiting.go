package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles scan attempts per client. Ticket ids are effectively
// credentials, so the validate endpoint gets a brute-force guard.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the client identified by key may make another
// attempt inside the current window. Fails open on Redis errors: a broken
// limiter must not take the gate offline.
func (r *RateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, redisKey, r.window)
	}
	return count <= int64(r.limit)
}

// Remaining reports how many attempts are left in the current window.
func (r *RateLimiter) Remaining(ctx context.Context, key string) int {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.redis.Get(ctx, redisKey).Int()
	if err != nil {
		return r.limit
	}
	left := r.limit - count
	if left < 0 {
		return 0
	}
	return left
}
