package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter stored under "rate_limit:<key>". The
// first hit in a window sets the expiry; hits past limit are refused until
// the key expires.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = "rate_limit:" + key
	count, err := r.client.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.cli.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
