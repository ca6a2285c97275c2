package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/ports/repository"
)

var _ repository.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-instance SET NX lock with token-checked release.
type RedisLocker struct {
	cli      redis.Cmdable
	attempts int
	wait     time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return newLocker(c.cli)
}

func newLocker(cli redis.Cmdable) *RedisLocker {
	return &RedisLocker{cli: cli, attempts: 5, wait: 50 * time.Millisecond}
}

// TryLock retries a few times before giving up with domain.ErrBusy.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	if lastErr != nil {
		return "", domain.External("redis", lastErr)
	}
	return "", domain.ErrBusy
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases key only if it is still held with token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
