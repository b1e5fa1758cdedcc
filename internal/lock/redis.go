package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseTimeout = 2 * time.Second

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker holds each veterinarian lock for at most ttl and retries acquisition for up to wait
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(vetID uuid.UUID) string {
	return fmt.Sprintf("lock:vet:%s", vetID.String())
}

func (l *RedisLocker) WithVeterinarianLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(vetID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	lockedCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockedCtx)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	try := func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire veterinarian lock: %w", err))
		}
		if !ok {
			return ErrLockNotAcquired
		}
		return nil
	}

	if l.wait <= 0 {
		err := try()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(l.wait),
	)
	return backoff.Retry(try, backoff.WithContext(b, ctx))
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release veterinarian lock: %w", err)
	}
	return nil
}
