package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chaos-story-service/internal/domain"
)

const (
	DefaultLockTTL     = 30 * time.Second
	DefaultLockTimeout = 15 * time.Second
	lockRetryInterval  = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still carries our token, so
// a holder whose TTL lapsed cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed lock built on SET NX PX. The TTL must exceed the
// longest critical section, which includes one scene generation.
type Locker struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewLocker(client *redis.Client, ttl, timeout time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{client: client, ttl: ttl, timeout: timeout}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// the caller's context may already be done
				_ = releaseScript.Run(context.Background(), l.client, []string{lockKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, domain.ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
