package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"chaos-story-service/internal/app"
)

// IdentityCache caches display names in Redis and falls back to a slower
// provider on cache miss. Names are stored as: SET display_name:{userID} {name}
type IdentityCache struct {
	client *redis.Client
	source app.IdentityProvider
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewIdentityCache(client *redis.Client, source app.IdentityProvider, ttl time.Duration) *IdentityCache {
	return &IdentityCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *IdentityCache) DisplayNameOf(ctx context.Context, userID string) (string, bool) {
	if name, err := c.client.Get(ctx, c.key(userID)).Result(); err == nil {
		return name, true
	}

	result, _, _ := c.sf.Do(userID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if name, err := c.client.Get(ctx, c.key(userID)).Result(); err == nil {
			return name, nil
		}

		name, ok := c.source.DisplayNameOf(ctx, userID)
		if !ok {
			return "", nil
		}
		_ = c.client.Set(ctx, c.key(userID), name, c.ttlWithJitter()).Err()
		return name, nil
	})
	name := result.(string)
	return name, name != ""
}

func (c *IdentityCache) key(userID string) string {
	return "display_name:" + userID
}

func (c *IdentityCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
