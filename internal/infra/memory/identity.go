package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"chaos-story-service/internal/app"
)

// StaticDirectory is an identity provider backed by a fixed map (useful for tests/demos).
type StaticDirectory struct {
	names map[string]string
}

func NewStaticDirectory(names map[string]string) *StaticDirectory {
	return &StaticDirectory{names: names}
}

func (d *StaticDirectory) DisplayNameOf(_ context.Context, userID string) (string, bool) {
	name, ok := d.names[userID]
	return name, ok
}

// IdentityCache caches display names from a slower provider with TTL, so
// repeated lookups for the same user do not hit the platform each time.
type IdentityCache struct {
	source app.IdentityProvider
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedName
}

type cachedName struct {
	name      string
	found     bool
	expiresAt time.Time
}

type lookup struct {
	name  string
	found bool
}

func NewIdentityCache(source app.IdentityProvider, ttl time.Duration) *IdentityCache {
	return &IdentityCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedName),
	}
}

func (c *IdentityCache) DisplayNameOf(ctx context.Context, userID string) (string, bool) {
	if entry, ok := c.cached(userID); ok {
		return entry.name, entry.found
	}

	result, _, _ := c.sf.Do(userID, func() (interface{}, error) {
		if entry, ok := c.cached(userID); ok {
			return lookup{name: entry.name, found: entry.found}, nil
		}
		name, found := c.source.DisplayNameOf(ctx, userID)

		c.mu.Lock()
		c.cache[userID] = cachedName{
			name:      name,
			found:     found,
			expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return lookup{name: name, found: found}, nil
	})
	l := result.(lookup)
	return l.name, l.found
}

func (c *IdentityCache) cached(userID string) (cachedName, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[userID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return cachedName{}, false
	}
	return entry, true
}

func (c *IdentityCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
