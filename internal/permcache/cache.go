package permcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "permgroups:user:"

// Cache stores, per user, the set of role ids the user is assigned to
// directly or through user groups. Entries are written by the invalidation
// coordinator and by the lazy fill on the permission-check path; everything
// else only reads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a redis client with the permission-cache conventions.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

func userKey(userID string) string {
	return keyPrefix + userID
}

// Lookup returns the cached role ids for a user. The second result is false
// on a cache miss.
func (c *Cache) Lookup(ctx context.Context, userID string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, userKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("permcache: lookup %s: %w", userID, err)
	}
	var roleIDs []string
	if err := json.Unmarshal(raw, &roleIDs); err != nil {
		return nil, false, fmt.Errorf("permcache: decode %s: %w", userID, err)
	}
	return roleIDs, true, nil
}

// Store caches the role ids for a user with the configured TTL.
func (c *Cache) Store(ctx context.Context, userID string, roleIDs []string) error {
	raw, err := json.Marshal(roleIDs)
	if err != nil {
		return fmt.Errorf("permcache: encode %s: %w", userID, err)
	}
	if err := c.client.Set(ctx, userKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("permcache: store %s: %w", userID, err)
	}
	return nil
}

// Evict removes the cached entries for the given users. Idempotent; a nil
// or empty input is a no-op.
func (c *Cache) Evict(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = userKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("permcache: evict: %w", err)
	}
	return nil
}
