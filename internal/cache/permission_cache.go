package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPermissionTTL = 1 * time.Minute

// CacheStats tracks cache statistics
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// PermissionCache is a redis-backed read-through cache of a user's effective
// permission names. Entries expire on a short TTL and are dropped eagerly
// when a grant or membership mutation touches the user, so a revoked grant
// is never served longer than the TTL.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
	stats  *CacheStats
}

// NewPermissionCache creates a cache. ttl <= 0 selects the default.
func NewPermissionCache(client *redis.Client, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = defaultPermissionTTL
	}
	return &PermissionCache{
		client: client,
		ttl:    ttl,
		stats:  &CacheStats{},
	}
}

func permissionKey(userID uuid.UUID) string {
	return fmt.Sprintf("authz:permissions:%s", userID)
}

// GetUserPermissions returns the cached permission names. A miss is
// (nil, nil): a cached empty set decodes to a non-nil empty slice, so the
// two are distinguishable.
func (c *PermissionCache) GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	data, err := c.client.Get(ctx, permissionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&c.stats.Misses, 1)
			return nil, nil
		}
		return nil, err
	}

	atomic.AddInt64(&c.stats.Hits, 1)

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// SetUserPermissions caches the permission names under the TTL.
func (c *PermissionCache) SetUserPermissions(ctx context.Context, userID uuid.UUID, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	data, err := json.Marshal(permissions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, permissionKey(userID), data, c.ttl).Err()
}

// InvalidateUser drops the cached permission set for a user.
func (c *PermissionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	err := c.client.Del(ctx, permissionKey(userID)).Err()
	if err == nil {
		atomic.AddInt64(&c.stats.Evictions, 1)
	}
	return err
}

// GetStats returns cache statistics
func (c *PermissionCache) GetStats() CacheStats {
	return CacheStats{
		Hits:      atomic.LoadInt64(&c.stats.Hits),
		Misses:    atomic.LoadInt64(&c.stats.Misses),
		Evictions: atomic.LoadInt64(&c.stats.Evictions),
	}
}
