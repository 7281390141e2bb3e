package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/permission"
)

const adminCacheTTL = 5 * time.Minute

// CachedAdminSource wraps an AdminSource with a short Redis cache. Admin
// status is checked on nearly every permission resolution; the cache keeps
// that off the users table. A revoked admin keeps access for at most the
// TTL, which operations accepted.
type CachedAdminSource struct {
	Redis  *redis.Client
	Source permission.AdminSource
	Log    *logger.Logger
}

func NewCachedAdminSource(redisClient *redis.Client, source permission.AdminSource, log *logger.Logger) *CachedAdminSource {
	return &CachedAdminSource{Redis: redisClient, Source: source, Log: log}
}

func adminCacheKey(orgID, userID string) string {
	return fmt.Sprintf("admin:%s:%s", orgID, userID)
}

func (c *CachedAdminSource) IsAdmin(ctx context.Context, orgID, userID string) (bool, error) {
	key := adminCacheKey(orgID, userID)
	if cached, err := c.Redis.Get(ctx, key).Result(); err == nil {
		return cached == "1", nil
	} else if err != redis.Nil {
		c.Log.Warn("AUTH", fmt.Sprintf("Admin cache read failed for %s: %v", key, err))
	}

	isAdmin, err := c.Source.IsAdmin(ctx, orgID, userID)
	if err != nil {
		return false, err
	}

	value := "0"
	if isAdmin {
		value = "1"
	}
	if err := c.Redis.Set(ctx, key, value, adminCacheTTL).Err(); err != nil {
		c.Log.Warn("AUTH", fmt.Sprintf("Admin cache write failed for %s: %v", key, err))
	}
	return isAdmin, nil
}

// InvalidateAdmin drops the cached flag after a grant or revocation.
func (c *CachedAdminSource) InvalidateAdmin(ctx context.Context, orgID, userID string) error {
	return c.Redis.Del(ctx, adminCacheKey(orgID, userID)).Err()
}
