package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wcmitchell/insights-rbac/pkg/rbac"
)

// Cache is a Redis-backed lookup cache mapping org IDs to tenants. Tenant
// rows change rarely; the cache cuts a database round trip from every
// request's tenant resolution.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache connects to Redis and verifies the connection.
func NewCache(addr, password string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		redis: client,
		ttl:   30 * time.Minute,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.redis.Close()
}

// Client exposes the underlying Redis client for health checks. Safe to call
// on a nil Cache.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.redis
}

func tenantKey(orgID string) string {
	return fmt.Sprintf("tenant:org:%s", orgID)
}

// cachedTenant is the cache representation; unlike the API shape it keeps
// the database ID.
type cachedTenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OrgID     string    `json:"org_id"`
	AccountID string    `json:"account_id"`
	Ready     bool      `json:"ready"`
	CreatedAt time.Time `json:"created"`
}

// Get returns the cached tenant for an org ID, or nil on a miss.
func (c *Cache) Get(ctx context.Context, orgID string) *rbac.Tenant {
	cached, err := c.redis.Get(ctx, tenantKey(orgID)).Result()
	if err != nil {
		return nil
	}
	var ct cachedTenant
	if err := json.Unmarshal([]byte(cached), &ct); err != nil {
		return nil
	}
	return &rbac.Tenant{
		ID: ct.ID, Name: ct.Name, OrgID: ct.OrgID,
		AccountID: ct.AccountID, Ready: ct.Ready, CreatedAt: ct.CreatedAt,
	}
}

// Set caches a tenant by org ID.
func (c *Cache) Set(ctx context.Context, tenant *rbac.Tenant) {
	data, err := json.Marshal(cachedTenant{
		ID: tenant.ID, Name: tenant.Name, OrgID: tenant.OrgID,
		AccountID: tenant.AccountID, Ready: tenant.Ready, CreatedAt: tenant.CreatedAt,
	})
	if err != nil {
		return
	}
	c.redis.Set(ctx, tenantKey(tenant.OrgID), data, c.ttl)
}

// Invalidate removes a tenant from the cache.
func (c *Cache) Invalidate(ctx context.Context, orgID string) error {
	return c.redis.Del(ctx, tenantKey(orgID)).Err()
}
