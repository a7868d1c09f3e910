package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcmitchell/insights-rbac/pkg/rbac"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	cache, err := NewCache(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	tenant := &rbac.Tenant{
		ID:        7,
		Name:      "org1234567",
		OrgID:     "1234567",
		AccountID: "54321",
		Ready:     true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	cache.Set(ctx, tenant)

	got := cache.Get(ctx, "1234567")
	require.NotNil(t, got)
	// The database ID survives caching even though the API shape drops it.
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "org1234567", got.Name)
	assert.Equal(t, "54321", got.AccountID)
	assert.True(t, got.Ready)
	assert.True(t, tenant.CreatedAt.Equal(got.CreatedAt))
}

func TestCacheMiss(t *testing.T) {
	cache, _ := setupCache(t)
	assert.Nil(t, cache.Get(context.Background(), "unknown"))
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	cache.Set(ctx, &rbac.Tenant{ID: 7, OrgID: "1234567"})
	require.NotNil(t, cache.Get(ctx, "1234567"))

	require.NoError(t, cache.Invalidate(ctx, "1234567"))
	assert.Nil(t, cache.Get(ctx, "1234567"))
}

func TestCacheExpiry(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	cache.Set(ctx, &rbac.Tenant{ID: 7, OrgID: "1234567"})
	mr.FastForward(31 * time.Minute)
	assert.Nil(t, cache.Get(ctx, "1234567"))
}

func TestCacheCorruptEntry(t *testing.T) {
	cache, mr := setupCache(t)
	require.NoError(t, mr.Set("tenant:org:1234567", "not json"))
	assert.Nil(t, cache.Get(context.Background(), "1234567"))
}

func TestNilCacheClient(t *testing.T) {
	var cache *Cache
	assert.Nil(t, cache.Client())
}

func TestNewCacheConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewCache(addr, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
