package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"portal-api/domain"
)

type backend interface {
	Insert(ctx context.Context, t domain.Task) error
	Get(ctx context.Context, tenant, id string) (domain.Task, error)
	Merge(ctx context.Context, tenant, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error)
	List(ctx context.Context, tenant string, filter domain.ListFilter) ([]domain.Task, error)
	GetProfile(ctx context.Context, tenant string) (domain.TenantProfile, error)
	MergeProfile(ctx context.Context, tenant string, patch domain.ProfilePatch) (domain.TenantProfile, error)
}

// Cache wraps a Store with Redis-backed caching of the per-tenant board
// view and branding profile. Every mutation evicts the tenant's entries so
// reconnecting observers always re-fetch committed state.
type Cache struct {
	*Store
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{base: base, redis: client, ttl: ttl}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

func (c *Cache) Insert(ctx context.Context, t domain.Task) error {
	if err := c.base.Insert(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.Tenant)
	return nil
}

func (c *Cache) Get(ctx context.Context, tenant, id string) (domain.Task, error) {
	return c.base.Get(ctx, tenant, id)
}

func (c *Cache) Merge(ctx context.Context, tenant, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error) {
	t, err := c.base.Merge(ctx, tenant, id, patch, updatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tenant)
	return t, nil
}

// List serves the unfiltered board view from cache when possible. Filtered
// queries always hit the backing store.
func (c *Cache) List(ctx context.Context, tenant string, filter domain.ListFilter) ([]domain.Task, error) {
	cacheable := filter == (domain.ListFilter{})
	if cacheable {
		if tasks, ok := c.loadTasks(ctx, tenant); ok {
			return tasks, nil
		}
	}
	tasks, err := c.base.List(ctx, tenant, filter)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.storeTasks(ctx, tenant, tasks)
	}
	return tasks, nil
}

func (c *Cache) GetProfile(ctx context.Context, tenant string) (domain.TenantProfile, error) {
	if prof, ok := c.loadProfile(ctx, tenant); ok {
		return prof, nil
	}
	prof, err := c.base.GetProfile(ctx, tenant)
	if err != nil {
		return domain.TenantProfile{}, err
	}
	c.storeProfile(ctx, tenant, prof)
	return prof, nil
}

func (c *Cache) MergeProfile(ctx context.Context, tenant string, patch domain.ProfilePatch) (domain.TenantProfile, error) {
	prof, err := c.base.MergeProfile(ctx, tenant, patch)
	if err != nil {
		return domain.TenantProfile{}, err
	}
	c.evict(ctx, tenant)
	return prof, nil
}

func (c *Cache) loadTasks(ctx context.Context, tenant string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(tenant)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(tenant)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(tenant)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tenant string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(tenant), data, c.ttl).Err()
}

func (c *Cache) loadProfile(ctx context.Context, tenant string) (domain.TenantProfile, bool) {
	if c.redis == nil {
		return domain.TenantProfile{}, false
	}
	data, err := c.redis.Get(ctx, profileCacheKey(tenant)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, profileCacheKey(tenant)).Err()
		}
		return domain.TenantProfile{}, false
	}
	var prof domain.TenantProfile
	if err := json.Unmarshal(data, &prof); err != nil {
		_ = c.redis.Del(ctx, profileCacheKey(tenant)).Err()
		return domain.TenantProfile{}, false
	}
	return prof, true
}

func (c *Cache) storeProfile(ctx context.Context, tenant string, prof domain.TenantProfile) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(prof)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, profileCacheKey(tenant), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, tenant string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(tenant), profileCacheKey(tenant)).Result()
}

func tasksCacheKey(tenant string) string {
	return "board:" + tenant
}

func profileCacheKey(tenant string) string {
	return "branding:" + tenant
}
