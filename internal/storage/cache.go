package storage

import (
	"context"
	"time"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/pkg/redis"
)

// TimelineCache stores finished timelines in Redis keyed by study hash + oracle ID
type TimelineCache struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewTimelineCache creates a timeline cache (ttl 0 = no expiry)
func NewTimelineCache(client *redis.Client, ttl time.Duration) *TimelineCache {
	return &TimelineCache{
		cache: redis.NewCache(client, "lunaris"),
		ttl:   ttl,
	}
}

// Get returns the cached snapshot; found=false on miss or when Redis is disabled
func (c *TimelineCache) Get(ctx context.Context, key string) (*contracts.PhaseTimelineSnapshot, bool, error) {
	var snapshot contracts.PhaseTimelineSnapshot
	found, err := c.cache.Get(ctx, redis.TimelineKey(key), &snapshot)
	if err != nil || !found {
		return nil, false, err
	}
	return &snapshot, true, nil
}

// Put stores a snapshot
func (c *TimelineCache) Put(ctx context.Context, key string, snapshot *contracts.PhaseTimelineSnapshot) error {
	return c.cache.Set(ctx, redis.TimelineKey(key), snapshot, c.ttl)
}

// Invalidate drops a cached snapshot
func (c *TimelineCache) Invalidate(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, redis.TimelineKey(key))
}
