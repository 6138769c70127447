package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps unavailable-days responses hot in redis. Entries
// are invalidated whenever a reservation for the item is committed or
// released, so reads may lag at most one in-flight write.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

func cacheKey(itemID int64) string {
	return fmt.Sprintf("calendar:item:%d:unavailable", itemID)
}

// Get returns the cached ranges and whether the entry was present.
func (c *AvailabilityCache) Get(ctx context.Context, itemID int64) ([]Range, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(itemID)).Bytes()
	if err != nil {
		return nil, false
	}
	var ranges []Range
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return nil, false
	}
	return ranges, true
}

// Set stores the ranges for one item.
func (c *AvailabilityCache) Set(ctx context.Context, itemID int64, ranges []Range) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(ranges)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(itemID), raw, c.ttl).Err()
}

// Invalidate drops the items' entries after a reservation mutation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, itemIDs ...int64) {
	if c == nil || c.client == nil || len(itemIDs) == 0 {
		return
	}
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = cacheKey(id)
	}
	_ = c.client.Del(ctx, keys...).Err()
}
