// Package cache provides a best-effort Redis cache for vault item records.
// A nil *ItemCache is valid and behaves as a permanent miss, so callers
// never branch on whether caching is configured. Cache failures are the
// caller's to log, never to fail an operation on.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkov/filevault/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const itemTTL = 10 * time.Minute

type ItemCache struct {
	client *redis.Client
}

// New connects to Redis at addr. Returns nil (cache disabled) when addr is
// empty or the server is unreachable.
func New(addr string) *ItemCache {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}

	return &ItemCache{client: client}
}

func itemKey(id string) string {
	return fmt.Sprintf("vault:item:%s", id)
}

// GetItem returns the cached record, or (nil, nil) on a miss.
func (c *ItemCache) GetItem(ctx context.Context, id string) (*models.VaultItem, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, itemKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item := &models.VaultItem{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, err
	}
	return item, nil
}

// SetItem stores the record with a bounded TTL.
func (c *ItemCache) SetItem(ctx context.Context, item *models.VaultItem) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, itemKey(item.ID), data, itemTTL).Err()
}

// Invalidate drops the cached records for the given ids.
func (c *ItemCache) Invalidate(ctx context.Context, ids ...string) error {
	if c == nil || len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
