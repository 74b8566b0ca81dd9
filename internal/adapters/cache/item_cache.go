// Package cache serves item snapshots for display reads out of Redis.
// Only the HTTP GET endpoints read through it; bid validation, settlement
// and the background closer always read Postgres, so a stale snapshot can
// never reject a bid or misjudge an auction's state. Snapshots may lag
// writes by at most the TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/artbay/auction-engine/internal/domain/auction"
)

// ItemReader is the read the cache fronts.
type ItemReader interface {
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error)
}

// RedisClient is the slice of go-redis the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ItemSnapshotCache is a read-through cache over the item repository.
type ItemSnapshotCache struct {
	primary ItemReader
	rdb     RedisClient
	ttl     time.Duration
}

// NewItemSnapshotCache creates a read-through snapshot cache. The TTL
// bounds how stale a displayed item can be.
func NewItemSnapshotCache(primary ItemReader, rdb RedisClient, ttl time.Duration) *ItemSnapshotCache {
	return &ItemSnapshotCache{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// GetItemByID serves the snapshot from Redis when present, falling back to
// the primary on a miss or any Redis error.
func (s *ItemSnapshotCache) GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	data, err := s.rdb.Get(ctx, itemKey(itemID)).Bytes()
	if err == nil {
		var item auction.Item
		if json.Unmarshal(data, &item) == nil {
			return &item, nil
		}
	}

	item, err := s.primary.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(item); err == nil {
		s.rdb.Set(ctx, itemKey(itemID), data, s.ttl)
	}
	return item, nil
}

func itemKey(id uuid.UUID) string { return fmt.Sprintf("item:%s", id) }
