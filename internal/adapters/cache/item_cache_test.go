package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbay/auction-engine/internal/domain/auction"
)

type fakeItemReader struct {
	item  *auction.Item
	calls int
}

func (f *fakeItemReader) GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	f.calls++
	if f.item == nil || f.item.ID != itemID {
		return nil, auction.ErrItemNotFound
	}
	copy := *f.item
	return &copy, nil
}

// fakeRedis keeps snapshots in a map and answers with go-redis result
// values, the same shapes a real client returns.
type fakeRedis struct {
	store   map[string]string
	ttls    map[string]time.Duration
	getErr  error
	getHits int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		store: make(map[string]string),
		ttls:  make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.store[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	f.getHits++
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.store[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func testItem() *auction.Item {
	now := time.Now().UTC()
	return &auction.Item{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		UploaderID:   uuid.New(),
		Title:        "test item",
		SaleType:     auction.SaleTypeAuction,
		StartingBid:  decimal.RequireFromString("10.00"),
		Currency:     "USD",
		AuctionStart: now.Add(-time.Hour),
		AuctionEnd:   now.Add(time.Hour),
		CurrentBid:   decimal.RequireFromString("15.00"),
		BidCount:     2,
		Available:    true,
		CloseState:   auction.CloseStateOpen,
	}
}

func TestSnapshotCacheReadThrough(t *testing.T) {
	item := testItem()
	primary := &fakeItemReader{item: item}
	rdb := newFakeRedis()
	c := NewItemSnapshotCache(primary, rdb, 5*time.Second)
	ctx := context.Background()

	first, err := c.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls, "miss goes to the primary")
	assert.Equal(t, 5*time.Second, rdb.ttls[itemKey(item.ID)])

	second, err := c.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls, "hit is served from the snapshot")
	assert.Equal(t, 1, rdb.getHits)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.CurrentBid.Equal(item.CurrentBid))
	assert.Equal(t, item.AuctionEnd.Unix(), second.AuctionEnd.Unix())
}

func TestSnapshotCacheFallsBackOnRedisError(t *testing.T) {
	item := testItem()
	primary := &fakeItemReader{item: item}
	rdb := newFakeRedis()
	rdb.getErr = context.DeadlineExceeded
	c := NewItemSnapshotCache(primary, rdb, 5*time.Second)

	got, err := c.GetItemByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, 1, primary.calls)
}

func TestSnapshotCachePropagatesNotFound(t *testing.T) {
	primary := &fakeItemReader{}
	c := NewItemSnapshotCache(primary, newFakeRedis(), 5*time.Second)

	_, err := c.GetItemByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auction.ErrItemNotFound)
}

// The cache exposes only the display read; the services' locked reads and
// writes are not implemented here, so they cannot be wired onto snapshots.
var _ ItemReader = (*ItemSnapshotCache)(nil)
