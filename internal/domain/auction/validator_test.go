package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func activeAuctionItem(now time.Time) *Item {
	return &Item{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		UploaderID:   uuid.New(),
		SaleType:     SaleTypeAuction,
		StartingBid:  dec("10.00"),
		Currency:     "USD",
		AuctionStart: now.Add(-time.Hour),
		AuctionEnd:   now.Add(time.Hour),
		CloseState:   CloseStateOpen,
		Available:    true,
	}
}

func TestValidateBid(t *testing.T) {
	now := time.Now().UTC()
	increment := dec("1.00")

	tests := []struct {
		name    string
		mutate  func(item *Item, bidder *Bidder)
		amount  decimal.Decimal
		wantErr error
	}{
		{
			name:   "valid first bid at starting bid plus increment",
			amount: dec("11.00"),
		},
		{
			name:   "valid bid far above minimum",
			amount: dec("500.00"),
		},
		{
			name: "fixed price item is rejected",
			mutate: func(item *Item, _ *Bidder) {
				item.SaleType = SaleTypeFixedPrice
			},
			amount:  dec("11.00"),
			wantErr: ErrNotAnAuction,
		},
		{
			name: "auction not started yet",
			mutate: func(item *Item, _ *Bidder) {
				item.AuctionStart = now.Add(time.Minute)
			},
			amount:  dec("11.00"),
			wantErr: ErrAuctionNotActive,
		},
		{
			name: "auction already ended",
			mutate: func(item *Item, _ *Bidder) {
				item.AuctionEnd = now.Add(-time.Minute)
			},
			amount:  dec("11.00"),
			wantErr: ErrAuctionNotActive,
		},
		{
			name: "bid exactly at auction end is rejected",
			mutate: func(item *Item, _ *Bidder) {
				item.AuctionEnd = now
			},
			amount:  dec("11.00"),
			wantErr: ErrAuctionNotActive,
		},
		{
			name: "seller cannot bid on own item",
			mutate: func(item *Item, bidder *Bidder) {
				bidder.ID = item.SellerID
			},
			amount:  dec("11.00"),
			wantErr: ErrSelfBidForbidden,
		},
		{
			name: "suspended bidder is rejected",
			mutate: func(_ *Item, bidder *Bidder) {
				bidder.Status = BidderStatusSuspended
			},
			amount:  dec("11.00"),
			wantErr: ErrBidderInactive,
		},
		{
			name: "banned bidder is rejected",
			mutate: func(_ *Item, bidder *Bidder) {
				bidder.Status = BidderStatusBanned
			},
			amount:  dec("11.00"),
			wantErr: ErrBidderInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := activeAuctionItem(now)
			bidder := &Bidder{ID: uuid.New(), Status: BidderStatusActive}
			if tt.mutate != nil {
				tt.mutate(item, bidder)
			}

			err := ValidateBid(item, bidder, tt.amount, now, increment)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Checks run in a fixed order: an item that fails several checks at once
// must report the first one.
func TestValidateBidCheckOrder(t *testing.T) {
	now := time.Now().UTC()

	item := activeAuctionItem(now)
	item.SaleType = SaleTypeFixedPrice
	item.AuctionEnd = now.Add(-time.Minute)
	bidder := &Bidder{ID: item.SellerID, Status: BidderStatusBanned}

	err := ValidateBid(item, bidder, dec("0.01"), now, dec("1.00"))
	assert.ErrorIs(t, err, ErrNotAnAuction)

	item.SaleType = SaleTypeAuction
	err = ValidateBid(item, bidder, dec("0.01"), now, dec("1.00"))
	assert.ErrorIs(t, err, ErrAuctionNotActive)

	item.AuctionEnd = now.Add(time.Hour)
	err = ValidateBid(item, bidder, dec("0.01"), now, dec("1.00"))
	assert.ErrorIs(t, err, ErrSelfBidForbidden)

	bidder.ID = uuid.New()
	err = ValidateBid(item, bidder, dec("0.01"), now, dec("1.00"))
	assert.ErrorIs(t, err, ErrBidderInactive)

	bidder.Status = BidderStatusActive
	var tooLow *BidTooLowError
	err = ValidateBid(item, bidder, dec("0.01"), now, dec("1.00"))
	assert.ErrorAs(t, err, &tooLow)
}

func TestValidateBidMinimum(t *testing.T) {
	now := time.Now().UTC()
	bidder := &Bidder{ID: uuid.New(), Status: BidderStatusActive}
	increment := dec("1.00")

	t.Run("first bid below starting bid plus increment", func(t *testing.T) {
		item := activeAuctionItem(now) // starting bid 10.00

		err := ValidateBid(item, bidder, dec("10.99"), now, increment)
		var tooLow *BidTooLowError
		require.ErrorAs(t, err, &tooLow)
		assert.True(t, tooLow.CurrentHighest.Equal(dec("10.00")))
		assert.True(t, tooLow.MinimumBid.Equal(dec("11.00")))
	})

	t.Run("minimum tracks current bid once bids exist", func(t *testing.T) {
		item := activeAuctionItem(now)
		item.CurrentBid = dec("42.50")
		item.BidCount = 3

		err := ValidateBid(item, bidder, dec("43.49"), now, increment)
		var tooLow *BidTooLowError
		require.ErrorAs(t, err, &tooLow)
		assert.True(t, tooLow.MinimumBid.Equal(dec("43.50")))

		assert.NoError(t, ValidateBid(item, bidder, dec("43.50"), now, increment))
	})

	t.Run("equal to current highest is too low", func(t *testing.T) {
		item := activeAuctionItem(now)
		item.CurrentBid = dec("20.00")
		item.BidCount = 1

		err := ValidateBid(item, bidder, dec("20.00"), now, increment)
		var tooLow *BidTooLowError
		assert.ErrorAs(t, err, &tooLow)
	})
}
