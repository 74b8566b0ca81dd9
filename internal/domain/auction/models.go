package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleType distinguishes how an item is sold. The bidding engine only
// operates on auction items.
type SaleType string

const (
	SaleTypeAuction    SaleType = "auction"
	SaleTypeFixedPrice SaleType = "fixed_price"
)

// CloseState is the terminal state of an auction. An item with
// CloseStateOpen has not been closed yet.
type CloseState string

const (
	CloseStateOpen                CloseState = "open"
	CloseStateSold                CloseState = "sold"
	CloseStateNoSaleNoBids        CloseState = "no_sale_no_bids"
	CloseStateNoSaleReserveNotMet CloseState = "no_sale_reserve_not_met"
	CloseStateSettlementFailed    CloseState = "settlement_failed"
)

// Terminal reports whether the state can no longer change.
// settlement_failed is not terminal: a retried close
// re-attempts settlement.
func (s CloseState) Terminal() bool {
	switch s {
	case CloseStateSold, CloseStateNoSaleNoBids, CloseStateNoSaleReserveNotMet:
		return true
	default:
		return false
	}
}

// BidderStatus is the account standing of a bidder, provided by the
// identity service.
type BidderStatus string

const (
	BidderStatusActive    BidderStatus = "active"
	BidderStatusSuspended BidderStatus = "suspended"
	BidderStatusBanned    BidderStatus = "banned"
)

// Bidder is the slice of identity the engine needs for eligibility checks.
type Bidder struct {
	ID     uuid.UUID
	Status BidderStatus
}

// Item is the auction-relevant state of a sellable item.
//
// CurrentBid, BidCount and AuctionEnd are mutated only inside the item's
// exclusive section, and always together, so readers never observe a bid
// count without the matching price or end time.
type Item struct {
	ID           uuid.UUID        `db:"id"`
	SellerID     uuid.UUID        `db:"seller_id"`   // current owner
	UploaderID   uuid.UUID        `db:"uploader_id"` // original creator, drives resale royalty
	Title        string           `db:"title"`
	SaleType     SaleType         `db:"sale_type"`
	StartingBid  decimal.Decimal  `db:"starting_bid"`
	ReservePrice *decimal.Decimal `db:"reserve_price"`
	BuyNowPrice  *decimal.Decimal `db:"buy_now_price"`
	Currency     string           `db:"currency"`
	AuctionStart time.Time        `db:"auction_start"`
	AuctionEnd   time.Time        `db:"auction_end"`
	CurrentBid   decimal.Decimal  `db:"current_bid"`
	BidCount     int              `db:"bid_count"`
	Available    bool             `db:"available"`
	CloseState   CloseState       `db:"close_state"`
	CreatedAt    time.Time        `db:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at"`
}

// AuctionActive reports whether now falls within [AuctionStart, AuctionEnd).
func (i *Item) AuctionActive(now time.Time) bool {
	return !now.Before(i.AuctionStart) && now.Before(i.AuctionEnd)
}

// Closed reports whether the auction has been closed.
func (i *Item) Closed() bool {
	return i.CloseState != CloseStateOpen && i.CloseState != ""
}

// CurrentHighest returns the amount of the current winning bid, or the
// starting bid when no bids exist.
func (i *Item) CurrentHighest() decimal.Decimal {
	if i.BidCount == 0 {
		return i.StartingBid
	}
	return i.CurrentBid
}

// Bid is one entry in an item's append-only bid history. Bids are never
// deleted; a superseded bid keeps its row with Winning flipped to false.
type Bid struct {
	ID               uuid.UUID        `db:"id"`
	ItemID           uuid.UUID        `db:"item_id"`
	BidderID         uuid.UUID        `db:"bidder_id"`
	Amount           decimal.Decimal  `db:"amount"`
	MaxAutoBidAmount *decimal.Decimal `db:"max_auto_bid_amount"`
	PlacedAt         time.Time        `db:"placed_at"`
	Active           bool             `db:"active"`
	Winning          bool             `db:"winning"`
}

// IsAutoBid reports whether this bid carries a proxy ceiling.
func (b *Bid) IsAutoBid() bool {
	return b.MaxAutoBidAmount != nil && b.MaxAutoBidAmount.GreaterThan(b.Amount)
}

// CanIncreaseTo reports whether the proxy ceiling covers amount.
func (b *Bid) CanIncreaseTo(amount decimal.Decimal) bool {
	return b.Active && b.MaxAutoBidAmount != nil && b.MaxAutoBidAmount.GreaterThanOrEqual(amount)
}
