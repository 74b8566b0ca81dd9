package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/pkg/events"
)

// ItemRepository defines the interface for item persistence.
type ItemRepository interface {
	// GetItemByID retrieves an item by its ID.
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// GetItemByIDForUpdate retrieves an item and locks its row for update.
	// Must be called within a transaction; this is the storage-level half
	// of the per-item exclusive section.
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error)

	// UpdateBidState writes current bid, bid count and auction end in one
	// statement so the three fields never diverge from each other.
	UpdateBidState(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, currentBid decimal.Decimal, bidCount int, auctionEnd time.Time) error
}

// BidRepository defines the interface for bid persistence. Mutating calls
// take a transaction and must run inside the item's exclusive section.
type BidRepository interface {
	// SaveBid appends a bid within a transaction.
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// MarkBidsNotWinning clears the winning flag on every bid of the item.
	MarkBidsNotWinning(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error

	// WinningBid returns the unique winning bid, or nil if none exists.
	WinningBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Bid, error)

	// ListBidsByItemID retrieves bids for an item ordered by amount
	// descending, paginated.
	ListBidsByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Bid, error)

	// ListBidsExcludingBidder retrieves all bids on the item not placed by
	// bidderID, for post-close loser notification.
	ListBidsExcludingBidder(ctx context.Context, itemID, bidderID uuid.UUID) ([]*Bid, error)

	// TopAutoBidAbove returns the best auto-bid candidate: an active bid
	// from a bidder other than excludeBidder with a proxy ceiling strictly
	// above amount. Candidates are ordered by ceiling descending, ties
	// broken by earliest PlacedAt. Returns nil when none qualifies.
	TopAutoBidAbove(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount decimal.Decimal, excludeBidder uuid.UUID) (*Bid, error)
}

// BidderProvider supplies bidder identity and standing from the external
// identity service.
type BidderProvider interface {
	GetBidder(ctx context.Context, bidderID uuid.UUID) (*Bidder, error)
}

// OutboxRepository is the slice of the outbox the bidding engine needs.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
