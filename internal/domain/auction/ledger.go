package auction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Ledger is the append-only, per-item bid history. All mutating operations
// must run inside the item's exclusive section and within the caller's
// transaction; Accept is the sole place the single-winner invariant is
// enforced.
type Ledger struct {
	bids BidRepository
}

// NewLedger creates a ledger over the given bid store.
func NewLedger(bids BidRepository) *Ledger {
	return &Ledger{bids: bids}
}

// Accept appends bid as the new winning bid and clears the winning flag on
// the previous winner. Both writes happen in the caller's transaction, so
// no reader can observe zero or two winning bids. It returns the previous
// winner, or nil if the ledger was empty.
func (l *Ledger) Accept(ctx context.Context, tx pgx.Tx, bid *Bid) (*Bid, error) {
	prev, err := l.bids.WinningBid(ctx, tx, bid.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning bid: %w", err)
	}

	if prev != nil {
		if err := l.bids.MarkBidsNotWinning(ctx, tx, bid.ItemID); err != nil {
			return nil, fmt.Errorf("failed to clear previous winner: %w", err)
		}
	}

	bid.Winning = true
	if err := l.bids.SaveBid(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("failed to save bid: %w", err)
	}

	return prev, nil
}

// WinningBid returns the unique winning bid for the item, or nil.
func (l *Ledger) WinningBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Bid, error) {
	return l.bids.WinningBid(ctx, tx, itemID)
}

// Bids returns the item's bids ordered by amount descending.
func (l *Ledger) Bids(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Bid, error) {
	return l.bids.ListBidsByItemID(ctx, itemID, limit, offset)
}

// BidsExcludingBidder returns every bid on the item not placed by bidderID.
func (l *Ledger) BidsExcludingBidder(ctx context.Context, itemID, bidderID uuid.UUID) ([]*Bid, error) {
	return l.bids.ListBidsExcludingBidder(ctx, itemID, bidderID)
}

// TopAutoBidAbove returns the best standing proxy bid above amount from a
// bidder other than excludeBidder. Ties on equal ceilings go to the
// earliest-placed bid.
func (l *Ledger) TopAutoBidAbove(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount decimal.Decimal, excludeBidder uuid.UUID) (*Bid, error) {
	return l.bids.TopAutoBidAbove(ctx, tx, itemID, amount, excludeBidder)
}
