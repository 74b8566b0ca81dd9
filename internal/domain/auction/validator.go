package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidateBid checks a proposed bid against a snapshot of the item and
// bidder. It has no side effects and is deterministic given the snapshot,
// so it can run outside the item's exclusive section; the accept path
// re-runs it inside the lock because the snapshot may be stale by then.
//
// Checks run in a fixed order and the first failure wins:
// not an auction, auction not active, self bid, inactive bidder, too low.
func ValidateBid(item *Item, bidder *Bidder, amount decimal.Decimal, now time.Time, minIncrement decimal.Decimal) error {
	if item.SaleType != SaleTypeAuction {
		return ErrNotAnAuction
	}
	if !item.AuctionActive(now) {
		return ErrAuctionNotActive
	}
	if bidder.ID == item.SellerID {
		return ErrSelfBidForbidden
	}
	if bidder.Status != BidderStatusActive {
		return ErrBidderInactive
	}
	return validateBidAmount(item, amount, minIncrement)
}

// validateBidAmount enforces the minimum increment over the current highest
// bid (or the starting bid when the ledger is empty). System-generated
// counter-bids go through this check only: their bidder was validated when
// the standing auto bid was placed.
func validateBidAmount(item *Item, amount, minIncrement decimal.Decimal) error {
	highest := item.CurrentHighest()
	minimum := highest.Add(minIncrement)
	if amount.LessThan(minimum) {
		return &BidTooLowError{CurrentHighest: highest, MinimumBid: minimum}
	}
	return nil
}
