package auction

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation and conflict errors surfaced to callers as rejections.
var (
	ErrItemNotFound     = fmt.Errorf("auction item not found")
	ErrBidderNotFound   = fmt.Errorf("bidder not found")
	ErrNotAnAuction     = fmt.Errorf("item is not an auction item")
	ErrAuctionNotActive = fmt.Errorf("auction is not active")
	ErrSelfBidForbidden = fmt.Errorf("you cannot bid on your own auction")
	ErrBidderInactive   = fmt.Errorf("bidder account is not active")
	ErrAuctionClosed    = fmt.Errorf("auction has already been closed")
)

// BidTooLowError rejects a bid below the required minimum. It carries the
// minimum acceptable amount so the caller can tell the bidder what to offer.
type BidTooLowError struct {
	CurrentHighest decimal.Decimal
	MinimumBid     decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %s (current highest bid is %s)",
		e.MinimumBid.StringFixed(2), e.CurrentHighest.StringFixed(2))
}
