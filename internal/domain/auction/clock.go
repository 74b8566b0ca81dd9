package auction

import "time"

// MaybeExtend applies the anti-sniping rule: a bid landing within window
// before auctionEnd pushes the end out to bidTime + window. It returns the
// new end time, or nil when the bid does not re-trigger the window.
//
// The clock only ever moves forward: any bidTime inside the window yields
// bidTime + window >= auctionEnd. Callers must apply the returned end time
// in the same transaction as the bid that triggered it, so a reader never
// sees a late winning bid against a stale end time.
func MaybeExtend(auctionEnd, bidTime time.Time, window time.Duration) *time.Time {
	windowStart := auctionEnd.Add(-window)
	if bidTime.Before(windowStart) || !bidTime.Before(auctionEnd) {
		return nil
	}
	newEnd := bidTime.Add(window)
	return &newEnd
}
