package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/metrics"
	"github.com/artbay/auction-engine/pkg/database"
	"github.com/artbay/auction-engine/pkg/events"
	"github.com/artbay/auction-engine/pkg/lock"
)

// Config carries the bidding rules.
type Config struct {
	// MinBidIncrement is the minimum amount a new bid must exceed the
	// current highest bid by.
	MinBidIncrement decimal.Decimal

	// ExtensionWindow is the anti-sniping window: a bid landing this close
	// to the end pushes the end out by the same duration.
	ExtensionWindow time.Duration

	// MaxCascadeDepth bounds the number of counter-bids one trigger may
	// produce. The cascade terminates on its own because every step
	// strictly increases the price and proxy ceilings are fixed; the cap
	// guards against pathological configurations.
	MaxCascadeDepth int
}

// PlaceBidCommand represents the command to place a bid.
type PlaceBidCommand struct {
	ItemID           uuid.UUID
	BidderID         uuid.UUID
	Amount           decimal.Decimal
	MaxAutoBidAmount *decimal.Decimal
}

// GetBidsQuery represents pagination parameters for an item's bid history.
type GetBidsQuery struct {
	ItemID uuid.UUID
	Limit  int
	Offset int
}

// Service implements the bidding engine: validation, the per-item exclusive
// accept path, anti-sniping extension, and the auto-bid cascade.
type Service struct {
	txManager database.TransactionManager
	items     ItemRepository
	ledger    *Ledger
	bidders   BidderProvider
	outbox    OutboxRepository
	locks     *lock.Keyed
	cfg       Config
	logger    *slog.Logger
}

// NewService creates a new bidding service. The keyed lock must be shared
// with the settlement service so accept and close contend on the same
// per-item exclusion.
func NewService(
	txManager database.TransactionManager,
	items ItemRepository,
	bids BidRepository,
	bidders BidderProvider,
	outbox OutboxRepository,
	locks *lock.Keyed,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager: txManager,
		items:     items,
		ledger:    NewLedger(bids),
		bidders:   bidders,
		outbox:    outbox,
		locks:     locks,
		cfg:       cfg,
		logger:    logger,
	}
}

// PlaceBid validates and accepts a bid, then resolves any standing proxy
// bids into counter-bids. The returned bid is the caller's own; a proxy
// counter may already have superseded it by the time the call returns.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	bidder, err := s.bidders.GetBidder(ctx, cmd.BidderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBidderNotFound, err)
	}

	// Fast rejection on a snapshot, outside the lock. The accept path
	// re-validates under the lock because this snapshot may be stale.
	item, err := s.items.GetItemByID(ctx, cmd.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItemNotFound, err)
	}
	if valErr := ValidateBid(item, bidder, cmd.Amount, time.Now().UTC(), s.cfg.MinBidIncrement); valErr != nil {
		metrics.BidsRejected.WithLabelValues(rejectionReason(valErr)).Inc()
		return nil, valErr
	}

	bid := &Bid{
		ID:               uuid.New(),
		ItemID:           cmd.ItemID,
		BidderID:         cmd.BidderID,
		Amount:           cmd.Amount,
		MaxAutoBidAmount: cmd.MaxAutoBidAmount,
		PlacedAt:         time.Now().UTC(),
		Active:           true,
	}

	if err := s.acceptManualBid(ctx, bidder, bid); err != nil {
		metrics.BidsRejected.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	s.logger.Info("bid accepted",
		"bid_id", bid.ID,
		"item_id", bid.ItemID,
		"bidder_id", bid.BidderID,
		"amount", bid.Amount.StringFixed(2),
	)

	// The bid is committed; cascade failures must not fail the placement.
	s.resolveAutoBids(ctx, cmd.ItemID)

	return bid, nil
}

// GetBids returns an item's bid history ordered by amount descending.
func (s *Service) GetBids(ctx context.Context, query GetBidsQuery) ([]*Bid, error) {
	item, err := s.items.GetItemByID(ctx, query.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItemNotFound, err)
	}
	if item.SaleType != SaleTypeAuction {
		return nil, ErrNotAnAuction
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	return s.ledger.Bids(ctx, query.ItemID, limit, query.Offset)
}

// acceptManualBid runs the exclusive accept path for a bidder-placed bid:
// per-item lock, row lock, re-validation, atomic winner swap, anti-sniping
// extension and outbox events, all in one transaction.
func (s *Service) acceptManualBid(ctx context.Context, bidder *Bidder, bid *Bid) error {
	unlock := s.locks.Lock(bid.ItemID)
	defer unlock()

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.items.GetItemByIDForUpdate(ctx, tx, bid.ItemID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrItemNotFound, err)
	}

	// State may have changed between the outer check and lock acquisition.
	if item.Closed() {
		return ErrAuctionClosed
	}
	if valErr := ValidateBid(item, bidder, bid.Amount, bid.PlacedAt, s.cfg.MinBidIncrement); valErr != nil {
		return valErr
	}

	if err := s.commitBid(ctx, tx, item, bid, false); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.BidsAccepted.WithLabelValues("manual").Inc()
	return nil
}

// resolveAutoBids runs the proxy-bid cascade after an accepted bid. Each
// step re-enters the item's exclusive section and commits independently,
// so lock hold time stays bounded per counter-bid. The cascade provably
// terminates: each counter strictly raises the price and candidates are
// bounded by their fixed ceilings; MaxCascadeDepth is a backstop.
func (s *Service) resolveAutoBids(ctx context.Context, itemID uuid.UUID) {
	placed := 0
	for placed < s.cfg.MaxCascadeDepth {
		counter, err := s.placeCounterBid(ctx, itemID)
		if err != nil {
			s.logger.Error("auto-bid cascade aborted",
				"item_id", itemID,
				"depth", placed,
				"error", err,
			)
			break
		}
		if counter == nil {
			break
		}
		placed++

		s.logger.Info("auto-bid placed",
			"bid_id", counter.ID,
			"item_id", itemID,
			"bidder_id", counter.BidderID,
			"amount", counter.Amount.StringFixed(2),
		)
	}
	metrics.CascadeDepth.Observe(float64(placed))
}

// placeCounterBid performs one cascade step: pick the best qualifying proxy
// bid from a bidder other than the current winner and raise them by one
// increment, capped at their ceiling. Returns nil when no candidate
// qualifies.
func (s *Service) placeCounterBid(ctx context.Context, itemID uuid.UUID) (*Bid, error) {
	unlock := s.locks.Lock(itemID)
	defer unlock()

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.items.GetItemByIDForUpdate(ctx, tx, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItemNotFound, err)
	}

	now := time.Now().UTC()
	if item.Closed() || !item.AuctionActive(now) {
		return nil, nil
	}

	current, err := s.ledger.WinningBid(ctx, tx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning bid: %w", err)
	}
	if current == nil {
		return nil, nil
	}

	candidate, err := s.ledger.TopAutoBidAbove(ctx, tx, itemID, current.Amount, current.BidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto bids: %w", err)
	}

	floor := current.Amount.Add(s.cfg.MinBidIncrement)
	if candidate == nil || !candidate.CanIncreaseTo(floor) {
		return nil, nil
	}

	counter := floor
	if counter.GreaterThan(*candidate.MaxAutoBidAmount) {
		counter = *candidate.MaxAutoBidAmount
	}

	bid := &Bid{
		ID:               uuid.New(),
		ItemID:           itemID,
		BidderID:         candidate.BidderID,
		Amount:           counter,
		MaxAutoBidAmount: candidate.MaxAutoBidAmount,
		PlacedAt:         now,
		Active:           true,
	}

	if err := s.commitBid(ctx, tx, item, bid, true); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.BidsAccepted.WithLabelValues("auto").Inc()
	return bid, nil
}

// commitBid applies a validated bid inside the caller's transaction: the
// atomic winner swap, the item's bid state (current bid, count and any
// anti-sniping extension in one write), and the outbox events.
func (s *Service) commitBid(ctx context.Context, tx pgx.Tx, item *Item, bid *Bid, auto bool) error {
	prev, err := s.ledger.Accept(ctx, tx, bid)
	if err != nil {
		return err
	}

	auctionEnd := item.AuctionEnd
	extended := false
	if newEnd := MaybeExtend(item.AuctionEnd, bid.PlacedAt, s.cfg.ExtensionWindow); newEnd != nil {
		auctionEnd = *newEnd
		extended = true
	}

	if err := s.items.UpdateBidState(ctx, tx, item.ID, bid.Amount, item.BidCount+1, auctionEnd); err != nil {
		return fmt.Errorf("failed to update item bid state: %w", err)
	}

	placedEvent := BidPlacedEvent{
		BidID:    bid.ID,
		ItemID:   item.ID,
		BidderID: bid.BidderID,
		SellerID: item.SellerID,
		Amount:   bid.Amount.StringFixed(2),
		Auto:     auto,
		PlacedAt: bid.PlacedAt,
	}
	eventType := events.EventTypeBidPlaced
	if auto {
		eventType = events.EventTypeBidAuto
	}
	if err := saveEvent(ctx, s.outbox, tx, eventType, placedEvent); err != nil {
		return err
	}

	if prev != nil && prev.BidderID != bid.BidderID {
		outbid := BidOutbidEvent{
			ItemID:          item.ID,
			OutbidBidderID:  prev.BidderID,
			NewAmount:       bid.Amount.StringFixed(2),
			NewBidID:        bid.ID,
			OutbidBidAmount: prev.Amount.StringFixed(2),
		}
		if err := saveEvent(ctx, s.outbox, tx, events.EventTypeBidOutbid, outbid); err != nil {
			return err
		}
	}

	if extended {
		extension := AuctionExtendedEvent{
			ItemID:        item.ID,
			TriggerBidID:  bid.ID,
			NewAuctionEnd: auctionEnd,
		}
		if err := saveEvent(ctx, s.outbox, tx, events.EventTypeAuctionExtended, extension); err != nil {
			return err
		}
		metrics.AuctionExtensions.Inc()
	}

	return nil
}

// rejectionReason maps a validation error to a stable metrics label.
func rejectionReason(err error) string {
	var tooLow *BidTooLowError
	switch {
	case errors.Is(err, ErrNotAnAuction):
		return "not_an_auction"
	case errors.Is(err, ErrAuctionNotActive):
		return "auction_not_active"
	case errors.Is(err, ErrSelfBidForbidden):
		return "self_bid"
	case errors.Is(err, ErrBidderInactive):
		return "bidder_inactive"
	case errors.Is(err, ErrAuctionClosed):
		return "auction_closed"
	case errors.As(err, &tooLow):
		return "bid_too_low"
	default:
		return "other"
	}
}
