package settlement

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/auction"
	"github.com/artbay/auction-engine/internal/metrics"
	"github.com/artbay/auction-engine/pkg/database"
	"github.com/artbay/auction-engine/pkg/events"
	"github.com/artbay/auction-engine/pkg/lock"
)

// CloseCommand requests closing an auction. TaxRate is optional and comes
// from the caller's tax jurisdiction; nil means no tax line.
type CloseCommand struct {
	ItemID  uuid.UUID
	TaxRate *decimal.Decimal
}

// RefundCommand requests a refund of a completed transaction. A full
// refund (Amount equal to the gross) also reverses ownership.
type RefundCommand struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	Reason        string
}

// Service implements auction close and refund reversal. Close is a state
// machine per item with terminal states sold, no_sale_no_bids,
// no_sale_reserve_not_met and settlement_failed; the settle-and-transfer
// step is all-or-nothing.
type Service struct {
	txManager    database.TransactionManager
	items        ItemRepository
	bids         BidReader
	transactions TransactionRepository
	transfers    TransferRepository
	outbox       OutboxRepository
	locks        *lock.Keyed
	rates        Rates
	logger       *slog.Logger
}

// NewService creates a settlement service. The keyed lock must be the same
// instance the bidding service uses so close and accept serialize against
// each other per item.
func NewService(
	txManager database.TransactionManager,
	items ItemRepository,
	bids BidReader,
	transactions TransactionRepository,
	transfers TransferRepository,
	outbox OutboxRepository,
	locks *lock.Keyed,
	rates Rates,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:    txManager,
		items:        items,
		bids:         bids,
		transactions: transactions,
		transfers:    transfers,
		outbox:       outbox,
		locks:        locks,
		rates:        rates,
		logger:       logger,
	}
}

// Close ends an auction: picks the winner, computes the settlement and
// transfers ownership, or declares a no-sale. Closing an already-closed
// item is a no-op returning the stored state, so scheduler retries and
// manual close calls may race safely. A settlement_failed item is retried.
func (s *Service) Close(ctx context.Context, cmd CloseCommand) (*CloseResult, error) {
	unlock := s.locks.Lock(cmd.ItemID)
	defer unlock()

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.items.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrItemNotFound, err)
	}

	// Idempotency guard: terminal states are final and produce no second
	// settlement record.
	if item.CloseState.Terminal() {
		return s.storedResult(ctx, item)
	}

	now := time.Now().UTC()
	if now.Before(item.AuctionEnd) {
		return nil, ErrAuctionNotEnded
	}

	winning, err := s.bids.WinningBid(ctx, tx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning bid: %w", err)
	}

	if winning == nil {
		result, err := s.closeNoSale(ctx, tx, item, "no_bids", nil, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		metrics.AuctionsClosed.WithLabelValues(string(result.State)).Inc()
		s.logger.Info("auction closed with no bids", "item_id", item.ID)
		return result, nil
	}

	if item.ReservePrice != nil && winning.Amount.LessThan(*item.ReservePrice) {
		result, err := s.closeNoSale(ctx, tx, item, "reserve_not_met", winning, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		metrics.AuctionsClosed.WithLabelValues(string(result.State)).Inc()
		s.logger.Info("auction closed, reserve not met",
			"item_id", item.ID,
			"winning_amount", winning.Amount.StringFixed(2),
			"reserve", item.ReservePrice.StringFixed(2),
		)
		return result, nil
	}

	result, settleErr := s.settle(ctx, tx, item, winning, cmd.TaxRate, now)
	if settleErr != nil {
		// Roll back the partial settlement before recording the failure,
		// leaving the pre-close state intact.
		_ = tx.Rollback(ctx)
		s.markFailed(ctx, item, winning, settleErr)
		metrics.AuctionsClosed.WithLabelValues(string(auction.CloseStateSettlementFailed)).Inc()
		return &CloseResult{State: auction.CloseStateSettlementFailed, WinningBid: winning}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		s.markFailed(ctx, item, winning, &Error{Op: "commit", Err: err})
		metrics.AuctionsClosed.WithLabelValues(string(auction.CloseStateSettlementFailed)).Inc()
		return &CloseResult{State: auction.CloseStateSettlementFailed, WinningBid: winning}, nil
	}

	metrics.AuctionsClosed.WithLabelValues(string(auction.CloseStateSold)).Inc()
	s.logger.Info("auction settled",
		"item_id", item.ID,
		"winner_id", winning.BidderID,
		"gross", result.Settlement.GrossAmount.StringFixed(2),
		"net_to_seller", result.Settlement.NetToSeller.StringFixed(2),
	)
	return result, nil
}

// Refund processes a refund against a completed transaction. Only a full
// refund reverses ownership back to the pre-sale owner; partial refunds
// adjust money only.
func (s *Service) Refund(ctx context.Context, cmd RefundCommand) (*Transaction, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txn, err := s.transactions.GetTransactionByIDForUpdate(ctx, tx, cmd.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionNotFound, err)
	}

	if txn.Refunded() {
		return nil, ErrAlreadyRefunded
	}
	if txn.Status != PaymentStatusCompleted {
		return nil, ErrNotRefundable
	}
	if cmd.Amount.LessThanOrEqual(decimal.Zero) || cmd.Amount.GreaterThan(txn.GrossAmount) {
		return nil, ErrInvalidRefundAmount
	}

	if err := s.transactions.UpdateRefund(ctx, tx, txn.ID, cmd.Amount, cmd.Reason, PaymentStatusRefunded); err != nil {
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	now := time.Now().UTC()
	full := cmd.Amount.Equal(txn.GrossAmount)
	if full {
		if err := s.reverseOwnership(ctx, tx, txn, now); err != nil {
			return nil, err
		}
	}

	event := RefundedEvent{
		TransactionID: txn.ID,
		ItemID:        txn.ItemID,
		BuyerID:       txn.BuyerID,
		SellerID:      txn.SellerID,
		Amount:        cmd.Amount.StringFixed(2),
		Full:          full,
		Reason:        cmd.Reason,
		RefundedAt:    now,
	}
	if err := saveEvent(ctx, s.outbox, tx, events.EventTypeRefunded, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	txn.Status = PaymentStatusRefunded
	txn.RefundAmount = cmd.Amount
	txn.RefundReason = cmd.Reason

	s.logger.Info("refund processed",
		"transaction_id", txn.ID,
		"amount", cmd.Amount.StringFixed(2),
		"full", full,
	)
	return txn, nil
}

// storedResult rebuilds the result of a previous close for the no-op path.
func (s *Service) storedResult(ctx context.Context, item *auction.Item) (*CloseResult, error) {
	result := &CloseResult{State: item.CloseState}
	if item.CloseState == auction.CloseStateSold {
		txn, err := s.transactions.GetTransactionByItemID(ctx, item.ID)
		if err == nil {
			record := txn.Record()
			result.Settlement = &record
		}
	}
	return result, nil
}

// closeNoSale records a terminal no-sale state and the matching event.
func (s *Service) closeNoSale(ctx context.Context, tx pgx.Tx, item *auction.Item, reason string, topBid *auction.Bid, now time.Time) (*CloseResult, error) {
	state := auction.CloseStateNoSaleNoBids
	if reason == "reserve_not_met" {
		state = auction.CloseStateNoSaleReserveNotMet
	}

	if err := s.items.SetCloseState(ctx, tx, item.ID, state, false); err != nil {
		return nil, fmt.Errorf("failed to finalize item: %w", err)
	}

	event := AuctionNoSaleEvent{
		ItemID:   item.ID,
		SellerID: item.SellerID,
		Reason:   reason,
		ClosedAt: now,
	}
	if topBid != nil {
		event.TopBidderID = &topBid.BidderID
	}
	if err := saveEvent(ctx, s.outbox, tx, events.EventTypeAuctionNoSale, event); err != nil {
		return nil, err
	}

	return &CloseResult{State: state, WinningBid: topBid}, nil
}

// settle computes the monetary split, persists the transaction and the
// ownership transfer, finalizes the item and writes the sold event, all
// within the caller's transaction so the step is all-or-nothing.
func (s *Service) settle(ctx context.Context, tx pgx.Tx, item *auction.Item, winning *auction.Bid, taxRate *decimal.Decimal, now time.Time) (*CloseResult, error) {
	resale := item.UploaderID != item.SellerID
	record := ComputeRecord(winning.Amount, s.rates, taxRate, resale, item.Currency)

	txn := &Transaction{
		ID:                 uuid.New(),
		ItemID:             item.ID,
		BuyerID:            winning.BidderID,
		SellerID:           item.SellerID,
		GrossAmount:        record.GrossAmount,
		PlatformCommission: record.PlatformCommission,
		ProcessingFee:      record.ProcessingFee,
		CreatorRoyalty:     record.CreatorRoyalty,
		TaxAmount:          record.TaxAmount,
		NetToSeller:        record.NetToSeller,
		Currency:           record.Currency,
		InvoiceNumber:      newInvoiceNumber(now),
		Status:             PaymentStatusCompleted,
		RefundAmount:       decimal.Zero,
		CreatedAt:          now,
		CompletedAt:        &now,
	}
	if err := s.transactions.SaveTransaction(ctx, tx, txn); err != nil {
		return nil, &Error{Op: "save transaction", Err: err}
	}

	transfer := &OwnershipTransfer{
		ID:              uuid.New(),
		ItemID:          item.ID,
		TransactionID:   txn.ID,
		PreviousOwnerID: item.SellerID,
		NewOwnerID:      winning.BidderID,
		TransferType:    TransferTypePurchase,
		Price:           winning.Amount,
		Currency:        item.Currency,
		TransferredAt:   now,
	}
	if err := s.transfers.SaveTransfer(ctx, tx, transfer); err != nil {
		return nil, &Error{Op: "save ownership transfer", Err: err}
	}

	if err := s.items.UpdateOwner(ctx, tx, item.ID, winning.BidderID); err != nil {
		return nil, &Error{Op: "transfer ownership", Err: err}
	}
	if err := s.items.SetCloseState(ctx, tx, item.ID, auction.CloseStateSold, false); err != nil {
		return nil, &Error{Op: "finalize item", Err: err}
	}

	losers, err := s.bids.ListBidsExcludingBidder(ctx, item.ID, winning.BidderID)
	if err != nil {
		return nil, &Error{Op: "list losing bidders", Err: err}
	}
	loserIDs := make([]uuid.UUID, 0, len(losers))
	seen := make(map[uuid.UUID]bool)
	for _, b := range losers {
		if !seen[b.BidderID] {
			seen[b.BidderID] = true
			loserIDs = append(loserIDs, b.BidderID)
		}
	}

	event := AuctionSoldEvent{
		ItemID:         item.ID,
		SellerID:       item.SellerID,
		WinnerID:       winning.BidderID,
		WinningBidID:   winning.ID,
		Settlement:     record,
		LoserBidderIDs: loserIDs,
		InvoiceNumber:  txn.InvoiceNumber,
		ClosedAt:       now,
	}
	if err := saveEvent(ctx, s.outbox, tx, events.EventTypeAuctionSold, event); err != nil {
		return nil, &Error{Op: "save sold event", Err: err}
	}

	return &CloseResult{State: auction.CloseStateSold, WinningBid: winning, Settlement: &record}, nil
}

// markFailed records the settlement_failed state in its own transaction,
// leaving item availability and ownership untouched, and emits the
// escalation event. Best effort: a failure here only logs.
func (s *Service) markFailed(ctx context.Context, item *auction.Item, winning *auction.Bid, cause error) {
	s.logger.Error("settlement failed",
		"item_id", item.ID,
		"error", cause,
	)

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		s.logger.Error("failed to record settlement failure", "item_id", item.ID, "error", err)
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.items.SetCloseState(ctx, tx, item.ID, auction.CloseStateSettlementFailed, item.Available); err != nil {
		s.logger.Error("failed to record settlement failure", "item_id", item.ID, "error", err)
		return
	}

	event := SettlementFailedEvent{
		ItemID:      item.ID,
		SellerID:    item.SellerID,
		TopBidderID: winning.BidderID,
		Error:       "settlement could not be completed",
		FailedAt:    time.Now().UTC(),
	}
	if err := saveEvent(ctx, s.outbox, tx, events.EventTypeSettlementFailed, event); err != nil {
		s.logger.Error("failed to record settlement failure", "item_id", item.ID, "error", err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("failed to record settlement failure", "item_id", item.ID, "error", err)
	}
}

// reverseOwnership restores the pre-sale owner after a full refund and
// appends the reversal to the transfer history.
func (s *Service) reverseOwnership(ctx context.Context, tx pgx.Tx, txn *Transaction, now time.Time) error {
	purchase, err := s.transfers.GetTransferByTransaction(ctx, tx, txn.ID, TransferTypePurchase)
	if err != nil {
		return fmt.Errorf("failed to find purchase transfer: %w", err)
	}

	if err := s.items.UpdateOwner(ctx, tx, txn.ItemID, purchase.PreviousOwnerID); err != nil {
		return fmt.Errorf("failed to reverse ownership: %w", err)
	}

	reversal := &OwnershipTransfer{
		ID:              uuid.New(),
		ItemID:          txn.ItemID,
		TransactionID:   txn.ID,
		PreviousOwnerID: purchase.NewOwnerID,
		NewOwnerID:      purchase.PreviousOwnerID,
		TransferType:    TransferTypeRefundReversal,
		Price:           txn.GrossAmount,
		Currency:        txn.Currency,
		TransferredAt:   now,
		Notes:           "ownership reversed due to full refund",
	}
	if err := s.transfers.SaveTransfer(ctx, tx, reversal); err != nil {
		return fmt.Errorf("failed to save reversal transfer: %w", err)
	}

	return nil
}

// newInvoiceNumber generates a unique, human-readable invoice reference.
func newInvoiceNumber(now time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), hex.EncodeToString(buf))
}
