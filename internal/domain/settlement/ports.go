package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/auction"
	"github.com/artbay/auction-engine/pkg/events"
)

// ItemRepository is the slice of item persistence the settlement engine
// needs. Implemented by the same Postgres repository as the bidding side.
type ItemRepository interface {
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*auction.Item, error)

	// SetCloseState records the terminal (or failed) state. Availability
	// is written in the same statement: false for terminal no-sale/sold
	// states, unchanged for settlement_failed.
	SetCloseState(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, state auction.CloseState, available bool) error

	// UpdateOwner moves ownership of the item.
	UpdateOwner(ctx context.Context, tx pgx.Tx, itemID, ownerID uuid.UUID) error
}

// BidReader is the read-only view of the ledger the settlement engine uses.
type BidReader interface {
	WinningBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*auction.Bid, error)
	ListBidsExcludingBidder(ctx context.Context, itemID, bidderID uuid.UUID) ([]*auction.Bid, error)
}

// TransactionRepository persists settlement transactions.
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, tx pgx.Tx, txn *Transaction) error
	GetTransactionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Transaction, error)
	GetTransactionByItemID(ctx context.Context, itemID uuid.UUID) (*Transaction, error)
	UpdateRefund(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal, reason string, status PaymentStatus) error
}

// TransferRepository persists ownership-transfer history.
type TransferRepository interface {
	SaveTransfer(ctx context.Context, tx pgx.Tx, transfer *OwnershipTransfer) error
	GetTransferByTransaction(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, transferType TransferType) (*OwnershipTransfer, error)
}

// OutboxRepository is the slice of the outbox the settlement engine needs.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
