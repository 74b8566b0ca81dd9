package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artbay/auction-engine/internal/domain/settlement"
)

// PostgresTransferRepository implements settlement.TransferRepository
// using pgx.
type PostgresTransferRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransferRepository creates a new PostgreSQL ownership-transfer
// repository.
func NewPostgresTransferRepository(pool *pgxpool.Pool) *PostgresTransferRepository {
	return &PostgresTransferRepository{pool: pool}
}

// SaveTransfer appends an entry to the ownership history.
func (r *PostgresTransferRepository) SaveTransfer(ctx context.Context, tx pgx.Tx, transfer *settlement.OwnershipTransfer) error {
	query := `
		INSERT INTO ownership_transfers (
			id, item_id, transaction_id, previous_owner_id, new_owner_id,
			transfer_type, price, currency, transferred_at, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		transfer.ID,
		transfer.ItemID,
		transfer.TransactionID,
		transfer.PreviousOwnerID,
		transfer.NewOwnerID,
		transfer.TransferType,
		transfer.Price.String(),
		transfer.Currency,
		transfer.TransferredAt,
		transfer.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ownership transfer: %w", err)
	}
	return nil
}

// GetTransferByTransaction retrieves the transfer of the given type that
// belongs to the transaction.
func (r *PostgresTransferRepository) GetTransferByTransaction(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, transferType settlement.TransferType) (*settlement.OwnershipTransfer, error) {
	query := `
		SELECT id, item_id, transaction_id, previous_owner_id, new_owner_id,
		       transfer_type, price::TEXT, currency, transferred_at, notes
		FROM ownership_transfers
		WHERE transaction_id = $1 AND transfer_type = $2
	`
	var (
		transfer settlement.OwnershipTransfer
		price    string
	)
	err := tx.QueryRow(ctx, query, transactionID, transferType).Scan(
		&transfer.ID,
		&transfer.ItemID,
		&transfer.TransactionID,
		&transfer.PreviousOwnerID,
		&transfer.NewOwnerID,
		&transfer.TransferType,
		&price,
		&transfer.Currency,
		&transfer.TransferredAt,
		&transfer.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ownership transfer not found for transaction %s", transactionID)
		}
		return nil, fmt.Errorf("failed to get ownership transfer: %w", err)
	}
	if transfer.Price, err = parseNumeric(price); err != nil {
		return nil, err
	}
	return &transfer, nil
}
