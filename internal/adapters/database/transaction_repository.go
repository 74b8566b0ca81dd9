package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/settlement"
	pkgdb "github.com/artbay/auction-engine/pkg/database"
)

const transactionColumns = `
	id, item_id, buyer_id, seller_id,
	gross_amount::TEXT, platform_commission::TEXT, processing_fee::TEXT,
	creator_royalty::TEXT, tax_amount::TEXT, net_to_seller::TEXT, currency,
	invoice_number, status, refund_amount::TEXT, refund_reason,
	created_at, completed_at
`

// PostgresTransactionRepository implements settlement.TransactionRepository
// using pgx.
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionRepository creates a new PostgreSQL transaction
// repository.
func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

// SaveTransaction inserts a settlement transaction within a transaction.
func (r *PostgresTransactionRepository) SaveTransaction(ctx context.Context, tx pgx.Tx, txn *settlement.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, item_id, buyer_id, seller_id,
			gross_amount, platform_commission, processing_fee,
			creator_royalty, tax_amount, net_to_seller, currency,
			invoice_number, status, refund_amount, refund_reason,
			created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := tx.Exec(ctx, query,
		txn.ID,
		txn.ItemID,
		txn.BuyerID,
		txn.SellerID,
		txn.GrossAmount.String(),
		txn.PlatformCommission.String(),
		txn.ProcessingFee.String(),
		txn.CreatorRoyalty.String(),
		txn.TaxAmount.String(),
		txn.NetToSeller.String(),
		txn.Currency,
		txn.InvoiceNumber,
		txn.Status,
		txn.RefundAmount.String(),
		txn.RefundReason,
		txn.CreatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransactionByIDForUpdate retrieves a transaction and locks its row so
// concurrent refunds of the same transaction serialize.
func (r *PostgresTransactionRepository) GetTransactionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*settlement.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return r.getTransaction(ctx, tx, query, id)
}

// GetTransactionByItemID retrieves the settlement of a sold item
// (non-transactional read).
func (r *PostgresTransactionRepository) GetTransactionByItemID(ctx context.Context, itemID uuid.UUID) (*settlement.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE item_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.getTransaction(ctx, r.pool, query, itemID)
}

// UpdateRefund records the refund amount, reason and resulting status.
func (r *PostgresTransactionRepository) UpdateRefund(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal, reason string, status settlement.PaymentStatus) error {
	query := `
		UPDATE transactions
		SET refund_amount = $1, refund_reason = $2, status = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, amount.String(), reason, status, id)
	if err != nil {
		return fmt.Errorf("failed to update refund: %w", err)
	}
	if result.RowsAffected() == 0 {
		return settlement.ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresTransactionRepository) getTransaction(ctx context.Context, db pkgdb.DBTX, query string, arg any) (*settlement.Transaction, error) {
	var (
		txn                                      settlement.Transaction
		gross, commission, fee, royalty, tax     string
		net, refund                              string
	)
	err := db.QueryRow(ctx, query, arg).Scan(
		&txn.ID,
		&txn.ItemID,
		&txn.BuyerID,
		&txn.SellerID,
		&gross,
		&commission,
		&fee,
		&royalty,
		&tax,
		&net,
		&txn.Currency,
		&txn.InvoiceNumber,
		&txn.Status,
		&refund,
		&txn.RefundReason,
		&txn.CreatedAt,
		&txn.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settlement.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&txn.GrossAmount, gross},
		{&txn.PlatformCommission, commission},
		{&txn.ProcessingFee, fee},
		{&txn.CreatorRoyalty, royalty},
		{&txn.TaxAmount, tax},
		{&txn.NetToSeller, net},
		{&txn.RefundAmount, refund},
	} {
		if *field.dst, err = parseNumeric(field.src); err != nil {
			return nil, err
		}
	}
	return &txn, nil
}
