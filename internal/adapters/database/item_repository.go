package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/auction"
	pkgdb "github.com/artbay/auction-engine/pkg/database"
)

const itemColumns = `
	id, seller_id, uploader_id, title, sale_type,
	starting_bid::TEXT, reserve_price::TEXT, buy_now_price::TEXT, currency,
	auction_start, auction_end, current_bid::TEXT, bid_count,
	available, close_state, created_at, updated_at
`

// PostgresItemRepository implements the item persistence ports of both the
// bidding and settlement services using pgx.
type PostgresItemRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository.
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// GetItemByID retrieves an item by its ID (non-transactional read).
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	return r.getItemByID(ctx, r.pool, itemID, false)
}

// GetItemByIDForUpdate retrieves an item and locks its row for update.
// Must run within a transaction; concurrent bids and closes on the same
// item serialize on this lock.
func (r *PostgresItemRepository) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*auction.Item, error) {
	return r.getItemByID(ctx, tx, itemID, true)
}

func (r *PostgresItemRepository) getItemByID(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID, forUpdate bool) (*auction.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		item                      auction.Item
		startingBid, currentBid   string
		reservePrice, buyNowPrice *string
	)
	err := db.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.SellerID,
		&item.UploaderID,
		&item.Title,
		&item.SaleType,
		&startingBid,
		&reservePrice,
		&buyNowPrice,
		&item.Currency,
		&item.AuctionStart,
		&item.AuctionEnd,
		&currentBid,
		&item.BidCount,
		&item.Available,
		&item.CloseState,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if item.StartingBid, err = parseNumeric(startingBid); err != nil {
		return nil, err
	}
	if item.CurrentBid, err = parseNumeric(currentBid); err != nil {
		return nil, err
	}
	if item.ReservePrice, err = parseNullableNumeric(reservePrice); err != nil {
		return nil, err
	}
	if item.BuyNowPrice, err = parseNullableNumeric(buyNowPrice); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateBidState writes current bid, bid count and auction end in one
// statement so the three fields never diverge from each other.
func (r *PostgresItemRepository) UpdateBidState(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, currentBid decimal.Decimal, bidCount int, auctionEnd time.Time) error {
	query := `
		UPDATE items
		SET current_bid = $1, bid_count = $2, auction_end = $3, updated_at = NOW()
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, currentBid.String(), bidCount, auctionEnd, itemID)
	if err != nil {
		return fmt.Errorf("failed to update bid state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrItemNotFound
	}
	return nil
}

// SetCloseState records the close state and availability of an item.
func (r *PostgresItemRepository) SetCloseState(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, state auction.CloseState, available bool) error {
	query := `
		UPDATE items
		SET close_state = $1, available = $2, updated_at = NOW()
		WHERE id = $3
	`
	result, err := tx.Exec(ctx, query, state, available, itemID)
	if err != nil {
		return fmt.Errorf("failed to set close state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrItemNotFound
	}
	return nil
}

// UpdateOwner moves ownership of the item to ownerID.
func (r *PostgresItemRepository) UpdateOwner(ctx context.Context, tx pgx.Tx, itemID, ownerID uuid.UUID) error {
	query := `
		UPDATE items
		SET seller_id = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, ownerID, itemID)
	if err != nil {
		return fmt.Errorf("failed to update owner: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrItemNotFound
	}
	return nil
}

// ListExpiredOpenItems returns auction items whose end time has passed and
// that have not reached a terminal state, for the background closer.
// settlement_failed items are included so failed closes get retried.
func (r *PostgresItemRepository) ListExpiredOpenItems(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM items
		WHERE sale_type = 'auction'
		  AND auction_end <= $1
		  AND close_state IN ('open', 'settlement_failed')
		ORDER BY auction_end ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired items: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired items: %w", err)
	}
	return ids, nil
}
