package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/auction"
)

const bidColumns = `
	id, item_id, bidder_id, amount::TEXT, max_auto_bid_amount::TEXT,
	placed_at, active, winning
`

// PostgresBidRepository implements the bid ledger persistence using pgx.
type PostgresBidRepository struct {
	pool *pgxpool.Pool // kept for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository.
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid appends a bid within a transaction. Bids are never updated or
// deleted except for the winning flag.
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auction.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_id, amount, max_auto_bid_amount, placed_at, active, winning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ItemID,
		bid.BidderID,
		bid.Amount.String(),
		numericArg(bid.MaxAutoBidAmount),
		bid.PlacedAt,
		bid.Active,
		bid.Winning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// MarkBidsNotWinning clears the winning flag on every bid of the item.
func (r *PostgresBidRepository) MarkBidsNotWinning(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error {
	query := `UPDATE bids SET winning = FALSE WHERE item_id = $1 AND winning = TRUE`
	if _, err := tx.Exec(ctx, query, itemID); err != nil {
		return fmt.Errorf("failed to clear winning flags: %w", err)
	}
	return nil
}

// WinningBid returns the unique winning bid for the item, or nil if none
// exists.
func (r *PostgresBidRepository) WinningBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*auction.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE item_id = $1 AND winning = TRUE`
	bid, err := scanBid(tx.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}
	return bid, nil
}

// ListBidsByItemID retrieves bids for an item ordered by amount descending.
func (r *PostgresBidRepository) ListBidsByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*auction.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC, placed_at ASC
		LIMIT $2 OFFSET $3
	`
	return r.listBids(ctx, query, itemID, limit, offset)
}

// ListBidsExcludingBidder retrieves all bids on the item not placed by
// bidderID.
func (r *PostgresBidRepository) ListBidsExcludingBidder(ctx context.Context, itemID, bidderID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE item_id = $1 AND bidder_id <> $2
		ORDER BY amount DESC, placed_at ASC
	`
	return r.listBids(ctx, query, itemID, bidderID)
}

// TopAutoBidAbove returns the best auto-bid candidate: an active bid from a
// bidder other than excludeBidder whose ceiling is strictly above amount.
// Highest ceiling wins; ties go to the earliest placed bid.
func (r *PostgresBidRepository) TopAutoBidAbove(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount decimal.Decimal, excludeBidder uuid.UUID) (*auction.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE item_id = $1
		  AND bidder_id <> $2
		  AND active = TRUE
		  AND max_auto_bid_amount IS NOT NULL
		  AND max_auto_bid_amount > $3
		ORDER BY max_auto_bid_amount DESC, placed_at ASC
		LIMIT 1
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, itemID, excludeBidder, amount.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auto-bid candidate: %w", err)
	}
	return bid, nil
}

func (r *PostgresBidRepository) listBids(ctx context.Context, query string, args ...any) ([]*auction.Bid, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*auction.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}

func scanBid(row pgx.Row) (*auction.Bid, error) {
	var (
		bid    auction.Bid
		amount string
		maxAmt *string
	)
	err := row.Scan(
		&bid.ID,
		&bid.ItemID,
		&bid.BidderID,
		&amount,
		&maxAmt,
		&bid.PlacedAt,
		&bid.Active,
		&bid.Winning,
	)
	if err != nil {
		return nil, err
	}
	if bid.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	if bid.MaxAutoBidAmount, err = parseNullableNumeric(maxAmt); err != nil {
		return nil, err
	}
	return &bid, nil
}
