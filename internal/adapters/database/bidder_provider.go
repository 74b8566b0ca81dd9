package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artbay/auction-engine/internal/domain/auction"
)

// PostgresBidderProvider implements auction.BidderProvider against the
// replicated bidders table. The identity service owns the data; this table
// is a projection kept current by its account events.
type PostgresBidderProvider struct {
	pool *pgxpool.Pool
}

// NewPostgresBidderProvider creates a new PostgreSQL bidder provider.
func NewPostgresBidderProvider(pool *pgxpool.Pool) *PostgresBidderProvider {
	return &PostgresBidderProvider{pool: pool}
}

// GetBidder retrieves a bidder's identity and account standing.
func (r *PostgresBidderProvider) GetBidder(ctx context.Context, bidderID uuid.UUID) (*auction.Bidder, error) {
	query := `SELECT id, status FROM bidders WHERE id = $1`

	var bidder auction.Bidder
	err := r.pool.QueryRow(ctx, query, bidderID).Scan(&bidder.ID, &bidder.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrBidderNotFound
		}
		return nil, fmt.Errorf("failed to get bidder: %w", err)
	}
	return &bidder, nil
}
