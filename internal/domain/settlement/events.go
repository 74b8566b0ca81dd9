package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/artbay/auction-engine/pkg/events"
)

// AuctionSoldEvent triggers the payment/fulfilment flow and loser
// notifications downstream.
type AuctionSoldEvent struct {
	ItemID         uuid.UUID   `json:"item_id"`
	SellerID       uuid.UUID   `json:"seller_id"`
	WinnerID       uuid.UUID   `json:"winner_id"`
	WinningBidID   uuid.UUID   `json:"winning_bid_id"`
	Settlement     Record      `json:"settlement"`
	LoserBidderIDs []uuid.UUID `json:"loser_bidder_ids"`
	InvoiceNumber  string      `json:"invoice_number"`
	ClosedAt       time.Time   `json:"closed_at"`
}

// AuctionNoSaleEvent tells the seller (and, when a reserve was missed, the
// top bidder) that the auction ended without a sale.
type AuctionNoSaleEvent struct {
	ItemID      uuid.UUID  `json:"item_id"`
	SellerID    uuid.UUID  `json:"seller_id"`
	Reason      string     `json:"reason"` // "no_bids" or "reserve_not_met"
	TopBidderID *uuid.UUID `json:"top_bidder_id,omitempty"`
	ClosedAt    time.Time  `json:"closed_at"`
}

// SettlementFailedEvent escalates a failed close to operations and notifies
// both parties with an opaque error.
type SettlementFailedEvent struct {
	ItemID      uuid.UUID `json:"item_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	TopBidderID uuid.UUID `json:"top_bidder_id"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// RefundedEvent announces a processed refund; Full indicates ownership was
// reversed.
type RefundedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ItemID        uuid.UUID `json:"item_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	Amount        string    `json:"amount"`
	Full          bool      `json:"full"`
	Reason        string    `json:"reason"`
	RefundedAt    time.Time `json:"refunded_at"`
}

func saveEvent(ctx context.Context, outbox OutboxRepository, tx pgx.Tx, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return outbox.SaveEvent(ctx, tx, &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	})
}
