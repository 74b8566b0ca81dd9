package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/artbay/auction-engine/pkg/events"
)

// Outbound event payloads. Consumers (notification service, search indexer,
// user stats) read these off the auction.events exchange.

// BidPlacedEvent announces an accepted bid, manual or system-generated.
type BidPlacedEvent struct {
	BidID    uuid.UUID `json:"bid_id"`
	ItemID   uuid.UUID `json:"item_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	SellerID uuid.UUID `json:"seller_id"`
	Amount   string    `json:"amount"`
	Auto     bool      `json:"auto"`
	PlacedAt time.Time `json:"placed_at"`
}

// BidOutbidEvent tells the previous winner they lost the lead.
type BidOutbidEvent struct {
	ItemID          uuid.UUID `json:"item_id"`
	OutbidBidderID  uuid.UUID `json:"outbid_bidder_id"`
	NewAmount       string    `json:"new_amount"`
	NewBidID        uuid.UUID `json:"new_bid_id"`
	OutbidBidAmount string    `json:"outbid_bid_amount"`
}

// AuctionExtendedEvent tells active bidders the end time moved.
type AuctionExtendedEvent struct {
	ItemID        uuid.UUID `json:"item_id"`
	TriggerBidID  uuid.UUID `json:"trigger_bid_id"`
	NewAuctionEnd time.Time `json:"new_auction_end"`
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
