//go:build integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbay/auction-engine/internal/adapters/api"
	infradb "github.com/artbay/auction-engine/internal/adapters/database"
	"github.com/artbay/auction-engine/internal/domain/auction"
	"github.com/artbay/auction-engine/internal/domain/settlement"
	pkgdb "github.com/artbay/auction-engine/pkg/database"
	"github.com/artbay/auction-engine/pkg/lock"
	"github.com/artbay/auction-engine/pkg/testhelpers"
)

// setupServer wires the full engine against a containerized Postgres and
// returns a test HTTP server.
func setupServer(t *testing.T, td *testhelpers.TestDatabase) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	txManager := pkgdb.NewPostgresTransactionManager(td.Pool, 5*time.Second)
	itemRepo := infradb.NewPostgresItemRepository(td.Pool)
	bidRepo := infradb.NewPostgresBidRepository(td.Pool)
	bidderProvider := infradb.NewPostgresBidderProvider(td.Pool)
	outboxRepo := infradb.NewPostgresOutboxRepository()
	locks := lock.NewKeyed()

	biddingService := auction.NewService(
		txManager, itemRepo, bidRepo, bidderProvider, outboxRepo, locks,
		auction.Config{
			MinBidIncrement: decimal.RequireFromString("1.00"),
			ExtensionWindow: 5 * time.Minute,
			MaxCascadeDepth: 100,
		},
		logger,
	)
	settlementService := settlement.NewService(
		txManager, itemRepo, bidRepo,
		infradb.NewPostgresTransactionRepository(td.Pool),
		infradb.NewPostgresTransferRepository(td.Pool),
		outboxRepo, locks,
		settlement.Rates{
			Commission:    decimal.RequireFromString("0.10"),
			ProcessingFee: decimal.RequireFromString("0.029"),
			Royalty:       decimal.RequireFromString("0.05"),
		},
		logger,
	)

	r := chi.NewRouter()
	api.NewHandler(biddingService, settlementService, itemRepo).Routes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestBidAndSettleFlow(t *testing.T) {
	td := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer td.Close()
	server := setupServer(t, td)
	ctx := context.Background()

	seller := td.SeedBidder(t, string(auction.BidderStatusActive))
	alice := td.SeedBidder(t, string(auction.BidderStatusActive))
	bob := td.SeedBidder(t, string(auction.BidderStatusActive))

	// Ends far enough out that bids stay clear of the anti-sniping window.
	end := time.Now().UTC().Add(time.Hour)
	itemID := td.SeedAuctionItem(t, seller, decimal.RequireFromString("10.00"), end)
	bidsURL := fmt.Sprintf("%s/api/v1/items/%s/bids", server.URL, itemID)

	// Alice opens with a proxy bid.
	resp := postJSON(t, bidsURL, map[string]any{
		"bidder_id":           alice,
		"amount":              "20.00",
		"max_auto_bid_amount": "100.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Bob raises; Alice's proxy counters at 26.
	resp = postJSON(t, bidsURL, map[string]any{"bidder_id": bob, "amount": "25.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var currentBid string
	err := td.Pool.QueryRow(ctx,
		`SELECT current_bid::TEXT FROM items WHERE id = $1`, itemID).Scan(&currentBid)
	require.NoError(t, err)
	assert.Equal(t, "26.00", currentBid)

	// A bid below the running minimum is rejected with the minimum in the body.
	resp = postJSON(t, bidsURL, map[string]any{"bidder_id": bob, "amount": "26.50"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "27.00", body["minimum_bid"])

	// Seller cannot bid on their own item.
	resp = postJSON(t, bidsURL, map[string]any{"bidder_id": seller, "amount": "50.00"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Closing before the end time is rejected.
	closeURL := fmt.Sprintf("%s/api/v1/items/%s/close", server.URL, itemID)
	resp = postJSON(t, closeURL, map[string]any{})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// End the auction, then close and settle.
	_, err = td.Pool.Exec(ctx,
		`UPDATE items SET auction_end = NOW() - INTERVAL '1 second' WHERE id = $1`, itemID)
	require.NoError(t, err)
	resp = postJSON(t, closeURL, map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "sold", body["state"])

	settled := body["settlement"].(map[string]any)
	gross := decimal.RequireFromString(settled["gross_amount"].(string))
	assert.True(t, gross.Equal(decimal.RequireFromString("26.00")), "got %s", gross)

	// The winner owns the item now.
	var newOwner uuid.UUID
	err = td.Pool.QueryRow(ctx, `SELECT seller_id FROM items WHERE id = $1`, itemID).Scan(&newOwner)
	require.NoError(t, err)
	assert.Equal(t, alice, newOwner)

	// Closing again is a no-op returning the stored state.
	resp = postJSON(t, closeURL, map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "sold", body["state"])

	// Full refund reverses ownership.
	var txnID uuid.UUID
	err = td.Pool.QueryRow(ctx, `SELECT id FROM transactions WHERE item_id = $1`, itemID).Scan(&txnID)
	require.NoError(t, err)

	refundURL := fmt.Sprintf("%s/api/v1/transactions/%s/refund", server.URL, txnID)
	resp = postJSON(t, refundURL, map[string]any{"amount": "26.00", "reason": "not as described"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["full"])

	err = td.Pool.QueryRow(ctx, `SELECT seller_id FROM items WHERE id = $1`, itemID).Scan(&newOwner)
	require.NoError(t, err)
	assert.Equal(t, seller, newOwner)

	// State changes left events behind for the relay.
	var pending int
	err = td.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE status = 'pending'`).Scan(&pending)
	require.NoError(t, err)
	assert.Greater(t, pending, 0)
}

func TestGetBidsEndpoint(t *testing.T) {
	td := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer td.Close()
	server := setupServer(t, td)

	seller := td.SeedBidder(t, string(auction.BidderStatusActive))
	alice := td.SeedBidder(t, string(auction.BidderStatusActive))
	itemID := td.SeedAuctionItem(t, seller, decimal.RequireFromString("10.00"),
		time.Now().UTC().Add(time.Hour))

	bidsURL := fmt.Sprintf("%s/api/v1/items/%s/bids", server.URL, itemID)
	for _, amount := range []string{"15.00", "20.00"} {
		resp := postJSON(t, bidsURL, map[string]any{"bidder_id": alice, "amount": amount})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(bidsURL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	bids := body["bids"].([]any)
	assert.Len(t, bids, 2)

	first := bids[0].(map[string]any)
	assert.Equal(t, "20.00", first["amount"])
	assert.Equal(t, true, first["winning"])
}
