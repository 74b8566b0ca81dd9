// Package api exposes the bidding and settlement operations over HTTP.
// Requests and responses are JSON; monetary amounts travel as strings so
// clients never receive a float-rounded price.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/auction"
	"github.com/artbay/auction-engine/internal/domain/settlement"
)

// ItemReader serves the item snapshot for GET requests. Either the raw
// repository or the Redis snapshot cache fits; only display reads come
// through here, never validation.
type ItemReader interface {
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*auction.Item, error)
}

// Handler holds the HTTP endpoints and their dependencies.
type Handler struct {
	bidding    *auction.Service
	settlement *settlement.Service
	items      ItemReader
}

// NewHandler creates the HTTP handler.
func NewHandler(bidding *auction.Service, settle *settlement.Service, items ItemReader) *Handler {
	return &Handler{
		bidding:    bidding,
		settlement: settle,
		items:      items,
	}
}

// Routes mounts the API endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/items/{itemID}", h.GetItem)
		r.Post("/items/{itemID}/bids", h.PlaceBid)
		r.Get("/items/{itemID}/bids", h.GetBids)
		r.Post("/items/{itemID}/close", h.CloseAuction)
		r.Post("/transactions/{transactionID}/refund", h.Refund)
	})
}

type placeBidRequest struct {
	BidderID         uuid.UUID `json:"bidder_id"`
	Amount           string    `json:"amount"`
	MaxAutoBidAmount *string   `json:"max_auto_bid_amount,omitempty"`
}

type bidResponse struct {
	ID               uuid.UUID `json:"id"`
	ItemID           uuid.UUID `json:"item_id"`
	BidderID         uuid.UUID `json:"bidder_id"`
	Amount           string    `json:"amount"`
	MaxAutoBidAmount *string   `json:"max_auto_bid_amount,omitempty"`
	PlacedAt         string    `json:"placed_at"`
	Winning          bool      `json:"winning"`
}

// PlaceBid handles POST /api/v1/items/{itemID}/bids.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BidderID == uuid.Nil {
		writeError(w, "bidder_id is required", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be a positive decimal string", http.StatusBadRequest)
		return
	}

	var maxAuto *decimal.Decimal
	if req.MaxAutoBidAmount != nil {
		parsed, err := decimal.NewFromString(*req.MaxAutoBidAmount)
		if err != nil || parsed.LessThan(amount) {
			writeError(w, "max_auto_bid_amount must be a decimal string at least equal to amount", http.StatusBadRequest)
			return
		}
		maxAuto = &parsed
	}

	bid, err := h.bidding.PlaceBid(r.Context(), auction.PlaceBidCommand{
		ItemID:           itemID,
		BidderID:         req.BidderID,
		Amount:           amount,
		MaxAutoBidAmount: maxAuto,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBidResponse(bid))
}

// GetBids handles GET /api/v1/items/{itemID}/bids.
func (h *Handler) GetBids(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	bids, err := h.bidding.GetBids(r.Context(), auction.GetBidsQuery{
		ItemID: itemID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": out})
}

type itemResponse struct {
	ID           uuid.UUID `json:"id"`
	SellerID     uuid.UUID `json:"seller_id"`
	Title        string    `json:"title"`
	SaleType     string    `json:"sale_type"`
	StartingBid  string    `json:"starting_bid"`
	ReservePrice *string   `json:"reserve_price,omitempty"`
	BuyNowPrice  *string   `json:"buy_now_price,omitempty"`
	Currency     string    `json:"currency"`
	AuctionStart string    `json:"auction_start"`
	AuctionEnd   string    `json:"auction_end"`
	CurrentBid   string    `json:"current_bid"`
	BidCount     int       `json:"bid_count"`
	Available    bool      `json:"available"`
	CloseState   string    `json:"close_state"`
}

// GetItem handles GET /api/v1/items/{itemID}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.items.GetItemByID(r.Context(), itemID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := itemResponse{
		ID:           item.ID,
		SellerID:     item.SellerID,
		Title:        item.Title,
		SaleType:     string(item.SaleType),
		StartingBid:  item.StartingBid.StringFixed(2),
		Currency:     item.Currency,
		AuctionStart: item.AuctionStart.Format(timeFormat),
		AuctionEnd:   item.AuctionEnd.Format(timeFormat),
		CurrentBid:   item.CurrentHighest().StringFixed(2),
		BidCount:     item.BidCount,
		Available:    item.Available,
		CloseState:   string(item.CloseState),
	}
	if item.ReservePrice != nil {
		s := item.ReservePrice.StringFixed(2)
		resp.ReservePrice = &s
	}
	if item.BuyNowPrice != nil {
		s := item.BuyNowPrice.StringFixed(2)
		resp.BuyNowPrice = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

type closeRequest struct {
	TaxRate *string `json:"tax_rate,omitempty"`
}

type closeResponse struct {
	State      string             `json:"state"`
	WinningBid *bidResponse       `json:"winning_bid,omitempty"`
	Settlement *settlement.Record `json:"settlement,omitempty"`
}

// CloseAuction handles POST /api/v1/items/{itemID}/close. The endpoint is
// idempotent: closing an already-closed auction returns the stored outcome.
func (h *Handler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req closeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var taxRate *decimal.Decimal
	if req.TaxRate != nil {
		parsed, err := decimal.NewFromString(*req.TaxRate)
		if err != nil || parsed.IsNegative() {
			writeError(w, "tax_rate must be a non-negative decimal string", http.StatusBadRequest)
			return
		}
		taxRate = &parsed
	}

	result, err := h.settlement.Close(r.Context(), settlement.CloseCommand{
		ItemID:  itemID,
		TaxRate: taxRate,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := closeResponse{
		State:      string(result.State),
		Settlement: result.Settlement,
	}
	if result.WinningBid != nil {
		b := toBidResponse(result.WinningBid)
		resp.WinningBid = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

type refundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type refundResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
	RefundAmount  string    `json:"refund_amount"`
	Full          bool      `json:"full"`
}

// Refund handles POST /api/v1/transactions/{transactionID}/refund.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, "amount must be a decimal string", http.StatusBadRequest)
		return
	}

	txn, err := h.settlement.Refund(r.Context(), settlement.RefundCommand{
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        req.Reason,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refundResponse{
		TransactionID: txn.ID,
		Status:        string(txn.Status),
		RefundAmount:  txn.RefundAmount.StringFixed(2),
		Full:          txn.RefundAmount.Equal(txn.GrossAmount),
	})
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func toBidResponse(b *auction.Bid) bidResponse {
	resp := bidResponse{
		ID:       b.ID,
		ItemID:   b.ItemID,
		BidderID: b.BidderID,
		Amount:   b.Amount.StringFixed(2),
		PlacedAt: b.PlacedAt.Format(timeFormat),
		Winning:  b.Winning,
	}
	if b.MaxAutoBidAmount != nil {
		s := b.MaxAutoBidAmount.StringFixed(2)
		resp.MaxAutoBidAmount = &s
	}
	return resp
}

// writeDomainError maps domain errors to HTTP statuses. A too-low bid gets
// a structured body carrying the minimum acceptable amount so clients can
// prompt without a second round trip.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var tooLow *auction.BidTooLowError
	if errors.As(err, &tooLow) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           tooLow.Error(),
			"current_highest": tooLow.CurrentHighest.StringFixed(2),
			"minimum_bid":     tooLow.MinimumBid.StringFixed(2),
		})
		return
	}

	switch {
	case errors.Is(err, auction.ErrItemNotFound),
		errors.Is(err, auction.ErrBidderNotFound),
		errors.Is(err, settlement.ErrTransactionNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auction.ErrNotAnAuction),
		errors.Is(err, auction.ErrSelfBidForbidden),
		errors.Is(err, auction.ErrBidderInactive),
		errors.Is(err, settlement.ErrInvalidRefundAmount):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, settlement.ErrAuctionNotEnded),
		errors.Is(err, settlement.ErrNotRefundable),
		errors.Is(err, settlement.ErrAlreadyRefunded):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
