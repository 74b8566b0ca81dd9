package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/artbay/auction-engine/internal/domain/auction"
)

// PaymentStatus tracks a transaction through its lifecycle.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// TransferType describes why ownership moved.
type TransferType string

const (
	TransferTypePurchase       TransferType = "purchase"
	TransferTypeRefundReversal TransferType = "refund_reversal"
)

// Record is the monetary split of a sale. All fields are rounded to two
// decimal places, half-up, field by field.
//
// NetToSeller = Gross − Commission − ProcessingFee − CreatorRoyalty − Tax.
// A negative net means the configured rates exceed 100%; that is a
// configuration error, not a runtime condition.
type Record struct {
	GrossAmount        decimal.Decimal `json:"gross_amount"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	ProcessingFee      decimal.Decimal `json:"processing_fee"`
	CreatorRoyalty     decimal.Decimal `json:"creator_royalty"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	NetToSeller        decimal.Decimal `json:"net_to_seller"`
	Currency           string          `json:"currency"`
}

// Transaction is the persisted settlement of a sold auction.
type Transaction struct {
	ID                 uuid.UUID       `db:"id"`
	ItemID             uuid.UUID       `db:"item_id"`
	BuyerID            uuid.UUID       `db:"buyer_id"`
	SellerID           uuid.UUID       `db:"seller_id"`
	GrossAmount        decimal.Decimal `db:"gross_amount"`
	PlatformCommission decimal.Decimal `db:"platform_commission"`
	ProcessingFee      decimal.Decimal `db:"processing_fee"`
	CreatorRoyalty     decimal.Decimal `db:"creator_royalty"`
	TaxAmount          decimal.Decimal `db:"tax_amount"`
	NetToSeller        decimal.Decimal `db:"net_to_seller"`
	Currency           string          `db:"currency"`
	InvoiceNumber      string          `db:"invoice_number"`
	Status             PaymentStatus   `db:"status"`
	RefundAmount       decimal.Decimal `db:"refund_amount"`
	RefundReason       string          `db:"refund_reason"`
	CreatedAt          time.Time       `db:"created_at"`
	CompletedAt        *time.Time      `db:"completed_at"`
}

// Refunded reports whether any refund has been applied.
func (t *Transaction) Refunded() bool {
	return t.RefundAmount.GreaterThan(decimal.Zero)
}

// Record extracts the monetary split stored on the transaction.
func (t *Transaction) Record() Record {
	return Record{
		GrossAmount:        t.GrossAmount,
		PlatformCommission: t.PlatformCommission,
		ProcessingFee:      t.ProcessingFee,
		CreatorRoyalty:     t.CreatorRoyalty,
		TaxAmount:          t.TaxAmount,
		NetToSeller:        t.NetToSeller,
		Currency:           t.Currency,
	}
}

// OwnershipTransfer is one entry in an item's ownership history.
type OwnershipTransfer struct {
	ID              uuid.UUID       `db:"id"`
	ItemID          uuid.UUID       `db:"item_id"`
	TransactionID   uuid.UUID       `db:"transaction_id"`
	PreviousOwnerID uuid.UUID       `db:"previous_owner_id"`
	NewOwnerID      uuid.UUID       `db:"new_owner_id"`
	TransferType    TransferType    `db:"transfer_type"`
	Price           decimal.Decimal `db:"price"`
	Currency        string          `db:"currency"`
	TransferredAt   time.Time       `db:"transferred_at"`
	Notes           string          `db:"notes"`
}

// CloseResult is the outcome of closing an auction.
type CloseResult struct {
	State      auction.CloseState
	WinningBid *auction.Bid
	Settlement *Record
}
