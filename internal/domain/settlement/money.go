package settlement

import "github.com/shopspring/decimal"

// Rates are the configured settlement rates, expressed as fractions
// (0.10 = 10%).
type Rates struct {
	Commission    decimal.Decimal
	ProcessingFee decimal.Decimal
	Royalty       decimal.Decimal
}

// ComputeRecord splits a gross sale amount. Every product is rounded to
// two decimal places half-up immediately, not only at the end, so the
// per-field amounts reconcile exactly with what each party is owed.
//
// The creator royalty applies only on resale: when the current owner is
// not the original uploader, the uploader is owed royaltyRate of gross.
func ComputeRecord(gross decimal.Decimal, rates Rates, taxRate *decimal.Decimal, resale bool, currency string) Record {
	commission := gross.Mul(rates.Commission).Round(2)
	fee := gross.Mul(rates.ProcessingFee).Round(2)

	royalty := decimal.Zero
	if resale {
		royalty = gross.Mul(rates.Royalty).Round(2)
	}

	tax := decimal.Zero
	if taxRate != nil && taxRate.GreaterThan(decimal.Zero) {
		tax = gross.Mul(*taxRate).Round(2)
	}

	net := gross.Sub(commission).Sub(fee).Sub(royalty).Sub(tax)

	return Record{
		GrossAmount:        gross,
		PlatformCommission: commission,
		ProcessingFee:      fee,
		CreatorRoyalty:     royalty,
		TaxAmount:          tax,
		NetToSeller:        net,
		Currency:           currency,
	}
}
