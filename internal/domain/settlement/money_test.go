package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultRates() Rates {
	return Rates{
		Commission:    dec("0.10"),
		ProcessingFee: dec("0.029"),
		Royalty:       dec("0.05"),
	}
}

func TestComputeRecordFirstSale(t *testing.T) {
	record := ComputeRecord(dec("100.00"), defaultRates(), nil, false, "USD")

	assert.True(t, record.GrossAmount.Equal(dec("100.00")))
	assert.True(t, record.PlatformCommission.Equal(dec("10.00")))
	assert.True(t, record.ProcessingFee.Equal(dec("2.90")))
	assert.True(t, record.CreatorRoyalty.Equal(dec("0.00")), "no royalty on a first sale")
	assert.True(t, record.TaxAmount.Equal(dec("0.00")))
	assert.True(t, record.NetToSeller.Equal(dec("87.10")), "got %s", record.NetToSeller)
}

func TestComputeRecordResaleRoyalty(t *testing.T) {
	record := ComputeRecord(dec("100.00"), defaultRates(), nil, true, "USD")

	assert.True(t, record.CreatorRoyalty.Equal(dec("5.00")))
	assert.True(t, record.NetToSeller.Equal(dec("82.10")), "got %s", record.NetToSeller)
}

func TestComputeRecordWithTax(t *testing.T) {
	taxRate := dec("0.08")
	record := ComputeRecord(dec("100.00"), defaultRates(), &taxRate, false, "USD")

	assert.True(t, record.TaxAmount.Equal(dec("8.00")))
	assert.True(t, record.NetToSeller.Equal(dec("79.10")), "got %s", record.NetToSeller)
}

// Each product rounds to two decimals on its own, so per-field amounts
// reconcile with what each party is owed.
func TestComputeRecordRoundsPerField(t *testing.T) {
	record := ComputeRecord(dec("33.33"), defaultRates(), nil, true, "USD")

	assert.True(t, record.PlatformCommission.Equal(dec("3.33")), "got %s", record.PlatformCommission)
	assert.True(t, record.ProcessingFee.Equal(dec("0.97")), "got %s", record.ProcessingFee)
	assert.True(t, record.CreatorRoyalty.Equal(dec("1.67")), "got %s", record.CreatorRoyalty)
	assert.True(t, record.NetToSeller.Equal(dec("27.36")), "got %s", record.NetToSeller)

	sum := record.PlatformCommission.
		Add(record.ProcessingFee).
		Add(record.CreatorRoyalty).
		Add(record.TaxAmount).
		Add(record.NetToSeller)
	assert.True(t, sum.Equal(record.GrossAmount), "fields must sum back to gross")
}

func TestComputeRecordHalfUpAtMidpoint(t *testing.T) {
	// 8.50 * 0.05 = 0.425, which must round up to 0.43.
	record := ComputeRecord(dec("8.50"), defaultRates(), nil, true, "USD")
	assert.True(t, record.CreatorRoyalty.Equal(dec("0.43")), "got %s", record.CreatorRoyalty)
}

func TestComputeRecordZeroTaxRateIgnored(t *testing.T) {
	zero := decimal.Zero
	record := ComputeRecord(dec("100.00"), defaultRates(), &zero, false, "USD")
	assert.True(t, record.TaxAmount.Equal(decimal.Zero))
}
