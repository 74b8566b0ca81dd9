package database

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary columns are NUMERIC and travel as text between Postgres and the
// application so no precision is lost in a float round-trip. Queries cast
// with ::TEXT on read; writes pass decimal.String().

func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullableNumeric(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseNumeric(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func numericArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
