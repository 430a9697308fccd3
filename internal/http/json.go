package http

import (
	"github.com/shopspring/decimal"
)

// fixed2 renders a decimal as a JSON number with exactly two decimals.
type fixed2 decimal.Decimal

func (f fixed2) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(f).StringFixed(2)), nil
}
