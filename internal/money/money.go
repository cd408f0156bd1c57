// Package money centralizes the fixed-precision decimal conventions used
// across the trading core: 2 decimal places for USD, 0 for KRW, and
// floor (never round) division so nothing ever over-spends a budget.
package money

import "github.com/shopspring/decimal"

// Market identifies which currency/venue convention applies.
type Market string

const (
	US Market = "US"
	KR Market = "KR"
)

// Scale returns the number of decimal places money is carried at for
// the given market: 2dp for USD, 0dp for KRW.
func Scale(market Market) int32 {
	if market == KR {
		return 0
	}
	return 2
}

// Round truncates v to the market's native scale. Money values are
// always rounded down, never up, to avoid over-spending.
func Round(market Market, v decimal.Decimal) decimal.Decimal {
	return v.Truncate(Scale(market))
}

// FloorQty returns floor(notional / price) as a whole share count.
// Returns zero if price is not strictly positive.
func FloorQty(notional, price decimal.Decimal) decimal.Decimal {
	if price.Sign() <= 0 {
		return decimal.Zero
	}
	return notional.Div(price).Truncate(0)
}

// Zero is a convenience re-export so callers need not import
// shopspring/decimal directly just to compare against zero.
var Zero = decimal.Zero
