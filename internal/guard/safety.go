// Package guard implements the Safety Guard: pure per-order
// validators and the pre-session state-integrity classifier. No I/O.
package guard

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/money"
)

// Hard per-order limits. Do not change without a code review; they
// exist to catch fat-finger size errors and data errors, not to be tuned.
var (
	MaxOrderUSD = decimal.NewFromInt(100_000)
	MaxOrderKRW = decimal.NewFromInt(100_000_000)
	MinPriceUSD = decimal.NewFromFloat(0.50)
	MinPriceKRW = decimal.NewFromInt(50)
)

func limitsFor(market money.Market) (max, min decimal.Decimal) {
	if market == money.KR {
		return MaxOrderKRW, MinPriceKRW
	}
	return MaxOrderUSD, MinPriceUSD
}

// Violation is a Safety-kind failure from a per-order validator.
type Violation struct {
	Market money.Market
	Symbol string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("safety guard rejected %s %s: %s", v.Market, v.Symbol, v.Reason)
}

func violation(market money.Market, symbol, reason string) *Violation {
	return &Violation{Market: market, Symbol: symbol, Reason: reason}
}

// ValidateBuy implements validate_buy. Returns nil when the
// order passes, else a *Violation.
func ValidateBuy(market money.Market, symbol string, price decimal.Decimal, qty int64, cash decimal.Decimal) error {
	if qty <= 0 {
		return violation(market, symbol, fmt.Sprintf("invalid quantity %d", qty))
	}
	if price.Sign() <= 0 {
		return violation(market, symbol, fmt.Sprintf("invalid price %s", price))
	}

	max, min := limitsFor(market)
	notional := price.Mul(decimal.NewFromInt(qty))

	if notional.GreaterThan(max) {
		return violation(market, symbol, fmt.Sprintf("buy amount %s exceeds hard limit %s", notional, max))
	}
	if price.LessThan(min) {
		return violation(market, symbol, fmt.Sprintf("price %s below minimum %s", price, min))
	}
	if cash.Sign() > 0 && notional.GreaterThan(cash) {
		return violation(market, symbol, fmt.Sprintf("buy amount %s exceeds available cash %s", notional, cash))
	}
	return nil
}

// ValidateSell implements validate_sell. holding is nil when
// the caller has no holding figure to check against (no naked-short rule
// skipped in that case).
func ValidateSell(market money.Market, symbol string, price decimal.Decimal, qty int64, holding *int64) error {
	if qty <= 0 {
		return violation(market, symbol, fmt.Sprintf("invalid quantity %d", qty))
	}
	if price.Sign() <= 0 {
		return violation(market, symbol, fmt.Sprintf("invalid price %s", price))
	}

	max, min := limitsFor(market)
	notional := price.Mul(decimal.NewFromInt(qty))

	if notional.GreaterThan(max) {
		return violation(market, symbol, fmt.Sprintf("sell amount %s exceeds hard limit %s", notional, max))
	}
	if price.LessThan(min) {
		return violation(market, symbol, fmt.Sprintf("price %s below minimum %s", price, min))
	}
	if holding != nil && qty > *holding {
		return violation(market, symbol, fmt.Sprintf("sell quantity %d exceeds holding %d (no naked short)", qty, *holding))
	}
	return nil
}
