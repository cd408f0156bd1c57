// Package calculator implements the Trade Calculator: pure
// functions that turn a rule's target/holding/budget state and a live
// price into a buy or sell quantity decision. No I/O, no blocking.
package calculator

import "github.com/shopspring/decimal"

// Reason strings reported back to callers and trade records.
const (
	ReasonInvalidPrice      = "Invalid Price"
	ReasonTargetReached     = "Target Reached"
	ReasonDailyLimitReached = "Daily Limit Reached"
	ReasonInsufficientCash  = "Insufficient Cash"
	ReasonNeedCash          = "Need Cash"
	ReasonOK                = "OK"
	ReasonNoSurplus         = "Target Reached (No Surplus)"
)

// BuyDecision is the result of buy_decision.
type BuyDecision struct {
	Quantity     int64
	RequiredCash decimal.Decimal
	Reason       string
	Shortfall    decimal.Decimal
}

// SellDecision is the result of sell_decision.
type SellDecision struct {
	Quantity int64
	Revenue  decimal.Decimal
	Reason   string
}

// BuyDecisionParams bundles buy_decision's inputs for readability.
type BuyDecisionParams struct {
	Target        int64
	Holding       int64
	DailyMoney    decimal.Decimal
	TodayUsed     decimal.Decimal
	Price         decimal.Decimal
	CashAvailable decimal.Decimal
	CashOnly      bool
}

// Buy computes the quantity and cash needed to move a holding toward
// its target under the daily budget.
func Buy(p BuyDecisionParams) BuyDecision {
	zero := decimal.Zero

	// 1. Invalid price.
	if p.Price.Sign() <= 0 {
		return BuyDecision{0, zero, ReasonInvalidPrice, zero}
	}

	// 2. Quantity gap, covering short holdings.
	gap := p.Target - p.Holding
	if p.Holding >= 0 && gap < 0 {
		gap = 0
	}

	// 3. Budget-limited quantity.
	budgetRemaining := p.DailyMoney.Sub(p.TodayUsed)
	if budgetRemaining.Sign() < 0 {
		budgetRemaining = zero
	}
	qtyByBudget := budgetRemaining.Div(p.Price).Truncate(0).IntPart()

	// 4. Policy quantity is the stricter of the two.
	policyQty := gap
	if qtyByBudget < policyQty {
		policyQty = qtyByBudget
	}
	if policyQty <= 0 {
		reason := ReasonDailyLimitReached
		if gap <= 0 {
			reason = ReasonTargetReached
		}
		return BuyDecision{0, zero, reason, zero}
	}

	// 5. Policy cost.
	policyCost := p.Price.Mul(decimal.NewFromInt(policyQty))

	// 6. Cash-only: clip to what's affordable right now.
	if p.CashOnly {
		affordable := p.CashAvailable.Div(p.Price).Truncate(0).IntPart()
		final := policyQty
		if affordable < final {
			final = affordable
		}
		finalCost := p.Price.Mul(decimal.NewFromInt(final))
		reason := ReasonOK
		if final < policyQty {
			reason = ReasonInsufficientCash
		}
		return BuyDecision{final, finalCost, reason, zero}
	}

	// 7. Flexible: defer cash shortfall to caller (sweep-ETF liquidation).
	if policyCost.GreaterThan(p.CashAvailable) {
		shortfall := policyCost.Sub(p.CashAvailable)
		return BuyDecision{policyQty, policyCost, ReasonNeedCash, shortfall}
	}

	// 8. OK.
	return BuyDecision{policyQty, policyCost, ReasonOK, zero}
}

// SellDecisionParams bundles sell_decision's inputs for readability.
type SellDecisionParams struct {
	Target     int64
	Holding    int64
	DailyMoney decimal.Decimal
	TodayUsed  decimal.Decimal
	Price      decimal.Decimal
}

// Sell computes the quantity to shed surplus holdings under the daily budget.
func Sell(p SellDecisionParams) SellDecision {
	zero := decimal.Zero

	if p.Price.Sign() <= 0 {
		return SellDecision{0, zero, ReasonInvalidPrice}
	}

	surplus := p.Holding - p.Target
	if surplus < 0 {
		surplus = 0
	}

	budgetRemaining := p.DailyMoney.Sub(p.TodayUsed)
	if budgetRemaining.Sign() < 0 {
		budgetRemaining = zero
	}
	qtyByBudget := budgetRemaining.Div(p.Price).Truncate(0).IntPart()

	final := surplus
	if qtyByBudget < final {
		final = qtyByBudget
	}
	if final <= 0 {
		reason := ReasonDailyLimitReached
		if surplus <= 0 {
			reason = ReasonNoSurplus
		}
		return SellDecision{0, zero, reason}
	}

	revenue := p.Price.Mul(decimal.NewFromInt(final))
	return SellDecision{final, revenue, ReasonOK}
}
