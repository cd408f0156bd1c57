package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBuy_InvalidPrice(t *testing.T) {
	got := Buy(BuyDecisionParams{Target: 10, Price: d("0")})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonInvalidPrice, got.Reason)
}

func TestBuy_TargetReached(t *testing.T) {
	got := Buy(BuyDecisionParams{
		Target: 10, Holding: 10, Price: d("100"),
		DailyMoney: d("1000"), CashAvailable: d("10000"),
	})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonTargetReached, got.Reason)
}

func TestBuy_DailyLimitReached(t *testing.T) {
	got := Buy(BuyDecisionParams{
		Target: 100, Holding: 0, Price: d("100"),
		DailyMoney: d("50"), TodayUsed: d("50"), CashAvailable: d("10000"),
	})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonDailyLimitReached, got.Reason)
}

func TestBuy_FloorsBudgetQuantity(t *testing.T) {
	// budget 999 / price 100 -> 9 shares, never 10 (no over-spend).
	got := Buy(BuyDecisionParams{
		Target: 100, Holding: 0, Price: d("100"),
		DailyMoney: d("999"), CashAvailable: d("10000"),
	})
	assert.Equal(t, int64(9), got.Quantity)
	assert.Equal(t, d("900"), got.RequiredCash)
	assert.Equal(t, ReasonOK, got.Reason)
}

func TestBuy_CashOnlyClipsToAffordable(t *testing.T) {
	got := Buy(BuyDecisionParams{
		Target: 100, Holding: 0, Price: d("100"),
		DailyMoney: d("1000"), CashAvailable: d("250"), CashOnly: true,
	})
	assert.Equal(t, int64(2), got.Quantity)
	assert.Equal(t, d("200"), got.RequiredCash)
	assert.Equal(t, ReasonInsufficientCash, got.Reason)
}

func TestBuy_FlexibleNeedsCashReportsShortfall(t *testing.T) {
	got := Buy(BuyDecisionParams{
		Target: 10, Holding: 0, Price: d("100"),
		DailyMoney: d("1000"), CashAvailable: d("250"), CashOnly: false,
	})
	assert.Equal(t, int64(10), got.Quantity)
	assert.Equal(t, d("1000"), got.RequiredCash)
	assert.Equal(t, d("750"), got.Shortfall)
	assert.Equal(t, ReasonNeedCash, got.Reason)
}

func TestBuy_OKWithinCashAndBudget(t *testing.T) {
	got := Buy(BuyDecisionParams{
		Target: 10, Holding: 0, Price: d("100"),
		DailyMoney: d("1000"), CashAvailable: d("10000"),
	})
	assert.Equal(t, int64(10), got.Quantity)
	assert.Equal(t, ReasonOK, got.Reason)
	assert.True(t, got.Shortfall.IsZero())
}

func TestBuy_HoldingAboveTargetGapClampedToZero(t *testing.T) {
	// Holding exceeds target: gap must never go negative.
	got := Buy(BuyDecisionParams{
		Target: 5, Holding: 10, Price: d("10"),
		DailyMoney: d("1000"), CashAvailable: d("1000"),
	})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonTargetReached, got.Reason)
}

func TestSell_InvalidPrice(t *testing.T) {
	got := Sell(SellDecisionParams{Target: 0, Holding: 10, Price: d("0")})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonInvalidPrice, got.Reason)
}

func TestSell_NoSurplus(t *testing.T) {
	got := Sell(SellDecisionParams{
		Target: 10, Holding: 10, Price: d("100"), DailyMoney: d("1000"),
	})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonNoSurplus, got.Reason)
}

func TestSell_DailyLimitReached(t *testing.T) {
	got := Sell(SellDecisionParams{
		Target: 0, Holding: 10, Price: d("100"),
		DailyMoney: d("50"), TodayUsed: d("50"),
	})
	assert.Equal(t, int64(0), got.Quantity)
	assert.Equal(t, ReasonDailyLimitReached, got.Reason)
}

func TestSell_FloorsBudgetQuantity(t *testing.T) {
	got := Sell(SellDecisionParams{
		Target: 0, Holding: 100, Price: d("100"), DailyMoney: d("999"),
	})
	assert.Equal(t, int64(9), got.Quantity)
	assert.Equal(t, d("900"), got.Revenue)
	assert.Equal(t, ReasonOK, got.Reason)
}
