package model

import (
	"testing"
	"time"

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

func TestLimitSpec_PriceTrigger(t *testing.T) {
	spec := LimitSpec{Kind: LimitPrice, Value: d("100")}
	assert.True(t, spec.Trigger(ActionBuy, d("99"), d("0"), d("0")))
	assert.False(t, spec.Trigger(ActionBuy, d("101"), d("0"), d("0")))
	assert.True(t, spec.Trigger(ActionSell, d("101"), d("0"), d("0")))
}

func TestLimitSpec_PercentTrigger_AccumulationSeed(t *testing.T) {
	// avg == 0 means no position yet: BUY unconditionally, never SELL.
	spec := LimitSpec{Kind: LimitPercent, Value: d("5")}
	assert.True(t, spec.Trigger(ActionBuy, d("50"), d("0"), d("0")))
	assert.False(t, spec.Trigger(ActionSell, d("50"), d("0"), d("0")))
}

func TestLimitSpec_PercentTrigger_Normal(t *testing.T) {
	spec := LimitSpec{Kind: LimitPercent, Value: d("5")}
	avg := d("100")
	assert.True(t, spec.Trigger(ActionBuy, d("94"), avg, d("0")))
	assert.False(t, spec.Trigger(ActionBuy, d("96"), avg, d("0")))
	assert.True(t, spec.Trigger(ActionSell, d("106"), avg, d("0")))
	assert.False(t, spec.Trigger(ActionSell, d("104"), avg, d("0")))
}

func TestLimitSpec_HighPercentTrigger(t *testing.T) {
	spec := LimitSpec{Kind: LimitHighPercent, Value: d("10")}
	high := d("100")
	assert.True(t, spec.Trigger(ActionBuy, d("89"), d("0"), high))
	assert.False(t, spec.Trigger(ActionBuy, d("91"), d("0"), high))
	assert.False(t, spec.Trigger(ActionSell, d("89"), d("0"), high), "high_percent never triggers a SELL")
}

func TestLimitSpec_HighPercentNoHigh(t *testing.T) {
	spec := LimitSpec{Kind: LimitHighPercent, Value: d("10")}
	assert.False(t, spec.Trigger(ActionBuy, d("1"), d("0"), d("0")))
}

func TestLimitSpec_WeeklyMatchesDate(t *testing.T) {
	spec := LimitSpec{Kind: LimitWeekly, Day: 1} // Monday
	monday := time.Date(2026, 7, 27, 9, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	assert.True(t, spec.MatchesDate(monday))
	assert.False(t, spec.MatchesDate(tuesday))
	assert.False(t, spec.Trigger(ActionBuy, d("1"), d("0"), d("0")), "date-driven kinds never fire on price")
}

func TestLimitSpec_MonthlyMatchesDate(t *testing.T) {
	spec := LimitSpec{Kind: LimitMonthly, Day: 15}
	assert.True(t, spec.MatchesDate(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, spec.MatchesDate(time.Date(2026, 7, 16, 0, 0, 0, 0, time.UTC)))
}

func TestLimitSpec_Validate(t *testing.T) {
	assert.NoError(t, LimitSpec{Kind: LimitWeekly, Day: 0}.Validate(ActionBuy))
	assert.Error(t, LimitSpec{Kind: LimitWeekly, Day: 7}.Validate(ActionBuy))
	assert.Error(t, LimitSpec{Kind: LimitWeekly, Day: 0}.Validate(ActionSell))

	assert.NoError(t, LimitSpec{Kind: LimitMonthly, Day: 31}.Validate(ActionBuy))
	assert.Error(t, LimitSpec{Kind: LimitMonthly, Day: 0}.Validate(ActionBuy))

	assert.NoError(t, LimitSpec{Kind: LimitPrice, Value: d("1")}.Validate(ActionSell))
}

func TestTradingRule_ValidateRejectsNegativeTarget(t *testing.T) {
	r := TradingRule{TargetAmount: -1, TradeAction: ActionBuy, LimitKind: LimitPrice}
	assert.Error(t, r.Validate())
}

func TestTradingRule_LimitSpecOf(t *testing.T) {
	r := TradingRule{LimitKind: LimitPercent, LimitValue: d("5"), LimitDay: 0}
	spec := r.LimitSpecOf()
	assert.Equal(t, LimitPercent, spec.Kind)
	assert.Equal(t, d("5"), spec.Value)
}
