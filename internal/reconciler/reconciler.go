// Package reconciler implements the Split/Merge Reconciler:
// after integrity passes, rules whose quantity mismatches the broker
// with a price ratio outside the "manual trade" band are assumed to
// have undergone a corporate action and get their numerics rescaled.
package reconciler

import "github.com/shopspring/decimal"

// mismatchEpsilon mirrors guard's tolerance so the reconciler agrees
// with the integrity classifier on what counts as "no mismatch".
var mismatchEpsilon = decimal.NewFromFloat(0.001)

// Adjustment is the set of rule-field corrections to apply after a
// detected split or merge.
type Adjustment struct {
	Ratio          decimal.Decimal
	HighPrice      decimal.Decimal
	TargetAmount   int64
	AveragePrice   decimal.Decimal
	CurrentHolding int64
}

// Reconcile computes the correction for one rule given its current
// (dbAvgPrice, dbQty, highPrice, targetAmount) and the broker's
// authoritative (brokerQty, brokerAvgPrice). ok is false when no
// adjustment is needed: either avg price is zero, or the quantities
// already match within tolerance.
//
// Rationale: a forward split (ratio≈0.5) doubles share
// count, so target (a share count) must double; the historical high
// (a price) must halve.
func Reconcile(dbAvgPrice decimal.Decimal, dbQty int64, highPrice decimal.Decimal, targetAmount int64, brokerQty int64, brokerAvgPrice decimal.Decimal) (Adjustment, bool) {
	if dbAvgPrice.Sign() == 0 || brokerAvgPrice.Sign() == 0 {
		return Adjustment{}, false
	}

	diff := decimal.NewFromInt(dbQty - brokerQty).Abs()
	if diff.LessThan(mismatchEpsilon) {
		return Adjustment{}, false
	}

	ratio := brokerAvgPrice.Div(dbAvgPrice)

	newTarget := decimal.NewFromInt(targetAmount).Div(ratio).Truncate(0).IntPart()

	return Adjustment{
		Ratio:          ratio,
		HighPrice:      highPrice.Mul(ratio),
		TargetAmount:   newTarget,
		AveragePrice:   brokerAvgPrice,
		CurrentHolding: brokerQty,
	}, true
}
