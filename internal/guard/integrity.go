package guard

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntegrityClass classifies one rule's DB-vs-broker holding comparison.
type IntegrityClass int

const (
	Match IntegrityClass = iota
	PhantomDB
	NewPosition
	BrokerPriceZero
	DBAvgZero
	MismatchRatio
)

// mismatchEpsilon is the quantity-difference tolerance.
var mismatchEpsilon = decimal.NewFromFloat(0.001)

// splitBandLow/High bound the "normal volatility" ratio window; inside
// it a quantity/price mismatch looks like a manual trade, outside it
// looks like a corporate action.
var (
	splitBandLow  = decimal.NewFromFloat(0.7)
	splitBandHigh = decimal.NewFromFloat(1.3)
)

// IntegrityCase is one rule's classification result.
type IntegrityCase struct {
	RuleID uint64
	Symbol string
	Class  IntegrityClass
	Fatal  bool
	Detail string
}

// ClassifyIntegrity implements the pre-session state-integrity table
// for a single rule's DB vs broker holding.
func ClassifyIntegrity(ruleID uint64, symbol string, dbQty int64, dbAvg decimal.Decimal, brokerQty int64, brokerPrice decimal.Decimal) IntegrityCase {
	diff := decimal.NewFromInt(dbQty - brokerQty).Abs()

	base := IntegrityCase{RuleID: ruleID, Symbol: symbol}

	if diff.LessThan(mismatchEpsilon) {
		base.Class = Match
		return base
	}

	if dbQty > 0 && brokerQty == 0 {
		base.Class = PhantomDB
		base.Fatal = true
		base.Detail = fmt.Sprintf("phantom DB position: DB:%d broker:0", dbQty)
		return base
	}

	if dbQty == 0 && brokerQty > 0 {
		base.Class = NewPosition
		return base
	}

	if brokerQty > 0 && brokerPrice.Sign() == 0 {
		base.Class = BrokerPriceZero
		base.Fatal = true
		base.Detail = fmt.Sprintf("invalid broker price 0 for qty %d", brokerQty)
		return base
	}

	if dbAvg.Sign() == 0 {
		base.Class = DBAvgZero
		base.Fatal = true
		base.Detail = "DB avg price 0 with nonzero holding"
		return base
	}

	base.Class = MismatchRatio
	ratio := brokerPrice.Div(dbAvg)
	if ratio.GreaterThanOrEqual(splitBandLow) && ratio.LessThanOrEqual(splitBandHigh) {
		base.Fatal = true
		base.Detail = fmt.Sprintf("quantity mismatch without split signature (ratio %s): likely manual trade", ratio)
	} else {
		base.Detail = fmt.Sprintf("quantity mismatch with split signature (ratio %s): deferred to reconciler", ratio)
	}
	return base
}

// IntegrityReport aggregates ClassifyIntegrity results across every
// active rule of a user. A single Fatal case fails the whole batch and
// aborts the session.
type IntegrityReport struct {
	Cases []IntegrityCase
}

// Fatal reports whether any case in the report is fatal.
func (r IntegrityReport) Fatal() bool {
	for _, c := range r.Cases {
		if c.Fatal {
			return true
		}
	}
	return false
}

// FatalCases returns only the fatal cases, for alert/log detail.
func (r IntegrityReport) FatalCases() []IntegrityCase {
	var out []IntegrityCase
	for _, c := range r.Cases {
		if c.Fatal {
			out = append(out, c)
		}
	}
	return out
}
