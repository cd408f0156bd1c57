package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the side a TradingRule acts on.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// RuleStatus is a TradingRule's position in its state machine:
//
//	(none) --add()--> ACTIVE --target reached--> COMPLETED
//	ACTIVE --target reached, limit_type weekly|monthly--> PROCESSED
//	PROCESSED --periodic date matches--> ACTIVE
//	COMPLETED/PAUSED --admin reopen--> ACTIVE (out of Core scope)
type RuleStatus string

const (
	StatusActive    RuleStatus = "ACTIVE"
	StatusProcessed RuleStatus = "PROCESSED"
	StatusCompleted RuleStatus = "COMPLETED"
	StatusPaused    RuleStatus = "PAUSED"
)

// LimitKind tags which shape LimitSpec carries.
type LimitKind string

const (
	LimitPrice       LimitKind = "price"
	LimitPercent     LimitKind = "percent"
	LimitHighPercent LimitKind = "high_percent"
	LimitWeekly      LimitKind = "weekly"
	LimitMonthly     LimitKind = "monthly"
)

// LimitSpec models limit_value as a tagged union: the value is
// overloaded by limit_type, so it is modeled as one type per kind
// rather than a bare decimal reinterpreted by callers.
type LimitSpec struct {
	Kind LimitKind

	// Price, Percent, HighPercent: decimal limit value in Kind's units.
	Value decimal.Decimal

	// Weekly: 0=Sunday..6=Saturday. Monthly: 1..31.
	Day int
}

// MatchesDate reports whether today (in the market's local time) satisfies
// a Weekly or Monthly periodic schedule.
func (l LimitSpec) MatchesDate(now time.Time) bool {
	switch l.Kind {
	case LimitWeekly:
		return int(now.Weekday()) == l.Day
	case LimitMonthly:
		return now.Day() == l.Day
	default:
		return false
	}
}

// Trigger decides whether last/avg/high data trips a BUY or SELL for
// this rule's limit. fire is false when no trigger
// condition is met (or the limit kind needs data the caller lacks).
func (l LimitSpec) Trigger(action TradeAction, last, avg, high decimal.Decimal) (fire bool) {
	switch l.Kind {
	case LimitPrice:
		if action == ActionBuy {
			return last.LessThanOrEqual(l.Value)
		}
		return last.GreaterThanOrEqual(l.Value)
	case LimitPercent:
		if avg.Sign() == 0 {
			// Accumulation seed: BUY unconditionally, no SELL.
			return action == ActionBuy
		}
		hundred := decimal.NewFromInt(100)
		factor := l.Value.Div(hundred)
		if action == ActionBuy {
			threshold := avg.Mul(decimal.NewFromInt(1).Sub(factor))
			return last.LessThanOrEqual(threshold)
		}
		threshold := avg.Mul(decimal.NewFromInt(1).Add(factor))
		return last.GreaterThanOrEqual(threshold)
	case LimitHighPercent:
		if action != ActionBuy || high.Sign() <= 0 {
			return false
		}
		hundred := decimal.NewFromInt(100)
		factor := l.Value.Div(hundred)
		threshold := high.Mul(decimal.NewFromInt(1).Sub(factor))
		return last.LessThanOrEqual(threshold)
	case LimitWeekly, LimitMonthly:
		return false // date-match handled by MatchesDate, not price data
	default:
		return false
	}
}

// Validate enforces the LimitSpec invariants: weekly/monthly
// rules carry a weekday (0-6) or day-of-month (1-31) and must be BUY.
func (l LimitSpec) Validate(action TradeAction) error {
	switch l.Kind {
	case LimitWeekly:
		if l.Day < 0 || l.Day > 6 {
			return fmt.Errorf("weekly limit day %d out of range [0,6]", l.Day)
		}
		if action != ActionBuy {
			return fmt.Errorf("weekly limit requires BUY, got %s", action)
		}
	case LimitMonthly:
		if l.Day < 1 || l.Day > 31 {
			return fmt.Errorf("monthly limit day %d out of range [1,31]", l.Day)
		}
		if action != ActionBuy {
			return fmt.Errorf("monthly limit requires BUY, got %s", action)
		}
	case LimitPrice, LimitPercent, LimitHighPercent:
		// no extra invariant
	default:
		return fmt.Errorf("unknown limit kind %q", l.Kind)
	}
	return nil
}

// TradingRule is exclusively owned by one Account.
type TradingRule struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"index;not null"`

	Symbol    string `gorm:"size:16;not null;index"`
	StockName string `gorm:"size:64"` // optional, KR display name

	TradeAction TradeAction     `gorm:"size:4;not null"`
	LimitKind   LimitKind       `gorm:"column:limit_kind;size:16;not null"`
	LimitValue  decimal.Decimal `gorm:"column:limit_value;type:decimal(20,6);not null"`
	LimitDay    int             `gorm:"column:limit_day;not null"`

	TargetAmount int64           `gorm:"not null"`                    // target_amount >= 0
	DailyMoney   decimal.Decimal `gorm:"type:decimal(20,2);not null"` // daily_money >= 0
	CashOnly     bool            `gorm:"not null"`

	Status RuleStatus `gorm:"size:16;not null;index"`

	CurrentHolding int64           `gorm:"not null"`
	AveragePrice   decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	LastPrice      decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	HighPrice      decimal.Decimal `gorm:"type:decimal(20,6);not null"`
}

func (TradingRule) TableName() string { return "trading_rules" }

// Validate checks a TradingRule's field invariants.
func (r *TradingRule) Validate() error {
	if r.TargetAmount < 0 {
		return fmt.Errorf("rule %d: target_amount must be >= 0, got %d", r.ID, r.TargetAmount)
	}
	if r.DailyMoney.Sign() < 0 {
		return fmt.Errorf("rule %d: daily_money must be >= 0, got %s", r.ID, r.DailyMoney)
	}
	limit := LimitSpec{Kind: r.LimitKind, Value: r.LimitValue, Day: r.LimitDay}
	if err := limit.Validate(r.TradeAction); err != nil {
		return fmt.Errorf("rule %d: %w", r.ID, err)
	}
	return nil
}

// LimitSpecOf assembles the tagged-union view of a rule's limit columns.
func (r *TradingRule) LimitSpecOf() LimitSpec {
	return LimitSpec{Kind: r.LimitKind, Value: r.LimitValue, Day: r.LimitDay}
}

// IsPeriodic reports whether this rule's limit kind is calendar-driven.
func (r *TradingRule) IsPeriodic() bool {
	return r.LimitKind == LimitWeekly || r.LimitKind == LimitMonthly
}
