// Package store defines the Rule Store interface, the
// persistence boundary the Core calls but does not implement a database
// engine for. mysql/ provides one concrete, GORM-backed implementation.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/model"
)

// Store is the set of Rule Store operations the Core consumes.
type Store interface {
	GetUsers(ctx context.Context) ([]string, error)
	GetUserAccounts(ctx context.Context, userID string) ([]model.Account, error)
	GetHashValue(ctx context.Context, userID string) ([]string, error)
	UpdateAccountHash(ctx context.Context, accountNumber, hashValue string) error

	GetActiveTradingRules(ctx context.Context, userID string) ([]model.TradingRule, error)
	GetAllTradingRules(ctx context.Context, userID string) ([]model.TradingRule, error)
	GetPeriodicRules(ctx context.Context, userID string) ([]model.TradingRule, error)
	UpdateRuleStatus(ctx context.Context, ruleID uint64, status model.RuleStatus) error
	UpdateCurrentPriceQuantity(ctx context.Context, ruleID uint64, lastPrice, averagePrice decimal.Decimal, currentHolding int64, highPrice decimal.Decimal) error
	UpdateSplitAdjustment(ctx context.Context, ruleID uint64, highPrice decimal.Decimal, targetAmount int64, averagePrice decimal.Decimal, currentHolding int64) error

	GetTradeToday(ctx context.Context, ruleID uint64, today time.Time) (usedMoney decimal.Decimal, err error)
	RecordTrade(ctx context.Context, rec model.TradeRecord) error

	AddDailyResult(ctx context.Context, date time.Time, accountID uint64, cash, total decimal.Decimal, bySymbol map[string]SymbolAmount) error
	UpdateAccountCashBalance(ctx context.Context, accountID uint64, cash decimal.Decimal) error
	UpdateAccountTotalValue(ctx context.Context, accountID uint64, total decimal.Decimal) error
}

// SymbolAmount is one held-equity row's (amount, quantity) for the
// end-of-day snapshot.
type SymbolAmount struct {
	Amount   decimal.Decimal
	Quantity int64
}
