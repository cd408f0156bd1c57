// Package mysql implements store.Store with GORM and the MySQL driver.
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/autotrader/tradingcore/internal/model"
	"github.com/autotrader/tradingcore/internal/store"
)

// Store implements store.Store against a MySQL database via GORM.
type Store struct {
	db *gorm.DB
}

// New opens a connection and migrates the schema. dsn format:
// "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing *gorm.DB (e.g. one set up with sqlmock in
// tests) and migrates the Core's tables.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&model.Account{},
		&model.TradingRule{},
		&model.TradeRecord{},
		&model.DailySnapshot{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 10*time.Second)
}

// GetUsers implements store.Store.
func (s *Store) GetUsers(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var users []string
	if err := s.db.WithContext(ctx).Model(&model.Account{}).Distinct().Pluck("user_id", &users).Error; err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

// GetUserAccounts implements store.Store.
func (s *Store) GetUserAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var accounts []model.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("get accounts for user %s: %w", userID, err)
	}
	return accounts, nil
}

// GetHashValue implements store.Store.
func (s *Store) GetHashValue(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var hashes []string
	if err := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("user_id = ? AND hash_value <> ''", userID).
		Pluck("hash_value", &hashes).Error; err != nil {
		return nil, fmt.Errorf("get hash values for user %s: %w", userID, err)
	}
	return hashes, nil
}

// UpdateAccountHash implements store.Store.
func (s *Store) UpdateAccountHash(ctx context.Context, accountNumber, hashValue string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("account_number = ?", accountNumber).
		Update("hash_value", hashValue).Error; err != nil {
		return fmt.Errorf("update account hash for %s: %w", accountNumber, err)
	}
	return nil
}

// GetActiveTradingRules implements store.Store.
func (s *Store) GetActiveTradingRules(ctx context.Context, userID string) ([]model.TradingRule, error) {
	return s.rulesWhere(ctx, userID, "status = ?", model.StatusActive)
}

// GetAllTradingRules implements store.Store.
func (s *Store) GetAllTradingRules(ctx context.Context, userID string) ([]model.TradingRule, error) {
	return s.rulesWhere(ctx, userID, "1 = 1")
}

// GetPeriodicRules implements store.Store.
func (s *Store) GetPeriodicRules(ctx context.Context, userID string) ([]model.TradingRule, error) {
	return s.rulesWhere(ctx, userID, "limit_kind IN ?", []model.LimitKind{model.LimitWeekly, model.LimitMonthly})
}

func (s *Store) rulesWhere(ctx context.Context, userID string, cond string, args ...any) ([]model.TradingRule, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rules []model.TradingRule
	q := s.db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.id = trading_rules.account_id").
		Where("accounts.user_id = ?", userID)
	if len(args) > 0 {
		q = q.Where(cond, args...)
	} else {
		q = q.Where(cond)
	}
	if err := q.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("get trading rules for user %s: %w", userID, err)
	}
	return rules, nil
}

// UpdateRuleStatus implements store.Store.
func (s *Store) UpdateRuleStatus(ctx context.Context, ruleID uint64, status model.RuleStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Model(&model.TradingRule{}).
		Where("id = ?", ruleID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update rule %d status: %w", ruleID, err)
	}
	return nil
}

// UpdateCurrentPriceQuantity implements store.Store.
func (s *Store) UpdateCurrentPriceQuantity(ctx context.Context, ruleID uint64, lastPrice, averagePrice decimal.Decimal, currentHolding int64, highPrice decimal.Decimal) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	updates := map[string]any{
		"last_price":      lastPrice,
		"average_price":   averagePrice,
		"current_holding": currentHolding,
		"high_price":      highPrice,
	}
	if err := s.db.WithContext(ctx).Model(&model.TradingRule{}).
		Where("id = ?", ruleID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update rule %d price/quantity: %w", ruleID, err)
	}
	return nil
}

// UpdateSplitAdjustment implements store.Store.
func (s *Store) UpdateSplitAdjustment(ctx context.Context, ruleID uint64, highPrice decimal.Decimal, targetAmount int64, averagePrice decimal.Decimal, currentHolding int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	updates := map[string]any{
		"high_price":      highPrice,
		"target_amount":   targetAmount,
		"average_price":   averagePrice,
		"current_holding": currentHolding,
	}
	if err := s.db.WithContext(ctx).Model(&model.TradingRule{}).
		Where("id = ?", ruleID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update rule %d split adjustment: %w", ruleID, err)
	}
	return nil
}

// GetTradeToday implements store.Store. trade_today is notional money,
// never quantity.
func (s *Store) GetTradeToday(ctx context.Context, ruleID uint64, today time.Time) (decimal.Decimal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var total decimal.NullDecimal
	if err := s.db.WithContext(ctx).Model(&model.TradeRecord{}).
		Where("rule_id = ? AND trade_date >= ? AND trade_date < ?", ruleID, dayStart, dayEnd).
		Select("COALESCE(SUM(used_money), 0)").
		Scan(&total).Error; err != nil {
		return decimal.Zero, fmt.Errorf("get trade today for rule %d: %w", ruleID, err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// RecordTrade implements store.Store.
func (s *Store) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record trade for rule %d: %w", rec.RuleID, err)
	}
	return nil
}

// AddDailyResult implements store.Store: upserts on
// (record_date, account_id, symbol).
func (s *Store) AddDailyResult(ctx context.Context, date time.Time, accountID uint64, cash, total decimal.Decimal, bySymbol map[string]store.SymbolAmount) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows := make([]model.DailySnapshot, 0, len(bySymbol)+2)
	rows = append(rows,
		model.DailySnapshot{RecordDate: date, AccountID: accountID, Symbol: model.SnapshotCash, Amount: cash},
		model.DailySnapshot{RecordDate: date, AccountID: accountID, Symbol: model.SnapshotTotal, Amount: total},
	)
	for symbol, sa := range bySymbol {
		rows = append(rows, model.DailySnapshot{
			RecordDate: date, AccountID: accountID, Symbol: symbol,
			Amount: sa.Amount, Quantity: sa.Quantity,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_date"}, {Name: "account_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "quantity"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("add daily result for account %d: %w", accountID, err)
	}
	return nil
}

// UpdateAccountCashBalance implements store.Store.
func (s *Store) UpdateAccountCashBalance(ctx context.Context, accountID uint64, cash decimal.Decimal) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).Update("cash_balance", cash).Error; err != nil {
		return fmt.Errorf("update account %d cash balance: %w", accountID, err)
	}
	return nil
}

// UpdateAccountTotalValue implements store.Store.
func (s *Store) UpdateAccountTotalValue(ctx context.Context, accountID uint64, total decimal.Decimal) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", accountID).Update("total_value", total).Error; err != nil {
		return fmt.Errorf("update account %d total value: %w", accountID, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
