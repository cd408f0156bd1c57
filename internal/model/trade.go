package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is an append-only execution record.
type TradeRecord struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	AccountID uint64          `gorm:"index;not null"`
	RuleID    uint64          `gorm:"index;not null"`
	OrderID   string          `gorm:"size:64;not null"`
	Symbol    string          `gorm:"size:16;not null"`
	Quantity  int64           `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Action    TradeAction     `gorm:"size:4;not null"`
	UsedMoney decimal.Decimal `gorm:"type:decimal(20,2);not null"` // qty*price
	TradeDate time.Time       `gorm:"not null;index"`
}

func (TradeRecord) TableName() string { return "trade_records" }

// DailySnapshot is one account/symbol row of the end-of-day
// snapshot. Symbol carries the synthetic values "cash" and "total" in
// addition to one row per held equity. Unique on
// (record_date, account_id, symbol).
type DailySnapshot struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	RecordDate time.Time       `gorm:"uniqueIndex:uniq_daily_record;not null"`
	AccountID  uint64          `gorm:"uniqueIndex:uniq_daily_record;not null"`
	Symbol     string          `gorm:"uniqueIndex:uniq_daily_record;size:16;not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Quantity   int64           `gorm:"not null"`
}

func (DailySnapshot) TableName() string { return "daily_records" }

// SnapshotCash and SnapshotTotal are the synthetic per-account symbols.
const (
	SnapshotCash  = "cash"
	SnapshotTotal = "total"
)
