package model

import "github.com/shopspring/decimal"

// AccountType distinguishes brokerage account categories (cash, margin,
// retirement, ...); the Core treats the value opaquely.
type AccountType string

// Account is owned by a User. Created by admin tooling;
// fields are mutated by the daily snapshot; never destroyed by the Core.
type Account struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	UserID        string          `gorm:"size:64;not null;index"`
	AccountNumber string          `gorm:"size:32;not null;uniqueIndex"`
	HashValue     string          `gorm:"size:128"` // broker-opaque, required for broker calls
	Contribution  decimal.Decimal `gorm:"type:decimal(20,2)"`
	AccountType   AccountType     `gorm:"size:32"`
	CashBalance   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	TotalValue    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

func (Account) TableName() string { return "accounts" }
