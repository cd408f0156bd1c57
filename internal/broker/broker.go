// Package broker defines the unified, per-user Broker Adapter interface
// that the session runner consumes, plus the US and KR REST
// implementations in its us/ and kr/ subpackages.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/model"
)

// Order is the opaque result of a broker order submission.
type Order struct {
	Success bool
	ID      string
}

// Adapter is implemented once per user, per market. It owns its own
// cached auth token; the US and KR implementations keep no cached
// market-open flag. Sessions hold adapters in a user -> Adapter map
// rather than a shared mutable singleton.
type Adapter interface {
	// GetHashes returns account_number -> broker-opaque hash_value.
	GetHashes(ctx context.Context) (map[string]string, error)

	// MarketOpen reports whether the market is currently open.
	MarketOpen(ctx context.Context) (bool, error)

	// GetPositions returns symbol -> quantity for the given account hash.
	GetPositions(ctx context.Context, hash string) (map[string]int64, error)

	// GetPositionsResult returns the detailed per-symbol position view.
	GetPositionsResult(ctx context.Context, hash string) (map[string]model.PositionDetail, error)

	// GetCash returns available cash for the given account hash.
	GetCash(ctx context.Context, hash string) (decimal.Decimal, error)

	// GetAccountResult returns (cash, total_liquidation_value).
	GetAccountResult(ctx context.Context, hash string) (cash, totalValue decimal.Decimal, err error)

	// GetLastPrice returns the last trade price, or a false ok when the
	// quote is unavailable; quote failure is non-fatal.
	GetLastPrice(ctx context.Context, symbol string) (price decimal.Decimal, ok bool, err error)

	// PlaceLimitBuy and PlaceLimitSell submit limit orders.
	PlaceLimitBuy(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*Order, error)
	PlaceLimitSell(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*Order, error)

	// PlaceMarketSell submits a market sell (used by sweep-ETF liquidation).
	PlaceMarketSell(ctx context.Context, hash, symbol string, qty int64) (*Order, error)

	// SellSweepETFsForCash liquidates BIL then SGOV to cover shortfall.
	// US-only; KR implementations return (nil, nil).
	SellSweepETFsForCash(ctx context.Context, hash string, shortfall decimal.Decimal, positions map[string]int64) (*Order, error)
}

// SweepETFPriority is the preference order sweep liquidation tries:
// BIL first, then SGOV.
var SweepETFPriority = []string{"BIL", "SGOV"}
