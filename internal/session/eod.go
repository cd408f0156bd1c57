package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/money"
	"github.com/autotrader/tradingcore/internal/store"
)

// endOfDay refetches each account's authoritative cash/total/positions,
// writes one daily_records row per account per symbol (plus the
// synthetic "cash" and "total" rows), adds the market value of held US
// sweep ETFs (BIL, SGOV) to the stored cash balance, and rolls each
// rule's last-known price state forward.
func (r *Runner) endOfDay(ctx context.Context, userID string, ad broker.Adapter, log zerolog.Logger) error {
	accounts, err := r.store.GetUserAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("get accounts: %w", err)
	}

	rules, err := r.store.GetAllTradingRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("get trading rules: %w", err)
	}

	today := r.clock.Now()

	for _, acc := range accounts {
		if acc.HashValue == "" {
			continue
		}

		cash, total, err := ad.GetAccountResult(ctx, acc.HashValue)
		if err != nil {
			log.Error().Err(err).Uint64("account_id", acc.ID).Msg("failed to fetch account result for snapshot")
			continue
		}

		positions, err := ad.GetPositionsResult(ctx, acc.HashValue)
		if err != nil {
			log.Error().Err(err).Uint64("account_id", acc.ID).Msg("failed to fetch positions for snapshot")
			continue
		}

		bySymbol := make(map[string]store.SymbolAmount, len(positions))
		sweepValue := decimal.Zero
		for symbol, detail := range positions {
			notional := detail.LastPrice.Mul(decimal.NewFromInt(detail.Quantity))
			bySymbol[symbol] = store.SymbolAmount{Amount: notional, Quantity: detail.Quantity}
			if r.cfg.Market == money.US && (symbol == "BIL" || symbol == "SGOV") {
				sweepValue = sweepValue.Add(notional)
			}
		}

		if err := r.store.AddDailyResult(ctx, today, acc.ID, cash, total, bySymbol); err != nil {
			log.Error().Err(err).Uint64("account_id", acc.ID).Msg("failed to persist daily snapshot")
			continue
		}
		// US-only sweep adjustment: cash_balance folds in
		// the value of sweep ETFs held as a cash equivalent.
		if err := r.store.UpdateAccountCashBalance(ctx, acc.ID, cash.Add(sweepValue)); err != nil {
			log.Error().Err(err).Uint64("account_id", acc.ID).Msg("failed to persist cash balance")
		}
		if err := r.store.UpdateAccountTotalValue(ctx, acc.ID, total); err != nil {
			log.Error().Err(err).Uint64("account_id", acc.ID).Msg("failed to persist total value")
		}

		for _, rule := range rules {
			if rule.AccountID != acc.ID {
				continue
			}
			detail, ok := positions[rule.Symbol]
			if !ok {
				continue
			}
			// The high only moves once a real position exists; a zero
			// average means there is no meaningful high yet.
			high := rule.HighPrice
			if rule.AveragePrice.Sign() > 0 && detail.LastPrice.GreaterThan(high) {
				high = detail.LastPrice
			}
			if err := r.store.UpdateCurrentPriceQuantity(ctx, rule.ID, detail.LastPrice, detail.AveragePrice, detail.Quantity, high); err != nil {
				log.Error().Err(err).Uint64("rule_id", rule.ID).Msg("failed to persist end-of-day rule price update")
			}
		}
	}

	return nil
}
