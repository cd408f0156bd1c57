package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/calculator"
	"github.com/autotrader/tradingcore/internal/guard"
	"github.com/autotrader/tradingcore/internal/model"
	"github.com/autotrader/tradingcore/internal/tradeerr"
)

// pollUntilClose runs one pass per user per tick until ctx is
// cancelled or every user's market has closed.
func (r *Runner) pollUntilClose(ctx context.Context, users []string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		anyOpen := false
		for _, userID := range users {
			ad, ok := r.brokers[userID]
			if !ok {
				continue
			}
			open, err := ad.MarketOpen(ctx)
			if err != nil {
				r.log.Error().Err(err).Str("user_id", userID).Msg("market-open check failed, skipping pass")
				continue
			}
			if !open {
				continue
			}
			anyOpen = true
			if err := r.pass(ctx, userID, ad); err != nil {
				r.log.Error().Err(err).Str("user_id", userID).Msg("pass failed")
			}
		}

		if !anyOpen {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// pass runs one poll iteration for a single user: activate periodic
// rules whose date has arrived, then evaluate every active rule's
// trigger.
func (r *Runner) pass(ctx context.Context, userID string, ad broker.Adapter) error {
	now := r.clock.In(r.loc)

	periodic, err := r.store.GetPeriodicRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("get periodic rules: %w", err)
	}
	for _, rule := range periodic {
		if rule.Status != model.StatusProcessed {
			continue
		}
		if rule.LimitSpecOf().MatchesDate(now) {
			if err := r.store.UpdateRuleStatus(ctx, rule.ID, model.StatusActive); err != nil {
				r.log.Error().Err(err).Uint64("rule_id", rule.ID).Msg("failed to reactivate periodic rule")
			}
		}
	}

	active, err := r.store.GetActiveTradingRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("get active rules: %w", err)
	}
	for _, rule := range active {
		r.evaluateRule(ctx, ad, rule)
	}
	return nil
}

func (r *Runner) evaluateRule(ctx context.Context, ad broker.Adapter, rule model.TradingRule) {
	log := r.log.With().Uint64("rule_id", rule.ID).Str("symbol", rule.Symbol).Logger()

	hash, ok := r.hashByAccount[rule.AccountID]
	if !ok || !r.cache.HasHash(hash) {
		tradeerr.Log(log, tradeerr.DataAnomaly, fmt.Errorf("account-hash not present in cache"), "skipping rule")
		return
	}

	last, ok, err := ad.GetLastPrice(ctx, rule.Symbol)
	if err != nil {
		tradeerr.Log(log, tradeerr.Transient, err, "quote fetch failed, skipping pass for rule")
		return
	}
	if !ok {
		tradeerr.Log(log, tradeerr.Transient, fmt.Errorf("no quote available"), "skipping pass for rule")
		return
	}

	qty, _ := r.cache.Quantity(hash, rule.Symbol)
	spec := rule.LimitSpecOf()
	var fire bool
	if rule.IsPeriodic() {
		// Date-driven rules buy on their scheduled day at whatever the
		// market is asking; price plays no part in the trigger.
		fire = rule.TradeAction == model.ActionBuy && spec.MatchesDate(r.clock.In(r.loc))
	} else {
		fire = spec.Trigger(rule.TradeAction, last, rule.AveragePrice, rule.HighPrice)
	}
	if !fire {
		return
	}

	today, err := r.store.GetTradeToday(ctx, rule.ID, r.clock.Now())
	if err != nil {
		log.Warn().Err(err).Msg("failed to read today's trade total, skipping pass for rule")
		return
	}

	switch rule.TradeAction {
	case model.ActionBuy:
		r.executeBuy(ctx, ad, rule, hash, qty, last, today, log)
	case model.ActionSell:
		r.executeSell(ctx, ad, rule, hash, qty, last, today, log)
	}
}

func (r *Runner) executeBuy(ctx context.Context, ad broker.Adapter, rule model.TradingRule, hash string, qty int64, price, today decimal.Decimal, log zerolog.Logger) {
	cash, err := ad.GetCash(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Msg("cash fetch failed, skipping buy")
		return
	}

	decision := calculator.Buy(calculator.BuyDecisionParams{
		Target:        rule.TargetAmount,
		Holding:       qty,
		DailyMoney:    rule.DailyMoney,
		TodayUsed:     today,
		Price:         price,
		CashAvailable: cash,
		CashOnly:      rule.CashOnly,
	})

	if decision.Reason == calculator.ReasonNeedCash {
		positions, _ := r.cache.QuantitiesSnapshot(hash)
		if _, err := ad.SellSweepETFsForCash(ctx, hash, decision.Shortfall, positions); err != nil {
			log.Warn().Err(err).Msg("sweep-ETF liquidation for cash shortfall failed")
		}
		// Same-pass, single retry: re-check
		// cash once and re-run the decision, then accept whatever comes
		// back even if still short.
		cash2, err := ad.GetCash(ctx, hash)
		if err == nil {
			decision = calculator.Buy(calculator.BuyDecisionParams{
				Target:        rule.TargetAmount,
				Holding:       qty,
				DailyMoney:    rule.DailyMoney,
				TodayUsed:     today,
				Price:         price,
				CashAvailable: cash2,
				CashOnly:      rule.CashOnly,
			})
			cash = cash2
		}
	}

	if decision.Quantity <= 0 {
		log.Info().Str("reason", decision.Reason).Msg("buy not executed")
		return
	}

	if err := guard.ValidateBuy(r.cfg.Market, rule.Symbol, price, decision.Quantity, cash); err != nil {
		tradeerr.Log(log, tradeerr.Validation, err, "safety guard rejected buy order")
		return
	}

	order, err := ad.PlaceLimitBuy(ctx, hash, rule.Symbol, decision.Quantity, price)
	if err != nil || order == nil || !order.Success {
		if err == nil {
			err = fmt.Errorf("broker reported order not successful")
		}
		tradeerr.Log(log, tradeerr.Transient, err, "buy order submission failed")
		return
	}

	r.cache.Adjust(hash, rule.Symbol, decision.Quantity)
	r.recordFill(ctx, rule, hash, order.ID, decision.Quantity, price, model.ActionBuy, qty, log)
}

func (r *Runner) executeSell(ctx context.Context, ad broker.Adapter, rule model.TradingRule, hash string, qty int64, price, today decimal.Decimal, log zerolog.Logger) {
	decision := calculator.Sell(calculator.SellDecisionParams{
		Target:     rule.TargetAmount,
		Holding:    qty,
		DailyMoney: rule.DailyMoney,
		TodayUsed:  today,
		Price:      price,
	})
	if decision.Quantity <= 0 {
		log.Info().Str("reason", decision.Reason).Msg("sell not executed")
		return
	}

	holding := qty
	if err := guard.ValidateSell(r.cfg.Market, rule.Symbol, price, decision.Quantity, &holding); err != nil {
		tradeerr.Log(log, tradeerr.Validation, err, "safety guard rejected sell order")
		return
	}

	order, err := ad.PlaceLimitSell(ctx, hash, rule.Symbol, decision.Quantity, price)
	if err != nil || order == nil || !order.Success {
		if err == nil {
			err = fmt.Errorf("broker reported order not successful")
		}
		tradeerr.Log(log, tradeerr.Transient, err, "sell order submission failed")
		return
	}

	r.cache.Adjust(hash, rule.Symbol, -decision.Quantity)
	r.recordFill(ctx, rule, hash, order.ID, -decision.Quantity, price, model.ActionSell, qty, log)
}

// recordFill persists the trade, updates the rule's holding/average/high
// price and status, and sends a trade alert. delta is signed: positive
// for a buy fill, negative for a sell fill.
func (r *Runner) recordFill(ctx context.Context, rule model.TradingRule, hash, orderID string, delta int64, price decimal.Decimal, action model.TradeAction, oldQty int64, log zerolog.Logger) {
	newQty := oldQty + delta
	usedMoney := price.Mul(decimal.NewFromInt(absInt64(delta)))

	rec := model.TradeRecord{
		AccountID: rule.AccountID,
		RuleID:    rule.ID,
		OrderID:   orderID,
		Symbol:    rule.Symbol,
		Quantity:  absInt64(delta),
		Price:     price,
		Action:    action,
		UsedMoney: usedMoney,
		TradeDate: r.clock.Now(),
	}
	if err := r.store.RecordTrade(ctx, rec); err != nil {
		log.Error().Err(err).Msg("failed to persist trade record")
	}

	newAvg := rule.AveragePrice
	if action == model.ActionBuy && newQty > 0 {
		oldCost := rule.AveragePrice.Mul(decimal.NewFromInt(oldQty))
		newCost := oldCost.Add(usedMoney)
		newAvg = newCost.Div(decimal.NewFromInt(newQty))
	}
	newHigh := rule.HighPrice
	if price.GreaterThan(newHigh) {
		newHigh = price
	}

	if err := r.store.UpdateCurrentPriceQuantity(ctx, rule.ID, price, newAvg, newQty, newHigh); err != nil {
		log.Error().Err(err).Msg("failed to persist updated rule state")
	}

	var complete bool
	status := model.StatusCompleted
	switch action {
	case model.ActionBuy:
		if newQty >= rule.TargetAmount {
			complete = true
			if rule.IsPeriodic() {
				status = model.StatusProcessed
			}
		}
	case model.ActionSell:
		if newQty <= rule.TargetAmount {
			complete = true
		}
	}
	if complete {
		if err := r.store.UpdateRuleStatus(ctx, rule.ID, status); err != nil {
			log.Error().Err(err).Msg("failed to persist rule status transition")
		}
	}

	subject := fmt.Sprintf("%s %s filled", action, rule.Symbol)
	body := fmt.Sprintf("rule %d: %s %d %s @ %s", rule.ID, action, absInt64(delta), rule.Symbol, price)
	if err := r.alerter.Trade(ctx, subject, body); err != nil {
		log.Error().Err(err).Msg("failed to send trade alert")
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
