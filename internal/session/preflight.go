package session

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/guard"
	"github.com/autotrader/tradingcore/internal/model"
	"github.com/autotrader/tradingcore/internal/reconciler"
	"github.com/autotrader/tradingcore/internal/tradeerr"
)

// reconcile adapts reconciler.Reconcile to TradingRule/PositionDetail
// shapes so call sites don't unpack fields inline.
func reconcile(rule model.TradingRule, detail model.PositionDetail) (reconciler.Adjustment, bool) {
	return reconciler.Reconcile(rule.AveragePrice, rule.CurrentHolding, rule.HighPrice, rule.TargetAmount, detail.Quantity, detail.AveragePrice)
}

// preflight fetches each account's positions with retry, seeds the
// position cache, then classifies every active rule's DB state against
// the broker's. If any rule's case is fatal it returns a tradeerr.Fatal
// error carrying the count of fatal cases; otherwise it reconciles every
// detected split/merge.
func (r *Runner) preflight(ctx context.Context, userID string, ad broker.Adapter, log zerolog.Logger) error {
	accounts, err := r.store.GetUserAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("get accounts: %w", err)
	}

	for _, acc := range accounts {
		if acc.HashValue == "" {
			log.Warn().Uint64("account_id", acc.ID).Msg("account has no hash value, skipping pre-flight fetch")
			continue
		}
		r.hashByAccount[acc.ID] = acc.HashValue

		positions, err := r.fetchPositionsWithRetry(ctx, ad, acc.HashValue)
		if err != nil {
			return fmt.Errorf("fetch positions for account %d after retries: %w", acc.ID, err)
		}
		r.cache.SetQuantities(acc.HashValue, positions)

		detail, err := ad.GetPositionsResult(ctx, acc.HashValue)
		if err != nil {
			return fmt.Errorf("fetch position detail for account %d: %w", acc.ID, err)
		}
		r.cache.SetDetails(acc.HashValue, detail)
	}

	rules, err := r.store.GetActiveTradingRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("get active trading rules: %w", err)
	}

	type pendingSplit struct {
		rule   model.TradingRule
		detail model.PositionDetail
	}
	var splits []pendingSplit

	report := guard.IntegrityReport{}
	for _, rule := range rules {
		hash, ok := r.hashByAccount[rule.AccountID]
		if !ok {
			continue
		}
		detail, _ := r.cache.Detail(hash, rule.Symbol)

		c := guard.ClassifyIntegrity(rule.ID, rule.Symbol, rule.CurrentHolding, rule.AveragePrice, detail.Quantity, detail.LastPrice)
		report.Cases = append(report.Cases, c)

		if c.Fatal {
			log.Error().Uint64("rule_id", rule.ID).Str("symbol", rule.Symbol).Str("detail", c.Detail).Msg("integrity check failed")
			continue
		}

		if c.Class == guard.MismatchRatio {
			splits = append(splits, pendingSplit{rule: rule, detail: detail})
		}
	}

	if report.Fatal() {
		err := fmt.Errorf("integrity check found %d fatal case(s)", len(report.FatalCases()))
		return tradeerr.New(tradeerr.Fatal, err)
	}
	for _, s := range splits {
		r.applyReconciliation(ctx, s.rule, s.detail, log)
	}
	return nil
}

func (r *Runner) applyReconciliation(ctx context.Context, rule model.TradingRule, detail model.PositionDetail, log zerolog.Logger) {
	adj, ok := reconcile(rule, detail)
	if !ok {
		return
	}
	if err := r.store.UpdateSplitAdjustment(ctx, rule.ID, adj.HighPrice, adj.TargetAmount, adj.AveragePrice, adj.CurrentHolding); err != nil {
		log.Error().Err(err).Uint64("rule_id", rule.ID).Msg("failed to persist split/merge adjustment")
		return
	}
	log.Info().Uint64("rule_id", rule.ID).Str("ratio", adj.Ratio.String()).Msg("applied split/merge reconciliation")
}

// fetchPositionsWithRetry retries the session-start position fetch up
// to cfg.RetryAttempts times after the first try, with exponential
// backoff starting at cfg.RetryInterval.
func (r *Runner) fetchPositionsWithRetry(ctx context.Context, ad broker.Adapter, hash string) (map[string]int64, error) {
	var positions map[string]int64
	op := func() error {
		var err error
		positions, err = ad.GetPositions(ctx, hash)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.RetryInterval
	policy := backoff.WithMaxRetries(bo, r.cfg.RetryAttempts)

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return positions, nil
}
