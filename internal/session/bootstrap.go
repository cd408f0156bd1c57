package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/autotrader/tradingcore/internal/broker"
)

// bootstrap ensures every account for userID carries a broker hash
// value, fetching and persisting any that are missing.
func (r *Runner) bootstrap(ctx context.Context, userID string, ad broker.Adapter, log zerolog.Logger) error {
	accounts, err := r.store.GetUserAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("get accounts: %w", err)
	}

	var missing bool
	for _, acc := range accounts {
		if acc.HashValue == "" {
			missing = true
			break
		}
	}
	if !missing {
		return nil
	}

	hashes, err := ad.GetHashes(ctx)
	if err != nil {
		return fmt.Errorf("get hashes: %w", err)
	}

	for _, acc := range accounts {
		if acc.HashValue != "" {
			continue
		}
		hash, ok := hashes[acc.AccountNumber]
		if !ok {
			log.Warn().Str("account_number", acc.AccountNumber).Msg("broker returned no hash for account")
			continue
		}
		if err := r.store.UpdateAccountHash(ctx, acc.AccountNumber, hash); err != nil {
			return fmt.Errorf("update hash for account %s: %w", acc.AccountNumber, err)
		}
	}
	return nil
}
