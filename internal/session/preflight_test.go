package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autotrader/tradingcore/internal/model"
)

// TestPreflight_ClassifiesOnLastPriceNotAveragePrice pins the fix for a
// field mix-up where ClassifyIntegrity was fed the broker's average
// (cost-basis) price instead of its last price. With average_price
// held at 0 and only last_price varying, a ratio-keyed classification
// is only possible when last_price is the comparator.
func TestPreflight_ClassifiesOnLastPriceNotAveragePrice(t *testing.T) {
	st := &fakeStore{
		accounts: []model.Account{{ID: 1, HashValue: "hash1"}},
		rules: []model.TradingRule{
			{ID: 1, AccountID: 1, Symbol: "AAPL", CurrentHolding: 100, AveragePrice: d("100")},
		},
	}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{
		positions: map[string]int64{"AAPL": 200},
		positionDetails: map[string]model.PositionDetail{
			// broker average_price is 0 while last_price shows a split
			// signature (ratio 0.5). If the call site wrongly reads
			// AveragePrice as the broker price the BrokerPriceZero path
			// misfires and the whole preflight turns fatal.
			"AAPL": {Quantity: 200, AveragePrice: decimal.Zero, LastPrice: d("50")},
		},
	}

	err := r.preflight(context.Background(), "user1", ad, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, st.splitAdjustApplied, "reconciler must not adjust while the broker average is still 0")
}

// TestPreflight_BrokerPriceZeroUsesLastPrice pins the same fix from the
// opposite direction: a nonzero average_price with a zero last_price
// must still be classified as an invalid-broker-price fatal case,
// which only happens if the call site reads LastPrice.
func TestPreflight_BrokerPriceZeroUsesLastPrice(t *testing.T) {
	st := &fakeStore{
		accounts: []model.Account{{ID: 1, HashValue: "hash1"}},
		rules: []model.TradingRule{
			{ID: 1, AccountID: 1, Symbol: "AAPL", CurrentHolding: 5, AveragePrice: d("100")},
		},
	}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{
		positions: map[string]int64{"AAPL": 50},
		positionDetails: map[string]model.PositionDetail{
			"AAPL": {Quantity: 50, AveragePrice: d("150"), LastPrice: decimal.Zero},
		},
	}

	err := r.preflight(context.Background(), "user1", ad, zerolog.Nop())
	assert.Error(t, err, "zero last_price with a nonzero broker quantity must be a fatal integrity failure")
}
