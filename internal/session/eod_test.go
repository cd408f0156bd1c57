package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autotrader/tradingcore/internal/model"
)

// TestEndOfDay_RefreshesAveragePriceFromBroker pins the fix for a field
// mix-up where the end-of-day rule update wrote back the rule's stale
// DB average_price instead of the broker-authoritative value just
// refetched via GetPositionsResult.
func TestEndOfDay_RefreshesAveragePriceFromBroker(t *testing.T) {
	st := &fakeStore{
		accounts: []model.Account{{ID: 1, HashValue: "hash1"}},
		rules: []model.TradingRule{
			{ID: 1, AccountID: 1, Symbol: "AAPL", AveragePrice: d("100"), HighPrice: d("100")},
		},
	}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{
		cash: d("5000"),
		positionDetails: map[string]model.PositionDetail{
			"AAPL": {Quantity: 10, AveragePrice: d("123.45"), LastPrice: d("150")},
		},
	}

	err := r.endOfDay(context.Background(), "user1", ad, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, st.lastPriceQtyCall, 2)
	assert.True(t, st.lastPriceQtyCall[0].Equal(d("150")), "last_price should be the broker's last price")
	assert.True(t, st.lastPriceQtyCall[1].Equal(d("123.45")), "average_price must be refreshed from the broker detail, not left stale from the DB rule")
}
