package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/clock"
	"github.com/autotrader/tradingcore/internal/model"
	"github.com/autotrader/tradingcore/internal/money"
	"github.com/autotrader/tradingcore/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeBroker implements broker.Adapter with hand-set return values.
type fakeBroker struct {
	lastPrice decimal.Decimal
	cash      decimal.Decimal
	buyOrder  *broker.Order
	sellOrder *broker.Order

	positions       map[string]int64
	positionDetails map[string]model.PositionDetail
}

func (f *fakeBroker) GetHashes(ctx context.Context) (map[string]string, error) { return nil, nil }
func (f *fakeBroker) MarketOpen(ctx context.Context) (bool, error)             { return true, nil }
func (f *fakeBroker) GetPositions(ctx context.Context, hash string) (map[string]int64, error) {
	return f.positions, nil
}
func (f *fakeBroker) GetPositionsResult(ctx context.Context, hash string) (map[string]model.PositionDetail, error) {
	return f.positionDetails, nil
}
func (f *fakeBroker) GetCash(ctx context.Context, hash string) (decimal.Decimal, error) {
	return f.cash, nil
}
func (f *fakeBroker) GetAccountResult(ctx context.Context, hash string) (decimal.Decimal, decimal.Decimal, error) {
	return f.cash, f.cash, nil
}
func (f *fakeBroker) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	return f.lastPrice, true, nil
}
func (f *fakeBroker) PlaceLimitBuy(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	return f.buyOrder, nil
}
func (f *fakeBroker) PlaceLimitSell(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	return f.sellOrder, nil
}
func (f *fakeBroker) PlaceMarketSell(ctx context.Context, hash, symbol string, qty int64) (*broker.Order, error) {
	return nil, nil
}
func (f *fakeBroker) SellSweepETFsForCash(ctx context.Context, hash string, shortfall decimal.Decimal, positions map[string]int64) (*broker.Order, error) {
	return nil, nil
}

// fakeStore implements store.Store, recording the last status/price
// update for assertions.
type fakeStore struct {
	tradeToday    decimal.Decimal
	recordedTrade *model.TradeRecord
	lastStatus    model.RuleStatus
	statusCalled  bool

	accounts []model.Account
	rules    []model.TradingRule

	lastPriceQtyCall   []decimal.Decimal // [lastPrice, averagePrice]
	lastCashBalance    decimal.Decimal
	splitAdjustApplied bool
}

func (s *fakeStore) GetUsers(ctx context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) GetUserAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	return s.accounts, nil
}
func (s *fakeStore) GetHashValue(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}
func (s *fakeStore) UpdateAccountHash(ctx context.Context, accountNumber, hashValue string) error {
	return nil
}
func (s *fakeStore) GetActiveTradingRules(ctx context.Context, userID string) ([]model.TradingRule, error) {
	return s.rules, nil
}
func (s *fakeStore) GetAllTradingRules(ctx context.Context, userID string) ([]model.TradingRule, error) {
	return s.rules, nil
}
func (s *fakeStore) GetPeriodicRules(ctx context.Context, userID string) ([]model.TradingRule, error) {
	return nil, nil
}
func (s *fakeStore) UpdateRuleStatus(ctx context.Context, ruleID uint64, status model.RuleStatus) error {
	s.statusCalled = true
	s.lastStatus = status
	return nil
}
func (s *fakeStore) UpdateCurrentPriceQuantity(ctx context.Context, ruleID uint64, lastPrice, averagePrice decimal.Decimal, currentHolding int64, highPrice decimal.Decimal) error {
	s.lastPriceQtyCall = []decimal.Decimal{lastPrice, averagePrice}
	return nil
}
func (s *fakeStore) UpdateSplitAdjustment(ctx context.Context, ruleID uint64, highPrice decimal.Decimal, targetAmount int64, averagePrice decimal.Decimal, currentHolding int64) error {
	s.splitAdjustApplied = true
	return nil
}
func (s *fakeStore) GetTradeToday(ctx context.Context, ruleID uint64, today time.Time) (decimal.Decimal, error) {
	return s.tradeToday, nil
}
func (s *fakeStore) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	s.recordedTrade = &rec
	return nil
}
func (s *fakeStore) AddDailyResult(ctx context.Context, date time.Time, accountID uint64, cash, total decimal.Decimal, bySymbol map[string]store.SymbolAmount) error {
	return nil
}
func (s *fakeStore) UpdateAccountCashBalance(ctx context.Context, accountID uint64, cash decimal.Decimal) error {
	s.lastCashBalance = cash
	return nil
}
func (s *fakeStore) UpdateAccountTotalValue(ctx context.Context, accountID uint64, total decimal.Decimal) error {
	return nil
}

type fakeAlerter struct{ trades int }

func (a *fakeAlerter) Trade(ctx context.Context, subject, message string) error {
	a.trades++
	return nil
}
func (a *fakeAlerter) Fatal(ctx context.Context, subject, message string) error { return nil }

func newTestRunner(t *testing.T, st *fakeStore, alerter *fakeAlerter) *Runner {
	r, err := New(DefaultConfig(money.US), st, nil, alerter, clock.Real{}, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestExecuteBuy_FillsAndCompletesAtTarget(t *testing.T) {
	st := &fakeStore{tradeToday: decimal.Zero}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{
		lastPrice: d("100"),
		cash:      d("10000"),
		buyOrder:  &broker.Order{Success: true, ID: "order-1"},
	}
	rule := model.TradingRule{
		ID: 1, AccountID: 1, Symbol: "AAPL",
		TradeAction: model.ActionBuy, TargetAmount: 10, DailyMoney: d("5000"),
	}
	log := zerolog.Nop()

	r.executeBuy(context.Background(), ad, rule, "hash1", 0, d("100"), decimal.Zero, log)

	require.NotNil(t, st.recordedTrade)
	assert.Equal(t, int64(10), st.recordedTrade.Quantity)
	assert.Equal(t, model.ActionBuy, st.recordedTrade.Action)
	assert.True(t, st.statusCalled)
	assert.Equal(t, model.StatusCompleted, st.lastStatus)
	assert.Equal(t, 1, alerter.trades)
}

func TestExecuteSell_CompletesWhenHoldingReachesTarget(t *testing.T) {
	st := &fakeStore{tradeToday: decimal.Zero}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{
		lastPrice: d("100"),
		sellOrder: &broker.Order{Success: true, ID: "order-2"},
	}
	// holding 10, target 5: selling the 5-share surplus should land
	// exactly on target and flip the rule to COMPLETED.
	rule := model.TradingRule{
		ID: 2, AccountID: 1, Symbol: "AAPL",
		TradeAction: model.ActionSell, TargetAmount: 5, DailyMoney: d("5000"),
	}
	log := zerolog.Nop()

	r.executeSell(context.Background(), ad, rule, "hash1", 10, d("100"), decimal.Zero, log)

	require.NotNil(t, st.recordedTrade)
	assert.Equal(t, int64(5), st.recordedTrade.Quantity)
	assert.Equal(t, model.ActionSell, st.recordedTrade.Action)
	assert.True(t, st.statusCalled, "sell reaching target must flip rule status to COMPLETED")
	assert.Equal(t, model.StatusCompleted, st.lastStatus)
}

func TestExecuteSell_NoSurplusLeavesStatusUntouched(t *testing.T) {
	st := &fakeStore{tradeToday: decimal.Zero}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{lastPrice: d("100")}
	rule := model.TradingRule{
		ID: 3, AccountID: 1, Symbol: "AAPL",
		TradeAction: model.ActionSell, TargetAmount: 10, DailyMoney: d("5000"),
	}
	log := zerolog.Nop()

	// holding already at target: no surplus, nothing to sell.
	r.executeSell(context.Background(), ad, rule, "hash1", 10, d("100"), decimal.Zero, log)

	assert.Nil(t, st.recordedTrade)
	assert.False(t, st.statusCalled)
}

func TestEvaluateRule_PeriodicBuyFiresOnScheduledDayOnly(t *testing.T) {
	st := &fakeStore{tradeToday: decimal.Zero}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)
	// Wednesday 2026-07-15, 10:00 New York time.
	r.clock = clock.NewFrozen(time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC))
	r.hashByAccount[1] = "hash1"
	r.cache.SetQuantities("hash1", map[string]int64{})

	ad := &fakeBroker{
		lastPrice: d("100"),
		cash:      d("10000"),
		buyOrder:  &broker.Order{Success: true, ID: "order-5"},
	}
	rule := model.TradingRule{
		ID: 5, AccountID: 1, Symbol: "AAPL",
		TradeAction: model.ActionBuy, LimitKind: model.LimitWeekly, LimitDay: 3,
		TargetAmount: 5, DailyMoney: d("1000"), Status: model.StatusActive,
	}

	r.evaluateRule(context.Background(), ad, rule)

	require.NotNil(t, st.recordedTrade)
	assert.Equal(t, int64(5), st.recordedTrade.Quantity)
	assert.Equal(t, model.StatusProcessed, st.lastStatus, "a filled weekly rule re-arms as PROCESSED, not COMPLETED")

	// The day after, the same rule must not fire.
	st.recordedTrade = nil
	r.clock = clock.NewFrozen(time.Date(2026, 7, 16, 14, 0, 0, 0, time.UTC))
	r.evaluateRule(context.Background(), ad, rule)
	assert.Nil(t, st.recordedTrade)
}

func TestExecuteBuy_GuardRejectsFatFingerOrder(t *testing.T) {
	st := &fakeStore{tradeToday: decimal.Zero}
	alerter := &fakeAlerter{}
	r := newTestRunner(t, st, alerter)

	ad := &fakeBroker{
		lastPrice: d("200"),
		cash:      d("1000000"),
		buyOrder:  &broker.Order{Success: true, ID: "order-3"},
	}
	// target*price = 1000*200 = 200,000 > MAX_ORDER_USD (100,000):
	// the safety guard must block this before it reaches the broker.
	rule := model.TradingRule{
		ID: 4, AccountID: 1, Symbol: "AAPL",
		TradeAction: model.ActionBuy, TargetAmount: 1000, DailyMoney: d("1000000"),
	}
	log := zerolog.Nop()

	r.executeBuy(context.Background(), ad, rule, "hash1", 0, d("200"), decimal.Zero, log)

	assert.Nil(t, st.recordedTrade, "safety guard must block the fat-finger order before it is recorded")
	assert.False(t, st.statusCalled)
}
