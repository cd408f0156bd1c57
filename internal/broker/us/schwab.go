// Package us implements the Broker Adapter against a Schwab-shaped
// brokerage REST API.
package us

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/model"
)

// Credentials is what Adapter needs to mint and refresh an auth token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Adapter implements broker.Adapter for one user's Schwab account.
// It owns its own cached token: no fields here are shared across users.
// It keeps no cached market-open flag.
type Adapter struct {
	client *resty.Client
	creds  Credentials
	userID string

	mu             sync.Mutex
	accessToken    string
	tokenExpiresAt time.Time
}

// New builds a Schwab-backed adapter for one user.
func New(userID string, creds Credentials) *Adapter {
	client := resty.New().
		SetBaseURL("https://api.schwabapi.com/trader/v1").
		SetTimeout(30 * time.Second)
	return &Adapter{client: client, creds: creds, userID: userID}
}

func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiresAt) {
		return a.accessToken, nil
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": a.creds.RefreshToken,
		}).
		SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret).
		SetResult(&body).
		Post("/oauth/token")
	if err != nil {
		return "", fmt.Errorf("schwab auth for user %s: %w", a.userID, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("schwab auth for user %s: status %d", a.userID, resp.StatusCode())
	}

	a.accessToken = body.AccessToken
	a.tokenExpiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return a.accessToken, nil
}

func (a *Adapter) authed(ctx context.Context) (*resty.Request, error) {
	tok, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	return a.client.R().SetContext(ctx).SetAuthToken(tok), nil
}

// GetHashes implements broker.Adapter.
func (a *Adapter) GetHashes(ctx context.Context) (map[string]string, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return nil, err
	}
	var body []struct {
		AccountNumber string `json:"accountNumber"`
		HashValue     string `json:"hashValue"`
	}
	resp, err := req.SetResult(&body).Get("/accounts/accountNumbers")
	if err != nil {
		return nil, fmt.Errorf("get hashes for user %s: %w", a.userID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get hashes for user %s: status %d", a.userID, resp.StatusCode())
	}
	out := make(map[string]string, len(body))
	for _, r := range body {
		out[r.AccountNumber] = r.HashValue
	}
	return out, nil
}

// MarketOpen implements broker.Adapter: it returns the broker's equity
// isOpen flag from /markets/equity, queried on every call. It does no
// local weekday or PT time-window check and caches nothing.
func (a *Adapter) MarketOpen(ctx context.Context) (bool, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return false, err
	}
	var body struct {
		Equity struct {
			EQ struct {
				IsOpen bool `json:"isOpen"`
			} `json:"EQ"`
		} `json:"equity"`
	}
	resp, err := req.SetResult(&body).Get("/markets/equity")
	if err != nil {
		return false, fmt.Errorf("market hours for user %s: %w", a.userID, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("market hours for user %s: status %d", a.userID, resp.StatusCode())
	}
	return body.Equity.EQ.IsOpen, nil
}

// GetPositions implements broker.Adapter.
func (a *Adapter) GetPositions(ctx context.Context, hash string) (map[string]int64, error) {
	details, err := a.GetPositionsResult(ctx, hash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(details))
	for symbol, d := range details {
		out[symbol] = d.Quantity
	}
	return out, nil
}

// GetPositionsResult implements broker.Adapter.
func (a *Adapter) GetPositionsResult(ctx context.Context, hash string) (map[string]model.PositionDetail, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return nil, err
	}
	var body struct {
		SecuritiesAccount struct {
			Positions []struct {
				Instrument struct {
					Symbol string `json:"symbol"`
				} `json:"instrument"`
				LongQuantity  float64 `json:"longQuantity"`
				ShortQuantity float64 `json:"shortQuantity"`
				AveragePrice  float64 `json:"averagePrice"`
				MarketValue   float64 `json:"marketValue"`
			} `json:"positions"`
		} `json:"securitiesAccount"`
	}
	resp, err := req.SetResult(&body).
		SetQueryParam("fields", "positions").
		Get(fmt.Sprintf("/accounts/%s", hash))
	if err != nil {
		return nil, fmt.Errorf("get positions for hash %s: %w", hash, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get positions for hash %s: status %d", hash, resp.StatusCode())
	}

	out := make(map[string]model.PositionDetail, len(body.SecuritiesAccount.Positions))
	for _, p := range body.SecuritiesAccount.Positions {
		qty := int64(p.LongQuantity - p.ShortQuantity)
		var lastPrice decimal.Decimal
		if qty != 0 {
			lastPrice = decimal.NewFromFloat(p.MarketValue / float64(qty))
		}
		out[p.Instrument.Symbol] = model.PositionDetail{
			Quantity:     qty,
			AveragePrice: decimal.NewFromFloat(p.AveragePrice),
			LastPrice:    lastPrice,
		}
	}
	return out, nil
}

// GetCash implements broker.Adapter.
func (a *Adapter) GetCash(ctx context.Context, hash string) (decimal.Decimal, error) {
	cash, _, err := a.GetAccountResult(ctx, hash)
	return cash, err
}

// GetAccountResult implements broker.Adapter.
func (a *Adapter) GetAccountResult(ctx context.Context, hash string) (decimal.Decimal, decimal.Decimal, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	var body struct {
		SecuritiesAccount struct {
			CurrentBalances struct {
				CashAvailableForTrading float64 `json:"cashAvailableForTrading"`
				LiquidationValue        float64 `json:"liquidationValue"`
			} `json:"currentBalances"`
		} `json:"securitiesAccount"`
	}
	resp, err := req.SetResult(&body).Get(fmt.Sprintf("/accounts/%s", hash))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("get account for hash %s: %w", hash, err)
	}
	if resp.IsError() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("get account for hash %s: status %d", hash, resp.StatusCode())
	}
	cash := decimal.NewFromFloat(body.SecuritiesAccount.CurrentBalances.CashAvailableForTrading)
	total := decimal.NewFromFloat(body.SecuritiesAccount.CurrentBalances.LiquidationValue)
	return cash, total, nil
}

// GetLastPrice implements broker.Adapter. A quote failure is non-fatal:
// callers get ok=false rather than an error when the feed has no data.
func (a *Adapter) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	var body map[string]struct {
		Quote struct {
			LastPrice float64 `json:"lastPrice"`
		} `json:"quote"`
	}
	resp, err := req.SetResult(&body).
		SetQueryParam("symbols", symbol).
		Get("/quotes")
	if err != nil {
		return decimal.Zero, false, nil // transient: treat as no quote
	}
	if resp.IsError() {
		return decimal.Zero, false, nil
	}
	entry, ok := body[symbol]
	if !ok || entry.Quote.LastPrice <= 0 {
		return decimal.Zero, false, nil
	}
	return decimal.NewFromFloat(entry.Quote.LastPrice), true, nil
}

// PlaceLimitBuy implements broker.Adapter.
func (a *Adapter) PlaceLimitBuy(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	return a.placeLimit(ctx, hash, symbol, qty, price, "BUY")
}

// PlaceLimitSell implements broker.Adapter.
func (a *Adapter) PlaceLimitSell(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	return a.placeLimit(ctx, hash, symbol, qty, price, "SELL")
}

func (a *Adapter) placeLimit(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal, instruction string) (*broker.Order, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return nil, err
	}
	order := map[string]any{
		"orderType": "LIMIT",
		"session":   "NORMAL",
		"duration":  "DAY",
		"price":     price.StringFixed(2),
		"orderLegCollection": []map[string]any{{
			"instruction": instruction,
			"quantity":    qty,
			"instrument": map[string]string{
				"symbol":    symbol,
				"assetType": "EQUITY",
			},
		}},
	}
	resp, err := req.SetBody(order).Post(fmt.Sprintf("/accounts/%s/orders", hash))
	if err != nil {
		return nil, fmt.Errorf("place %s order for %s: %w", instruction, symbol, err)
	}
	if resp.IsError() {
		return &broker.Order{Success: false}, nil
	}
	return &broker.Order{Success: true, ID: extractOrderID(resp.Header().Get("Location"))}, nil
}

// PlaceMarketSell implements broker.Adapter.
func (a *Adapter) PlaceMarketSell(ctx context.Context, hash, symbol string, qty int64) (*broker.Order, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return nil, err
	}
	order := map[string]any{
		"orderType": "MARKET",
		"session":   "NORMAL",
		"duration":  "DAY",
		"orderLegCollection": []map[string]any{{
			"instruction": "SELL",
			"quantity":    qty,
			"instrument": map[string]string{
				"symbol":    symbol,
				"assetType": "EQUITY",
			},
		}},
	}
	resp, err := req.SetBody(order).Post(fmt.Sprintf("/accounts/%s/orders", hash))
	if err != nil {
		return nil, fmt.Errorf("place market sell for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return &broker.Order{Success: false}, nil
	}
	return &broker.Order{Success: true, ID: extractOrderID(resp.Header().Get("Location"))}, nil
}

// SellSweepETFsForCash implements broker.Adapter: prefers BIL, then
// SGOV; qty = min(held, ceil(shortfall/last_price)).
func (a *Adapter) SellSweepETFsForCash(ctx context.Context, hash string, shortfall decimal.Decimal, positions map[string]int64) (*broker.Order, error) {
	for _, symbol := range broker.SweepETFPriority {
		held, ok := positions[symbol]
		if !ok || held <= 0 {
			continue
		}
		last, ok, err := a.GetLastPrice(ctx, symbol)
		if err != nil || !ok || last.Sign() <= 0 {
			continue
		}
		needed := shortfall.Div(last).Ceil().IntPart()
		qty := needed
		if held < qty {
			qty = held
		}
		if qty <= 0 {
			continue
		}
		return a.PlaceMarketSell(ctx, hash, symbol, qty)
	}
	return nil, nil
}

// extractOrderID implements broker.Adapter's extract_order_id: Schwab
// returns the new order's resource URL in Location; the ID is its tail.
func extractOrderID(location string) string {
	for i := len(location) - 1; i >= 0; i-- {
		if location[i] == '/' {
			return location[i+1:]
		}
	}
	return location
}
