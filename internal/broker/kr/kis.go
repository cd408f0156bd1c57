// Package kr implements the Broker Adapter against a Korea
// Investment & Securities (KIS)-shaped REST API.
package kr

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

// Credentials is what Adapter needs to mint an access token.
type Credentials struct {
	AppKey    string
	AppSecret string
}

// Adapter implements broker.Adapter for one user's KIS account.
type Adapter struct {
	client *resty.Client
	creds  Credentials
	userID string

	mu             sync.Mutex
	accessToken    string
	tokenExpiresAt time.Time

	kst *time.Location
}

// New builds a KIS-backed adapter for one user.
func New(userID string, creds Credentials) *Adapter {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.UTC
	}
	client := resty.New().
		SetBaseURL("https://openapi.koreainvestment.com:9443").
		SetTimeout(30 * time.Second)
	return &Adapter{client: client, creds: creds, userID: userID, kst: loc}
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
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     a.creds.AppKey,
			"appsecret":  a.creds.AppSecret,
		}).
		SetResult(&body).
		Post("/oauth2/tokenP")
	if err != nil {
		return "", fmt.Errorf("kis auth for user %s: %w", a.userID, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("kis auth for user %s: status %d", a.userID, resp.StatusCode())
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
	return a.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetHeader("appkey", a.creds.AppKey).
		SetHeader("appsecret", a.creds.AppSecret), nil
}

// GetHashes implements broker.Adapter. KIS has no broker-assigned hash
// distinct from the account number, so hash_value is the account
// number itself (still opaque to the session runner).
func (a *Adapter) GetHashes(ctx context.Context) (map[string]string, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return nil, err
	}
	var body struct {
		Output []struct {
			CANO string `json:"cano"`
		} `json:"output"`
	}
	resp, err := req.SetResult(&body).Get("/uapi/domestic-stock/v1/trading/inquire-account-balance")
	if err != nil {
		return nil, fmt.Errorf("get hashes for user %s: %w", a.userID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get hashes for user %s: status %d", a.userID, resp.StatusCode())
	}
	out := make(map[string]string, len(body.Output))
	for _, o := range body.Output {
		out[o.CANO] = o.CANO
	}
	return out, nil
}

// MarketOpen implements broker.Adapter: open iff weekday and
// 09:00 <= now_KST < 15:30 and the holiday API confirms opnd_yn = 'Y'.
func (a *Adapter) MarketOpen(ctx context.Context) (bool, error) {
	now := time.Now().In(a.kst)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false, nil
	}
	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, a.kst)
	closeT := time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, a.kst)
	if now.Before(open) || !now.Before(closeT) {
		return false, nil
	}

	req, err := a.authed(ctx)
	if err != nil {
		return false, err
	}
	var body struct {
		Output []struct {
			OpndYn string `json:"opnd_yn"`
		} `json:"output"`
	}
	resp, err := req.SetResult(&body).
		SetQueryParam("BASS_DT", now.Format("20060102")).
		Get("/uapi/domestic-stock/v1/quotations/chk-holiday")
	if err != nil {
		return false, fmt.Errorf("holiday check for user %s: %w", a.userID, err)
	}
	if resp.IsError() || len(body.Output) == 0 {
		return false, fmt.Errorf("holiday check for user %s: status %d", a.userID, resp.StatusCode())
	}
	return body.Output[0].OpndYn == "Y", nil
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
		Output1 []struct {
			PdnoCode     string `json:"pdno"`
			HldgQty      string `json:"hldg_qty"`
			PchsAvgPrice string `json:"pchs_avg_pric"`
			PrprPrice    string `json:"prpr"`
		} `json:"output1"`
	}
	resp, err := req.SetResult(&body).
		SetQueryParam("CANO", hash).
		Get("/uapi/domestic-stock/v1/trading/inquire-balance")
	if err != nil {
		return nil, fmt.Errorf("get positions for hash %s: %w", hash, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get positions for hash %s: status %d", hash, resp.StatusCode())
	}

	out := make(map[string]model.PositionDetail, len(body.Output1))
	for _, p := range body.Output1 {
		qty := parseIntSafe(p.HldgQty)
		out[p.PdnoCode] = model.PositionDetail{
			Quantity:     qty,
			AveragePrice: parseDecimalSafe(p.PchsAvgPrice),
			LastPrice:    parseDecimalSafe(p.PrprPrice),
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
		Output2 []struct {
			DncaTotAmt string `json:"dnca_tot_amt"`
			TotEvluAmt string `json:"tot_evlu_amt"`
		} `json:"output2"`
	}
	resp, err := req.SetResult(&body).
		SetQueryParam("CANO", hash).
		Get("/uapi/domestic-stock/v1/trading/inquire-balance")
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("get account for hash %s: %w", hash, err)
	}
	if resp.IsError() || len(body.Output2) == 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("get account for hash %s: status %d", hash, resp.StatusCode())
	}
	cash := parseDecimalSafe(body.Output2[0].DncaTotAmt)
	total := parseDecimalSafe(body.Output2[0].TotEvluAmt)
	return cash, total, nil
}

// GetLastPrice implements broker.Adapter.
func (a *Adapter) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	var body struct {
		Output struct {
			Prpr string `json:"stck_prpr"`
		} `json:"output"`
	}
	resp, err := req.SetResult(&body).
		SetQueryParam("FID_INPUT_ISCD", symbol).
		Get("/uapi/domestic-stock/v1/quotations/inquire-price")
	if err != nil {
		return decimal.Zero, false, nil
	}
	if resp.IsError() {
		return decimal.Zero, false, nil
	}
	price := parseDecimalSafe(body.Output.Prpr)
	if price.Sign() <= 0 {
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

// PlaceLimitBuy implements broker.Adapter.
func (a *Adapter) PlaceLimitBuy(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	return a.placeOrder(ctx, hash, symbol, qty, price, "01") // 01 = buy
}

// PlaceLimitSell implements broker.Adapter.
func (a *Adapter) PlaceLimitSell(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	return a.placeOrder(ctx, hash, symbol, qty, price, "02") // 02 = sell
}

func (a *Adapter) placeOrder(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal, sellBuyCode string) (*broker.Order, error) {
	req, err := a.authed(ctx)
	if err != nil {
		return nil, err
	}
	ordDvsn := "00" // limit order
	if price.IsZero() {
		ordDvsn = "01" // market order
	}
	order := map[string]string{
		"CANO":         hash,
		"PDNO":         symbol,
		"ORD_DVSN":     ordDvsn,
		"ORD_QTY":      fmt.Sprintf("%d", qty),
		"ORD_UNPR":     price.Truncate(0).String(),
		"SLL_BUY_DVSN": sellBuyCode,
	}
	var body struct {
		Output struct {
			OdNo string `json:"ODNO"`
		} `json:"output"`
		RtCd string `json:"rt_cd"`
	}
	resp, err := req.SetBody(order).SetResult(&body).Post("/uapi/domestic-stock/v1/trading/order-cash")
	if err != nil {
		return nil, fmt.Errorf("place order for %s: %w", symbol, err)
	}
	if resp.IsError() || body.RtCd != "0" {
		return &broker.Order{Success: false}, nil
	}
	return &broker.Order{Success: true, ID: body.Output.OdNo}, nil
}

// PlaceMarketSell implements broker.Adapter.
func (a *Adapter) PlaceMarketSell(ctx context.Context, hash, symbol string, qty int64) (*broker.Order, error) {
	return a.placeOrder(ctx, hash, symbol, qty, decimal.Zero, "02")
}

// SellSweepETFsForCash implements broker.Adapter: sweep ETF liquidation
// is a US-market concept; the KR adapter has nothing to
// liquidate and returns (nil, nil).
func (a *Adapter) SellSweepETFsForCash(ctx context.Context, hash string, shortfall decimal.Decimal, positions map[string]int64) (*broker.Order, error) {
	return nil, nil
}

func parseIntSafe(s string) int64 {
	d := parseDecimalSafe(s)
	return d.Truncate(0).IntPart()
}

func parseDecimalSafe(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
