// Package recorder is an orthogonal JSONL shadow log of broker calls.
// It wraps a broker.Adapter with the same interface, recording every
// call asynchronously so a slow disk never blocks trading.
package recorder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/model"
)

// entry is one JSONL line: a single recorded broker call.
type entry struct {
	ID     string `json:"id"`
	TS     string `json:"ts"`
	Method string `json:"method"`
	Args   any    `json:"args"`
	Error  string `json:"error,omitempty"`
}

// Recorder is an async, bounded-queue JSONL writer. Entries are dropped
// (not blocked on) when the queue is full, so recording never slows
// down trading.
type Recorder struct {
	queue  chan entry
	done   chan struct{}
	logger zerolog.Logger
}

// New opens path for append and starts the background writer. Call
// Close to drain and stop it.
func New(path string, logger zerolog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		queue:  make(chan entry, 10_000), // prevent unbounded memory growth
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.writeLoop(f)
	return r, nil
}

func (r *Recorder) writeLoop(f *os.File) {
	defer f.Close()
	enc := json.NewEncoder(f)
	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				return
			}
			if err := enc.Encode(e); err != nil {
				r.logger.Error().Err(err).Msg("recorder write failed")
			}
		case <-r.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case e := <-r.queue:
					_ = enc.Encode(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) record(method string, args any, err error) {
	e := entry{
		ID:     uuid.NewString(),
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Method: method,
		Args:   args,
	}
	if err != nil {
		e.Error = err.Error()
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Error().Str("method", method).Msg("recorder queue full, dropping entry")
	}
}

// Close stops the background writer, draining any queued entries.
func (r *Recorder) Close() {
	close(r.done)
}

// Decorator wraps a broker.Adapter, shadow-logging every call to r.
type Decorator struct {
	inner broker.Adapter
	r     *Recorder
}

// Wrap builds a recording decorator around inner. If r is nil the
// decorator is a transparent passthrough (the --no-record flag).
func Wrap(inner broker.Adapter, r *Recorder) broker.Adapter {
	if r == nil {
		return inner
	}
	return &Decorator{inner: inner, r: r}
}

func (d *Decorator) GetHashes(ctx context.Context) (map[string]string, error) {
	out, err := d.inner.GetHashes(ctx)
	d.r.record("get_hashes", nil, err)
	return out, err
}

func (d *Decorator) MarketOpen(ctx context.Context) (bool, error) {
	out, err := d.inner.MarketOpen(ctx)
	d.r.record("market_open", nil, err)
	return out, err
}

func (d *Decorator) GetPositions(ctx context.Context, hash string) (map[string]int64, error) {
	out, err := d.inner.GetPositions(ctx, hash)
	d.r.record("get_positions", []any{hash}, err)
	return out, err
}

func (d *Decorator) GetPositionsResult(ctx context.Context, hash string) (map[string]model.PositionDetail, error) {
	out, err := d.inner.GetPositionsResult(ctx, hash)
	d.r.record("get_positions_result", []any{hash}, err)
	return out, err
}

func (d *Decorator) GetCash(ctx context.Context, hash string) (decimal.Decimal, error) {
	out, err := d.inner.GetCash(ctx, hash)
	d.r.record("get_cash", []any{hash}, err)
	return out, err
}

func (d *Decorator) GetAccountResult(ctx context.Context, hash string) (decimal.Decimal, decimal.Decimal, error) {
	cash, total, err := d.inner.GetAccountResult(ctx, hash)
	d.r.record("get_account_result", []any{hash}, err)
	return cash, total, err
}

func (d *Decorator) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	price, ok, err := d.inner.GetLastPrice(ctx, symbol)
	d.r.record("get_last_price", []any{symbol}, err)
	return price, ok, err
}

func (d *Decorator) PlaceLimitBuy(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	out, err := d.inner.PlaceLimitBuy(ctx, hash, symbol, qty, price)
	d.r.record("place_limit_buy", []any{hash, symbol, qty, price.String()}, err)
	return out, err
}

func (d *Decorator) PlaceLimitSell(ctx context.Context, hash, symbol string, qty int64, price decimal.Decimal) (*broker.Order, error) {
	out, err := d.inner.PlaceLimitSell(ctx, hash, symbol, qty, price)
	d.r.record("place_limit_sell", []any{hash, symbol, qty, price.String()}, err)
	return out, err
}

func (d *Decorator) PlaceMarketSell(ctx context.Context, hash, symbol string, qty int64) (*broker.Order, error) {
	out, err := d.inner.PlaceMarketSell(ctx, hash, symbol, qty)
	d.r.record("place_market_sell", []any{hash, symbol, qty}, err)
	return out, err
}

func (d *Decorator) SellSweepETFsForCash(ctx context.Context, hash string, shortfall decimal.Decimal, positions map[string]int64) (*broker.Order, error) {
	out, err := d.inner.SellSweepETFsForCash(ctx, hash, shortfall, positions)
	d.r.record("sell_sweep_etfs_for_cash", []any{hash, shortfall.String()}, err)
	return out, err
}

var _ broker.Adapter = (*Decorator)(nil)
