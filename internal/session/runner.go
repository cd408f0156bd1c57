// Package session implements the Daily Session Runner, the orchestrator
// that drives one trading day end to end: bootstrap, pre-flight
// integrity check, the poll loop, and the end-of-day snapshot. It wires
// the Rule Store, Broker Adapter, Trade Calculator, Safety Guard, and
// Reconciler together.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/autotrader/tradingcore/internal/alert"
	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/clock"
	"github.com/autotrader/tradingcore/internal/model"
	"github.com/autotrader/tradingcore/internal/money"
	"github.com/autotrader/tradingcore/internal/store"
)

// Config bundles the Runner's tunables, kept explicit rather than
// scattered literals.
type Config struct {
	Market        money.Market
	PollInterval  time.Duration
	RetryAttempts uint64
	RetryInterval time.Duration
}

// DefaultConfig returns the production defaults: 1s poll, and up to 3
// retries after the first try, with exponential backoff starting at 2s,
// for the session-start position fetch.
func DefaultConfig(market money.Market) Config {
	return Config{
		Market:        market,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryInterval: 2 * time.Second,
	}
}

// Runner owns one trading day for every user configured for its
// market. It holds no cross-session state: the position cache is
// rebuilt at Bootstrap and discarded when Run returns.
type Runner struct {
	cfg     Config
	store   store.Store
	brokers map[string]broker.Adapter // userID -> per-user adapter
	alerter alert.Alerter
	clock   clock.Clock
	log     zerolog.Logger
	cache   *model.PositionCache
	loc     *time.Location

	// hashByAccount is populated during preflight and consumed by the
	// poll loop within the same Run call.
	hashByAccount map[uint64]string
}

func marketLocation(market money.Market) (*time.Location, error) {
	name := "America/New_York"
	if market == money.KR {
		name = "Asia/Seoul"
	}
	return time.LoadLocation(name)
}

// New builds a Runner. brokers must have one entry per user ID the
// Rule Store returns from GetUsers; the session runner never
// constructs an Adapter itself (no shared mutable
// singletons; adapters are supplied, not discovered).
func New(cfg Config, st store.Store, brokers map[string]broker.Adapter, alerter alert.Alerter, clk clock.Clock, log zerolog.Logger) (*Runner, error) {
	loc, err := marketLocation(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("load market location: %w", err)
	}
	return &Runner{
		cfg:           cfg,
		store:         st,
		brokers:       brokers,
		alerter:       alerter,
		clock:         clk,
		log:           log.With().Str("market", string(cfg.Market)).Logger(),
		cache:         model.NewPositionCache(),
		loc:           loc,
		hashByAccount: make(map[uint64]string),
	}, nil
}

// Run executes exactly one trading session: bootstrap, pre-flight,
// poll loop until ctx is cancelled or the market closes, then the
// end-of-day snapshot. A fatal error aborts immediately without
// writing a partial snapshot.
func (r *Runner) Run(ctx context.Context) error {
	r.cache = model.NewPositionCache()
	r.hashByAccount = make(map[uint64]string)

	users, err := r.store.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: list users: %w", err)
	}

	for _, userID := range users {
		log := r.log.With().Str("user_id", userID).Logger()
		ad, ok := r.brokers[userID]
		if !ok {
			log.Error().Msg("no broker adapter configured for user, skipping")
			continue
		}

		if err := r.bootstrap(ctx, userID, ad, log); err != nil {
			log.Error().Err(err).Msg("bootstrap failed, skipping user for this session")
			continue
		}

		if err := r.preflight(ctx, userID, ad, log); err != nil {
			if err2 := r.alerter.Fatal(ctx, "pre-flight integrity failure", fmt.Sprintf("user %s: %v", userID, err)); err2 != nil {
				log.Error().Err(err2).Msg("failed to send fatal alert")
			}
			return fmt.Errorf("preflight for user %s: %w", userID, err)
		}
	}

	if err := r.pollUntilClose(ctx, users); err != nil {
		return err
	}

	for _, userID := range users {
		ad, ok := r.brokers[userID]
		if !ok {
			continue
		}
		log := r.log.With().Str("user_id", userID).Logger()
		if err := r.endOfDay(ctx, userID, ad, log); err != nil {
			log.Error().Err(err).Msg("end-of-day snapshot failed")
		}
	}

	return nil
}
