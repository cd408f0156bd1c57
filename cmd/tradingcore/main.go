// Command tradingcore runs one rule-driven trading session (or, with
// --daemon, a cron-scheduled series of them) for a single market.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/autotrader/tradingcore/internal/alert"
	"github.com/autotrader/tradingcore/internal/broker"
	"github.com/autotrader/tradingcore/internal/broker/kr"
	"github.com/autotrader/tradingcore/internal/broker/us"
	"github.com/autotrader/tradingcore/internal/clock"
	"github.com/autotrader/tradingcore/internal/config"
	"github.com/autotrader/tradingcore/internal/money"
	"github.com/autotrader/tradingcore/internal/recorder"
	"github.com/autotrader/tradingcore/internal/schedule"
	"github.com/autotrader/tradingcore/internal/session"
	"github.com/autotrader/tradingcore/internal/store/mysql"
)

func main() {
	var (
		marketFlag string
		noRecord   bool
		daemon     bool
	)

	root := &cobra.Command{
		Use:   "tradingcore",
		Short: "Run the rule-driven trading core for one market",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), marketFlag, noRecord, daemon)
		},
	}
	root.Flags().StringVar(&marketFlag, "market", "us", `market to trade: "us" or "kr"`)
	root.Flags().BoolVar(&noRecord, "no-record", false, "disable the JSONL broker-call shadow log")
	root.Flags().BoolVar(&daemon, "daemon", false, "run as a cron-scheduled daemon instead of a single session")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, marketFlag string, noRecord, daemon bool) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(marketFlag); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	market := money.US
	if marketFlag == "kr" {
		market = money.KR
	}

	st, err := mysql.New(cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("connect to rule store: %w", err)
	}
	defer st.Close()

	var rec *recorder.Recorder
	if !noRecord {
		rec, err = recorder.New(cfg.RecordPath, log)
		if err != nil {
			return fmt.Errorf("open recorder: %w", err)
		}
		defer rec.Close()
	}

	var ad broker.Adapter
	if market == money.KR {
		ad = kr.New(cfg.UserID, cfg.KIS)
	} else {
		ad = us.New(cfg.UserID, cfg.Schwab)
	}
	ad = recorder.Wrap(ad, rec)

	var alerter alert.Alerter
	if cfg.AlertFromEmail != "" {
		alerter = alert.NewSMTPAlerter(cfg.AlertFromEmail, cfg.AlertFromPassword, cfg.AlertToEmails)
	} else {
		alerter = noopAlerter{}
	}

	runner, err := session.New(
		session.DefaultConfig(market),
		st,
		map[string]broker.Adapter{cfg.UserID: ad},
		alerter,
		clock.Real{},
		log,
	)
	if err != nil {
		return fmt.Errorf("build session runner: %w", err)
	}

	if daemon {
		d := schedule.New(log)
		if _, err := d.AddSession(cfg.DaemonCronSpec, runner.Run); err != nil {
			return fmt.Errorf("schedule daemon session: %w", err)
		}
		d.Start()
		<-ctx.Done()
		d.Stop()
		return nil
	}

	return runner.Run(ctx)
}

// noopAlerter is used when no SMTP credentials are configured; trade
// and fatal alerts are discarded without being sent or logged.
type noopAlerter struct{}

func (noopAlerter) Trade(ctx context.Context, subject, message string) error { return nil }
func (noopAlerter) Fatal(ctx context.Context, subject, message string) error { return nil }
