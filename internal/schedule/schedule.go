// Package schedule wraps a cron scheduler around the session runner so
// the binary can run as a long-lived daemon invoking one session per
// trading day, instead of requiring an external cron entry per
// invocation.
package schedule

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Daemon runs a session func on a cron schedule until Stop is called.
type Daemon struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New builds a Daemon using cron's standard 5-field parser.
func New(log zerolog.Logger) *Daemon {
	return &Daemon{cron: cron.New(), log: log}
}

// AddSession schedules fn (typically a session.Runner.Run call) to
// run at spec (standard cron syntax, e.g. "30 9 * * MON-FRI"). fn
// errors are logged, never panicked: one bad session must not take
// the daemon down.
func (d *Daemon) AddSession(spec string, fn func(ctx context.Context) error) (cron.EntryID, error) {
	return d.cron.AddFunc(spec, func() {
		if err := fn(context.Background()); err != nil {
			d.log.Error().Err(err).Msg("scheduled session failed")
		}
	})
}

// Start begins running scheduled jobs in the background.
func (d *Daemon) Start() { d.cron.Start() }

// Stop halts the scheduler and waits for any running job to finish.
func (d *Daemon) Stop() { <-d.cron.Stop().Done() }
