// Package clock provides a time source that can be swapped for a frozen
// one in tests, so market-hours checks, periodic-rule scheduling, and
// end-of-day snapshots are deterministic in tests.
package clock

import "time"

// Clock returns the current time, optionally in a specific location.
type Clock interface {
	Now() time.Time
	In(loc *time.Location) time.Time
}

// Real is the production clock backed by time.Now.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) In(loc *time.Location) time.Time { return time.Now().In(loc) }

// Frozen is a test clock fixed at a single instant until explicitly
// advanced or reset.
type Frozen struct {
	t time.Time
}

// NewFrozen returns a Frozen clock fixed at t.
func NewFrozen(t time.Time) *Frozen {
	return &Frozen{t: t}
}

func (f *Frozen) Now() time.Time { return f.t }

func (f *Frozen) In(loc *time.Location) time.Time { return f.t.In(loc) }

// Set moves the frozen clock to a new instant.
func (f *Frozen) Set(t time.Time) { f.t = t }

// Advance moves the frozen clock forward by d.
func (f *Frozen) Advance(d time.Duration) { f.t = f.t.Add(d) }
