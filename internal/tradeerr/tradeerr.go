// Package tradeerr classifies errors by severity so the
// session runner can dispatch on kind instead of matching strings.
package tradeerr

import (
	"errors"

	"github.com/rs/zerolog"
)

// Kind is the ascending-severity error classification.
type Kind int

const (
	// Transient: quote nil/timeout, positions-fetch timeout, order
	// rejection. Logged, current rule/pass skipped, loop continues.
	Transient Kind = iota
	// Validation: Safety Guard per-order failure. Logged at Error (see
	// Log), current order blocked, loop continues. No setting turns it
	// into a hard fail.
	Validation
	// DataAnomaly: rule references an account-hash absent from cache.
	// Rule skipped, logged at ERROR.
	DataAnomaly
	// Fatal: pre-session integrity failure, unrecoverable broker auth,
	// Rule Store unreachable after retries, unhandled top-level panic.
	// Process alerts and exits 1; no partial snapshot is written.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Validation:
		return "validation"
	case DataAnomaly:
		return "data_anomaly"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a severity Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// Log writes err to log at the level its Kind implies:
// Transient at Warn, DataAnomaly at Error, Validation at Error
// (zerolog has no tier above Error short of Fatal, which
// would exit the process), Fatal at Error too since the caller still
// owns aborting the session and sending the alert.
func Log(log zerolog.Logger, kind Kind, err error, msg string) {
	evt := log.Warn()
	switch kind {
	case Validation, DataAnomaly, Fatal:
		evt = log.Error()
	}
	evt.Err(err).Str("kind", kind.String()).Msg(msg)
}
