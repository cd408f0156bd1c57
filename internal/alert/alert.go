// Package alert defines the Alerter interface: emits transactional
// trade notifications and fatal alerts. smtp.go provides a concrete
// email implementation.
package alert

import "context"

// Alerter is consumed by the session runner to surface trade successes
// and fatal conditions to an operator.
type Alerter interface {
	// Trade sends a transactional notification for a successful BUY/SELL.
	Trade(ctx context.Context, subject, message string) error

	// Fatal sends a fatal alert with context; the session aborts after
	// this call returns.
	Fatal(ctx context.Context, subject, message string) error
}
