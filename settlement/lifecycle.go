/*
lifecycle.go - Remittance status transitions

PURPOSE:
  Applies payment outcomes reported by the external payment processor.
  State machine per remittance:

    PENDING -> PAID       (terminal; claims become permanent)
    PENDING -> FAILED     (terminal; claims released)
    PENDING -> CANCELLED  (terminal; claims released)

  No other transition is legal. FAILED and CANCELLED behave identically:
  both mean the disbursement did not happen, so every linked source record's
  claim reference is cleared and the records become eligible again on the
  very next qualifying run.

TIMING:
  Outcomes arrive asynchronously; there is no deadline on how long a
  remittance may stay PENDING inside the engine. The scheduler's expiry sweep
  cancels remittances that overstay a configured dwell time (see
  api/scheduler.go).
*/
package settlement

import (
	"context"
	"time"
)

// Lifecycle applies payment outcomes to remittances.
type Lifecycle struct {
	Store Store

	// Clock is replaceable for tests. Defaults to time.Now.
	Clock func() time.Time
}

func (l *Lifecycle) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// Report applies a payment outcome to a remittance. The outcome must be one
// of PAID, FAILED, CANCELLED. A remittance already in a terminal status is
// rejected with InvalidTransitionError and left unchanged.
func (l *Lifecycle) Report(ctx context.Context, id RemittanceID, outcome RemittanceStatus) error {
	if !outcome.Terminal() {
		return ErrInvalidOutcome
	}

	current, err := l.Store.GetRemittance(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrRemittanceNotFound
	}
	if !current.Status.CanTransitionTo(outcome) {
		return &InvalidTransitionError{RemittanceID: id, From: current.Status, To: outcome}
	}

	// The store re-checks the PENDING precondition under its own transaction,
	// so a concurrent Report cannot apply two outcomes to one remittance.
	return l.Store.TransitionRemittance(ctx, id, outcome, l.now())
}
