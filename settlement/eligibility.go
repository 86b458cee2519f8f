/*
eligibility.go - Selection of unsettled work and adjustments

PURPOSE:
  Given a worker and a billing period, returns exactly the records the next
  remittance may pay: segments dated within the inclusive period and the
  worker's adjustments (globally, since an adjustment may predate any work),
  in both cases only those whose claim is absent or released.

THE ONE RULE:
  A record is eligible iff it was never claimed, or its claiming remittance is
  now FAILED or CANCELLED. A record claimed by a PAID remittance is excluded
  forever; one claimed by a still-PENDING remittance is excluded until that
  remittance resolves. This single rule, applied uniformly to segments and
  adjustments, is what makes the engine safe against double payment,
  reconciles failed runs, and lets segments appended to an already-settled
  worklog flow into the next run untouched by prior payment.
*/
package settlement

import "context"

// EligibleSet is the output of selection: everything one settlement run may
// claim for one worker.
type EligibleSet struct {
	WorkerID    WorkerID
	Period      Period
	Segments    []TimeSegment
	Adjustments []Adjustment
}

// Empty reports whether there is nothing to settle.
func (s EligibleSet) Empty() bool {
	return len(s.Segments) == 0 && len(s.Adjustments) == 0
}

// Selector finds the unsettled records for a worker and period.
// The claim-state filtering itself lives in the store queries so that
// selection and the subsequent conditional claim see the same predicate.
type Selector struct {
	Store Store
}

// Select returns the worker's eligible segments and adjustments for the
// period. The period must already be validated.
func (sel *Selector) Select(ctx context.Context, worker WorkerID, period Period) (EligibleSet, error) {
	segments, err := sel.Store.UnsettledSegments(ctx, worker, period)
	if err != nil {
		return EligibleSet{}, err
	}

	adjustments, err := sel.Store.UnsettledAdjustments(ctx, worker)
	if err != nil {
		return EligibleSet{}, err
	}

	return EligibleSet{
		WorkerID:    worker,
		Period:      period,
		Segments:    segments,
		Adjustments: adjustments,
	}, nil
}
