/*
netpolicy.go - Net amount computation and the payability decision

PURPOSE:
  Computes net = sum(segment gross) + sum(additions) - sum(deductions) for a
  selected set, and decides whether the run should produce a remittance.

ZERO/NEGATIVE NET:
  A remittance represents money to be disbursed. When net <= 0 there is
  nothing to disburse, so no remittance is created and none of the selected
  records are claimed; they remain eligible and are reconsidered together
  with any new work on the next run. Once enough positive work accrues, the
  carried-forward balance settles naturally.

  NetPolicy is an interface so a future "worker owes" workflow can replace
  the carry-forward behavior without touching the orchestrator.
*/
package settlement

import "github.com/shopspring/decimal"

// NetResult is the evaluated outcome for one worker's selected set.
type NetResult struct {
	Gross      decimal.Decimal // sum of segment amounts
	Additions  decimal.Decimal
	Deductions decimal.Decimal
	Net        decimal.Decimal

	// Payable is true when the run should materialize a remittance.
	Payable bool
}

// Adjustments returns the signed adjustment total (additions - deductions).
func (r NetResult) Adjustments() decimal.Decimal {
	return r.Additions.Sub(r.Deductions)
}

// NetPolicy decides whether a computed net produces a payable remittance.
type NetPolicy interface {
	Evaluate(set EligibleSet) NetResult
}

// CarryForward is the default policy: pay iff net > 0, otherwise leave every
// selected record unclaimed to be reconsidered next run. Implementations must
// never create a negative-amount remittance.
type CarryForward struct{}

func (CarryForward) Evaluate(set EligibleSet) NetResult {
	gross := decimal.Zero
	for _, seg := range set.Segments {
		gross = gross.Add(seg.Gross())
	}

	additions := decimal.Zero
	deductions := decimal.Zero
	for _, adj := range set.Adjustments {
		switch adj.Type {
		case AdjustmentDeduction:
			deductions = deductions.Add(adj.Amount)
		default:
			additions = additions.Add(adj.Amount)
		}
	}

	net := gross.Add(additions).Sub(deductions)

	return NetResult{
		Gross:      gross,
		Additions:  additions,
		Deductions: deductions,
		Net:        net,
		Payable:    net.IsPositive(),
	}
}
