/*
Package settlement provides the core worklog settlement engine.

PURPOSE:
  This package contains the types and algorithms for settling a worker's
  recorded work and balance adjustments into payable remittances. The engine
  selects exactly the unsettled work for a billing period, computes a net
  payable amount, atomically materializes a remittance with its line items,
  and reacts to payment outcomes by releasing or permanently locking the
  underlying records.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeSegment: One unit of performed work (hours x rate on a date)
  - Adjustment: A manual ADDITION or DEDUCTION for a worker
  - Remittance/RemittanceLine: A payable amount and the records it claims
  - Settlement: The record of one orchestration run over a period

DESIGN PRINCIPLES:
  1. Claim references: Eligibility is derived from the claiming remittance's
     current status, never from a separately-maintained flag that can drift.
  2. Precision: Uses decimal.Decimal to avoid floating-point errors on money.
  3. Type Safety: Strong typing for IDs prevents mixing worker/worklog IDs.
  4. Immutability: Segments and adjustments never change once created; the
     claim reference is the only mutable field.

SEE ALSO:
  - eligibility.go: Selection of unsettled records
  - builder.go:     Atomic remittance creation
  - lifecycle.go:   Payment outcome handling
  - orchestrator.go: Per-worker settlement runs
*/
package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type WorkLogID string
type SegmentID string
type AdjustmentID string
type RemittanceID string
type RemittanceLineID string
type SettlementID string

// MustDecimal parses a decimal string, returning zero on failure.
// Intended for literals in tests and seed data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// WORKERS AND WORKLOGS
// =============================================================================

// Worker is the party being paid. Identity is opaque to the engine.
type Worker struct {
	ID        WorkerID
	Name      string
	Email     string
	CreatedAt time.Time
}

// WorkLog groups work for one worker under one task identifier. Its lifecycle
// spans arbitrarily many settlement runs: segments may be appended after some
// of its earlier segments have already been paid.
type WorkLog struct {
	ID             WorkLogID
	WorkerID       WorkerID
	TaskIdentifier string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// TIME SEGMENTS - Units of performed work
// =============================================================================

// TimeSegment is one unit of performed work. Immutable once created; the
// remittance-line reference is the only mutable field, and only transitions
// from absent -> set -> (on payment failure) absent again.
type TimeSegment struct {
	ID          SegmentID
	WorkLogID   WorkLogID
	HoursWorked decimal.Decimal
	HourlyRate  decimal.Decimal
	SegmentDate Date
	Notes       string

	// RemittanceLineID links to the line that has claimed this segment.
	// Nil means unclaimed.
	RemittanceLineID *RemittanceLineID

	// DeletedAt marks a soft-deleted (disputed/removed) segment. Deleted
	// segments never enter settlement and are excluded from listing totals.
	DeletedAt *time.Time

	CreatedAt time.Time
}

// Gross returns the pre-computed payable amount for this segment.
func (s TimeSegment) Gross() decimal.Decimal {
	return s.HoursWorked.Mul(s.HourlyRate)
}

// Deleted reports whether the segment has been soft-deleted.
func (s TimeSegment) Deleted() bool { return s.DeletedAt != nil }

// Claimed reports whether the segment is currently linked to a remittance line.
func (s TimeSegment) Claimed() bool { return s.RemittanceLineID != nil }

// =============================================================================
// ADJUSTMENTS - Manual additions and deductions
// =============================================================================

type AdjustmentType string

const (
	AdjustmentAddition  AdjustmentType = "ADDITION"
	AdjustmentDeduction AdjustmentType = "DEDUCTION"
)

// Adjustment is a manual correction to a worker's payable balance. Amount is
// always positive; the sign comes from Type. Adjustments are not bounded to a
// period: a retroactive deduction may predate any work in the current run.
type Adjustment struct {
	ID       AdjustmentID
	WorkerID WorkerID

	// WorkLogID optionally ties the adjustment to the worklog it concerns
	// (e.g. a quality deduction on already-paid work).
	WorkLogID *WorkLogID

	Type   AdjustmentType
	Amount decimal.Decimal
	Reason string

	// Same claim lifecycle as TimeSegment.RemittanceLineID.
	RemittanceLineID *RemittanceLineID

	CreatedAt time.Time
}

// Signed returns the amount with the sign implied by the adjustment type.
func (a Adjustment) Signed() decimal.Decimal {
	if a.Type == AdjustmentDeduction {
		return a.Amount.Neg()
	}
	return a.Amount
}

// Claimed reports whether the adjustment is currently linked to a remittance line.
func (a Adjustment) Claimed() bool { return a.RemittanceLineID != nil }

// =============================================================================
// REMITTANCES - Payable amounts and their line items
// =============================================================================

type RemittanceStatus string

const (
	RemittancePending   RemittanceStatus = "PENDING"
	RemittancePaid      RemittanceStatus = "PAID"
	RemittanceFailed    RemittanceStatus = "FAILED"
	RemittanceCancelled RemittanceStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions.
func (s RemittanceStatus) Terminal() bool {
	return s == RemittancePaid || s == RemittanceFailed || s == RemittanceCancelled
}

// ReleasesClaims reports whether entering this status frees the claimed
// source records for the next settlement run. FAILED and CANCELLED behave
// identically: both are reasons a disbursement did not happen.
func (s RemittanceStatus) ReleasesClaims() bool {
	return s == RemittanceFailed || s == RemittanceCancelled
}

// CanTransitionTo reports whether the state machine permits moving from s to
// the target status. Only PENDING -> {PAID, FAILED, CANCELLED} is legal.
func (s RemittanceStatus) CanTransitionTo(to RemittanceStatus) bool {
	return s == RemittancePending && to.Terminal()
}

// Remittance is one payable amount for one worker produced by one settlement
// run. It owns an ordered sequence of RemittanceLines whose signed amounts
// always sum to NetAmount.
type Remittance struct {
	ID           RemittanceID
	SettlementID SettlementID
	WorkerID     WorkerID
	Period       Period

	GrossAmount       decimal.Decimal // sum of segment amounts
	AdjustmentsAmount decimal.Decimal // signed sum of adjustment amounts
	NetAmount         decimal.Decimal // gross + adjustments, always > 0

	Status    RemittanceStatus
	CreatedAt time.Time
	PaidAt    *time.Time
}

type SourceType string

const (
	SourceSegment    SourceType = "SEGMENT"
	SourceAdjustment SourceType = "ADJUSTMENT"
)

// RemittanceLine claims exactly one TimeSegment or Adjustment for its parent
// remittance. Amount is signed (negative for deductions).
type RemittanceLine struct {
	ID           RemittanceLineID
	RemittanceID RemittanceID
	SourceType   SourceType
	SourceID     string
	Amount       decimal.Decimal
	Position     int
}

// =============================================================================
// SETTLEMENTS - Orchestration run records
// =============================================================================

type SettlementStatus string

const (
	SettlementCompleted SettlementStatus = "COMPLETED"
	SettlementFailed    SettlementStatus = "FAILED"
)

// Settlement records one orchestration run over a period.
// TotalRemittancesGenerated counts only remittances with positive net;
// workers whose net was zero or negative are silent no-ops.
type Settlement struct {
	ID                        SettlementID
	Period                    Period
	Status                    SettlementStatus
	TotalRemittancesGenerated int
	TotalAmount               decimal.Decimal // net amount disbursed this run
	RunAt                     time.Time
}

// =============================================================================
// WORKLOG LISTING - Reporting view over worklogs
// =============================================================================

type WorkLogFilter string

const (
	FilterAll        WorkLogFilter = "ALL"
	FilterRemitted   WorkLogFilter = "REMITTED"
	FilterUnremitted WorkLogFilter = "UNREMITTED"
)

// WorkLogListing is the reporting view of a worklog. TotalAmount is the full
// amount across all live segments plus linked adjustments, never merely the
// unpaid remainder. Remitted is true only when every live segment is claimed
// by a PAID remittance; a worklog with zero segments is unremitted.
type WorkLogListing struct {
	WorkLog     WorkLog
	TotalAmount decimal.Decimal
	Remitted    bool
}
