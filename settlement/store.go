/*
store.go - Persistence interface for settlement records

PURPOSE:
  Defines the interface between the engine and the database. The engine only
  requires a transactional read/query/write capability: eligibility reads with
  claim-state filtering, and two atomic write operations (claim-and-create,
  conditional status transition). Different implementations can use SQLite,
  PostgreSQL, or in-memory storage.

ATOMICITY CONTRACT:
  CreateRemittance is the single point where selection becomes ownership.
  It must be indivisible with respect to any concurrent settlement attempt:
  either the remittance, all its lines, and every source record's claim
  reference are written together, or nothing is. A source record that is no
  longer unclaimed at write time fails the whole operation with a
  ClaimConflictError.

  TransitionRemittance must atomically combine the conditional status update
  (only from PENDING) with the claim release that FAILED/CANCELLED require.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:     Production SQLite
  - settlement/store/memory.go: In-memory for testing

SEE ALSO:
  - builder.go:   Uses CreateRemittance
  - lifecycle.go: Uses TransitionRemittance
*/
package settlement

import (
	"context"
	"time"
)

// Store handles persistence of workers, worklogs, work records, remittances,
// and settlement runs.
type Store interface {
	// --- Workers ---

	SaveWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, id WorkerID) (*Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)

	// --- WorkLogs ---

	SaveWorkLog(ctx context.Context, wl WorkLog) error
	GetWorkLog(ctx context.Context, id WorkLogID) (*WorkLog, error)

	// LoadWorkLogDetails returns every worklog with its segments, linked
	// adjustments, and the current status of each segment's claiming
	// remittance. The listing service derives REMITTED/UNREMITTED from this.
	LoadWorkLogDetails(ctx context.Context) ([]WorkLogDetail, error)

	// --- Segments and adjustments ---

	SaveSegment(ctx context.Context, s TimeSegment) error
	SaveAdjustment(ctx context.Context, a Adjustment) error
	SegmentsByWorkLog(ctx context.Context, id WorkLogID) ([]TimeSegment, error)

	// --- Eligibility reads ---

	// UnsettledSegments returns the worker's live (non-deleted) segments dated
	// within the inclusive period whose claim is absent or released. A segment
	// claimed by a PENDING or PAID remittance never appears.
	UnsettledSegments(ctx context.Context, worker WorkerID, period Period) ([]TimeSegment, error)

	// UnsettledAdjustments returns the worker's unclaimed adjustments.
	// Adjustments are not period-bounded: one may predate any work.
	UnsettledAdjustments(ctx context.Context, worker WorkerID) ([]Adjustment, error)

	// WorkersWithUnsettledWork returns the distinct workers that have at least
	// one unsettled segment in the period or one unsettled adjustment.
	// Workers with no worklogs at all never appear.
	WorkersWithUnsettledWork(ctx context.Context, period Period) ([]WorkerID, error)

	// --- Remittances ---

	// CreateRemittance atomically writes the remittance, its lines, and the
	// claim reference on every source record. Fails with ClaimConflictError
	// (writing nothing) if any source record is no longer unclaimed.
	CreateRemittance(ctx context.Context, r Remittance, lines []RemittanceLine) error

	GetRemittance(ctx context.Context, id RemittanceID) (*Remittance, error)
	RemittanceLines(ctx context.Context, id RemittanceID) ([]RemittanceLine, error)
	RemittancesBySettlement(ctx context.Context, id SettlementID) ([]Remittance, error)

	// ListRemittancesByStatus returns remittances in the given status,
	// oldest first. Used by the pending-expiry sweep.
	ListRemittancesByStatus(ctx context.Context, status RemittanceStatus) ([]Remittance, error)

	// TransitionRemittance atomically moves a PENDING remittance to the given
	// terminal status. For FAILED/CANCELLED it also clears every line's source
	// claim reference; for PAID it stamps paidAt. A remittance already in a
	// terminal status fails with InvalidTransitionError, state unchanged.
	TransitionRemittance(ctx context.Context, id RemittanceID, to RemittanceStatus, at time.Time) error

	// --- Settlements ---

	SaveSettlement(ctx context.Context, s Settlement) error
	ListSettlements(ctx context.Context) ([]Settlement, error)

	// Reset wipes all records. Dev and scenario tooling only.
	Reset(ctx context.Context) error
}

// WorkLogDetail carries everything the listing service needs to classify one
// worklog: its live segments, its linked adjustments, and for each claimed
// segment the status of the claiming remittance.
type WorkLogDetail struct {
	WorkLog     WorkLog
	Segments    []TimeSegment
	Adjustments []Adjustment

	// ClaimStatus maps a claimed segment to its remittance's current status.
	// Unclaimed segments have no entry.
	ClaimStatus map[SegmentID]RemittanceStatus
}
