/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers use errors.Is / errors.As against the sentinels and structured
  types below.

ERROR CATEGORIES:
  1. Validation errors  - Bad periods, unknown outcomes
  2. Lifecycle errors   - Illegal remittance transitions
  3. Claim errors       - Concurrent claims on the same source record

RECOVERY:
  Storage failures are surfaced to the caller unmodified; the engine performs
  no implicit retries. Re-running a whole settlement run is always safe (the
  second run finds nothing left to claim), and is the prescribed recovery path.
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidTransition is returned when a lifecycle transition is attempted
	// from a terminal remittance status. The remittance state is unchanged.
	ErrInvalidTransition = errors.New("invalid remittance transition")

	// ErrInvalidOutcome is returned when a reported payment outcome is not one
	// of PAID, FAILED, CANCELLED.
	ErrInvalidOutcome = errors.New("invalid payment outcome")

	// ErrClaimConflict is returned when a concurrent settlement attempt already
	// claimed one of the selected records. The losing attempt must re-run
	// selection from scratch; it must never partially retry or silently skip
	// the conflicting record.
	ErrClaimConflict = errors.New("source record already claimed")

	// ErrRemittanceNotFound is returned when a referenced remittance doesn't exist.
	ErrRemittanceNotFound = errors.New("remittance not found")

	// ErrWorkerNotFound is returned when a referenced worker doesn't exist.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrWorkLogNotFound is returned when a referenced worklog doesn't exist.
	ErrWorkLogNotFound = errors.New("worklog not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports an illegal remittance state change.
type InvalidTransitionError struct {
	RemittanceID RemittanceID
	From         RemittanceStatus
	To           RemittanceStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("remittance %s: cannot transition %s -> %s", e.RemittanceID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ClaimConflictError identifies the record a concurrent run claimed first.
type ClaimConflictError struct {
	SourceType SourceType
	SourceID   string
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("claim conflict: %s %s already claimed by a live remittance", e.SourceType, e.SourceID)
}

func (e *ClaimConflictError) Unwrap() error { return ErrClaimConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-running the settlement from selection might
// succeed. Claim conflicts are the only retryable condition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrClaimConflict)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidOutcome) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRemittanceNotFound) ||
		errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrWorkLogNotFound)
}
