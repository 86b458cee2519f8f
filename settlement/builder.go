/*
builder.go - Atomic remittance materialization

PURPOSE:
  Turns a payable NetResult into a persisted PENDING remittance: one line per
  selected segment (amount = gross, type SEGMENT) and per selected adjustment
  (signed amount, type ADJUSTMENT), with every source record's claim reference
  set to the new lines in the same atomic operation.

CONCURRENCY:
  The selection-then-claim must be indivisible with respect to any concurrent
  settlement attempt for the same worker. The store's CreateRemittance
  enforces this with conditional claims: if another run claimed any selected
  record first, nothing is written and the caller gets ErrClaimConflict. The
  correct reaction is to re-run selection from scratch, never to retry with
  the conflicting record dropped.
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Builder creates remittances and their line items.
type Builder struct {
	Store Store

	// Clock is replaceable for tests. Defaults to time.Now.
	Clock func() time.Time
}

func (b *Builder) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}

// Build materializes a remittance for the selected set. The result must be
// payable; callers decide payability via the net policy before building.
func (b *Builder) Build(ctx context.Context, settlementID SettlementID, set EligibleSet, result NetResult) (*Remittance, error) {
	if !result.Payable {
		return nil, fmt.Errorf("cannot build remittance for non-payable net %s", result.Net)
	}

	remittance := Remittance{
		ID:                RemittanceID(uuid.NewString()),
		SettlementID:      settlementID,
		WorkerID:          set.WorkerID,
		Period:            set.Period,
		GrossAmount:       result.Gross,
		AdjustmentsAmount: result.Adjustments(),
		NetAmount:         result.Net,
		Status:            RemittancePending,
		CreatedAt:         b.now(),
	}

	lines := make([]RemittanceLine, 0, len(set.Segments)+len(set.Adjustments))
	for _, seg := range set.Segments {
		lines = append(lines, RemittanceLine{
			ID:           RemittanceLineID(uuid.NewString()),
			RemittanceID: remittance.ID,
			SourceType:   SourceSegment,
			SourceID:     string(seg.ID),
			Amount:       seg.Gross(),
			Position:     len(lines),
		})
	}
	for _, adj := range set.Adjustments {
		lines = append(lines, RemittanceLine{
			ID:           RemittanceLineID(uuid.NewString()),
			RemittanceID: remittance.ID,
			SourceType:   SourceAdjustment,
			SourceID:     string(adj.ID),
			Amount:       adj.Signed(),
			Position:     len(lines),
		})
	}

	if err := b.Store.CreateRemittance(ctx, remittance, lines); err != nil {
		return nil, err
	}

	return &remittance, nil
}
