/*
lifecycle_test.go - Remittance payment lifecycle transitions
*/
package settlement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/settlement/store"
)

func newPendingRemittance(t *testing.T, mem *store.Memory) settlement.Remittance {
	t.Helper()
	ctx := context.Background()

	orch := settlement.NewOrchestrator(mem)
	worker := seedWorker(t, mem, "w1")
	wl := seedWorkLog(t, mem, "wl1", worker)
	seedSegment(t, mem, "s1", wl, "8", "50", "2025-07-03")

	run, err := orch.Run(ctx, july(t))
	require.NoError(t, err)
	remittances := remittancesOf(t, mem, run)
	require.Len(t, remittances, 1)
	return remittances[0]
}

func TestLifecycle_PendingToPaid(t *testing.T) {
	// GIVEN: A PENDING remittance
	// WHEN: PAID is reported
	// THEN: Status becomes PAID with a paid_at stamp; claims stay in place

	mem := store.NewMemory()
	rem := newPendingRemittance(t, mem)
	ctx := context.Background()

	lifecycle := &settlement.Lifecycle{Store: mem}
	require.NoError(t, lifecycle.Report(ctx, rem.ID, settlement.RemittancePaid))

	paid, err := mem.GetRemittance(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.RemittancePaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	segments, err := mem.SegmentsByWorkLog(ctx, "wl1")
	require.NoError(t, err)
	assert.True(t, segments[0].Claimed(), "PAID must keep the claim permanently")
}

func TestLifecycle_PendingToFailed_ReleasesClaims(t *testing.T) {
	// GIVEN: A PENDING remittance
	// WHEN: FAILED is reported
	// THEN: The claimed sources are released in the same operation

	mem := store.NewMemory()
	rem := newPendingRemittance(t, mem)
	ctx := context.Background()

	lifecycle := &settlement.Lifecycle{Store: mem}
	require.NoError(t, lifecycle.Report(ctx, rem.ID, settlement.RemittanceFailed))

	segments, err := mem.SegmentsByWorkLog(ctx, "wl1")
	require.NoError(t, err)
	assert.False(t, segments[0].Claimed(), "FAILED must release claims")

	failed, err := mem.GetRemittance(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.RemittanceFailed, failed.Status)
	assert.Nil(t, failed.PaidAt)
}

func TestLifecycle_TerminalStates_AreFinal(t *testing.T) {
	// GIVEN: A remittance already in each terminal state
	// WHEN: Any further outcome is reported
	// THEN: ErrInvalidTransition with the offending pair; state unchanged

	for _, terminal := range []settlement.RemittanceStatus{
		settlement.RemittancePaid,
		settlement.RemittanceFailed,
		settlement.RemittanceCancelled,
	} {
		t.Run(string(terminal), func(t *testing.T) {
			mem := store.NewMemory()
			rem := newPendingRemittance(t, mem)
			ctx := context.Background()

			lifecycle := &settlement.Lifecycle{Store: mem}
			require.NoError(t, lifecycle.Report(ctx, rem.ID, terminal))

			err := lifecycle.Report(ctx, rem.ID, settlement.RemittancePaid)
			assert.ErrorIs(t, err, settlement.ErrInvalidTransition)

			var transitionErr *settlement.InvalidTransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, terminal, transitionErr.From)
			assert.Equal(t, settlement.RemittancePaid, transitionErr.To)

			after, err := mem.GetRemittance(ctx, rem.ID)
			require.NoError(t, err)
			assert.Equal(t, terminal, after.Status)
		})
	}
}

func TestLifecycle_PendingIsNotAnOutcome(t *testing.T) {
	// GIVEN: A PENDING remittance
	// WHEN: PENDING is reported as the outcome
	// THEN: ErrInvalidOutcome

	mem := store.NewMemory()
	rem := newPendingRemittance(t, mem)

	lifecycle := &settlement.Lifecycle{Store: mem}
	err := lifecycle.Report(context.Background(), rem.ID, settlement.RemittancePending)
	assert.ErrorIs(t, err, settlement.ErrInvalidOutcome)
}

func TestLifecycle_UnknownOutcome(t *testing.T) {
	mem := store.NewMemory()
	rem := newPendingRemittance(t, mem)

	lifecycle := &settlement.Lifecycle{Store: mem}
	err := lifecycle.Report(context.Background(), rem.ID, settlement.RemittanceStatus("SETTLED"))
	assert.ErrorIs(t, err, settlement.ErrInvalidOutcome)
	assert.True(t, settlement.IsClientError(err))
}

func TestLifecycle_UnknownRemittance(t *testing.T) {
	mem := store.NewMemory()

	lifecycle := &settlement.Lifecycle{Store: mem}
	err := lifecycle.Report(context.Background(), "nope", settlement.RemittancePaid)
	assert.ErrorIs(t, err, settlement.ErrRemittanceNotFound)
	assert.True(t, settlement.IsNotFound(err))
}
