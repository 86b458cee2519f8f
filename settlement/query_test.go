/*
query_test.go - WorkLog listing filters, amounts and paging
*/
package settlement_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/settlement/store"
)

func settleAndPay(t *testing.T, mem *store.Memory, period settlement.Period) {
	t.Helper()
	ctx := context.Background()
	orch := settlement.NewOrchestrator(mem)
	run, err := orch.Run(ctx, period)
	require.NoError(t, err)

	lifecycle := &settlement.Lifecycle{Store: mem}
	for _, rem := range remittancesOf(t, mem, run) {
		require.NoError(t, lifecycle.Report(ctx, rem.ID, settlement.RemittancePaid))
	}
}

func TestQuery_FilterSemantics(t *testing.T) {
	// GIVEN: A fully paid worklog, an unsettled one, and an empty one
	// WHEN: Each filter is applied
	// THEN: REMITTED matches only the fully paid log; UNREMITTED the others

	mem := store.NewMemory()
	ctx := context.Background()
	query := &settlement.QueryService{Store: mem}

	worker := seedWorker(t, mem, "w1")
	paidLog := seedWorkLog(t, mem, "wl-paid", worker)
	seedSegment(t, mem, "s1", paidLog, "8", "50", "2025-07-03")
	settleAndPay(t, mem, july(t))

	openLog := seedWorkLog(t, mem, "wl-open", worker)
	seedSegment(t, mem, "s2", openLog, "4", "50", "2025-07-10")

	seedWorkLog(t, mem, "wl-empty", worker)

	all, total, err := query.List(ctx, settlement.FilterAll, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	remitted, total, err := query.List(ctx, settlement.FilterRemitted, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, paidLog, remitted[0].WorkLog.ID)
	assert.True(t, remitted[0].Remitted)

	unremitted, total, err := query.List(ctx, settlement.FilterUnremitted, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, l := range unremitted {
		assert.False(t, l.Remitted)
		assert.NotEqual(t, paidLog, l.WorkLog.ID)
	}
}

func TestQuery_PartiallyPaidWorkLog_IsUnremitted_WithFullAmount(t *testing.T) {
	// GIVEN: Three segments settled and paid, then two more recorded
	// WHEN: The listing is computed
	// THEN: The worklog is UNREMITTED and shows the full five-segment amount

	mem := store.NewMemory()
	ctx := context.Background()
	query := &settlement.QueryService{Store: mem}

	worker := seedWorker(t, mem, "w1")
	wl := seedWorkLog(t, mem, "wl1", worker)
	for i := 1; i <= 3; i++ {
		seedSegment(t, mem, fmt.Sprintf("s%d", i), wl, "4", "45", fmt.Sprintf("2025-07-0%d", i))
	}
	settleAndPay(t, mem, july(t))

	seedSegment(t, mem, "s4", wl, "4", "45", "2025-07-20")
	seedSegment(t, mem, "s5", wl, "3", "45", "2025-07-21")

	listings, _, err := query.List(ctx, settlement.FilterUnremitted, 0, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	// 3*180 + 180 + 135 = full amount across all live segments
	assert.True(t, listings[0].TotalAmount.Equal(settlement.MustDecimal("855")),
		"full amount, not the unpaid remainder; got %s", listings[0].TotalAmount)
	assert.False(t, listings[0].Remitted)

	remitted, _, err := query.List(ctx, settlement.FilterRemitted, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, remitted, "partially paid is not REMITTED")
}

func TestQuery_AmountIncludesLinkedAdjustments(t *testing.T) {
	// GIVEN: Segments worth 430 plus a linked -50 deduction
	// WHEN: The listing is computed
	// THEN: The amount reflects the adjustments too

	mem := store.NewMemory()
	ctx := context.Background()
	query := &settlement.QueryService{Store: mem}

	worker := seedWorker(t, mem, "w1")
	wl := seedWorkLog(t, mem, "wl1", worker)
	seedSegment(t, mem, "s1", wl, "5", "50", "2025-07-03")  // 250
	seedSegment(t, mem, "s2", wl, "4", "45", "2025-07-04")  // 180
	seedAdjustment(t, mem, "a1", worker, &wl, settlement.AdjustmentDeduction, "50")

	listings, _, err := query.List(ctx, settlement.FilterAll, 0, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].TotalAmount.Equal(settlement.MustDecimal("380")))
}

func TestQuery_DeletedSegments_DoNotCount(t *testing.T) {
	// GIVEN: One live and one soft-deleted segment
	// WHEN: The listing is computed and the live one is paid
	// THEN: The amount excludes the deleted one; the log is REMITTED since
	//       every live segment is paid

	mem := store.NewMemory()
	ctx := context.Background()
	query := &settlement.QueryService{Store: mem}

	worker := seedWorker(t, mem, "w1")
	wl := seedWorkLog(t, mem, "wl1", worker)
	seedSegment(t, mem, "live", wl, "8", "50", "2025-07-03")

	deletedAt := time.Now().UTC()
	require.NoError(t, mem.SaveSegment(ctx, settlement.TimeSegment{
		ID:          "ghost",
		WorkLogID:   wl,
		HoursWorked: settlement.MustDecimal("99"),
		HourlyRate:  settlement.MustDecimal("99"),
		SegmentDate: d(t, "2025-07-04"),
		DeletedAt:   &deletedAt,
		CreatedAt:   time.Now().UTC(),
	}))

	settleAndPay(t, mem, july(t))

	listings, _, err := query.List(ctx, settlement.FilterAll, 0, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].TotalAmount.Equal(settlement.MustDecimal("400")))
	assert.True(t, listings[0].Remitted)
}

func TestQuery_EmptyWorkLog_IsUnremitted(t *testing.T) {
	mem := store.NewMemory()
	query := &settlement.QueryService{Store: mem}

	worker := seedWorker(t, mem, "w1")
	seedWorkLog(t, mem, "wl-empty", worker)

	listings, _, err := query.List(context.Background(), settlement.FilterUnremitted, 0, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].TotalAmount.IsZero())
	assert.False(t, listings[0].Remitted)
}

func TestQuery_Paging(t *testing.T) {
	// GIVEN: Seven worklogs
	// WHEN: Pages of three are requested
	// THEN: Count is always the total matches; pages never overlap

	mem := store.NewMemory()
	ctx := context.Background()
	query := &settlement.QueryService{Store: mem}

	worker := seedWorker(t, mem, "w1")
	base := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		wl := settlement.WorkLog{
			ID:             settlement.WorkLogID(fmt.Sprintf("wl-%02d", i)),
			WorkerID:       worker,
			TaskIdentifier: fmt.Sprintf("TASK-%02d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, mem.SaveWorkLog(ctx, wl))
	}

	seen := map[settlement.WorkLogID]bool{}
	for skip := 0; skip < 9; skip += 3 {
		page, total, err := query.List(ctx, settlement.FilterAll, skip, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		for _, l := range page {
			assert.False(t, seen[l.WorkLog.ID], "page overlap at %s", l.WorkLog.ID)
			seen[l.WorkLog.ID] = true
		}
	}
	assert.Len(t, seen, 7)

	// Ordering is stable by creation time.
	page, _, err := query.List(ctx, settlement.FilterAll, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, settlement.WorkLogID("wl-00"), page[0].WorkLog.ID)
	assert.Equal(t, settlement.WorkLogID("wl-01"), page[1].WorkLog.ID)

	// Negative skip behaves as zero.
	page, total, err := query.List(ctx, settlement.FilterAll, -5, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, page, 3)
}
