/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates workers, worklogs,
	segments, and adjustments that demonstrate specific settlement features.

AVAILABLE SCENARIOS:

	happy-path:            Two workers with last-month work, ready to settle
	retroactive-adjustment: Settled month plus a late deduction
	failed-payment-retry:   A FAILED remittance whose work settles again
	partial-worklog:        Worklog with paid and still-unpaid segments
	cross-period:           Segments straddling a period boundary
	deleted-segment:        Soft-deleted segment excluded from settlement

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create workers and worklogs
 3. Record segments and adjustments
 4. Optionally run a settlement and report outcomes

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "failed-payment-retry"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Worker/worklog/segment endpoints
  - settlement/orchestrator.go: The run the scenarios exercise
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "happy-path",
		Name:        "Happy Path",
		Description: "Two workers with unsettled work from last month",
	},
	{
		ID:          "retroactive-adjustment",
		Name:        "Retroactive Adjustment",
		Description: "Already-settled month plus a late deduction awaiting the next run",
	},
	{
		ID:          "failed-payment-retry",
		Name:        "Failed Payment Retry",
		Description: "A FAILED remittance whose work is eligible to settle again",
	},
	{
		ID:          "partial-worklog",
		Name:        "Partial WorkLog",
		Description: "One worklog with both paid and still-unpaid segments",
	},
	{
		ID:          "cross-period",
		Name:        "Cross-Period Segments",
		Description: "Segments on both sides of a period boundary",
	},
	{
		ID:          "deleted-segment",
		Name:        "Deleted Segment",
		Description: "A soft-deleted segment that never settles",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "happy-path":
		err = h.loadHappyPathScenario(ctx)
	case "retroactive-adjustment":
		err = h.loadRetroactiveAdjustmentScenario(ctx)
	case "failed-payment-retry":
		err = h.loadFailedPaymentRetryScenario(ctx)
	case "partial-worklog":
		err = h.loadPartialWorkLogScenario(ctx)
	case "cross-period":
		err = h.loadCrossPeriodScenario(ctx)
	case "deleted-segment":
		err = h.loadDeletedSegmentScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// ResetDatabase wipes all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// SeedDefaultScenario loads the happy-path dataset when the store is empty.
// Used at startup when SEED_SCENARIOS is set.
func (h *Handler) SeedDefaultScenario(ctx context.Context) error {
	workers, err := h.Store.ListWorkers(ctx)
	if err != nil {
		return err
	}
	if len(workers) > 0 {
		return nil
	}
	if err := h.loadHappyPathScenario(ctx); err != nil {
		return err
	}
	h.currentScenario = "happy-path"
	return nil
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedWorker(ctx context.Context, id, name string) (settlement.WorkerID, error) {
	worker := settlement.Worker{
		ID:        settlement.WorkerID(id),
		Name:      name,
		Email:     fmt.Sprintf("%s@example.com", id),
		CreatedAt: time.Now().UTC(),
	}
	return worker.ID, h.Store.SaveWorker(ctx, worker)
}

func (h *Handler) seedWorkLog(ctx context.Context, id string, worker settlement.WorkerID, task string) (settlement.WorkLogID, error) {
	now := time.Now().UTC()
	wl := settlement.WorkLog{
		ID:             settlement.WorkLogID(id),
		WorkerID:       worker,
		TaskIdentifier: task,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return wl.ID, h.Store.SaveWorkLog(ctx, wl)
}

func (h *Handler) seedSegment(ctx context.Context, id string, worklog settlement.WorkLogID, hours, rate string, date settlement.Date) error {
	return h.Store.SaveSegment(ctx, settlement.TimeSegment{
		ID:          settlement.SegmentID(id),
		WorkLogID:   worklog,
		HoursWorked: settlement.MustDecimal(hours),
		HourlyRate:  settlement.MustDecimal(rate),
		SegmentDate: date,
		CreatedAt:   time.Now().UTC(),
	})
}

// lastMonth is the settlement period the scenarios revolve around.
func lastMonth() settlement.Period {
	return settlement.MonthOf(settlement.Today().AddMonths(-1))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadHappyPathScenario: two workers, one worklog each, all work unsettled.
func (h *Handler) loadHappyPathScenario(ctx context.Context) error {
	period := lastMonth()

	alice, err := h.seedWorker(ctx, "worker-alice", "Alice Moreau")
	if err != nil {
		return err
	}
	bob, err := h.seedWorker(ctx, "worker-bob", "Bob Lindqvist")
	if err != nil {
		return err
	}

	wlA, err := h.seedWorkLog(ctx, "wl-alice-api", alice, "TASK-101 API integration")
	if err != nil {
		return err
	}
	wlB, err := h.seedWorkLog(ctx, "wl-bob-etl", bob, "TASK-202 ETL pipeline")
	if err != nil {
		return err
	}

	if err := h.seedSegment(ctx, "seg-a1", wlA, "8", "50", period.Start.AddDays(2)); err != nil {
		return err
	}
	if err := h.seedSegment(ctx, "seg-a2", wlA, "6.5", "50", period.Start.AddDays(3)); err != nil {
		return err
	}
	if err := h.seedSegment(ctx, "seg-b1", wlB, "10", "42", period.Start.AddDays(5)); err != nil {
		return err
	}

	return h.Store.SaveAdjustment(ctx, settlement.Adjustment{
		ID:        "adj-alice-bonus",
		WorkerID:  alice,
		WorkLogID: &wlA,
		Type:      settlement.AdjustmentAddition,
		Amount:    settlement.MustDecimal("100"),
		Reason:    "On-call bonus",
		CreatedAt: time.Now().UTC(),
	})
}

// loadRetroactiveAdjustmentScenario: the month is settled and paid; a late
// deduction arrives afterwards and waits for the next run.
func (h *Handler) loadRetroactiveAdjustmentScenario(ctx context.Context) error {
	period := lastMonth()

	carol, err := h.seedWorker(ctx, "worker-carol", "Carol Tanaka")
	if err != nil {
		return err
	}
	wl, err := h.seedWorkLog(ctx, "wl-carol-review", carol, "TASK-310 design review")
	if err != nil {
		return err
	}
	if err := h.seedSegment(ctx, "seg-c1", wl, "12", "60", period.Start.AddDays(8)); err != nil {
		return err
	}

	run, err := h.Orchestrator.Run(ctx, period)
	if err != nil {
		return err
	}
	remittances, err := h.Store.RemittancesBySettlement(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, rem := range remittances {
		if err := h.Lifecycle.Report(ctx, rem.ID, settlement.RemittancePaid); err != nil {
			return err
		}
	}

	return h.Store.SaveAdjustment(ctx, settlement.Adjustment{
		ID:        "adj-carol-overbilled",
		WorkerID:  carol,
		WorkLogID: &wl,
		Type:      settlement.AdjustmentDeduction,
		Amount:    settlement.MustDecimal("75"),
		Reason:    "Overbilled hours in prior invoice",
		CreatedAt: time.Now().UTC(),
	})
}

// loadFailedPaymentRetryScenario: a settlement ran and the payment FAILED,
// so the same work is eligible again.
func (h *Handler) loadFailedPaymentRetryScenario(ctx context.Context) error {
	period := lastMonth()

	dave, err := h.seedWorker(ctx, "worker-dave", "Dave Okafor")
	if err != nil {
		return err
	}
	wl, err := h.seedWorkLog(ctx, "wl-dave-migration", dave, "TASK-415 data migration")
	if err != nil {
		return err
	}
	if err := h.seedSegment(ctx, "seg-d1", wl, "7", "55", period.Start.AddDays(10)); err != nil {
		return err
	}
	if err := h.seedSegment(ctx, "seg-d2", wl, "9", "55", period.Start.AddDays(11)); err != nil {
		return err
	}

	run, err := h.Orchestrator.Run(ctx, period)
	if err != nil {
		return err
	}
	remittances, err := h.Store.RemittancesBySettlement(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, rem := range remittances {
		if err := h.Lifecycle.Report(ctx, rem.ID, settlement.RemittanceFailed); err != nil {
			return err
		}
	}
	return nil
}

// loadPartialWorkLogScenario: three segments settled and paid, two recorded
// afterwards, so the worklog shows as UNREMITTED with the full amount.
func (h *Handler) loadPartialWorkLogScenario(ctx context.Context) error {
	period := lastMonth()

	erin, err := h.seedWorker(ctx, "worker-erin", "Erin Castillo")
	if err != nil {
		return err
	}
	wl, err := h.seedWorkLog(ctx, "wl-erin-support", erin, "TASK-520 support rotation")
	if err != nil {
		return err
	}

	for i, id := range []string{"seg-e1", "seg-e2", "seg-e3"} {
		if err := h.seedSegment(ctx, id, wl, "4", "45", period.Start.AddDays(i+1)); err != nil {
			return err
		}
	}

	run, err := h.Orchestrator.Run(ctx, period)
	if err != nil {
		return err
	}
	remittances, err := h.Store.RemittancesBySettlement(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, rem := range remittances {
		if err := h.Lifecycle.Report(ctx, rem.ID, settlement.RemittancePaid); err != nil {
			return err
		}
	}

	// Late-recorded work in the same period, still unpaid.
	if err := h.seedSegment(ctx, "seg-e4", wl, "4", "45", period.Start.AddDays(20)); err != nil {
		return err
	}
	return h.seedSegment(ctx, "seg-e5", wl, "3", "45", period.Start.AddDays(21))
}

// loadCrossPeriodScenario: one worklog with segments in two adjacent months.
func (h *Handler) loadCrossPeriodScenario(ctx context.Context) error {
	period := lastMonth()

	frank, err := h.seedWorker(ctx, "worker-frank", "Frank Novak")
	if err != nil {
		return err
	}
	wl, err := h.seedWorkLog(ctx, "wl-frank-audit", frank, "TASK-630 security audit")
	if err != nil {
		return err
	}

	// Inside last month.
	if err := h.seedSegment(ctx, "seg-f1", wl, "8", "70", period.End.AddDays(-1)); err != nil {
		return err
	}
	if err := h.seedSegment(ctx, "seg-f2", wl, "8", "70", period.End); err != nil {
		return err
	}
	// First day of the current month: outside the settled period.
	return h.seedSegment(ctx, "seg-f3", wl, "8", "70", period.End.AddDays(1))
}

// loadDeletedSegmentScenario: a mistakenly recorded segment is soft-deleted
// before settlement and never pays out.
func (h *Handler) loadDeletedSegmentScenario(ctx context.Context) error {
	period := lastMonth()

	grace, err := h.seedWorker(ctx, "worker-grace", "Grace Ibekwe")
	if err != nil {
		return err
	}
	wl, err := h.seedWorkLog(ctx, "wl-grace-docs", grace, "TASK-740 documentation")
	if err != nil {
		return err
	}

	if err := h.seedSegment(ctx, "seg-g1", wl, "5", "40", period.Start.AddDays(4)); err != nil {
		return err
	}

	deletedAt := time.Now().UTC()
	return h.Store.SaveSegment(ctx, settlement.TimeSegment{
		ID:          "seg-g2-deleted",
		WorkLogID:   wl,
		HoursWorked: settlement.MustDecimal("99"),
		HourlyRate:  settlement.MustDecimal("40"),
		SegmentDate: period.Start.AddDays(4),
		Notes:       "Recorded against the wrong task",
		DeletedAt:   &deletedAt,
		CreatedAt:   time.Now().UTC(),
	})
}
