/*
handlers_test.go - HTTP-level tests for the settlement API

Tests for:
- Worker/worklog/segment endpoints
- Settlement generation and outcome reporting
- Listing filters, paging and validation
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAPI(t *testing.T) (*chiRouterFacade, *Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store)
	return &chiRouterFacade{router: NewRouter(handler)}, handler
}

// chiRouterFacade keeps the request plumbing out of the tests.
type chiRouterFacade struct {
	router http.Handler
}

func (f *chiRouterFacade) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func seedWorkedMonth(t *testing.T, f *chiRouterFacade) (workerID, worklogID string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/workers", CreateWorkerRequest{Name: "Ada", Email: "ada@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	worker := decode[WorkerDTO](t, rec)

	rec = f.do(t, http.MethodPost, "/api/worklogs", CreateWorkLogRequest{WorkerID: worker.ID, TaskIdentifier: "TASK-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	worklog := decode[WorkLogDTO](t, rec)

	rec = f.do(t, http.MethodPost, "/api/worklogs/"+worklog.ID+"/segments", CreateSegmentRequest{
		HoursWorked: "8",
		HourlyRate:  "50",
		SegmentDate: "2025-07-03",
		Notes:       "first shift",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return worker.ID, worklog.ID
}

// =============================================================================
// WORKER / WORKLOG ENDPOINTS
// =============================================================================

func TestAPI_WorkerLifecycle(t *testing.T) {
	f, _ := newTestAPI(t)

	rec := f.do(t, http.MethodPost, "/api/workers", CreateWorkerRequest{Name: "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[WorkerDTO](t, rec)
	assert.NotEmpty(t, created.ID, "id is generated when omitted")

	rec = f.do(t, http.MethodGet, "/api/workers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/workers/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/workers", CreateWorkerRequest{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_WorkLogWithSegments(t *testing.T) {
	f, _ := newTestAPI(t)
	_, worklogID := seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodGet, "/api/worklogs/"+worklogID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		WorkLogDTO
		Segments []SegmentDTO `json:"segments"`
	}](t, rec)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "400", got.Segments[0].Amount.String())
	assert.False(t, got.Segments[0].Claimed)
}

func TestAPI_SegmentValidation(t *testing.T) {
	f, _ := newTestAPI(t)
	_, worklogID := seedWorkedMonth(t, f)

	cases := []CreateSegmentRequest{
		{HoursWorked: "0", HourlyRate: "50", SegmentDate: "2025-07-03"},
		{HoursWorked: "-2", HourlyRate: "50", SegmentDate: "2025-07-03"},
		{HoursWorked: "8", HourlyRate: "-1", SegmentDate: "2025-07-03"},
		{HoursWorked: "8", HourlyRate: "50", SegmentDate: "03/07/2025"},
		{HoursWorked: "eight", HourlyRate: "50", SegmentDate: "2025-07-03"},
	}
	for i, c := range cases {
		rec := f.do(t, http.MethodPost, "/api/worklogs/"+worklogID+"/segments", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d", i)
	}

	rec := f.do(t, http.MethodPost, "/api/worklogs/ghost/segments", CreateSegmentRequest{
		HoursWorked: "8", HourlyRate: "50", SegmentDate: "2025-07-03",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SETTLEMENT FLOW
// =============================================================================

func TestAPI_SettlementFlow(t *testing.T) {
	// GIVEN: A worker with July work
	// WHEN: July is generated, the remittance is PAID, and July runs again
	// THEN: First run yields one PENDING remittance; outcome flips it to PAID;
	//       the re-run yields nothing

	f, _ := newTestAPI(t)
	seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-01&period_end=2025-07-31", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[GenerateSettlementResponse](t, rec)
	assert.Equal(t, string(settlement.SettlementCompleted), resp.Settlement.Status)
	assert.Equal(t, 1, resp.Settlement.RemittancesCreated)
	require.Len(t, resp.Remittances, 1)

	rem := resp.Remittances[0]
	assert.Equal(t, string(settlement.RemittancePending), rem.Status)
	assert.Equal(t, "400", rem.NetAmount.String())

	// Remittance detail carries its claim lines.
	rec = f.do(t, http.MethodGet, "/api/remittances/"+rem.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[RemittanceDTO](t, rec)
	require.Len(t, detail.Lines, 1)
	assert.Equal(t, string(settlement.SourceSegment), detail.Lines[0].SourceType)

	// Report PAID.
	rec = f.do(t, http.MethodPost, "/api/remittances/"+rem.ID+"/outcome", OutcomeRequest{Outcome: "PAID"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[RemittanceDTO](t, rec)
	assert.Equal(t, string(settlement.RemittancePaid), paid.Status)
	assert.NotNil(t, paid.PaidAt)

	// A second outcome is rejected.
	rec = f.do(t, http.MethodPost, "/api/remittances/"+rem.ID+"/outcome", OutcomeRequest{Outcome: "FAILED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Re-running the period produces nothing new.
	rec = f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-01&period_end=2025-07-31", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	again := decode[GenerateSettlementResponse](t, rec)
	assert.Equal(t, 0, again.Settlement.RemittancesCreated)
	assert.Empty(t, again.Remittances)

	// Both runs are on record.
	rec = f.do(t, http.MethodGet, "/api/settlements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	assert.Equal(t, 2, list.Count)
}

func TestAPI_GenerateSettlement_Validation(t *testing.T) {
	f, _ := newTestAPI(t)

	rec := f.do(t, http.MethodPost, "/api/settlements/generate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "period_start required")

	rec = f.do(t, http.MethodPost, "/api/settlements/generate?period_start=01-07-2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad date format")

	rec = f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-31&period_end=2025-07-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "end before start")
}

func TestAPI_OutcomeValidation(t *testing.T) {
	f, _ := newTestAPI(t)
	seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-01&period_end=2025-07-31", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[GenerateSettlementResponse](t, rec)
	remID := resp.Remittances[0].ID

	rec = f.do(t, http.MethodPost, "/api/remittances/"+remID+"/outcome", OutcomeRequest{Outcome: "PENDING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/remittances/"+remID+"/outcome", OutcomeRequest{Outcome: "SETTLED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/remittances/ghost/outcome", OutcomeRequest{Outcome: "PAID"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// WORKLOG LISTING
// =============================================================================

func TestAPI_ListWorkLogs_FiltersAndPaging(t *testing.T) {
	f, _ := newTestAPI(t)
	seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodGet, "/api/worklogs?remittance_status=UNREMITTED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Data  []WorkLogListingDTO `json:"data"`
		Count int                 `json:"count"`
	}](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "400", list.Data[0].TotalAmount.String())
	assert.False(t, list.Data[0].Remitted)

	rec = f.do(t, http.MethodGet, "/api/worklogs?remittance_status=REMITTED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	remitted := decode[struct {
		Data  []WorkLogListingDTO `json:"data"`
		Count int                 `json:"count"`
	}](t, rec)
	assert.Equal(t, 0, remitted.Count)

	rec = f.do(t, http.MethodGet, "/api/worklogs?remittance_status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/worklogs?limit=%d", maxListLimit+1), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/worklogs?skip=notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SEGMENT DELETION
// =============================================================================

func TestAPI_DeleteSegment(t *testing.T) {
	f, _ := newTestAPI(t)
	_, worklogID := seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodGet, "/api/worklogs/"+worklogID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Segments []SegmentDTO `json:"segments"`
	}](t, rec)
	segID := got.Segments[0].ID

	// Deleting twice is idempotent.
	rec = f.do(t, http.MethodDelete, "/api/worklogs/"+worklogID+"/segments/"+segID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/worklogs/"+worklogID+"/segments/"+segID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/worklogs/"+worklogID+"/segments/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleted work never settles.
	rec = f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-01&period_end=2025-07-31", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[GenerateSettlementResponse](t, rec)
	assert.Equal(t, 0, resp.Settlement.RemittancesCreated)
}

func TestAPI_DeleteClaimedSegment_Rejected(t *testing.T) {
	f, _ := newTestAPI(t)
	_, worklogID := seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-01&period_end=2025-07-31", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/worklogs/"+worklogID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Segments []SegmentDTO `json:"segments"`
	}](t, rec)
	require.True(t, got.Segments[0].Claimed)

	rec = f.do(t, http.MethodDelete, "/api/worklogs/"+worklogID+"/segments/"+got.Segments[0].ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func TestAPI_CreateAdjustment(t *testing.T) {
	f, _ := newTestAPI(t)
	workerID, worklogID := seedWorkedMonth(t, f)

	rec := f.do(t, http.MethodPost, "/api/adjustments", CreateAdjustmentRequest{
		WorkerID:  workerID,
		WorkLogID: worklogID,
		Type:      "DEDUCTION",
		Amount:    "50",
		Reason:    "overbilled",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	adj := decode[AdjustmentDTO](t, rec)
	assert.Equal(t, "DEDUCTION", adj.Type)
	require.NotNil(t, adj.WorkLogID)

	// The deduction flows into the settlement net.
	rec = f.do(t, http.MethodPost, "/api/settlements/generate?period_start=2025-07-01&period_end=2025-07-31", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[GenerateSettlementResponse](t, rec)
	require.Len(t, resp.Remittances, 1)
	assert.Equal(t, "350", resp.Remittances[0].NetAmount.String())

	// Validation.
	rec = f.do(t, http.MethodPost, "/api/adjustments", CreateAdjustmentRequest{
		WorkerID: workerID, Type: "BONUS", Amount: "10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/adjustments", CreateAdjustmentRequest{
		WorkerID: workerID, Type: "ADDITION", Amount: "-10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/adjustments", CreateAdjustmentRequest{
		WorkerID: "ghost", Type: "ADDITION", Amount: "10",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	f, _ := newTestAPI(t)

	rec := f.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	available := decode[[]ScenarioDTO](t, rec)
	assert.NotEmpty(t, available)

	rec = f.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "happy-path"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[ScenarioDTO](t, rec)
	assert.Equal(t, "happy-path", current.ID)

	rec = f.do(t, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decode[ListResponse](t, rec)
	assert.Equal(t, 2, workers.Count)

	rec = f.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/workers", nil)
	workers = decode[ListResponse](t, rec)
	assert.Equal(t, 0, workers.Count)
}
