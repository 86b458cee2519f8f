/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Workers:
    GET    /api/workers                List all workers
    POST   /api/workers                Create worker
    GET    /api/workers/{id}           Get worker details

  WorkLogs:
    GET    /api/worklogs               Filtered, paginated listing
    POST   /api/worklogs               Create worklog
    GET    /api/worklogs/{id}          Worklog with its segments
    POST   /api/worklogs/{id}/segments Record worked time
    DELETE /api/worklogs/{id}/segments/{segmentId} Soft-delete a segment

  Adjustments:
    POST   /api/adjustments            Record a manual adjustment

  Settlements:
    POST   /api/settlements/generate   Run a settlement over a period
    GET    /api/settlements            List past runs
    GET    /api/settlements/{id}/remittances Remittances of one run

  Remittances:
    GET    /api/remittances/{id}       Remittance with its lines
    POST   /api/remittances/{id}/outcome Report PAID/FAILED/CANCELLED

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Wipe the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (illegal transition, active claim)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/metrics"
	"github.com/warp/settlement-engine/settlement"
)

// maxListLimit caps page sizes on listing endpoints.
const maxListLimit = 1000

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        settlement.Store
	Orchestrator *settlement.Orchestrator
	Lifecycle    *settlement.Lifecycle
	Query        *settlement.QueryService

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store settlement.Store) *Handler {
	return &Handler{
		Store:        store,
		Orchestrator: settlement.NewOrchestrator(store),
		Lifecycle:    &settlement.Lifecycle{Store: store},
		Query:        &settlement.QueryService{Store: store},
	}
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, worker := range workers {
		dtos[i] = toWorkerDTO(worker)
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: dtos, Count: len(dtos)})
}

// GetWorker returns a single worker.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id := settlement.WorkerID(chi.URLParam(r, "id"))

	worker, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get worker", err)
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, "Worker not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// CreateWorker creates a new worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	worker := settlement.Worker{
		ID:        settlement.WorkerID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

// =============================================================================
// WORKLOG HANDLERS
// =============================================================================

// ListWorkLogs returns the filtered, paginated worklog listing.
// Query params: remittance_status=ALL|REMITTED|UNREMITTED, skip, limit.
func (h *Handler) ListWorkLogs(w http.ResponseWriter, r *http.Request) {
	filter := settlement.FilterAll
	switch strings.ToUpper(r.URL.Query().Get("remittance_status")) {
	case "", string(settlement.FilterAll):
	case string(settlement.FilterRemitted):
		filter = settlement.FilterRemitted
	case string(settlement.FilterUnremitted):
		filter = settlement.FilterUnremitted
	default:
		writeError(w, http.StatusBadRequest, "remittance_status must be ALL, REMITTED or UNREMITTED", nil)
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "skip must be an integer", err)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer", err)
		return
	}
	if limit > maxListLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must not exceed %d", maxListLimit), nil)
		return
	}

	listings, total, err := h.Query.List(r.Context(), filter, skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list worklogs", err)
		return
	}

	dtos := make([]WorkLogListingDTO, len(listings))
	for i, l := range listings {
		dtos[i] = toListingDTO(l)
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: dtos, Count: total})
}

// CreateWorkLog creates a new worklog for a worker.
func (h *Handler) CreateWorkLog(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkerID == "" || strings.TrimSpace(req.TaskIdentifier) == "" {
		writeError(w, http.StatusBadRequest, "worker_id and task_identifier are required", nil)
		return
	}

	worker, err := h.Store.GetWorker(r.Context(), settlement.WorkerID(req.WorkerID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get worker", err)
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, "Worker not found", nil)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	wl := settlement.WorkLog{
		ID:             settlement.WorkLogID(req.ID),
		WorkerID:       worker.ID,
		TaskIdentifier: req.TaskIdentifier,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.Store.SaveWorkLog(r.Context(), wl); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create worklog", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkLogDTO(wl))
}

// GetWorkLog returns a worklog with its segments.
func (h *Handler) GetWorkLog(w http.ResponseWriter, r *http.Request) {
	id := settlement.WorkLogID(chi.URLParam(r, "id"))

	wl, err := h.Store.GetWorkLog(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get worklog", err)
		return
	}
	if wl == nil {
		writeError(w, http.StatusNotFound, "WorkLog not found", nil)
		return
	}

	segments, err := h.Store.SegmentsByWorkLog(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load segments", err)
		return
	}

	segDTOs := make([]SegmentDTO, len(segments))
	for i, seg := range segments {
		segDTOs[i] = toSegmentDTO(seg)
	}
	writeJSON(w, http.StatusOK, struct {
		WorkLogDTO
		Segments []SegmentDTO `json:"segments"`
	}{toWorkLogDTO(*wl), segDTOs})
}

// CreateSegment records worked time on a worklog.
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	worklogID := settlement.WorkLogID(chi.URLParam(r, "id"))

	wl, err := h.Store.GetWorkLog(r.Context(), worklogID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get worklog", err)
		return
	}
	if wl == nil {
		writeError(w, http.StatusNotFound, "WorkLog not found", nil)
		return
	}

	var req CreateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hours, err := decimal.NewFromString(req.HoursWorked)
	if err != nil || !hours.IsPositive() {
		writeError(w, http.StatusBadRequest, "hours_worked must be a positive decimal", err)
		return
	}
	rate, err := decimal.NewFromString(req.HourlyRate)
	if err != nil || rate.IsNegative() {
		writeError(w, http.StatusBadRequest, "hourly_rate must be a non-negative decimal", err)
		return
	}
	segmentDate, err := settlement.ParseDate(req.SegmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid segment_date format (use YYYY-MM-DD)", err)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	seg := settlement.TimeSegment{
		ID:          settlement.SegmentID(req.ID),
		WorkLogID:   worklogID,
		HoursWorked: hours,
		HourlyRate:  rate,
		SegmentDate: segmentDate,
		Notes:       req.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.SaveSegment(r.Context(), seg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create segment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSegmentDTO(seg))
}

// DeleteSegment soft-deletes a segment so it never settles. Segments claimed
// by a live remittance cannot be deleted.
func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	worklogID := settlement.WorkLogID(chi.URLParam(r, "id"))
	segmentID := settlement.SegmentID(chi.URLParam(r, "segmentId"))

	segments, err := h.Store.SegmentsByWorkLog(r.Context(), worklogID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load segments", err)
		return
	}

	for _, seg := range segments {
		if seg.ID != segmentID {
			continue
		}
		if seg.Deleted() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if seg.Claimed() {
			writeError(w, http.StatusConflict, "Segment is claimed by a live remittance", nil)
			return
		}
		now := time.Now().UTC()
		seg.DeletedAt = &now
		if err := h.Store.SaveSegment(r.Context(), seg); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to delete segment", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "Segment not found", nil)
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// CreateAdjustment records a manual addition or deduction for a worker.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	adjType := settlement.AdjustmentType(strings.ToUpper(req.Type))
	if adjType != settlement.AdjustmentAddition && adjType != settlement.AdjustmentDeduction {
		writeError(w, http.StatusBadRequest, "type must be ADDITION or DEDUCTION", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be a positive decimal", err)
		return
	}

	worker, err := h.Store.GetWorker(r.Context(), settlement.WorkerID(req.WorkerID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get worker", err)
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, "Worker not found", nil)
		return
	}

	adj := settlement.Adjustment{
		ID:        settlement.AdjustmentID(req.ID),
		WorkerID:  worker.ID,
		Type:      adjType,
		Amount:    amount,
		Reason:    req.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if adj.ID == "" {
		adj.ID = settlement.AdjustmentID(uuid.NewString())
	}
	if req.WorkLogID != "" {
		wl, err := h.Store.GetWorkLog(r.Context(), settlement.WorkLogID(req.WorkLogID))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get worklog", err)
			return
		}
		if wl == nil {
			writeError(w, http.StatusNotFound, "WorkLog not found", nil)
			return
		}
		adj.WorkLogID = &wl.ID
	}

	if err := h.Store.SaveAdjustment(r.Context(), adj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// GenerateSettlement runs a settlement over the requested period.
// Query params: period_start (required), period_end (defaults to today).
func (h *Handler) GenerateSettlement(w http.ResponseWriter, r *http.Request) {
	startParam := r.URL.Query().Get("period_start")
	if startParam == "" {
		writeError(w, http.StatusBadRequest, "period_start is required", nil)
		return
	}
	periodStart, err := settlement.ParseDate(startParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start format (use YYYY-MM-DD)", err)
		return
	}

	periodEnd := settlement.Today()
	if endParam := r.URL.Query().Get("period_end"); endParam != "" {
		periodEnd, err = settlement.ParseDate(endParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period_end format (use YYYY-MM-DD)", err)
			return
		}
	}

	period := settlement.Period{Start: periodStart, End: periodEnd}
	began := time.Now()
	run, err := h.Orchestrator.Run(r.Context(), period)
	if err != nil {
		if settlement.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid settlement period", err)
			return
		}
		metrics.ObserveSettlementRun(string(settlement.SettlementFailed), time.Since(began))
		writeError(w, http.StatusInternalServerError, "Settlement run failed", err)
		return
	}
	metrics.ObserveSettlementRun(string(run.Status), time.Since(began))
	metrics.AddRemittancesGenerated(run.TotalRemittancesGenerated)

	remittances, err := h.Store.RemittancesBySettlement(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load remittances", err)
		return
	}
	dtos := make([]RemittanceDTO, len(remittances))
	for i, rem := range remittances {
		dtos[i] = toRemittanceDTO(rem, nil)
	}

	writeJSON(w, http.StatusCreated, GenerateSettlementResponse{
		Settlement:  toSettlementDTO(run),
		Remittances: dtos,
	})
}

// ListSettlements returns past settlement runs, newest first.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListSettlements(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}
	dtos := make([]SettlementDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSettlementDTO(run)
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: dtos, Count: len(dtos)})
}

// ListSettlementRemittances returns the remittances of one settlement run.
func (h *Handler) ListSettlementRemittances(w http.ResponseWriter, r *http.Request) {
	id := settlement.SettlementID(chi.URLParam(r, "id"))

	remittances, err := h.Store.RemittancesBySettlement(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load remittances", err)
		return
	}
	dtos := make([]RemittanceDTO, len(remittances))
	for i, rem := range remittances {
		dtos[i] = toRemittanceDTO(rem, nil)
	}
	writeJSON(w, http.StatusOK, ListResponse{Data: dtos, Count: len(dtos)})
}

// =============================================================================
// REMITTANCE HANDLERS
// =============================================================================

// GetRemittance returns a remittance with its claim lines.
func (h *Handler) GetRemittance(w http.ResponseWriter, r *http.Request) {
	id := settlement.RemittanceID(chi.URLParam(r, "id"))

	rem, err := h.Store.GetRemittance(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get remittance", err)
		return
	}
	if rem == nil {
		writeError(w, http.StatusNotFound, "Remittance not found", nil)
		return
	}

	lines, err := h.Store.RemittanceLines(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load remittance lines", err)
		return
	}
	writeJSON(w, http.StatusOK, toRemittanceDTO(*rem, lines))
}

// ReportOutcome applies a payment outcome to a PENDING remittance.
func (h *Handler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	id := settlement.RemittanceID(chi.URLParam(r, "id"))

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	outcome := settlement.RemittanceStatus(strings.ToUpper(req.Outcome))

	if err := h.Lifecycle.Report(r.Context(), id, outcome); err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidOutcome):
			writeError(w, http.StatusBadRequest, "outcome must be PAID, FAILED or CANCELLED", err)
		case settlement.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Remittance not found", err)
		case errors.Is(err, settlement.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "Remittance already has an outcome", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to report outcome", err)
		}
		return
	}
	metrics.IncOutcomeReported(string(outcome))

	rem, err := h.Store.GetRemittance(r.Context(), id)
	if err != nil || rem == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload remittance", err)
		return
	}
	writeJSON(w, http.StatusOK, toRemittanceDTO(*rem, nil))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
