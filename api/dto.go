/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts stay decimal.Decimal end to end; shopspring/decimal marshals them
  as quoted decimal strings so clients never see float rounding.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - settlement/types.go: Domain model these views derive from
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ListResponse wraps paginated collections.
type ListResponse struct {
	Data  any `json:"data"`
	Count int `json:"count"`
}

// ErrorResponse is the JSON shape of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WorkerDTO represents a worker in API responses.
type WorkerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateWorkerRequest is the request to create a worker.
type CreateWorkerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WorkLogDTO represents a worklog in API responses.
type WorkLogDTO struct {
	ID             string `json:"id"`
	WorkerID       string `json:"worker_id"`
	TaskIdentifier string `json:"task_identifier"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// CreateWorkLogRequest is the request to create a worklog.
type CreateWorkLogRequest struct {
	ID             string `json:"id"`
	WorkerID       string `json:"worker_id"`
	TaskIdentifier string `json:"task_identifier"`
}

// WorkLogListingDTO is one row of the worklog listing.
type WorkLogListingDTO struct {
	ID             string          `json:"id"`
	WorkerID       string          `json:"worker_id"`
	TaskIdentifier string          `json:"task_identifier"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Remitted       bool            `json:"remitted"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

// SegmentDTO represents a time segment in API responses.
type SegmentDTO struct {
	ID          string          `json:"id"`
	WorkLogID   string          `json:"worklog_id"`
	HoursWorked decimal.Decimal `json:"hours_worked"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Amount      decimal.Decimal `json:"amount"`
	SegmentDate string          `json:"segment_date"`
	Notes       string          `json:"notes,omitempty"`
	Claimed     bool            `json:"claimed"`
	Deleted     bool            `json:"deleted"`
}

// CreateSegmentRequest is the request to record worked time on a worklog.
type CreateSegmentRequest struct {
	ID          string `json:"id"`
	HoursWorked string `json:"hours_worked"`
	HourlyRate  string `json:"hourly_rate"`
	SegmentDate string `json:"segment_date"`
	Notes       string `json:"notes"`
}

// AdjustmentDTO represents a manual adjustment.
type AdjustmentDTO struct {
	ID        string          `json:"id"`
	WorkerID  string          `json:"worker_id"`
	WorkLogID *string         `json:"worklog_id,omitempty"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	Claimed   bool            `json:"claimed"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// CreateAdjustmentRequest is the request to record an adjustment.
type CreateAdjustmentRequest struct {
	ID        string `json:"id"`
	WorkerID  string `json:"worker_id"`
	WorkLogID string `json:"worklog_id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

// RemittanceDTO represents a remittance in API responses.
type RemittanceDTO struct {
	ID                string              `json:"id"`
	SettlementID      string              `json:"settlement_id"`
	WorkerID          string              `json:"worker_id"`
	PeriodStart       string              `json:"period_start"`
	PeriodEnd         string              `json:"period_end"`
	GrossAmount       decimal.Decimal     `json:"gross_amount"`
	AdjustmentsAmount decimal.Decimal     `json:"adjustments_amount"`
	NetAmount         decimal.Decimal     `json:"net_amount"`
	Status            string              `json:"status"`
	CreatedAt         string              `json:"created_at,omitempty"`
	PaidAt            *string             `json:"paid_at,omitempty"`
	Lines             []RemittanceLineDTO `json:"lines,omitempty"`
}

// RemittanceLineDTO is one claim line of a remittance.
type RemittanceLineDTO struct {
	ID         string          `json:"id"`
	SourceType string          `json:"source_type"`
	SourceID   string          `json:"source_id"`
	Amount     decimal.Decimal `json:"amount"`
	Position   int             `json:"position"`
}

// OutcomeRequest reports a payment outcome for a remittance.
type OutcomeRequest struct {
	Outcome string `json:"outcome"`
}

// SettlementDTO represents a settlement run.
type SettlementDTO struct {
	ID                 string          `json:"id"`
	PeriodStart        string          `json:"period_start"`
	PeriodEnd          string          `json:"period_end"`
	Status             string          `json:"status"`
	RemittancesCreated int             `json:"remittances_created"`
	TotalNetAmount     decimal.Decimal `json:"total_net_amount"`
	RunAt              string          `json:"run_at,omitempty"`
}

// GenerateSettlementResponse is returned by the generate endpoint.
type GenerateSettlementResponse struct {
	Settlement  SettlementDTO   `json:"settlement"`
	Remittances []RemittanceDTO `json:"remittances"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toWorkerDTO(w settlement.Worker) WorkerDTO {
	return WorkerDTO{
		ID:        string(w.ID),
		Name:      w.Name,
		Email:     w.Email,
		CreatedAt: formatTime(w.CreatedAt),
	}
}

func toWorkLogDTO(wl settlement.WorkLog) WorkLogDTO {
	return WorkLogDTO{
		ID:             string(wl.ID),
		WorkerID:       string(wl.WorkerID),
		TaskIdentifier: wl.TaskIdentifier,
		CreatedAt:      formatTime(wl.CreatedAt),
		UpdatedAt:      formatTime(wl.UpdatedAt),
	}
}

func toSegmentDTO(seg settlement.TimeSegment) SegmentDTO {
	return SegmentDTO{
		ID:          string(seg.ID),
		WorkLogID:   string(seg.WorkLogID),
		HoursWorked: seg.HoursWorked,
		HourlyRate:  seg.HourlyRate,
		Amount:      seg.Gross(),
		SegmentDate: seg.SegmentDate.String(),
		Notes:       seg.Notes,
		Claimed:     seg.Claimed(),
		Deleted:     seg.Deleted(),
	}
}

func toAdjustmentDTO(a settlement.Adjustment) AdjustmentDTO {
	dto := AdjustmentDTO{
		ID:        string(a.ID),
		WorkerID:  string(a.WorkerID),
		Type:      string(a.Type),
		Amount:    a.Amount,
		Reason:    a.Reason,
		Claimed:   a.RemittanceLineID != nil,
		CreatedAt: formatTime(a.CreatedAt),
	}
	if a.WorkLogID != nil {
		id := string(*a.WorkLogID)
		dto.WorkLogID = &id
	}
	return dto
}

func toRemittanceDTO(r settlement.Remittance, lines []settlement.RemittanceLine) RemittanceDTO {
	dto := RemittanceDTO{
		ID:                string(r.ID),
		SettlementID:      string(r.SettlementID),
		WorkerID:          string(r.WorkerID),
		PeriodStart:       r.Period.Start.String(),
		PeriodEnd:         r.Period.End.String(),
		GrossAmount:       r.GrossAmount,
		AdjustmentsAmount: r.AdjustmentsAmount,
		NetAmount:         r.NetAmount,
		Status:            string(r.Status),
		CreatedAt:         formatTime(r.CreatedAt),
	}
	if r.PaidAt != nil {
		s := r.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
	}
	for _, line := range lines {
		dto.Lines = append(dto.Lines, RemittanceLineDTO{
			ID:         string(line.ID),
			SourceType: string(line.SourceType),
			SourceID:   line.SourceID,
			Amount:     line.Amount,
			Position:   line.Position,
		})
	}
	return dto
}

func toSettlementDTO(run settlement.Settlement) SettlementDTO {
	return SettlementDTO{
		ID:                 string(run.ID),
		PeriodStart:        run.Period.Start.String(),
		PeriodEnd:          run.Period.End.String(),
		Status:             string(run.Status),
		RemittancesCreated: run.TotalRemittancesGenerated,
		TotalNetAmount:     run.TotalAmount,
		RunAt:              formatTime(run.RunAt),
	}
}

func toListingDTO(l settlement.WorkLogListing) WorkLogListingDTO {
	return WorkLogListingDTO{
		ID:             string(l.WorkLog.ID),
		WorkerID:       string(l.WorkLog.WorkerID),
		TaskIdentifier: l.WorkLog.TaskIdentifier,
		TotalAmount:    l.TotalAmount,
		Remitted:       l.Remitted,
		CreatedAt:      formatTime(l.WorkLog.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
