/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Decimal values
  cross the boundary as float64 for JSON friendliness; the precision-
  sensitive math has already happened in decimal by the time a DTO is
  built.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - finance/money.go: Display formatting for the *_display fields
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/capacity"
	"github.com/warp/finrecon/finance"
	"github.com/warp/finrecon/importer"
)

// =============================================================================
// RESOURCES
// =============================================================================

// ResourceDTO represents a resource in API responses.
type ResourceDTO struct {
	ID              string `json:"id"`
	RoadmapID       string `json:"roadmap_id,omitempty"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	WorkArea        string `json:"work_area,omitempty"`
	ActivityTypeCAP string `json:"activity_type_cap,omitempty"`
	ActivityTypeOPX string `json:"activity_type_opx,omitempty"`
	ContractType    string `json:"contract_type"`
	EmployeeID      string `json:"employee_id,omitempty"`
}

func toResourceDTO(r importer.Resource) ResourceDTO {
	return ResourceDTO{
		ID:              r.ID,
		RoadmapID:       r.RoadmapID,
		Name:            r.Name,
		Email:           r.Email,
		WorkArea:        r.WorkArea,
		ActivityTypeCAP: r.ActivityTypeCAP,
		ActivityTypeOPX: r.ActivityTypeOPX,
		ContractType:    string(r.ContractType),
		EmployeeID:      r.EmployeeID,
	}
}

// =============================================================================
// COMMITMENTS / CAPACITY
// =============================================================================

// CreateCommitmentRequest is the request to pledge capacity.
type CreateCommitmentRequest struct {
	ResourceID     string  `json:"resource_id"`
	PeriodStart    string  `json:"period_start"` // day-month-year
	PeriodEnd      string  `json:"period_end"`   // day-month-year
	Cadence        string  `json:"cadence"`      // per-day | per-week | per-fortnight
	CommittedHours float64 `json:"committed_hours"`
}

// CommitmentDTO represents a persisted commitment.
type CommitmentDTO struct {
	ID                  string  `json:"id"`
	ResourceID          string  `json:"resource_id"`
	PeriodStart         string  `json:"period_start"`
	PeriodEnd           string  `json:"period_end"`
	Cadence             string  `json:"cadence"`
	CommittedHours      float64 `json:"committed_hours"`
	TotalAvailableHours float64 `json:"total_available_hours"`
	AllocatedHours      float64 `json:"allocated_hours"`
	RemainingCapacity   float64 `json:"remaining_capacity"`
}

func toCommitmentDTO(c capacity.Commitment) CommitmentDTO {
	return CommitmentDTO{
		ID:                  c.ID,
		ResourceID:          c.ResourceID,
		PeriodStart:         c.PeriodStart.DMY(),
		PeriodEnd:           c.PeriodEnd.DMY(),
		Cadence:             string(c.Cadence),
		CommittedHours:      f64(c.CommittedHours),
		TotalAvailableHours: f64(c.TotalAvailableHours),
		AllocatedHours:      f64(c.AllocatedHours),
		RemainingCapacity:   f64(c.RemainingCapacity),
	}
}

// CapacityDTO is the capacity query response.
type CapacityDTO struct {
	ResourceID         string  `json:"resource_id"`
	ResourceName       string  `json:"resource_name"`
	PeriodStart        string  `json:"period_start"`
	PeriodEnd          string  `json:"period_end"`
	TotalCapacityHours float64 `json:"total_capacity_hours"`
	AllocatedHours     float64 `json:"allocated_hours"`
	ActualHours        float64 `json:"actual_hours"`
	RemainingCapacity  float64 `json:"remaining_capacity"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Status             string  `json:"status"`
}

func toCapacityDTO(c capacity.Calculation) CapacityDTO {
	return CapacityDTO{
		ResourceID:         c.ResourceID,
		ResourceName:       c.ResourceName,
		PeriodStart:        c.PeriodStart.DMY(),
		PeriodEnd:          c.PeriodEnd.DMY(),
		TotalCapacityHours: f64(c.TotalCapacityHours),
		AllocatedHours:     f64(c.AllocatedHours),
		ActualHours:        f64(c.ActualHours),
		RemainingCapacity:  f64(c.RemainingCapacity),
		UtilizationPercent: f64(c.UtilizationPercent.Round(1)),
		Status:             string(c.Status),
	}
}

// CapacityReportDTO is the all-resource capacity report with its
// companion skip list.
type CapacityReportDTO struct {
	Capacities []CapacityDTO      `json:"capacities"`
	Skipped    []capacity.Skipped `json:"skipped"`
}

// CreateAllocationRequest records a feature allocation and triggers the
// allocated-hours recompute for the resource.
type CreateAllocationRequest struct {
	ResourceID     string  `json:"resource_id"`
	ProjectID      string  `json:"project_id,omitempty"`
	FeatureName    string  `json:"feature_name,omitempty"`
	AllocatedHours float64 `json:"allocated_hours"`
}

// =============================================================================
// FINANCE
// =============================================================================

// FinanceLedgerRowDTO is one reconciled workstream row.
type FinanceLedgerRowDTO struct {
	WorkstreamID    string  `json:"workstream_id"`
	Code            string  `json:"code,omitempty"`
	Name            string  `json:"name"`
	CostReceiver    string  `json:"cost_receiver,omitempty"`
	Budget          float64 `json:"budget"`
	Forecast        float64 `json:"forecast"`
	Actual          float64 `json:"actual"`
	Variance        float64 `json:"variance"`
	VariancePercent float64 `json:"variance_percent"`
	VarianceDisplay string  `json:"variance_display"`
}

// FinanceSummaryDTO aggregates the ledger.
type FinanceSummaryDTO struct {
	Budget          float64 `json:"budget"`
	Forecast        float64 `json:"forecast"`
	Actual          float64 `json:"actual"`
	Variance        float64 `json:"variance"`
	VariancePercent float64 `json:"variance_percent"`
	Workstreams     int     `json:"workstreams"`
	BudgetDisplay   string  `json:"budget_display"`
	ActualDisplay   string  `json:"actual_display"`
	VarianceDisplay string  `json:"variance_display"`
}

func toLedgerRowDTO(row finance.LedgerRow, currency string) FinanceLedgerRowDTO {
	return FinanceLedgerRowDTO{
		WorkstreamID:    row.WorkstreamID,
		Code:            row.Code,
		Name:            row.Name,
		CostReceiver:    row.CostReceiver,
		Budget:          f64(row.Budget),
		Forecast:        f64(row.Forecast),
		Actual:          f64(row.Actual),
		Variance:        f64(row.Variance),
		VariancePercent: f64(row.VariancePercent.Round(1)),
		VarianceDisplay: finance.Display(row.Variance, currency),
	}
}

func toSummaryDTO(s finance.Summary, currency string) FinanceSummaryDTO {
	return FinanceSummaryDTO{
		Budget:          f64(s.Budget),
		Forecast:        f64(s.Forecast),
		Actual:          f64(s.Actual),
		Variance:        f64(s.Variance),
		VariancePercent: f64(s.VariancePercent.Round(1)),
		Workstreams:     s.Workstreams,
		BudgetDisplay:   finance.Display(s.Budget, currency),
		ActualDisplay:   finance.Display(s.Actual, currency),
		VarianceDisplay: finance.Display(s.Variance, currency),
	}
}

// =============================================================================
// HOLIDAYS / REFERENCE DATA
// =============================================================================

// HolidayDTO represents a public holiday.
type HolidayDTO struct {
	ID     string `json:"id"`
	Date   string `json:"date"` // day-month-year
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}

// CreateHolidayRequest is the request to add a holiday.
type CreateHolidayRequest struct {
	Date   string `json:"date"` // day-month-year
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}

func toHolidayDTO(h calendar.PublicHoliday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.DMY(), Name: h.Name, Region: h.Region}
}

// SaveWorkstreamRequest upserts workstream reference data.
type SaveWorkstreamRequest struct {
	ID             string  `json:"id,omitempty"`
	ProjectID      string  `json:"project_id,omitempty"`
	Code           string  `json:"code"`
	Name           string  `json:"name,omitempty"`
	CostReceiver   string  `json:"cost_receiver,omitempty"`
	Budget         float64 `json:"budget"`
	ForecastBudget float64 `json:"forecast_budget"`
}

// SaveLabourRateRequest upserts one rate-table entry.
type SaveLabourRateRequest struct {
	ActivityType string  `json:"activity_type"`
	HourlyRate   float64 `json:"hourly_rate"`
}

// CategorizeResultDTO reports the categorization pass outcome.
type CategorizeResultDTO struct {
	Classified int `json:"classified"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
