/*
engine.go - Workstream variance reconciliation

PURPOSE:
  Computes the finance ledger: one row per workstream with budget,
  forecast, actual, and variance. Forecast comes from allocations priced
  at labour rates; when no allocation prices out for a workstream, the
  workstream's stored forecast budget is used instead. Actual spend is the
  sum of imported ledger postings attributed by WBS cost receiver,
  optionally narrowed to a reporting month.

FAILURE SEMANTICS:
  Store failures are wrapped with context and propagated. Absence of data
  is not a failure: zero workstreams fall back to the project-level
  financial detail, and zero actuals produce zero-valued rows.

SEE ALSO:
  - types.go: Inputs and outputs
  - importer/actuals.go: Where the actuals come from
*/
package finance

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence collaborator for the reconciliation engine.
// All of it is read-only reference and imported data.
type Store interface {
	// ListWorkstreams returns workstream reference rows, optionally
	// filtered to one project ("" = all).
	ListWorkstreams(ctx context.Context, projectID string) ([]Workstream, error)

	// GetProjectFinancialDetail returns the project-level summary row,
	// or nil when none exists.
	GetProjectFinancialDetail(ctx context.Context, projectID string) (*ProjectFinancialDetail, error)

	// ListRatedAllocations returns feature allocations joined with their
	// resource's activity-type tags, optionally filtered to one project.
	ListRatedAllocations(ctx context.Context, projectID string) ([]RatedAllocation, error)

	// ListLabourRates returns the full rate table.
	ListLabourRates(ctx context.Context) ([]LabourRate, error)

	// SumActuals totals imported ledger amounts for a WBS cost receiver,
	// optionally narrowed to a reporting month ("" = all months).
	// An empty cost receiver sums across all postings.
	SumActuals(ctx context.Context, costReceiver, month string) (decimal.Decimal, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine reconciles budget, forecast, and actuals per workstream.
type Engine struct {
	store Store
}

// NewEngine creates a finance engine backed by store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// GetLedger returns one reconciled row per workstream. With zero
// workstream records it falls back to a single project-level row; with
// zero data everywhere it returns zero-valued rows, never an error.
func (e *Engine) GetLedger(ctx context.Context, projectID, month string) ([]LedgerRow, error) {
	workstreams, err := e.store.ListWorkstreams(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstreams: %w", err)
	}
	if len(workstreams) == 0 {
		return e.fallbackLedger(ctx, projectID, month)
	}

	forecasts, err := e.allocationForecasts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	rows := make([]LedgerRow, 0, len(workstreams))
	for _, ws := range workstreams {
		forecast := forecasts[ws.Code]
		if forecast.IsZero() {
			// No allocation priced out for this workstream; use the
			// stored forecast budget.
			forecast = ws.ForecastBudget
		}

		actual, err := e.store.SumActuals(ctx, ws.CostReceiver, month)
		if err != nil {
			return nil, fmt.Errorf("failed to sum actuals for workstream %s: %w", ws.Code, err)
		}

		variance := actual.Sub(forecast)
		rows = append(rows, LedgerRow{
			WorkstreamID:    ws.ID,
			Code:            ws.Code,
			Name:            ws.Name,
			CostReceiver:    ws.CostReceiver,
			Budget:          ws.Budget,
			Forecast:        forecast,
			Actual:          actual,
			Variance:        variance,
			VariancePercent: variancePercent(variance, forecast),
		})
	}
	return rows, nil
}

// GetSummary sums the ledger rows and recomputes the overall variance
// percent from the summed values.
func (e *Engine) GetSummary(ctx context.Context, projectID, month string) (*Summary, error) {
	rows, err := e.GetLedger(ctx, projectID, month)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Workstreams: len(rows)}
	for _, row := range rows {
		summary.Budget = summary.Budget.Add(row.Budget)
		summary.Forecast = summary.Forecast.Add(row.Forecast)
		summary.Actual = summary.Actual.Add(row.Actual)
	}
	summary.Variance = summary.Actual.Sub(summary.Forecast)
	summary.VariancePercent = variancePercent(summary.Variance, summary.Forecast)
	return summary, nil
}

// allocationForecasts prices every allocation against the rate table and
// buckets the result by workstream code. An allocation contributes to the
// workstream its priced activity-type tag encodes ("N3_CAP" -> "N3");
// the capital tag wins when both tags price out.
func (e *Engine) allocationForecasts(ctx context.Context, projectID string) (map[string]decimal.Decimal, error) {
	allocations, err := e.store.ListRatedAllocations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	rateRows, err := e.store.ListLabourRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labour rates: %w", err)
	}
	rates := make(map[string]decimal.Decimal, len(rateRows))
	for _, r := range rateRows {
		rates[r.ActivityType] = r.HourlyRate
	}

	forecasts := make(map[string]decimal.Decimal)
	for _, alloc := range allocations {
		for _, tag := range []string{alloc.ActivityTypeCAP, alloc.ActivityTypeOPX} {
			rate, ok := rates[tag]
			if !ok {
				continue
			}
			code := workstreamCode(tag)
			forecasts[code] = forecasts[code].Add(alloc.AllocatedHours.Mul(rate))
			break
		}
	}
	return forecasts, nil
}

// workstreamCode extracts the workstream prefix from an activity-type
// code: "N3_CAP" -> "N3".
func workstreamCode(activityType string) string {
	if i := strings.IndexByte(activityType, '_'); i > 0 {
		return activityType[:i]
	}
	return activityType
}

// fallbackLedger builds a single row from the project-level financial
// detail when no workstream records exist.
func (e *Engine) fallbackLedger(ctx context.Context, projectID, month string) ([]LedgerRow, error) {
	detail, err := e.store.GetProjectFinancialDetail(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project financial detail: %w", err)
	}
	if detail == nil {
		return []LedgerRow{}, nil
	}

	actual, err := e.store.SumActuals(ctx, "", month)
	if err != nil {
		return nil, fmt.Errorf("failed to sum actuals: %w", err)
	}

	variance := actual.Sub(detail.ForecastBudget)
	return []LedgerRow{{
		WorkstreamID:    detail.ProjectID,
		Name:            detail.Name,
		Budget:          detail.Budget,
		Forecast:        detail.ForecastBudget,
		Actual:          actual,
		Variance:        variance,
		VariancePercent: variancePercent(variance, detail.ForecastBudget),
	}}, nil
}
