/*
Package finance provides the budget/forecast/actual variance reconciliation
engine.

PURPOSE:
  For each financial workstream, reconcile three numbers: the stored
  budget, a forecast derived from feature allocations priced at labour
  rates, and actual spend summed from imported ledger postings. Variance
  is actual minus forecast, reported absolutely and as a percentage.

KEY CONCEPTS IN THIS FILE (types.go):
  - Workstream: Reference data carrying the budget and the WBS cost
    receiver that attributes ledger postings to it
  - LabourRate: Hourly rate keyed by activity-type code (e.g. N3_CAP)
  - RatedAllocation: A feature allocation joined with its resource's
    activity-type tags, ready for pricing
  - LedgerRow / Summary: The reconciliation outputs

SIGN CONVENTION:
  variance = actual - forecast. Overspend is positive, regardless of how
  the caller feels about it.

SEE ALSO:
  - engine.go: The reconciliation computation
  - money.go: Display formatting for amounts
*/
package finance

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE DATA (read-only inputs)
// =============================================================================

// Workstream is per-workstream reference data. Code is the workstream tag
// prefix ("N3") that resource activity types encode; CostReceiver is the
// WBS element that attributes ledger postings here.
type Workstream struct {
	ID             string
	ProjectID      string
	Code           string
	Name           string
	CostReceiver   string
	Budget         decimal.Decimal
	ForecastBudget decimal.Decimal
}

// ProjectFinancialDetail is the project-level summary row used when a
// project has no workstream records at all.
type ProjectFinancialDetail struct {
	ProjectID      string
	Name           string
	Budget         decimal.Decimal
	ForecastBudget decimal.Decimal
}

// LabourRate prices one activity-type code.
type LabourRate struct {
	ActivityType string
	HourlyRate   decimal.Decimal
}

// RatedAllocation is a feature allocation joined with the allocated
// resource's activity-type tags.
type RatedAllocation struct {
	ResourceID      string
	AllocatedHours  decimal.Decimal
	ActivityTypeCAP string
	ActivityTypeOPX string
}

// =============================================================================
// OUTPUTS
// =============================================================================

// LedgerRow is the reconciliation result for one workstream.
type LedgerRow struct {
	WorkstreamID    string
	Code            string
	Name            string
	CostReceiver    string
	Budget          decimal.Decimal
	Forecast        decimal.Decimal
	Actual          decimal.Decimal
	Variance        decimal.Decimal
	VariancePercent decimal.Decimal
}

// Summary aggregates every ledger row. The overall variance percent is
// recomputed from the summed values, never averaged across rows, to avoid
// weighting distortion.
type Summary struct {
	Budget          decimal.Decimal
	Forecast        decimal.Decimal
	Actual          decimal.Decimal
	Variance        decimal.Decimal
	VariancePercent decimal.Decimal
	Workstreams     int
}

// variancePercent computes variance/forecast × 100, 0 when forecast is 0.
func variancePercent(variance, forecast decimal.Decimal) decimal.Decimal {
	if forecast.IsZero() {
		return decimal.Zero
	}
	return variance.Div(forecast).Mul(decimal.NewFromInt(100))
}
