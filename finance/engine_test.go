package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finrecon/capacity"
	"github.com/warp/finrecon/finance"
	"github.com/warp/finrecon/importer"
	"github.com/warp/finrecon/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*finance.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return finance.NewEngine(store), store
}

func insertActual(t *testing.T, store *sqlite.Store, costReceiver, month, amount string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx importer.Tx) error {
		return tx.InsertActualEntry(context.Background(), importer.ActualEntry{
			ID:           uuid.NewString(),
			Month:        month,
			CostReceiver: costReceiver,
			Amount:       decimal.RequireFromString(amount),
			ImportedAt:   time.Now().UTC(),
		})
	})
	require.NoError(t, err)
}

func saveWorkstream(t *testing.T, store *sqlite.Store, code, costReceiver string, budget, forecast int64) {
	t.Helper()
	require.NoError(t, store.SaveWorkstream(context.Background(), finance.Workstream{
		ID:             "ws-" + code,
		ProjectID:      "proj-1",
		Code:           code,
		Name:           "Workstream " + code,
		CostReceiver:   costReceiver,
		Budget:         decimal.NewFromInt(budget),
		ForecastBudget: decimal.NewFromInt(forecast),
	}))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestGetLedger_VarianceIsActualMinusForecast(t *testing.T) {
	// GIVEN: A workstream forecasting 1000 with 1200 actual spend
	// WHEN: Building the ledger
	// THEN: Variance +200, 20%; overspend is positive

	eng, store := newTestEngine(t)
	saveWorkstream(t, store, "N1", "WBS-N1-001", 5000, 1000)
	insertActual(t, store, "WBS-N1-001", "Mar-2025", "700")
	insertActual(t, store, "WBS-N1-001", "Mar-2025", "500")

	rows, err := eng.GetLedger(context.Background(), "proj-1", "Mar-2025")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.True(t, row.Actual.Equal(decimal.NewFromInt(1200)), "got %s", row.Actual)
	assert.True(t, row.Variance.Equal(decimal.NewFromInt(200)), "got %s", row.Variance)
	assert.True(t, row.VariancePercent.Equal(decimal.NewFromInt(20)), "got %s", row.VariancePercent)
}

func TestGetLedger_ZeroForecastZeroPercent(t *testing.T) {
	// Division by a zero forecast is defined as 0%, not an error or Inf.
	eng, store := newTestEngine(t)
	saveWorkstream(t, store, "N1", "WBS-N1-001", 5000, 0)
	insertActual(t, store, "WBS-N1-001", "", "300")

	rows, err := eng.GetLedger(context.Background(), "proj-1", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.True(t, rows[0].Variance.Equal(decimal.NewFromInt(300)))
	assert.True(t, rows[0].VariancePercent.IsZero())
}

func TestGetLedger_MonthFilter(t *testing.T) {
	eng, store := newTestEngine(t)
	saveWorkstream(t, store, "N1", "WBS-N1-001", 5000, 1000)
	insertActual(t, store, "WBS-N1-001", "Mar-2025", "400")
	insertActual(t, store, "WBS-N1-001", "Apr-2025", "600")

	rows, err := eng.GetLedger(context.Background(), "proj-1", "Mar-2025")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Actual.Equal(decimal.NewFromInt(400)), "got %s", rows[0].Actual)

	rows, err = eng.GetLedger(context.Background(), "proj-1", "")
	require.NoError(t, err)
	assert.True(t, rows[0].Actual.Equal(decimal.NewFromInt(1000)), "got %s", rows[0].Actual)
}

func TestGetLedger_ForecastFromRatedAllocations(t *testing.T) {
	// GIVEN: An allocation of 80h on a resource tagged N1_CAP at 150/h
	// WHEN: Building the ledger
	// THEN: The N1 forecast is 12000, overriding the stored forecast budget

	eng, store := newTestEngine(t)
	saveWorkstream(t, store, "N1", "WBS-N1-001", 50000, 9999)

	err := store.WithTx(context.Background(), func(tx importer.Tx) error {
		return tx.UpsertResource(context.Background(), importer.Resource{
			ID:              "res-alice",
			Name:            "Alice Nguyen",
			ActivityTypeCAP: "N1_CAP",
			ContractType:    importer.ContractFTE,
			EmployeeID:      "10001",
		})
	})
	require.NoError(t, err)

	require.NoError(t, store.SaveLabourRate(context.Background(), finance.LabourRate{
		ActivityType: "N1_CAP",
		HourlyRate:   decimal.NewFromInt(150),
	}))
	require.NoError(t, store.InsertAllocation(context.Background(), capacity.Allocation{
		ResourceID:     "res-alice",
		ProjectID:      "proj-1",
		FeatureName:    "Feature",
		AllocatedHours: decimal.NewFromInt(80),
	}))

	rows, err := eng.GetLedger(context.Background(), "proj-1", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Forecast.Equal(decimal.NewFromInt(12000)), "got %s", rows[0].Forecast)
}

func TestGetLedger_UnpricedWorkstreamKeepsStoredForecast(t *testing.T) {
	// No rate matches the resource's tags, so the stored forecast survives.
	eng, store := newTestEngine(t)
	saveWorkstream(t, store, "N2", "WBS-N2-001", 20000, 8000)

	rows, err := eng.GetLedger(context.Background(), "proj-1", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Forecast.Equal(decimal.NewFromInt(8000)), "got %s", rows[0].Forecast)
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestGetLedger_FallbackToProjectDetail(t *testing.T) {
	// GIVEN: No workstream records, only a project-level financial detail
	// WHEN: Building the ledger
	// THEN: One project-level row over all postings

	eng, store := newTestEngine(t)
	require.NoError(t, store.SaveProjectFinancialDetail(context.Background(), finance.ProjectFinancialDetail{
		ProjectID:      "proj-1",
		Name:           "Payments Uplift",
		Budget:         decimal.NewFromInt(100000),
		ForecastBudget: decimal.NewFromInt(90000),
	}))
	insertActual(t, store, "WBS-ANY", "", "45000")

	rows, err := eng.GetLedger(context.Background(), "proj-1", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Payments Uplift", rows[0].Name)
	assert.True(t, rows[0].Actual.Equal(decimal.NewFromInt(45000)))
	assert.True(t, rows[0].Variance.Equal(decimal.NewFromInt(-45000)))
}

func TestGetLedger_NoDataAtAll(t *testing.T) {
	eng, _ := newTestEngine(t)

	rows, err := eng.GetLedger(context.Background(), "proj-1", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGetSummary_RecomputesPercentFromSums(t *testing.T) {
	// GIVEN: Two workstreams with different variances
	// WHEN: Summarizing
	// THEN: The overall percent comes from summed values, not row averages

	eng, store := newTestEngine(t)
	saveWorkstream(t, store, "N1", "WBS-N1-001", 5000, 1000)
	saveWorkstream(t, store, "N2", "WBS-N2-001", 5000, 3000)
	insertActual(t, store, "WBS-N1-001", "", "1200") // +20% on 1000
	insertActual(t, store, "WBS-N2-001", "", "3000") // +0% on 3000

	summary, err := eng.GetSummary(context.Background(), "proj-1", "")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Workstreams)
	assert.True(t, summary.Budget.Equal(decimal.NewFromInt(10000)))
	assert.True(t, summary.Forecast.Equal(decimal.NewFromInt(4000)))
	assert.True(t, summary.Actual.Equal(decimal.NewFromInt(4200)))
	assert.True(t, summary.Variance.Equal(decimal.NewFromInt(200)))
	// 200/4000 = 5%, not the 10% a naive row average would give.
	assert.True(t, summary.VariancePercent.Equal(decimal.NewFromInt(5)), "got %s", summary.VariancePercent)
}
