package capacity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/capacity"
	"github.com/warp/finrecon/importer"
	"github.com/warp/finrecon/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*capacity.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := func() time.Time { return time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC) }
	eng := capacity.NewEngine(store, calendar.NewEngine(store), uuid.NewString, now)
	return eng, store
}

func insertResource(t *testing.T, store *sqlite.Store, r importer.Resource) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx importer.Tx) error {
		return tx.UpsertResource(context.Background(), r)
	})
	require.NoError(t, err)
}

func insertTimesheetHours(t *testing.T, store *sqlite.Store, personnelNumber, name string, date calendar.Date, hours int64) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx importer.Tx) error {
		return tx.InsertTimesheetEntry(context.Background(), importer.TimesheetEntry{
			ID:              uuid.NewString(),
			EmployeeName:    name,
			PersonnelNumber: personnelNumber,
			Date:            date,
			Hours:           decimal.NewFromInt(hours),
			ImportedAt:      time.Now().UTC(),
		})
	})
	require.NoError(t, err)
}

func alice() importer.Resource {
	return importer.Resource{
		ID:           "res-alice",
		Name:         "Alice Nguyen",
		ContractType: importer.ContractFTE,
		EmployeeID:   "10001",
	}
}

// Mon 3 Mar - Fri 14 Mar 2025: ten working days, no holidays.
var (
	periodStart = calendar.NewDate(2025, time.March, 3)
	periodEnd   = calendar.NewDate(2025, time.March, 14)
)

// =============================================================================
// COMMITMENT CREATION
// =============================================================================

func TestCreateCommitment_PerDay(t *testing.T) {
	// GIVEN: A per-day 8h commitment over ten working days
	// WHEN: Creating it
	// THEN: 80 total available hours, all remaining

	eng, store := newTestEngine(t)
	insertResource(t, store, alice())

	c, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)

	assert.True(t, c.TotalAvailableHours.Equal(decimal.NewFromInt(80)), "got %s", c.TotalAvailableHours)
	assert.True(t, c.AllocatedHours.IsZero())
	assert.True(t, c.RemainingCapacity.Equal(decimal.NewFromInt(80)))
}

func TestCreateCommitment_PerWeekAndPerFortnight(t *testing.T) {
	// A weekly pledge spreads over 5 working days, a fortnightly one over 10.
	eng, store := newTestEngine(t)
	insertResource(t, store, alice())

	weekly, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerWeek,
		CommittedHours: decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.True(t, weekly.TotalAvailableHours.Equal(decimal.NewFromInt(40)), "got %s", weekly.TotalAvailableHours)

	fortnightly, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerFortnight,
		CommittedHours: decimal.NewFromInt(60),
	})
	require.NoError(t, err)
	assert.True(t, fortnightly.TotalAvailableHours.Equal(decimal.NewFromInt(60)), "got %s", fortnightly.TotalAvailableHours)
}

func TestCreateCommitment_HolidayShrinksTotal(t *testing.T) {
	// GIVEN: A public holiday inside the commitment period
	// WHEN: Creating a per-day 8h commitment
	// THEN: Nine working days remain, so 72 hours

	eng, store := newTestEngine(t)
	insertResource(t, store, alice())
	require.NoError(t, store.InsertHoliday(context.Background(), calendar.PublicHoliday{
		Date: calendar.NewDate(2025, time.March, 10),
		Name: "Labour Day",
	}))

	c, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)
	assert.True(t, c.TotalAvailableHours.Equal(decimal.NewFromInt(72)), "got %s", c.TotalAvailableHours)
}

func TestCreateCommitment_UnknownCadence(t *testing.T) {
	eng, store := newTestEngine(t)
	insertResource(t, store, alice())

	_, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.Cadence("per-month"),
		CommittedHours: decimal.NewFromInt(8),
	})
	assert.ErrorIs(t, err, capacity.ErrUnknownCadence)
}

func TestCreateCommitment_UnknownResource(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-ghost",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	assert.ErrorIs(t, err, capacity.ErrResourceNotFound)
}

// =============================================================================
// ALLOCATED HOURS RECOMPUTE
// =============================================================================

func TestUpdateAllocatedHours(t *testing.T) {
	// GIVEN: An 80h commitment and two feature allocations (30h + 20h)
	// WHEN: Recomputing allocated hours
	// THEN: allocated = 50, remaining = total - allocated = 30

	eng, store := newTestEngine(t)
	insertResource(t, store, alice())

	_, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)

	for _, hours := range []int64{30, 20} {
		require.NoError(t, store.InsertAllocation(context.Background(), capacity.Allocation{
			ResourceID:     "res-alice",
			ProjectID:      "proj-1",
			FeatureName:    "Feature",
			AllocatedHours: decimal.NewFromInt(hours),
		}))
	}
	require.NoError(t, eng.UpdateAllocatedHours(context.Background(), "res-alice"))

	commitments, err := store.ListCommitments(context.Background(), "res-alice")
	require.NoError(t, err)
	require.Len(t, commitments, 1)

	c := commitments[0]
	assert.True(t, c.AllocatedHours.Equal(decimal.NewFromInt(50)), "got %s", c.AllocatedHours)
	assert.True(t, c.RemainingCapacity.Equal(c.TotalAvailableHours.Sub(c.AllocatedHours)))
}

// =============================================================================
// UTILIZATION
// =============================================================================

func TestGetCapacityCalculation(t *testing.T) {
	// GIVEN: An 80h commitment and 64 actual hours booked by personnel number
	// WHEN: Calculating utilization over the period
	// THEN: 80% utilization, optimal

	eng, store := newTestEngine(t)
	insertResource(t, store, alice())

	_, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)

	for day := 0; day < 8; day++ {
		insertTimesheetHours(t, store, "10001", "Alice Nguyen", periodStart.AddDays(day), 8)
	}

	calc, err := eng.GetCapacityCalculation(context.Background(), "res-alice", periodStart, periodEnd)
	require.NoError(t, err)

	assert.True(t, calc.ActualHours.Equal(decimal.NewFromInt(64)), "got %s", calc.ActualHours)
	assert.True(t, calc.UtilizationPercent.Equal(decimal.NewFromInt(80)), "got %s", calc.UtilizationPercent)
	assert.Equal(t, capacity.StatusOptimal, calc.Status)
	assert.Equal(t, "Alice Nguyen", calc.ResourceName)
}

func TestGetCapacityCalculation_MatchesByEmployeeName(t *testing.T) {
	// A resource without an employee ID still accrues hours booked under
	// the exact employee name.
	eng, store := newTestEngine(t)
	insertResource(t, store, importer.Resource{
		ID:           "res-squad",
		Name:         "Squad Delta",
		ContractType: importer.ContractExternalSquad,
	})

	_, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-squad",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)

	insertTimesheetHours(t, store, "", "Squad Delta", periodStart, 8)

	calc, err := eng.GetCapacityCalculation(context.Background(), "res-squad", periodStart, periodEnd)
	require.NoError(t, err)
	assert.True(t, calc.ActualHours.Equal(decimal.NewFromInt(8)), "got %s", calc.ActualHours)
}

func TestGetCapacityCalculation_NoCommitmentIsAnError(t *testing.T) {
	// Callers get an explicit error, never a zero-filled calculation.
	eng, store := newTestEngine(t)
	insertResource(t, store, alice())

	_, err := eng.GetCapacityCalculation(context.Background(), "res-alice", periodStart, periodEnd)
	assert.ErrorIs(t, err, capacity.ErrNoCommitment)
}

func TestGetCapacityCalculation_UnknownResource(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.GetCapacityCalculation(context.Background(), "res-ghost", periodStart, periodEnd)
	assert.ErrorIs(t, err, capacity.ErrResourceNotFound)
}

func TestClassifyUtilization_Boundaries(t *testing.T) {
	cases := []struct {
		percent string
		want    capacity.Status
	}{
		{"0", capacity.StatusUnderUtilized},
		{"69.9", capacity.StatusUnderUtilized},
		{"70", capacity.StatusOptimal},
		{"85", capacity.StatusOptimal},
		{"100", capacity.StatusOptimal},
		{"100.1", capacity.StatusOverCommitted},
		{"150", capacity.StatusOverCommitted},
	}
	for _, tc := range cases {
		got := capacity.ClassifyUtilization(decimal.RequireFromString(tc.percent))
		assert.Equal(t, tc.want, got, "percent %s", tc.percent)
	}
}

// =============================================================================
// ALL-RESOURCE REPORT
// =============================================================================

func TestGetAllCapacities_SkipsWithReason(t *testing.T) {
	// GIVEN: One resource with a commitment and one without
	// WHEN: Building the all-resource report
	// THEN: One calculation, one skipped entry naming the reason

	eng, store := newTestEngine(t)
	insertResource(t, store, alice())
	insertResource(t, store, importer.Resource{
		ID:           "res-bob",
		Name:         "Bob Carter",
		ContractType: importer.ContractSOW,
		EmployeeID:   "10002",
	})

	_, err := eng.CreateCommitment(context.Background(), capacity.NewCommitment{
		ResourceID:     "res-alice",
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Cadence:        capacity.CadencePerDay,
		CommittedHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)

	calcs, skipped, err := eng.GetAllCapacities(context.Background())
	require.NoError(t, err)

	require.Len(t, calcs, 1)
	assert.Equal(t, "res-alice", calcs[0].ResourceID)

	require.Len(t, skipped, 1)
	assert.Equal(t, "res-bob", skipped[0].ResourceID)
	assert.Equal(t, "no commitment", skipped[0].Reason)
}
