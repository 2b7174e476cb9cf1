/*
Package capacity provides the resource capacity commitment engine.

PURPOSE:
  A commitment is a capacity pledge: "this person gives 8 hours per day
  between these dates". This package converts that pledge into total
  available hours (via the working-day calendar), tracks how much of it is
  allocated to features, and computes utilization against actual timesheet
  hours.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cadence: The unit period a commitment is expressed over
  - Commitment: The persisted pledge with its derived hour fields
  - Calculation: A utilization report for one resource and window
  - Status: under-utilized / optimal / over-committed classification

INVARIANT:
  RemainingCapacity == TotalAvailableHours - AllocatedHours after every
  allocated-hours recompute. The engine owns both writes.

SEE ALSO:
  - engine.go: The cadence math and utilization calculation
  - calendar/: Working-day counting
*/
package capacity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
)

// =============================================================================
// CADENCE
// =============================================================================

// Cadence is the unit period over which committed hours are expressed.
type Cadence string

const (
	CadencePerDay       Cadence = "per-day"
	CadencePerWeek      Cadence = "per-week"
	CadencePerFortnight Cadence = "per-fortnight"
)

// divisor returns how many working days one cadence unit spans.
// Unknown cadences report !ok and must reject the commitment.
func (c Cadence) divisor() (decimal.Decimal, bool) {
	switch c {
	case CadencePerDay:
		return decimal.NewFromInt(1), true
	case CadencePerWeek:
		return decimal.NewFromInt(5), true
	case CadencePerFortnight:
		return decimal.NewFromInt(10), true
	}
	return decimal.Zero, false
}

// =============================================================================
// COMMITMENT
// =============================================================================

// Commitment is a persisted capacity pledge for a resource over a period.
// TotalAvailableHours is derived at creation; AllocatedHours and
// RemainingCapacity are rewritten whenever allocations change.
type Commitment struct {
	ID                  string
	ResourceID          string
	PeriodStart         calendar.Date
	PeriodEnd           calendar.Date
	Cadence             Cadence
	CommittedHours      decimal.Decimal
	TotalAvailableHours decimal.Decimal
	AllocatedHours      decimal.Decimal
	RemainingCapacity   decimal.Decimal
	CreatedAt           time.Time
}

// NewCommitment is the creation request; the derived fields are computed
// by the engine.
type NewCommitment struct {
	ResourceID     string
	PeriodStart    calendar.Date
	PeriodEnd      calendar.Date
	Cadence        Cadence
	CommittedHours decimal.Decimal
}

// =============================================================================
// FEATURE ALLOCATION (external collaborator entity)
// =============================================================================

// Allocation is a feature allocation: hours pledged from a resource to a
// project feature. The planning tool owns these; this engine only reads
// them as the "allocated" source for capacity and finance numbers.
type Allocation struct {
	ID             string
	ResourceID     string
	ProjectID      string
	FeatureName    string
	AllocatedHours decimal.Decimal
}

// =============================================================================
// CALCULATION
// =============================================================================

// Status classifies utilization. 70-100% inclusive is optimal.
type Status string

const (
	StatusUnderUtilized Status = "under-utilized"
	StatusOptimal       Status = "optimal"
	StatusOverCommitted Status = "over-committed"
)

var (
	underUtilizedBelow = decimal.NewFromInt(70)
	overCommittedAbove = decimal.NewFromInt(100)
)

// ClassifyUtilization maps a utilization percentage to a status.
func ClassifyUtilization(percent decimal.Decimal) Status {
	switch {
	case percent.LessThan(underUtilizedBelow):
		return StatusUnderUtilized
	case percent.GreaterThan(overCommittedAbove):
		return StatusOverCommitted
	}
	return StatusOptimal
}

// Calculation is the utilization report for one resource over a window.
type Calculation struct {
	ResourceID         string
	ResourceName       string
	PeriodStart        calendar.Date
	PeriodEnd          calendar.Date
	TotalCapacityHours decimal.Decimal
	AllocatedHours     decimal.Decimal
	ActualHours        decimal.Decimal
	RemainingCapacity  decimal.Decimal
	UtilizationPercent decimal.Decimal
	Status             Status
}

// Skipped records a resource omitted from the all-resource report, with
// the reason, so the aggregate stays best-effort without swallowing
// failures.
type Skipped struct {
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}
