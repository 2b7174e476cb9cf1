/*
engine.go - Capacity commitment creation and utilization calculation

PURPOSE:
  The core capacity algorithm:

    total_available_hours = committed_hours × working_days / cadence_divisor
    allocated_hours       = Σ feature allocations for the resource
    remaining_capacity    = total_available_hours - allocated_hours
    utilization_percent   = actual_hours / total_available_hours × 100

  The recompute of allocated hours is pull-based: the engine exposes
  UpdateAllocatedHours and an external trigger calls it whenever an
  allocation changes. Last writer wins; there is no subscription.

SEE ALSO:
  - types.go: Cadence, Commitment, Calculation
  - calendar/calendar.go: Working-day counting
  - store/sqlite/sqlite.go: Store implementation
*/
package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/importer"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownCadence rejects commitment creation outright; a commitment
	// with an unintelligible cadence would poison every downstream number.
	ErrUnknownCadence = errors.New("unknown commitment cadence")

	// ErrNoCommitment is returned when no commitment covers the requested
	// window. Callers get this error, never a zero-filled calculation.
	ErrNoCommitment = errors.New("no commitment found")

	// ErrResourceNotFound is returned for capacity queries against an
	// unknown resource.
	ErrResourceNotFound = errors.New("resource not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence collaborator for the capacity engine.
type Store interface {
	InsertCommitment(ctx context.Context, c Commitment) error

	// ListCommitments returns all commitments for a resource, most recently
	// created first.
	ListCommitments(ctx context.Context, resourceID string) ([]Commitment, error)

	// LatestCommitmentCovering returns the most recently created commitment
	// for the resource whose period overlaps [start, end], or nil.
	LatestCommitmentCovering(ctx context.Context, resourceID string, start, end calendar.Date) (*Commitment, error)

	// SetCommitmentAllocation rewrites the derived allocation fields.
	SetCommitmentAllocation(ctx context.Context, commitmentID string, allocated, remaining decimal.Decimal) error

	// SumAllocatedHours totals FeatureAllocation hours for a resource.
	SumAllocatedHours(ctx context.Context, resourceID string) (decimal.Decimal, error)

	// SumTimesheetHours totals imported timesheet hours attributed to the
	// resource (matched on personnel number or employee name) whose date
	// falls within [from, to].
	SumTimesheetHours(ctx context.Context, personnelNumber, employeeName string, from, to calendar.Date) (decimal.Decimal, error)

	GetResource(ctx context.Context, resourceID string) (*importer.Resource, error)
	ListResources(ctx context.Context) ([]importer.Resource, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes commitment totals and utilization.
type Engine struct {
	store Store
	cal   *calendar.Engine
	newID func() string
	now   func() time.Time
}

// NewEngine creates a capacity engine with explicit dependencies.
func NewEngine(store Store, cal *calendar.Engine, newID func() string, now func() time.Time) *Engine {
	return &Engine{store: store, cal: cal, newID: newID, now: now}
}

// CreateCommitment derives total available hours from the cadence and the
// working-day count, then persists the commitment with zero allocation.
func (e *Engine) CreateCommitment(ctx context.Context, req NewCommitment) (*Commitment, error) {
	divisor, ok := req.Cadence.divisor()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCadence, req.Cadence)
	}
	if req.CommittedHours.IsNegative() {
		return nil, fmt.Errorf("committed hours must be non-negative, got %s", req.CommittedHours)
	}

	resource, err := e.store.GetResource(ctx, req.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource %s: %w", req.ResourceID, err)
	}
	if resource == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, req.ResourceID)
	}

	workingDays, err := e.cal.WorkingDaysBetween(ctx, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count working days: %w", err)
	}

	total := req.CommittedHours.Mul(decimal.NewFromInt(int64(workingDays))).Div(divisor)

	commitment := Commitment{
		ID:                  e.newID(),
		ResourceID:          req.ResourceID,
		PeriodStart:         req.PeriodStart,
		PeriodEnd:           req.PeriodEnd,
		Cadence:             req.Cadence,
		CommittedHours:      req.CommittedHours,
		TotalAvailableHours: total,
		AllocatedHours:      decimal.Zero,
		RemainingCapacity:   total,
		CreatedAt:           e.now().UTC(),
	}
	if err := e.store.InsertCommitment(ctx, commitment); err != nil {
		return nil, fmt.Errorf("failed to persist commitment: %w", err)
	}
	return &commitment, nil
}

// UpdateAllocatedHours recomputes allocated hours from feature allocations
// and rewrites remaining capacity on every commitment for the resource.
// An external trigger calls this whenever an allocation changes.
func (e *Engine) UpdateAllocatedHours(ctx context.Context, resourceID string) error {
	allocated, err := e.store.SumAllocatedHours(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to sum allocations for %s: %w", resourceID, err)
	}

	commitments, err := e.store.ListCommitments(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to load commitments for %s: %w", resourceID, err)
	}
	for _, c := range commitments {
		remaining := c.TotalAvailableHours.Sub(allocated)
		if err := e.store.SetCommitmentAllocation(ctx, c.ID, allocated, remaining); err != nil {
			return fmt.Errorf("failed to update commitment %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetCapacityCalculation computes utilization for a resource over a window.
// It fails with ErrNoCommitment when no commitment covers the window.
func (e *Engine) GetCapacityCalculation(ctx context.Context, resourceID string, periodStart, periodEnd calendar.Date) (*Calculation, error) {
	resource, err := e.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource %s: %w", resourceID, err)
	}
	if resource == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, resourceID)
	}

	commitment, err := e.store.LatestCommitmentCovering(ctx, resourceID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to look up commitment for %s: %w", resourceID, err)
	}
	if commitment == nil {
		return nil, fmt.Errorf("%w for resource %s in period %s to %s",
			ErrNoCommitment, resourceID, periodStart, periodEnd)
	}

	actual, err := e.store.SumTimesheetHours(ctx, resource.EmployeeID, resource.Name, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to sum timesheet hours for %s: %w", resourceID, err)
	}

	utilization := decimal.Zero
	if !commitment.TotalAvailableHours.IsZero() {
		utilization = actual.Div(commitment.TotalAvailableHours).Mul(decimal.NewFromInt(100))
	}

	return &Calculation{
		ResourceID:         resourceID,
		ResourceName:       resource.Name,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		TotalCapacityHours: commitment.TotalAvailableHours,
		AllocatedHours:     commitment.AllocatedHours,
		ActualHours:        actual,
		RemainingCapacity:  commitment.RemainingCapacity,
		UtilizationPercent: utilization,
		Status:             ClassifyUtilization(utilization),
	}, nil
}

// GetAllCapacities computes the calculation for every resource over its
// most recent commitment's period. Resources whose lookup fails are
// reported in the skipped list rather than silently omitted; this is a
// best-effort aggregate, not a strict report.
func (e *Engine) GetAllCapacities(ctx context.Context) ([]Calculation, []Skipped, error) {
	resources, err := e.store.ListResources(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list resources: %w", err)
	}

	var calcs []Calculation
	var skipped []Skipped
	for _, r := range resources {
		commitments, err := e.store.ListCommitments(ctx, r.ID)
		if err != nil {
			skipped = append(skipped, Skipped{ResourceID: r.ID, Reason: err.Error()})
			continue
		}
		if len(commitments) == 0 {
			skipped = append(skipped, Skipped{ResourceID: r.ID, Reason: "no commitment"})
			continue
		}
		latest := commitments[0]

		calc, err := e.GetCapacityCalculation(ctx, r.ID, latest.PeriodStart, latest.PeriodEnd)
		if err != nil {
			skipped = append(skipped, Skipped{ResourceID: r.ID, Reason: err.Error()})
			continue
		}
		calcs = append(calcs, *calc)
	}
	return calcs, skipped, nil
}
