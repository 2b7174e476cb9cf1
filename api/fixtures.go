/*
fixtures.go - Demo data seeding

PURPOSE:
  Seeds a small, coherent demo dataset through the real import pipeline
  and engines - no direct table writes - so a fresh database immediately
  has something to show in the capacity and finance reports. Useful for
  demos and for poking the API by hand.

THE DATASET:
  Three resources (an FTE, an SOW contractor, an external squad slot),
  one public holiday, one capacity commitment each, feature allocations,
  two workstreams with budgets and labour rates, a month of timesheet
  rows, and a handful of ledger postings that the categorization pass
  can classify.

SEE ALSO:
  - handlers.go: The endpoints this seeds through
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/capacity"
	"github.com/warp/finrecon/finance"
)

const demoResourcesCSV = `ResourceName,Contract Type,Email,WorkArea,ActivityType_CAP,ActivityType_OPX,EmployeeID
Alice Nguyen,FTE,alice.nguyen@example.com,Platform,N1_CAP,N1_OPX,10001
Bob Carter,SOW,bob.carter@example.com,Integrations,N2_CAP,Nil,10002
Squad Delta,External Squad,,Delivery,N3_CAP,Nil,10003
`

const demoTimesheetCSV = `Stream,Month,Name of employee or applicant,Personnel Number,Date,Activity Type,General receiver,Number (unit)
Platform,Mar-2025,Alice Nguyen,10001,03-03-2025,N1_CAP,WBS-N1-001,8
Platform,Mar-2025,Alice Nguyen,10001,04-03-2025,N1_CAP,WBS-N1-001,8
Platform,Mar-2025,Alice Nguyen,10001,05-03-2025,N1_OPX,WBS-N1-001,7.5
Integrations,Mar-2025,Bob Carter,10002,03-03-2025,N2_CAP,WBS-N2-001,6
Integrations,Mar-2025,Bob Carter,10002,04-03-2025,N2_CAP,WBS-N2-001,6
`

const demoActualsCSV = `Month,Posting Date,Cost Element,WBS element,Value in Obj. Crcy,Personnel Number
Mar-2025,10-03-2025,6500010,WBS-N1-001,"12,500.00",
Mar-2025,11-03-2025,6600020,WBS-N1-001,"3,200.00",
Mar-2025,12-03-2025,7000110,WBS-N2-001,"8,400.00",10002
Mar-2025,14-03-2025,7000110,WBS-N2-001,"1,950.50",10002
`

// LoadDemoFixtures seeds the demo dataset.
// POST /api/fixtures/demo
func (h *Handler) LoadDemoFixtures(w http.ResponseWriter, r *http.Request) {
	if err := h.loadDemo(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load demo fixtures", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) loadDemo(ctx context.Context) error {
	// Reference data first: holiday, workstreams, rates.
	holiday := calendar.PublicHoliday{
		Date: calendar.NewDate(2025, 3, 10),
		Name: "Labour Day",
	}
	if err := h.Store.InsertHoliday(ctx, holiday); err != nil {
		return fmt.Errorf("holiday: %w", err)
	}

	workstreams := []finance.Workstream{
		{Code: "N1", Name: "Platform Uplift", ProjectID: "proj-demo", CostReceiver: "WBS-N1-001",
			Budget: decimal.NewFromInt(250000), ForecastBudget: decimal.NewFromInt(240000)},
		{Code: "N2", Name: "Partner Integrations", ProjectID: "proj-demo", CostReceiver: "WBS-N2-001",
			Budget: decimal.NewFromInt(120000), ForecastBudget: decimal.NewFromInt(110000)},
	}
	for _, ws := range workstreams {
		if err := h.Store.SaveWorkstream(ctx, ws); err != nil {
			return fmt.Errorf("workstream %s: %w", ws.Code, err)
		}
	}

	rates := []finance.LabourRate{
		{ActivityType: "N1_CAP", HourlyRate: decimal.NewFromInt(140)},
		{ActivityType: "N1_OPX", HourlyRate: decimal.NewFromInt(120)},
		{ActivityType: "N2_CAP", HourlyRate: decimal.NewFromInt(160)},
		{ActivityType: "N3_CAP", HourlyRate: decimal.NewFromInt(185)},
	}
	for _, rate := range rates {
		if err := h.Store.SaveLabourRate(ctx, rate); err != nil {
			return fmt.Errorf("rate %s: %w", rate.ActivityType, err)
		}
	}

	// Imports run through the real pipeline.
	if _, err := h.Resources.Import(ctx, demoResourcesCSV); err != nil {
		return fmt.Errorf("resources import: %w", err)
	}
	if _, err := h.Timesheets.Import(ctx, demoTimesheetCSV); err != nil {
		return fmt.Errorf("timesheet import: %w", err)
	}
	if _, err := h.Actuals.Import(ctx, demoActualsCSV); err != nil {
		return fmt.Errorf("actuals import: %w", err)
	}
	if _, err := h.Actuals.Categorize(ctx); err != nil {
		return fmt.Errorf("categorization: %w", err)
	}

	// Commitments and allocations per imported resource.
	resources, err := h.Store.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}
	for _, res := range resources {
		if _, err := h.Capacity.CreateCommitment(ctx, capacity.NewCommitment{
			ResourceID:     res.ID,
			PeriodStart:    calendar.NewDate(2025, 3, 1),
			PeriodEnd:      calendar.NewDate(2025, 3, 31),
			Cadence:        capacity.CadencePerDay,
			CommittedHours: decimal.NewFromInt(8),
		}); err != nil {
			return fmt.Errorf("commitment for %s: %w", res.Name, err)
		}

		if err := h.Store.InsertAllocation(ctx, capacity.Allocation{
			ResourceID:     res.ID,
			ProjectID:      "proj-demo",
			FeatureName:    "Demo Feature",
			AllocatedHours: decimal.NewFromInt(80),
		}); err != nil {
			return fmt.Errorf("allocation for %s: %w", res.Name, err)
		}
		if err := h.Capacity.UpdateAllocatedHours(ctx, res.ID); err != nil {
			return fmt.Errorf("recompute for %s: %w", res.Name, err)
		}
	}

	return nil
}
