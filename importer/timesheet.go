/*
timesheet.go - Timesheet export importer

PURPOSE:
  Imports the person-day-activity timesheet export (one row per person per
  day per activity code). These rows are the "actual hours" source for the
  capacity engine.

VALIDATION RULES:
  - Date must be day-month-year            -> error, row rejected
  - Hours must parse as non-negative       -> error, row rejected
  - Hours over 24 in a single day          -> warning, row still imports
  - Personnel number with non-digit chars  -> warning, row still imports

SEE ALSO:
  - importer.go: Result contract and batch runner
  - capacity/engine.go: Consumes these entries as actual hours
*/
package importer

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/ingest"
)

// Timesheet export column names, as produced by the time-recording system.
const (
	tsFieldStream       = "Stream"
	tsFieldMonth        = "Month"
	tsFieldEmployee     = "Name of employee or applicant"
	tsFieldPersonnelNum = "Personnel Number"
	tsFieldDate         = "Date"
	tsFieldActivityType = "Activity Type"
	tsFieldReceiver     = "General receiver"
	tsFieldHours        = "Number (unit)"
)

var timesheetRequired = []string{
	tsFieldStream,
	tsFieldMonth,
	tsFieldEmployee,
	tsFieldPersonnelNum,
	tsFieldDate,
	tsFieldActivityType,
	tsFieldReceiver,
	tsFieldHours,
}

// excessiveDailyHours is the soft ceiling for a single day's entry. Crossing
// it is suspicious, not impossible (bulk corrections get posted this way).
const excessiveDailyHours = 24

var excessiveHoursLimit = decimal.NewFromInt(excessiveDailyHours)

// TimesheetImporter imports timesheet CSV/XLSX exports.
type TimesheetImporter struct {
	store Store
	newID func() string
	now   func() time.Time
}

// NewTimesheetImporter creates a timesheet importer backed by store.
func NewTimesheetImporter(store Store, newID func() string, now func() time.Time) *TimesheetImporter {
	return &TimesheetImporter{store: store, newID: newID, now: now}
}

// Import parses and persists a raw timesheet CSV document.
func (i *TimesheetImporter) Import(ctx context.Context, csvText string) (*Result, error) {
	parsed, err := ingest.ParseCSV(csvText, i.config())
	if err != nil {
		return nil, err
	}
	return i.persist(ctx, parsed)
}

// ImportXLSX parses and persists a timesheet Excel workbook.
func (i *TimesheetImporter) ImportXLSX(ctx context.Context, r io.Reader) (*Result, error) {
	parsed, err := ingest.ParseXLSX(r, i.config())
	if err != nil {
		return nil, err
	}
	return i.persist(ctx, parsed)
}

func (i *TimesheetImporter) config() ingest.Config {
	return ingest.Config{Required: timesheetRequired, Validate: validateTimesheetRow}
}

func validateTimesheetRow(row ingest.Row) []ingest.Issue {
	var issues []ingest.Issue

	dateText := row.Get(tsFieldDate)
	if _, err := calendar.ParseDMY(dateText); err != nil {
		issues = append(issues, ingest.Errorf(row.Number, tsFieldDate, dateText,
			"invalid date: expected day-month-year"))
	}

	hoursText := row.Get(tsFieldHours)
	hours, err := ingest.ParseHours(hoursText)
	if err != nil {
		issues = append(issues, ingest.Errorf(row.Number, tsFieldHours, hoursText,
			"invalid hours: must be a non-negative number"))
	} else if hours.GreaterThan(excessiveHoursLimit) {
		issues = append(issues, ingest.Warnf(row.Number, tsFieldHours, hoursText,
			"hours exceed %d for a single day", excessiveDailyHours))
	}

	if pn := row.Get(tsFieldPersonnelNum); pn != "" && !ingest.DigitsOnly(pn) {
		issues = append(issues, ingest.Warnf(row.Number, tsFieldPersonnelNum, pn,
			"personnel number is not numeric"))
	}

	return issues
}

func (i *TimesheetImporter) persist(ctx context.Context, parsed *ingest.Result) (*Result, error) {
	importedAt := i.now().UTC()
	return runImport(ctx, i.store, parsed, func(ctx context.Context, tx Tx, row ingest.Row) error {
		date, err := calendar.ParseDMY(row.Get(tsFieldDate))
		if err != nil {
			return err
		}
		hours, err := ingest.ParseHours(row.Get(tsFieldHours))
		if err != nil {
			return err
		}

		return tx.InsertTimesheetEntry(ctx, TimesheetEntry{
			ID:              i.newID(),
			Stream:          row.Get(tsFieldStream),
			Month:           row.Get(tsFieldMonth),
			EmployeeName:    row.Get(tsFieldEmployee),
			PersonnelNumber: row.Get(tsFieldPersonnelNum),
			Date:            date,
			ActivityType:    row.Get(tsFieldActivityType),
			CostReceiver:    row.Get(tsFieldReceiver),
			Hours:           hours,
			ImportedAt:      importedAt,
		})
	})
}
