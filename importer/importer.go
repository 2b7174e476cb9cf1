/*
Package importer maps validated spreadsheet rows to normalized records and
persists them.

PURPOSE:
  Three domain importers (timesheet, ledger actuals, resource master data)
  share one shape: declare required headers, supply a row validator to the
  ingest pipeline, map each surviving row to a record, and persist the
  batch inside a single transaction. This file holds the shared pieces:
  the normalized record types, the store interfaces, the Result contract,
  and the batch runner.

TRANSACTION SEMANTICS:
  One transaction per import call, so a reader never sees a half-visible
  batch. Within the transaction, each row insert failure is caught,
  recorded as an error against that row, and the siblings continue. The
  transaction still commits: recordsFailed > 0 alongside success: true is
  a valid partial-success outcome, and the caller gets a structured result
  rather than an exception either way.

ROW ARITHMETIC INVARIANT:
  RecordsImported + RecordsFailed == RecordsProcessed, always. Rows
  rejected by validation and rows that failed to insert both count as
  failed.

SEE ALSO:
  - timesheet.go, actuals.go, resource.go: The three domains
  - ingest/: The parsing pipeline feeding this package
  - store/sqlite/sqlite.go: Store implementation
*/
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/ingest"
)

// =============================================================================
// NORMALIZED RECORDS
// =============================================================================

// TimesheetEntry is one person-day-activity record from a timesheet export.
// Immutable after import except the Processed flag, which a downstream
// consumer toggles.
type TimesheetEntry struct {
	ID              string
	Stream          string
	Month           string
	EmployeeName    string
	PersonnelNumber string
	Date            calendar.Date
	ActivityType    string
	CostReceiver    string
	Hours           decimal.Decimal
	ImportedAt      time.Time
	Processed       bool
}

// ActualType classifies a ledger posting. Back-filled by the
// categorization pass; never overwritten once set.
type ActualType string

const (
	ActualSoftware             ActualType = "software"
	ActualHardware             ActualType = "hardware"
	ActualContractor           ActualType = "contractor"
	ActualProfessionalServices ActualType = "professional_services"
)

// ActualEntry is one ledger posting from a financial actuals export.
type ActualEntry struct {
	ID              string
	Month           string
	PostingDate     calendar.Date
	DocumentDate    calendar.Date // zero when the export omits it
	CostElement     string
	CostReceiver    string
	Amount          decimal.Decimal
	FiscalPeriod    string
	FiscalYear      string
	PersonnelNumber string
	ActualType      ActualType // "" until categorized
	ImportedAt      time.Time
	Processed       bool
}

// ContractType is the fixed contract enumeration for a resource.
type ContractType string

const (
	ContractFTE           ContractType = "FTE"
	ContractSOW           ContractType = "SOW"
	ContractExternalSquad ContractType = "External Squad"
)

// ValidContractType reports whether s is a member of the enumeration.
func ValidContractType(s string) bool {
	switch ContractType(s) {
	case ContractFTE, ContractSOW, ContractExternalSquad:
		return true
	}
	return false
}

// Resource is a person or contract slot in the resource master data.
type Resource struct {
	ID              string
	RoadmapID       string
	Name            string
	Email           string
	WorkArea        string
	ActivityTypeCAP string
	ActivityTypeOPX string
	ContractType    ContractType
	EmployeeID      string // upsert key when present
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Tx exposes the per-record insert primitives available inside an import
// transaction. Implementations isolate failures at the statement level:
// a failed insert must not poison the enclosing transaction.
type Tx interface {
	InsertTimesheetEntry(ctx context.Context, e TimesheetEntry) error
	InsertActualEntry(ctx context.Context, e ActualEntry) error

	// UpsertResource inserts or merges on employee ID. On conflict the
	// mutable fields (name, email, work area, activity types, contract
	// type, roadmap ID) are overwritten; rows are never duplicated.
	// Resources without an employee ID are insert-only.
	UpsertResource(ctx context.Context, r Resource) error
}

// Store is the persistence collaborator for the importers.
type Store interface {
	// WithTx runs fn inside one transaction. fn returning nil commits.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// ListUncategorizedActuals returns actuals with no ActualType yet.
	ListUncategorizedActuals(ctx context.Context) ([]ActualEntry, error)

	// SetActualType classifies a single actual. Implementations must not
	// overwrite an existing classification.
	SetActualType(ctx context.Context, id string, t ActualType) error
}

// =============================================================================
// RESULT CONTRACT
// =============================================================================

// Result is what every import call returns to its caller. Callers always
// receive this structure, never a bare error, for anything short of a
// structurally unreadable document.
type Result struct {
	Success          bool           `json:"success"`
	RecordsProcessed int            `json:"recordsProcessed"`
	RecordsImported  int            `json:"recordsImported"`
	RecordsFailed    int            `json:"recordsFailed"`
	Errors           []ingest.Issue `json:"errors"`
	Warnings         []ingest.Issue `json:"warnings"`
}

// =============================================================================
// BATCH RUNNER
// =============================================================================

// runImport persists the parsed rows inside one transaction, isolating
// per-row insert failures, and assembles the Result contract.
func runImport(ctx context.Context, store Store, parsed *ingest.Result, insert func(context.Context, Tx, ingest.Row) error) (*Result, error) {
	result := &Result{
		RecordsProcessed: parsed.TotalRows,
		RecordsFailed:    parsed.ErrorRows,
		// Non-nil even when empty so the JSON contract is always
		// "errors": [] rather than null.
		Errors:   []ingest.Issue{},
		Warnings: []ingest.Issue{},
	}
	result.Errors = append(result.Errors, parsed.Errors()...)
	result.Warnings = append(result.Warnings, parsed.Warnings()...)

	err := store.WithTx(ctx, func(tx Tx) error {
		for _, row := range parsed.Rows {
			if err := insert(ctx, tx, row); err != nil {
				result.RecordsFailed++
				result.Errors = append(result.Errors,
					ingest.Errorf(row.Number, "", "", "failed to persist row: %v", err))
				continue
			}
			result.RecordsImported++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import transaction failed: %w", err)
	}

	result.Success = result.RecordsImported > 0
	return result, nil
}
