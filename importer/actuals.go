/*
actuals.go - Financial actuals (ledger posting) importer and categorization

PURPOSE:
  Imports the general-ledger actuals export (one row per posting) and,
  as a separate pass, back-fills an actual-type classification on rows
  that don't have one yet. The finance reconciliation engine sums these
  amounts per workstream cost-receiver code.

VALIDATION RULES:
  - Amount must parse as a number            -> error, row rejected
  - Cost element with non-digit chars        -> warning, row still imports
  - Unparseable posting date                 -> warning, stored without date

CATEGORIZATION:
  Classification is by cost-element-code prefix (software, hardware - both
  configurable) or, failing that, by a non-zero personnel number
  (contractor). Already-categorized rows are never touched, so re-running
  the pass is idempotent: once everything classifiable is classified, a
  second run changes zero rows.

SEE ALSO:
  - importer.go: Result contract and batch runner
  - finance/engine.go: Consumes these entries as actual spend
*/
package importer

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/ingest"
)

// Actuals export column names.
const (
	acFieldMonth        = "Month"
	acFieldPostingDate  = "Posting Date"
	acFieldDocumentDate = "Document Date"
	acFieldCostElement  = "Cost Element"
	acFieldWBS          = "WBS element"
	acFieldAmount       = "Value in Obj. Crcy"
	acFieldFiscalPeriod = "Fiscal Period"
	acFieldFiscalYear   = "Fiscal Year"
	acFieldPersonnelNum = "Personnel Number"
)

var actualsRequired = []string{
	acFieldMonth,
	acFieldPostingDate,
	acFieldCostElement,
	acFieldWBS,
	acFieldAmount,
}

// CategorizationRules names the cost-element-code prefixes that identify
// software and hardware postings.
type CategorizationRules struct {
	SoftwarePrefix string
	HardwarePrefix string
}

// DefaultCategorizationRules returns the prefixes used by the standard
// chart of accounts.
func DefaultCategorizationRules() CategorizationRules {
	return CategorizationRules{SoftwarePrefix: "650", HardwarePrefix: "660"}
}

// ActualsImporter imports ledger actuals exports.
type ActualsImporter struct {
	store Store
	rules CategorizationRules
	newID func() string
	now   func() time.Time
}

// NewActualsImporter creates an actuals importer backed by store.
func NewActualsImporter(store Store, rules CategorizationRules, newID func() string, now func() time.Time) *ActualsImporter {
	return &ActualsImporter{store: store, rules: rules, newID: newID, now: now}
}

// Import parses and persists a raw actuals CSV document.
func (i *ActualsImporter) Import(ctx context.Context, csvText string) (*Result, error) {
	parsed, err := ingest.ParseCSV(csvText, i.config())
	if err != nil {
		return nil, err
	}
	return i.persist(ctx, parsed)
}

// ImportXLSX parses and persists an actuals Excel workbook.
func (i *ActualsImporter) ImportXLSX(ctx context.Context, r io.Reader) (*Result, error) {
	parsed, err := ingest.ParseXLSX(r, i.config())
	if err != nil {
		return nil, err
	}
	return i.persist(ctx, parsed)
}

func (i *ActualsImporter) config() ingest.Config {
	return ingest.Config{Required: actualsRequired, Validate: validateActualsRow}
}

func validateActualsRow(row ingest.Row) []ingest.Issue {
	var issues []ingest.Issue

	amountText := row.Get(acFieldAmount)
	if _, err := ingest.ParseAmount(amountText); err != nil {
		issues = append(issues, ingest.Errorf(row.Number, acFieldAmount, amountText,
			"invalid amount: must be a number"))
	}

	if ce := row.Get(acFieldCostElement); ce != "" && !ingest.DigitsOnly(ce) {
		issues = append(issues, ingest.Warnf(row.Number, acFieldCostElement, ce,
			"cost element is not numeric"))
	}

	if pd := row.Get(acFieldPostingDate); pd != "" {
		if _, err := calendar.ParseDMY(pd); err != nil {
			issues = append(issues, ingest.Warnf(row.Number, acFieldPostingDate, pd,
				"unrecognized posting date; row imports without one"))
		}
	}

	return issues
}

func (i *ActualsImporter) persist(ctx context.Context, parsed *ingest.Result) (*Result, error) {
	importedAt := i.now().UTC()
	return runImport(ctx, i.store, parsed, func(ctx context.Context, tx Tx, row ingest.Row) error {
		amount, err := ingest.ParseAmount(row.Get(acFieldAmount))
		if err != nil {
			return err
		}

		// Dates are advisory here; validation already warned on bad ones.
		postingDate, _ := calendar.ParseDMY(row.Get(acFieldPostingDate))
		documentDate, _ := calendar.ParseDMY(row.Get(acFieldDocumentDate))

		return tx.InsertActualEntry(ctx, ActualEntry{
			ID:              i.newID(),
			Month:           row.Get(acFieldMonth),
			PostingDate:     postingDate,
			DocumentDate:    documentDate,
			CostElement:     row.Get(acFieldCostElement),
			CostReceiver:    row.Get(acFieldWBS),
			Amount:          amount,
			FiscalPeriod:    row.Get(acFieldFiscalPeriod),
			FiscalYear:      row.Get(acFieldFiscalYear),
			PersonnelNumber: row.Get(acFieldPersonnelNum),
			ImportedAt:      importedAt,
		})
	})
}

// =============================================================================
// CATEGORIZATION PASS
// =============================================================================

// Categorize classifies every previously-uncategorized actual and returns
// how many rows were classified. Idempotent: already-classified rows are
// never reloaded, and rows matching no rule stay uncategorized.
func (i *ActualsImporter) Categorize(ctx context.Context) (int, error) {
	uncategorized, err := i.store.ListUncategorizedActuals(ctx)
	if err != nil {
		return 0, err
	}

	classified := 0
	for _, entry := range uncategorized {
		t, ok := i.classify(entry)
		if !ok {
			continue
		}
		if err := i.store.SetActualType(ctx, entry.ID, t); err != nil {
			return classified, err
		}
		classified++
	}
	return classified, nil
}

func (i *ActualsImporter) classify(entry ActualEntry) (ActualType, bool) {
	switch {
	case i.rules.SoftwarePrefix != "" && strings.HasPrefix(entry.CostElement, i.rules.SoftwarePrefix):
		return ActualSoftware, true
	case i.rules.HardwarePrefix != "" && strings.HasPrefix(entry.CostElement, i.rules.HardwarePrefix):
		return ActualHardware, true
	case nonZeroPersonnelNumber(entry.PersonnelNumber):
		return ActualContractor, true
	}
	return "", false
}

func nonZeroPersonnelNumber(pn string) bool {
	if pn == "" || !ingest.DigitsOnly(pn) {
		return false
	}
	return strings.Trim(pn, "0") != ""
}
