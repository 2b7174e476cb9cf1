/*
resource.go - Resource master data importer

PURPOSE:
  Imports the resource master data export (people and contract slots).
  Unlike the timesheet and actuals importers, persistence here is an
  upsert: the employee ID is the natural conflict key, and a re-import
  refreshes the mutable fields rather than duplicating rows.

VALIDATION RULES:
  - Contract Type outside {FTE, SOW, External Squad}  -> error, row rejected
  - Activity type not "Nil"/empty and not N[1-6]_(CAP|OPX) -> error, row rejected

UPSERT CONTRACT:
  Conflict key: EmployeeID. Overwritten on conflict: name, email, work
  area, both activity types, contract type, roadmap ID. Rows with no
  employee ID cannot conflict and are insert-only.

SEE ALSO:
  - importer.go: Tx.UpsertResource contract
  - capacity/engine.go, finance/engine.go: Consumers of resource data
*/
package importer

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/warp/finrecon/ingest"
)

// Resource export column names.
const (
	resFieldRoadmapID    = "Roadmap_ResourceID"
	resFieldName         = "ResourceName"
	resFieldEmail        = "Email"
	resFieldWorkArea     = "WorkArea"
	resFieldActivityCAP  = "ActivityType_CAP"
	resFieldActivityOPX  = "ActivityType_OPX"
	resFieldContractType = "Contract Type"
	resFieldEmployeeID   = "EmployeeID"
)

var resourceRequired = []string{
	resFieldName,
	resFieldContractType,
}

// activityTypePattern matches the workstream activity-type codes, e.g.
// N3_CAP (capital labour on workstream 3) or N1_OPX (operating labour).
var activityTypePattern = regexp.MustCompile(`^N[1-6]_(CAP|OPX)$`)

// ResourceImporter imports resource master data exports.
type ResourceImporter struct {
	store Store
	newID func() string
	now   func() time.Time
}

// NewResourceImporter creates a resource importer backed by store.
func NewResourceImporter(store Store, newID func() string, now func() time.Time) *ResourceImporter {
	return &ResourceImporter{store: store, newID: newID, now: now}
}

// Import parses and upserts a raw resource CSV document.
func (i *ResourceImporter) Import(ctx context.Context, csvText string) (*Result, error) {
	parsed, err := ingest.ParseCSV(csvText, i.config())
	if err != nil {
		return nil, err
	}
	return i.persist(ctx, parsed)
}

// ImportXLSX parses and upserts a resource Excel workbook.
func (i *ResourceImporter) ImportXLSX(ctx context.Context, r io.Reader) (*Result, error) {
	parsed, err := ingest.ParseXLSX(r, i.config())
	if err != nil {
		return nil, err
	}
	return i.persist(ctx, parsed)
}

func (i *ResourceImporter) config() ingest.Config {
	return ingest.Config{Required: resourceRequired, Validate: validateResourceRow}
}

func validateResourceRow(row ingest.Row) []ingest.Issue {
	var issues []ingest.Issue

	if ct := row.Get(resFieldContractType); ct != "" && !ValidContractType(ct) {
		issues = append(issues, ingest.Errorf(row.Number, resFieldContractType, ct,
			"invalid contract type: must be one of FTE, SOW, External Squad"))
	}

	for _, field := range []string{resFieldActivityCAP, resFieldActivityOPX} {
		v := row.Get(field)
		if v == "" || v == "Nil" {
			continue
		}
		if !activityTypePattern.MatchString(v) {
			issues = append(issues, ingest.Errorf(row.Number, field, v,
				"invalid activity type: expected N[1-6]_CAP or N[1-6]_OPX"))
		}
	}

	return issues
}

func (i *ResourceImporter) persist(ctx context.Context, parsed *ingest.Result) (*Result, error) {
	return runImport(ctx, i.store, parsed, func(ctx context.Context, tx Tx, row ingest.Row) error {
		return tx.UpsertResource(ctx, Resource{
			ID:              i.newID(),
			RoadmapID:       row.Get(resFieldRoadmapID),
			Name:            row.Get(resFieldName),
			Email:           row.Get(resFieldEmail),
			WorkArea:        row.Get(resFieldWorkArea),
			ActivityTypeCAP: normalizeActivityType(row.Get(resFieldActivityCAP)),
			ActivityTypeOPX: normalizeActivityType(row.Get(resFieldActivityOPX)),
			ContractType:    ContractType(row.Get(resFieldContractType)),
			EmployeeID:      row.Get(resFieldEmployeeID),
		})
	})
}

// normalizeActivityType maps the export's "Nil" placeholder to empty.
func normalizeActivityType(v string) string {
	if v == "Nil" {
		return ""
	}
	return v
}
