/*
Package ingest provides the generic CSV import and validation pipeline.

PURPOSE:
  Every financial export entering this system (timesheets, ledger actuals,
  resource master data) flows through the same pipeline: tokenize the raw
  document into header-keyed rows, enforce required fields, run a
  domain-supplied validator per row, and report structured issues without
  halting the batch. Domain knowledge lives in the importer package; this
  package knows nothing about what the columns mean.

KEY CONCEPTS IN THIS FILE (ingest.go):
  - Row: One data row, header-keyed, carrying its spreadsheet row number
  - Issue: A structured validation finding with severity
  - Config: Required fields plus an optional per-row validator
  - Result: Usable rows, issues, and batch metadata

SEVERITY CONTRACT:
  Only error-severity issues exclude a row from Result.Rows. Warnings are
  advisory; the row still proceeds to persistence. Parsing returns a Go
  error only for a structurally unreadable document (empty, no header, or
  a required column absent from the header) - never for a bad row.

USAGE:
  result, err := ingest.ParseCSV(text, ingest.Config{
      Required: []string{"Date", "Number (unit)"},
      Validate: validateTimesheetRow,
  })

SEE ALSO:
  - fields.go: Typed parsing boundary for numeric cells
  - xlsx.go: Excel workbook adapter feeding the same pipeline
  - importer/: Domain importers built on this framework
*/
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// STRUCTURAL ERRORS - The only way Parse* returns a non-nil error
// =============================================================================

var (
	// ErrEmptyDocument is returned when the document has no rows at all.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrNoHeader is returned when the first row contains no usable field names.
	ErrNoHeader = errors.New("document has no header row")

	// ErrMissingColumns is returned when a required field is absent from the
	// header entirely. A missing column would fail every row, so it is
	// reported once, up front.
	ErrMissingColumns = errors.New("required columns missing from header")
)

// =============================================================================
// ISSUES - Structured per-row findings
// =============================================================================

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Row numbering matches the source
// spreadsheet: the header is row 1, so the first data row reports as 2.
type Issue struct {
	Row      int      `json:"row"`
	Field    string   `json:"field,omitempty"`
	Value    string   `json:"value,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Errorf builds an error-severity issue for a row.
func Errorf(row int, field, value, format string, args ...any) Issue {
	return Issue{Row: row, Field: field, Value: value, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

// Warnf builds a warning-severity issue for a row.
func Warnf(row int, field, value, format string, args ...any) Issue {
	return Issue{Row: row, Field: field, Value: value, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning}
}

// HasError reports whether any issue in the slice is error severity.
func HasError(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// =============================================================================
// ROWS
// =============================================================================

// Row is a single data row keyed by header field name.
type Row struct {
	// Number is the spreadsheet row number (header = 1, first data row = 2).
	Number int

	fields map[string]string
}

// Get returns the trimmed cell value for a field, or "" if absent.
func (r Row) Get(field string) string { return r.fields[field] }

// Empty reports whether the field is absent or blank.
func (r Row) Empty(field string) bool { return r.fields[field] == "" }

// =============================================================================
// CONFIG / RESULT
// =============================================================================

// RowValidator inspects one row and returns any issues found. Returning an
// error-severity issue excludes the row from Result.Rows.
type RowValidator func(Row) []Issue

// Config names the required header fields for a domain and its validator.
type Config struct {
	Required []string
	Validate RowValidator
}

// Result is the outcome of parsing one document.
type Result struct {
	// Rows contains only rows with no error-severity issues.
	Rows []Row

	// Issues contains every finding across the document, in row order.
	Issues []Issue

	// TotalRows is the number of non-blank data rows in the document.
	TotalRows int

	// ErrorRows is the number of rows excluded from Rows.
	ErrorRows int
}

// Errors returns only the error-severity issues.
func (r *Result) Errors() []Issue { return filterIssues(r.Issues, SeverityError) }

// Warnings returns only the warning-severity issues.
func (r *Result) Warnings() []Issue { return filterIssues(r.Issues, SeverityWarning) }

func filterIssues(issues []Issue, sev Severity) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCSV tokenizes raw CSV text and runs the validation pipeline.
func ParseCSV(text string, cfg Config) (*Result, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // exports are frequently ragged
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unreadable document: %w", err)
	}
	return parseRecords(records, cfg)
}

// parseRecords is the shared core behind the CSV and XLSX entry points.
func parseRecords(records [][]string, cfg Config) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDocument
	}

	header := make([]string, len(records[0]))
	headerSet := make(map[string]bool, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		header[i] = h
		if h != "" {
			headerSet[h] = true
		}
	}
	if len(headerSet) == 0 {
		return nil, ErrNoHeader
	}

	var missing []string
	for _, req := range cfg.Required {
		if !headerSet[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	result := &Result{}
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}

		row := Row{Number: i + 2, fields: make(map[string]string, len(header))}
		for j, cell := range record {
			if j >= len(header) || header[j] == "" {
				continue
			}
			row.fields[header[j]] = strings.TrimSpace(cell)
		}
		result.TotalRows++

		var issues []Issue
		for _, req := range cfg.Required {
			if row.Empty(req) {
				issues = append(issues, Errorf(row.Number, req, "", "missing required field %q", req))
			}
		}
		// Only run the domain validator on rows that have their required
		// fields; validators assume the fields are present.
		if len(issues) == 0 && cfg.Validate != nil {
			issues = append(issues, cfg.Validate(row)...)
		}

		result.Issues = append(result.Issues, issues...)
		if HasError(issues) {
			result.ErrorRows++
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
