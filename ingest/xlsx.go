/*
xlsx.go - Excel workbook adapter for the ingest pipeline

PURPOSE:
  The upstream financial tracker is an Excel workbook, and some teams send
  .xlsx exports rather than CSV. This adapter reads the first sheet of a
  workbook and feeds it through the exact same row/validator pipeline as
  ParseCSV, so the importers never know which format arrived.

SEE ALSO:
  - ingest.go: parseRecords, the shared pipeline core
*/
package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of an Excel workbook and runs the
// validation pipeline. Contract is identical to ParseCSV: a Go error only
// for an unreadable workbook, structured issues for everything else.
func ParseXLSX(r io.Reader, cfg Config) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unreadable workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDocument
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return parseRecords(records, cfg)
}
