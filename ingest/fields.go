/*
fields.go - Typed parsing boundary for numeric cells

PURPOSE:
  The source spreadsheets carry numbers as free text: hours as "7.5",
  ledger amounts as "12,345.67". All permissive string-to-number rules
  live here, one function per field type, so the validators and the
  mapping code never scatter their own regexes.

PERMISSIVENESS NOTE:
  ParseAmount strips thousands commas without checking grouping, so a
  malformed grouping like "1,00.50" parses as 100.50. This matches the
  behavior of the exports' upstream consumers; tightening it would reject
  files that currently import cleanly.

SEE ALSO:
  - calendar/calendar.go: ParseDMY owns the date-cell rules
  - importer/: Validators built on these parsers
*/
package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBadNumber is returned by the numeric field parsers.
var ErrBadNumber = errors.New("invalid number")

var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

// DigitsOnly reports whether s is one or more ASCII digits and nothing else.
// Used for personnel numbers and cost-element codes, which are identifiers
// that merely look numeric.
func DigitsOnly(s string) bool {
	return digitsPattern.MatchString(s)
}

// ParseHours parses an hours cell as a non-negative decimal.
func ParseHours(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: hours %q", ErrBadNumber, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: hours %q is negative", ErrBadNumber, s)
	}
	return d, nil
}

// ParseAmount parses a ledger amount cell. Thousands commas and currency
// spaces are stripped; sign is preserved (credits post as negatives).
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", ErrBadNumber, s)
	}
	return d, nil
}
