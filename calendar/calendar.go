/*
Package calendar provides the working-day calendar engine.

PURPOSE:
  Everything in this system that converts a date span into "how many days
  can someone actually work" goes through this package. The Engine counts
  calendar days between two dates, net of weekends and public holidays,
  which feeds the capacity commitment math (8 hours/day over 10 working
  days = 80 available hours).

KEY CONCEPTS IN THIS FILE (calendar.go):
  - Date: A civil date (year/month/day, no clock, no zone surprises)
  - HolidaySource: Pluggable holiday lookup, range-restricted
  - Engine: Working-day counting over a Date range

DESIGN PRINCIPLES:
  1. Day precision only: the imports deal in whole days; no hour math here
  2. Standard arithmetic: month/year boundaries and leap years are
     delegated to time.AddDate, never hand-rolled
  3. Dependency injection: the Engine receives its HolidaySource at
     construction, never reads ambient state

USAGE:
  eng := calendar.NewEngine(holidaySource)
  days, err := eng.WorkingDaysBetween(ctx, start, end)

SEE ALSO:
  - capacity/engine.go: Consumes working-day counts for cadence math
  - store/sqlite/sqlite.go: HolidaySource implementation
*/
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Civil date at day precision
// =============================================================================

// Date is a civil date. The zero value is the zero time and reports IsZero.
type Date struct {
	t time.Time
}

// NewDate constructs a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// dmyLayouts are the day-month-year forms accepted across the CSV exports.
// The SAP-style exports use zero-padded dashes; hand-edited sheets tend to
// drop the padding or use slashes.
var dmyLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
}

// ErrBadDate is returned when a date cell matches none of the accepted
// day-month-year layouts.
var ErrBadDate = errors.New("invalid day-month-year date")

// ParseDMY parses a day-month-year date cell.
func ParseDMY(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dmyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// MustParseDMY is a test/fixture helper; it panics on malformed input.
func MustParseDMY(s string) Date {
	d, err := ParseDMY(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseKey parses the normalized storage form produced by Key.
func ParseKey(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// Key returns the normalized year-month-day form ("2006-01-02").
// Lexicographic order on keys equals chronological order, which is what the
// store relies on for range queries regardless of the display format.
func (d Date) Key() string { return d.t.Format("2006-01-02") }

// DMY returns the display form used by the source spreadsheets.
func (d Date) DMY() string { return d.t.Format("02-01-2006") }

func (d Date) String() string { return d.Key() }

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// PublicHoliday is a calendar date marked non-working. Immutable once
// imported; there is no update path.
type PublicHoliday struct {
	ID     string
	Date   Date
	Name   string
	Region string
}

// HolidaySource provides holiday lookup restricted to a date span, so a
// year-long capacity query does not load the whole holiday table.
type HolidaySource interface {
	HolidaysBetween(ctx context.Context, from, to Date) ([]Date, error)
}

// NoHolidays is a HolidaySource with no holidays, for tests and for
// deployments that have not imported a holiday calendar yet.
type NoHolidays struct{}

func (NoHolidays) HolidaysBetween(ctx context.Context, from, to Date) ([]Date, error) {
	return nil, nil
}

// =============================================================================
// ENGINE - Working-day counting
// =============================================================================

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid range: end before start")

// Engine counts working days. It holds only its holiday source.
type Engine struct {
	holidays HolidaySource
}

// NewEngine creates a calendar engine. A nil source means no holidays.
func NewEngine(holidays HolidaySource) *Engine {
	if holidays == nil {
		holidays = NoHolidays{}
	}
	return &Engine{holidays: holidays}
}

// WorkingDaysBetween returns the number of days in [start, end] (inclusive)
// that are neither a Saturday, a Sunday, nor a public holiday. A single-day
// range on a weekend or holiday returns 0.
func (e *Engine) WorkingDaysBetween(ctx context.Context, start, end Date) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s to %s", ErrInvalidRange, start, end)
	}

	holidays, err := e.holidays.HolidaysBetween(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to load holidays for %s to %s: %w", start, end, err)
	}
	holidaySet := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		holidaySet[h.Key()] = true
	}

	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if d.IsWeekend() || holidaySet[d.Key()] {
			continue
		}
		count++
	}
	return count, nil
}
