package finance

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Display formats an amount for humans in the given ISO currency, e.g.
// Display(d, "AUD") -> "$12,345.67". Domain math stays in decimal; this
// is strictly a presentation helper for the API layer.
func Display(d decimal.Decimal, currency string) string {
	// Constructing through money.New guarantees a non-nil currency even
	// for unknown codes.
	cur := money.New(0, currency).Currency()
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
