package finance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/finrecon/finance"
)

func TestDisplay(t *testing.T) {
	assert.Equal(t, "$12,345.68", finance.Display(decimal.RequireFromString("12345.675"), "AUD"))
	assert.Equal(t, "-$200.00", finance.Display(decimal.NewFromInt(-200), "AUD"))
	assert.Equal(t, "$1,000.00", finance.Display(decimal.NewFromInt(1000), "USD"))
	assert.Equal(t, "€1.000,00", finance.Display(decimal.NewFromInt(1000), "EUR"))
}
