package ingest_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finrecon/ingest"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestParseHours(t *testing.T) {
	d, err := ingest.ParseHours("7.5")
	require.NoError(t, err)
	assert.Equal(t, "7.5", d.String())

	_, err = ingest.ParseHours("-2")
	assert.ErrorIs(t, err, ingest.ErrBadNumber)

	_, err = ingest.ParseHours("eight")
	assert.ErrorIs(t, err, ingest.ErrBadNumber)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"12,345.67":  "12345.67",
		"-1,200":     "-1200",
		"0.05":       "0.05",
		" 3 200.10 ": "3200.10",
		// Grouping is not checked; see the permissiveness note in fields.go.
		"1,00.50": "100.50",
	}
	for input, want := range cases {
		d, err := ingest.ParseAmount(input)
		require.NoError(t, err, "input %q", input)
		assert.True(t, d.Equal(mustDecimal(t, want)), "input %q parsed to %s", input, d)
	}

	_, err := ingest.ParseAmount("n/a")
	assert.ErrorIs(t, err, ingest.ErrBadNumber)
}

func TestDigitsOnly(t *testing.T) {
	assert.True(t, ingest.DigitsOnly("00042"))
	assert.False(t, ingest.DigitsOnly(""))
	assert.False(t, ingest.DigitsOnly("42A"))
	assert.False(t, ingest.DigitsOnly("4 2"))
}
