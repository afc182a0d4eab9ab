package psp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountToCentsWholeEuros(t *testing.T) {
	cents, err := ParseAmountToCents("5000")
	require.NoError(t, err)
	assert.Equal(t, int64(500000), cents)
}

func TestParseAmountToCentsSingleDecimal(t *testing.T) {
	cents, err := ParseAmountToCents("5000.5")
	require.NoError(t, err)
	assert.Equal(t, int64(500050), cents)
}

func TestParseAmountToCentsTwoDecimals(t *testing.T) {
	cents, err := ParseAmountToCents("12.34")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cents)
}

func TestParseAmountRejectsNegative(t *testing.T) {
	_, err := ParseAmountToCents("-1.00")
	require.Error(t, err)
}

func TestParseAmountRejectsSubCentPrecision(t *testing.T) {
	_, err := ParseAmountToCents("1.005")
	require.Error(t, err)
}

func TestParseAmountRejectsEmpty(t *testing.T) {
	_, err := ParseAmountToCents("  ")
	require.Error(t, err)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "150.00", FormatCents(15000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-3.50", FormatCents(-350))
}
