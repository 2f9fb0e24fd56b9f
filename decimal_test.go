package tablekernel

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecimal_DisplaysExpected(t *testing.T) {
	d, err := NewDecimal(big.NewInt(123456789), 9, 2)
	require.NoError(t, err)
	assert.Equal(t, "1234567.89", d.String())
}

func TestParseDecimal_ExponentNormalizesScale(t *testing.T) {
	target := Decimal(5, 5)
	d, err := ParseDecimal("1234.5E-4", target)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), d.Unscaled().Int64())
	assert.Equal(t, uint8(5), d.Scale())
}

func TestParseDecimal_ScaleMismatchRejected(t *testing.T) {
	_, err := ParseDecimal("1.5", Decimal(5, 3))
	require.Error(t, err)
	var ke *KernelError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrorTypeParseError, ke.Type)
}

func TestNewDecimal_RejectsInsufficientPrecision(t *testing.T) {
	_, err := NewDecimal(big.NewInt(123456789), 5, 2)
	require.Error(t, err)
	var ke *KernelError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrorTypeInvalidDecimal, ke.Type)
}

func TestDecimalPrecisionOfZeroIsZero(t *testing.T) {
	assert.Equal(t, uint8(0), decimalPrecisionOf(big.NewInt(0)))
}

func TestDecimal_RoundTrip(t *testing.T) {
	cases := []struct {
		bits      int64
		precision uint8
		scale     uint8
	}{
		{bits: 0, precision: 1, scale: 0},
		{bits: 5, precision: 1, scale: 0},
		{bits: -12340, precision: 5, scale: 3},
		{bits: 100, precision: 3, scale: 0},
	}
	for _, c := range cases {
		d, err := NewDecimal(big.NewInt(c.bits), c.precision, c.scale)
		require.NoError(t, err)
		target := Decimal(c.precision, c.scale)
		reparsed, err := ParseDecimal(d.String(), target)
		require.NoError(t, err)
		assert.Equal(t, d.Unscaled().String(), reparsed.Unscaled().String())
		assert.Equal(t, d.Scale(), reparsed.Scale())
	}
}

func TestDecimalString_NegativeValue(t *testing.T) {
	d, err := NewDecimal(big.NewInt(-500), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "-5.00", d.String())
}

func TestParseDecimal_RejectsMalformedLiteral(t *testing.T) {
	_, err := ParseDecimal("12.3.4", Decimal(5, 1))
	assert.Error(t, err)

	_, err = ParseDecimal("abc", Decimal(5, 0))
	assert.Error(t, err)

	_, err = ParseDecimal("1e", Decimal(5, 0))
	assert.Error(t, err)
}

func TestDecimal_Float64Approximation(t *testing.T) {
	d, err := NewDecimal(big.NewInt(1250), 4, 2)
	require.NoError(t, err)
	assert.InDelta(t, 12.50, d.Float64(), 0.0001)
}

func TestMustBigInt(t *testing.T) {
	v := mustBigInt("123456789012345678901234567890")
	assert.Equal(t, "123456789012345678901234567890", v.String())
}
