package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound2HalfUp(t *testing.T) {
	require.Equal(t, "10.13", String(Round2(dec("10.125"))))
	require.Equal(t, "10.12", String(Round2(dec("10.124"))))
	require.Equal(t, "0.00", String(Round2(decimal.Zero)))
}

func TestSubtotal(t *testing.T) {
	// 12.50 meters at 101.333 per meter rounds once, not per step.
	require.Equal(t, "1266.66", String(Subtotal(dec("12.50"), dec("101.333"))))
	require.Equal(t, "500.00", String(Subtotal(dec("100"), dec("5"))))
}

func TestSum(t *testing.T) {
	got := Sum(dec("1.10"), dec("2.20"), dec("3.30"))
	require.True(t, got.Equal(dec("6.60")))
	require.True(t, Sum().IsZero())
}

func TestParse(t *testing.T) {
	d, err := Parse("123.45")
	require.NoError(t, err)
	require.Equal(t, "123.45", String(d))

	d, err = Parse("")
	require.NoError(t, err)
	require.True(t, d.IsZero())

	_, err = Parse("not-a-number")
	require.Error(t, err)
}
