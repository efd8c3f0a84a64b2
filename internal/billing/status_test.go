package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name      string
		total     string
		paid      string
		zeroLabel Status
		want      Status
	}{
		{"unpaid bill", "500.00", "0.00", StatusUnpaid, StatusUnpaid},
		{"pending invoice", "500.00", "0.00", StatusPending, StatusPending},
		{"partial", "500.00", "200.00", StatusUnpaid, StatusPartiallyPaid},
		{"exactly paid", "500.00", "500.00", StatusUnpaid, StatusPaid},
		{"paid above total", "500.00", "600.00", StatusUnpaid, StatusPaid},
		{"one cent short", "500.00", "499.99", StatusPending, StatusPartiallyPaid},
		{"zero total bill", "0.00", "0.00", StatusUnpaid, StatusPaid},
		{"zero total invoice", "0.00", "0.00", StatusPending, StatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(dec(tc.total), dec(tc.paid), tc.zeroLabel))
		})
	}
}

func TestDeriveStatusPaymentProgression(t *testing.T) {
	// N payments of a against total N*a flip to Paid exactly on the Nth.
	const n = 4
	a := dec("125.00")
	total := a.Mul(decimal.NewFromInt(n))
	paid := decimal.Zero
	for i := 1; i <= n; i++ {
		paid = paid.Add(a)
		status := DeriveStatus(total, paid, StatusUnpaid)
		if i < n {
			require.Equal(t, StatusPartiallyPaid, status, "payment %d", i)
		} else {
			require.Equal(t, StatusPaid, status)
		}
	}
}

func TestPaymentInputValidate(t *testing.T) {
	valid := PaymentInput{Amount: dec("10.00"), Method: MethodCash}
	require.NoError(t, valid.Validate())

	require.ErrorIs(t, PaymentInput{Amount: dec("0"), Method: MethodCash}.Validate(), ErrNonPositiveAmount)
	require.ErrorIs(t, PaymentInput{Amount: dec("-5"), Method: MethodBank}.Validate(), ErrNonPositiveAmount)
	require.ErrorIs(t, PaymentInput{Amount: dec("10"), Method: "Cheque"}.Validate(), ErrUnknownMethod)
}
