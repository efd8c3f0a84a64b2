package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEntryTypeSign(t *testing.T) {
	require.Equal(t, +1, TypeBill.Sign())
	require.Equal(t, +1, TypeInvoice.Sign())
	require.Equal(t, -1, TypePayment.Sign())
	require.Equal(t, -1, TypeSettlement.Sign())
	require.Equal(t, 0, EntryType("Refund").Sign())
}

func TestEntryTypeValid(t *testing.T) {
	for _, typ := range []EntryType{TypeBill, TypeInvoice, TypePayment, TypeSettlement} {
		require.True(t, typ.Valid(), typ)
	}
	require.False(t, EntryType("").Valid())
	require.False(t, EntryType("bill").Valid())
}

func TestSignedAmount(t *testing.T) {
	bill := Entry{Type: TypeBill, Amount: dec("500.00")}
	require.True(t, bill.SignedAmount().Equal(dec("500.00")))

	payment := Entry{Type: TypePayment, Amount: dec("200.00")}
	require.True(t, payment.SignedAmount().Equal(dec("-200.00")))
}

func TestSumSigned(t *testing.T) {
	// Bill 500, then pay 200: the party still carries 300 outstanding.
	entries := []Entry{
		{Type: TypeBill, Amount: dec("500.00")},
		{Type: TypePayment, Amount: dec("200.00")},
	}
	require.True(t, SumSigned(entries).Equal(dec("300.00")))

	// Invoice with a commission settlement against the same customer.
	entries = []Entry{
		{Type: TypeInvoice, Amount: dec("1000.00")},
		{Type: TypePayment, Amount: dec("1000.00")},
		{Type: TypeSettlement, Amount: dec("100.00")},
	}
	require.True(t, SumSigned(entries).Equal(dec("-100.00")))

	require.True(t, SumSigned(nil).IsZero())
}
