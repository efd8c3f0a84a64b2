// Package ledger is the system of record for financial events. Every bill,
// invoice, payment and commission settlement lands here as an immutable entry;
// party balances are projections over these entries and nothing else.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType enumerates the financial events the ledger records.
type EntryType string

const (
	TypeBill       EntryType = "Bill"
	TypeInvoice    EntryType = "Invoice"
	TypePayment    EntryType = "Payment"
	TypeSettlement EntryType = "Settlement"
)

// signs is the single sign convention for the whole system. Documents raise a
// party's outstanding balance, payments and settlements lower it.
var signs = map[EntryType]int{
	TypeBill:       +1,
	TypeInvoice:    +1,
	TypePayment:    -1,
	TypeSettlement: -1,
}

// Sign returns +1 or -1 for the entry type, 0 when unknown.
func (t EntryType) Sign() int {
	return signs[t]
}

// Valid reports whether the type is a known ledger event.
func (t EntryType) Valid() bool {
	_, ok := signs[t]
	return ok
}

// Entry is one immutable financial event. Amount is always positive; the
// direction comes from the type's sign. Exactly one of VendorID/CustomerID
// is set.
type Entry struct {
	ID          int64
	Type        EntryType
	Date        time.Time
	Amount      decimal.Decimal
	VendorID    *int64
	CustomerID  *int64
	Reference   string
	Description string
	CreatedAt   time.Time
}

// SignedAmount applies the sign convention to the entry amount.
func (e Entry) SignedAmount() decimal.Decimal {
	if e.Type.Sign() < 0 {
		return e.Amount.Neg()
	}
	return e.Amount
}

// SumSigned folds entries into a balance using the sign convention.
func SumSigned(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.SignedAmount())
	}
	return total
}

// TypeTotal aggregates absolute amounts per entry type for reporting.
type TypeTotal struct {
	Type   EntryType
	Count  int64
	Amount decimal.Decimal
}
