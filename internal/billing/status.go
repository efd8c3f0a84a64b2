// Package billing holds the document status machine and payment vocabulary
// shared by the invoice and bill engines.
package billing

import "github.com/shopspring/decimal"

// Status of a document's payment lifecycle. Bills start at Unpaid, invoices
// at Pending; the words differ, the semantics do not.
type Status string

const (
	StatusPaid          Status = "Paid"
	StatusPartiallyPaid Status = "Partially Paid"
	StatusUnpaid        Status = "Unpaid"
	StatusPending       Status = "Pending"
)

// DeriveStatus is the pure status function of (total, amount_paid). It is
// re-evaluated after every mutation rather than stored as independent state.
// The paid check wins first, so a zero-total document is Paid from creation.
func DeriveStatus(total, amountPaid decimal.Decimal, zeroLabel Status) Status {
	switch {
	case amountPaid.GreaterThanOrEqual(total):
		return StatusPaid
	case amountPaid.IsPositive():
		return StatusPartiallyPaid
	default:
		return zeroLabel
	}
}
