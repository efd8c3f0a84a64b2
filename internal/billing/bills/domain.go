// Package bills implements the vendor-facing document engine: purchase bill
// creation against fabric lots, lot consumption marking, and payment
// application.
package bills

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
)

// Bill header. Total is fixed at creation from the line subtotals;
// AmountPaid only ever grows.
type Bill struct {
	ID         int64
	Number     string
	VendorID   int64
	VendorName string
	Date       time.Time
	DueDate    time.Time
	Status     billing.Status
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BalanceDue is total minus amount paid, always derived.
func (b Bill) BalanceDue() decimal.Decimal {
	return b.Total.Sub(b.AmountPaid)
}

// LineItem references a fabric lot purchased on the bill.
type LineItem struct {
	ID              int64
	BillID          int64
	InventoryItemID int64
	FabricType      string
	LotNumber       string
	Meters          decimal.Decimal
	UnitPrice       decimal.Decimal
	Subtotal        decimal.Decimal
}

// BillWithDetails embeds lines and payment history.
type BillWithDetails struct {
	Bill
	Lines    []LineItem
	Payments []billing.PaymentRecord
}

// CreateLineInput is one requested line item.
type CreateLineInput struct {
	InventoryItemID int64
	Meters          decimal.Decimal
	UnitPrice       decimal.Decimal
}

// CreateBillInput is the full creation request. Every referenced lot must
// belong to the vendor and still be unbilled.
type CreateBillInput struct {
	Number   string
	VendorID int64
	Date     time.Time
	DueDate  time.Time
	Notes    string
	Lines    []CreateLineInput
}

// AddPaymentInput applies a payment to one bill.
type AddPaymentInput struct {
	BillID         int64
	Payment        billing.PaymentInput
	IdempotencyKey string
}

// ListRequest narrows bill listings.
type ListRequest struct {
	Status   billing.Status
	VendorID int64
	Limit    int
	Offset   int
}
