// Package invoices implements the customer-facing document engine: invoice
// creation with derived totals, payment application, and broker commission
// tracking and settlement.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
)

// Invoice header. Total is fixed at creation from the line subtotals;
// AmountPaid and CommissionPaid only ever grow.
type Invoice struct {
	ID               int64
	Number           string
	CustomerID       int64
	CustomerName     string
	BrokerID         *int64
	BrokerName       string
	Date             time.Time
	DueDate          time.Time
	Status           billing.Status
	Total            decimal.Decimal
	AmountPaid       decimal.Decimal
	CommissionType   CommissionType
	CommissionValue  decimal.Decimal
	CommissionAmount decimal.Decimal
	CommissionPaid   decimal.Decimal
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BalanceDue is total minus amount paid, always derived.
func (inv Invoice) BalanceDue() decimal.Decimal {
	return inv.Total.Sub(inv.AmountPaid)
}

// CommissionRemaining is the unsettled part of the broker's commission.
func (inv Invoice) CommissionRemaining() decimal.Decimal {
	return inv.CommissionAmount.Sub(inv.CommissionPaid)
}

// LineItem references a fabric lot sold on the invoice.
type LineItem struct {
	ID              int64
	InvoiceID       int64
	InventoryItemID int64
	FabricType      string
	LotNumber       string
	Meters          decimal.Decimal
	UnitPrice       decimal.Decimal
	Subtotal        decimal.Decimal
}

// CommissionPayment is one settlement installment against the commission.
type CommissionPayment struct {
	ID        int64
	InvoiceID int64
	Date      time.Time
	Amount    decimal.Decimal
	Method    billing.PaymentMethod
	CreatedAt time.Time
}

// InvoiceWithDetails embeds lines and both payment streams.
type InvoiceWithDetails struct {
	Invoice
	Lines              []LineItem
	Payments           []billing.PaymentRecord
	CommissionPayments []CommissionPayment
}

// CreateLineInput is one requested line item.
type CreateLineInput struct {
	InventoryItemID int64
	Meters          decimal.Decimal
	UnitPrice       decimal.Decimal
}

// CreateInvoiceInput is the full creation request.
type CreateInvoiceInput struct {
	Number          string
	CustomerID      int64
	BrokerID        *int64
	CommissionType  CommissionType
	CommissionValue decimal.Decimal
	Date            time.Time
	DueDate         time.Time
	Notes           string
	Lines           []CreateLineInput
}

// AddPaymentInput applies a payment to one invoice.
type AddPaymentInput struct {
	InvoiceID      int64
	Payment        billing.PaymentInput
	IdempotencyKey string
}

// SettleCommissionInput records a commission settlement installment.
type SettleCommissionInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Date      time.Time
	Method    billing.PaymentMethod
}

// ListRequest narrows invoice listings.
type ListRequest struct {
	Status     billing.Status
	CustomerID int64
	Limit      int
	Offset     int
}
