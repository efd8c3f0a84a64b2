package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how money moved.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "Cash"
	MethodBank   PaymentMethod = "Bank"
	MethodCredit PaymentMethod = "Credit"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodCredit:
		return true
	}
	return false
}

// PaymentRecord is one payment against a document. Records are append-only;
// exactly one document owns each record, enforced by the owning table.
type PaymentRecord struct {
	ID            int64
	Reference     string
	DocumentID    int64
	Date          time.Time
	Amount        decimal.Decimal
	Method        PaymentMethod
	BankName      string
	TransactionID string
	CreatedAt     time.Time
}

// PaymentInput carries a requested payment before validation.
type PaymentInput struct {
	Amount        decimal.Decimal
	Method        PaymentMethod
	Date          time.Time
	BankName      string
	TransactionID string
}

// Validate applies the common payment rules.
func (p PaymentInput) Validate() error {
	if !p.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !p.Method.Valid() {
		return ErrUnknownMethod
	}
	return nil
}
