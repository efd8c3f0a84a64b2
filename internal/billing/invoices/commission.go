package invoices

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/shared"
)

// CommissionType selects how a broker's fee is computed.
type CommissionType string

const (
	CommissionPercentage CommissionType = "Percentage"
	CommissionFixed      CommissionType = "Fixed"
)

var oneHundred = decimal.NewFromInt(100)

// ValidateCommissionSpec enforces the broker/commission pairing before
// anything is persisted: a broker requires a commission type, a commission
// type requires a broker, percentages stay within (0, 100].
func ValidateCommissionSpec(brokerID *int64, ctype CommissionType, value decimal.Decimal) error {
	if brokerID == nil {
		if ctype != "" {
			return fmt.Errorf("%w: commission type requires a broker", shared.ErrValidation)
		}
		if !value.IsZero() {
			return fmt.Errorf("%w: commission value requires a broker", shared.ErrValidation)
		}
		return nil
	}
	switch ctype {
	case CommissionPercentage:
		if value.GreaterThan(oneHundred) {
			return fmt.Errorf("%w: commission percentage cannot exceed 100", shared.ErrValidation)
		}
	case CommissionFixed:
	case "":
		return fmt.Errorf("%w: broker requires a commission type", shared.ErrValidation)
	default:
		return fmt.Errorf("%w: unknown commission type %q", shared.ErrValidation, ctype)
	}
	if value.IsNegative() {
		return fmt.Errorf("%w: commission value cannot be negative", shared.ErrValidation)
	}
	return nil
}

// CommissionAmount computes the broker's fee for an invoice total. Zero when
// no broker is assigned or the value is not positive.
func CommissionAmount(total decimal.Decimal, brokerID *int64, ctype CommissionType, value decimal.Decimal) decimal.Decimal {
	if brokerID == nil || !value.IsPositive() {
		return decimal.Zero
	}
	switch ctype {
	case CommissionPercentage:
		return money.Round2(total.Mul(value).Div(oneHundred))
	case CommissionFixed:
		return money.Round2(value)
	}
	return decimal.Zero
}
