package billing

import (
	"fmt"

	"github.com/textileflow/textileflow/internal/shared"
)

var (
	// ErrNonPositiveAmount rejects zero or negative payment amounts.
	ErrNonPositiveAmount = fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	// ErrUnknownMethod rejects payment methods outside the known set.
	ErrUnknownMethod = fmt.Errorf("%w: unknown payment method", shared.ErrValidation)
	// ErrNoLines rejects documents without line items.
	ErrNoLines = fmt.Errorf("%w: at least one line item is required", shared.ErrValidation)
	// ErrOverpayment rejects payments exceeding the document's balance due.
	ErrOverpayment = fmt.Errorf("%w: payment exceeds balance due", shared.ErrValidation)
)
