package bills

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/shared"
)

// IdempotencyGuard deduplicates payment submissions by client key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Auditor records domain mutations.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator bumps the report cache version after financial writes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service wires bill workflows: creation with lot consumption and payments.
type Service struct {
	logger *slog.Logger
	repo   Repository
	idem   IdempotencyGuard
	audit  Auditor
	cache  Invalidator
}

func NewService(logger *slog.Logger, repo Repository, idem IdempotencyGuard, audit Auditor, cache Invalidator) *Service {
	return &Service{logger: logger, repo: repo, idem: idem, audit: audit, cache: cache}
}

// Create validates the request and persists the bill, marks the referenced
// lots billed, and writes the ledger entry in one transaction.
func (s *Service) Create(ctx context.Context, input CreateBillInput) (BillWithDetails, error) {
	if len(input.Lines) == 0 {
		return BillWithDetails{}, billing.ErrNoLines
	}
	seen := make(map[int64]bool, len(input.Lines))
	itemIDs := make([]int64, 0, len(input.Lines))
	for i, line := range input.Lines {
		if !line.Meters.IsPositive() {
			return BillWithDetails{}, fmt.Errorf("%w: line %d: meters must be positive", shared.ErrValidation, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return BillWithDetails{}, fmt.Errorf("%w: line %d: unit price must not be negative", shared.ErrValidation, i+1)
		}
		if seen[line.InventoryItemID] {
			return BillWithDetails{}, fmt.Errorf("%w: lot %d listed twice", shared.ErrValidation, line.InventoryItemID)
		}
		seen[line.InventoryItemID] = true
		itemIDs = append(itemIDs, line.InventoryItemID)
	}
	if input.DueDate.Before(input.Date) {
		return BillWithDetails{}, fmt.Errorf("%w: due date before bill date", shared.ErrValidation)
	}

	var total decimal.Decimal
	subtotals := make([]decimal.Decimal, len(input.Lines))
	for i, line := range input.Lines {
		subtotals[i] = money.Subtotal(line.Meters, line.UnitPrice)
		total = total.Add(subtotals[i])
	}
	total = money.Round2(total)

	var billID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.VendorExists(ctx, input.VendorID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: vendor %d", shared.ErrNotFound, input.VendorID)
		}

		// Marking lots first also proves ownership and unbilled state.
		if err := tx.MarkItemsBilled(ctx, input.VendorID, itemIDs); err != nil {
			return err
		}

		if input.Number == "" {
			if input.Number, err = tx.GenerateBillNumber(ctx); err != nil {
				return err
			}
		}
		status := billing.DeriveStatus(total, decimal.Zero, billing.StatusUnpaid)
		billID, err = tx.CreateBill(ctx, input, total, status)
		if err != nil {
			return err
		}
		for i, line := range input.Lines {
			if err := tx.CreateLine(ctx, billID, line, subtotals[i]); err != nil {
				return err
			}
		}

		// Zero-total bills owe nothing and post no entry.
		if total.IsPositive() {
			if _, err := tx.RecordLedgerEntry(ctx, ledger.Entry{
				Type:        ledger.TypeBill,
				Date:        input.Date,
				Amount:      total,
				VendorID:    &input.VendorID,
				Reference:   input.Number,
				Description: "Bill received",
			}); err != nil {
				return err
			}
		}
		_, err = tx.RecomputeVendorBalance(ctx, input.VendorID)
		return err
	})
	if err != nil {
		return BillWithDetails{}, err
	}

	s.afterWrite(ctx, "bill.created", billID, map[string]any{
		"number": input.Number,
		"total":  money.String(total),
	})
	return s.repo.GetBillWithDetails(ctx, billID)
}

// AddPayment applies a payment against the bill balance. Payments that
// would push amount paid past the total are rejected rather than clamped.
func (s *Service) AddPayment(ctx context.Context, input AddPaymentInput) (Bill, error) {
	if err := input.Payment.Validate(); err != nil {
		return Bill{}, err
	}

	if input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "bill_payments"); err != nil {
			return Bill{}, err
		}
	}

	reference := "PAY-" + uuid.NewString()
	var updated Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, input.BillID)
		if err != nil {
			return err
		}
		if input.Payment.Amount.GreaterThan(bill.BalanceDue()) {
			return fmt.Errorf("%w: %s exceeds balance due %s",
				billing.ErrOverpayment, money.String(input.Payment.Amount), money.String(bill.BalanceDue()))
		}

		if _, err := tx.InsertPayment(ctx, bill.ID, reference, input.Payment); err != nil {
			return err
		}
		paid, err := tx.AddAmountPaid(ctx, bill.ID, input.Payment.Amount)
		if err != nil {
			return err
		}
		status := billing.DeriveStatus(bill.Total, paid, billing.StatusUnpaid)
		if err := tx.SetStatus(ctx, bill.ID, status); err != nil {
			return err
		}

		if _, err := tx.RecordLedgerEntry(ctx, ledger.Entry{
			Type:        ledger.TypePayment,
			Date:        input.Payment.Date,
			Amount:      input.Payment.Amount,
			VendorID:    &bill.VendorID,
			Reference:   reference,
			Description: "Payment made for " + bill.Number,
		}); err != nil {
			return err
		}
		if _, err := tx.RecomputeVendorBalance(ctx, bill.VendorID); err != nil {
			return err
		}

		updated = bill
		updated.AmountPaid = paid
		updated.Status = status
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != "" {
			// Release the key so the client can retry the failed payment.
			if delErr := s.idem.Delete(ctx, input.IdempotencyKey); delErr != nil {
				s.logger.Warn("idempotency key release failed", "key", input.IdempotencyKey, "error", delErr)
			}
		}
		return Bill{}, err
	}

	s.afterWrite(ctx, "bill.payment_added", updated.ID, map[string]any{
		"reference": reference,
		"amount":    money.String(input.Payment.Amount),
		"status":    string(updated.Status),
	})
	return updated, nil
}

// Get returns one bill with lines and payment history.
func (s *Service) Get(ctx context.Context, id int64) (BillWithDetails, error) {
	return s.repo.GetBillWithDetails(ctx, id)
}

// List returns bill headers matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Bill, error) {
	if req.Status != "" {
		switch req.Status {
		case billing.StatusPaid, billing.StatusPartiallyPaid, billing.StatusUnpaid:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, req.Status)
		}
	}
	return s.repo.ListBills(ctx, req)
}

// ListOverdue returns unpaid and partially paid bills whose due date has
// passed.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]Bill, error) {
	return s.repo.ListOverdue(ctx, asOf)
}

func (s *Service) afterWrite(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump failed", "error", err)
		}
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "bill",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
