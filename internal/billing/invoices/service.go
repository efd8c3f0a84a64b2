package invoices

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

// Service wires invoice workflows: creation, payments, commission settlement.
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

// Create validates the request, computes line subtotals and the commission,
// and persists the invoice together with its ledger entry in one transaction.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (InvoiceWithDetails, error) {
	if len(input.Lines) == 0 {
		return InvoiceWithDetails{}, billing.ErrNoLines
	}
	for i, line := range input.Lines {
		if !line.Meters.IsPositive() {
			return InvoiceWithDetails{}, fmt.Errorf("%w: line %d: meters must be positive", shared.ErrValidation, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return InvoiceWithDetails{}, fmt.Errorf("%w: line %d: unit price must not be negative", shared.ErrValidation, i+1)
		}
	}
	if err := ValidateCommissionSpec(input.BrokerID, input.CommissionType, input.CommissionValue); err != nil {
		return InvoiceWithDetails{}, err
	}
	if input.DueDate.Before(input.Date) {
		return InvoiceWithDetails{}, fmt.Errorf("%w: due date before invoice date", shared.ErrValidation)
	}

	var total decimal.Decimal
	subtotals := make([]decimal.Decimal, len(input.Lines))
	for i, line := range input.Lines {
		subtotals[i] = money.Subtotal(line.Meters, line.UnitPrice)
		total = total.Add(subtotals[i])
	}
	total = money.Round2(total)
	commission := CommissionAmount(total, input.BrokerID, input.CommissionType, input.CommissionValue)

	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.CustomerExists(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: customer %d", shared.ErrNotFound, input.CustomerID)
		}
		if input.BrokerID != nil {
			ok, err := tx.BrokerExists(ctx, *input.BrokerID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: broker %d", shared.ErrNotFound, *input.BrokerID)
			}
		}
		for _, line := range input.Lines {
			ok, err := tx.InventoryItemExists(ctx, line.InventoryItemID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: inventory item %d", shared.ErrNotFound, line.InventoryItemID)
			}
		}

		if input.Number == "" {
			if input.Number, err = tx.GenerateInvoiceNumber(ctx); err != nil {
				return err
			}
		}

		status := billing.DeriveStatus(total, decimal.Zero, billing.StatusPending)
		invoiceID, err = tx.CreateInvoice(ctx, input, total, commission, status)
		if err != nil {
			return err
		}
		for i, line := range input.Lines {
			if err := tx.CreateLine(ctx, invoiceID, line, subtotals[i]); err != nil {
				return err
			}
		}

		// Zero-total invoices owe nothing and post no entry.
		if total.IsPositive() {
			if _, err := tx.RecordLedgerEntry(ctx, ledger.Entry{
				Type:        ledger.TypeInvoice,
				Date:        input.Date,
				Amount:      total,
				CustomerID:  &input.CustomerID,
				Reference:   input.Number,
				Description: "Invoice issued",
			}); err != nil {
				return err
			}
		}
		_, err = tx.RecomputeCustomerBalance(ctx, input.CustomerID)
		return err
	})
	if err != nil {
		return InvoiceWithDetails{}, err
	}

	s.afterWrite(ctx, "invoice.created", invoiceID, map[string]any{
		"number": input.Number,
		"total":  money.String(total),
	})
	return s.repo.GetInvoiceWithDetails(ctx, invoiceID)
}

// AddPayment applies a payment against the invoice balance. Payments that
// would push amount paid past the total are rejected rather than clamped.
func (s *Service) AddPayment(ctx context.Context, input AddPaymentInput) (Invoice, error) {
	if err := input.Payment.Validate(); err != nil {
		return Invoice{}, err
	}

	if input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "invoice_payments"); err != nil {
			return Invoice{}, err
		}
	}

	reference := "PAY-" + uuid.NewString()
	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if input.Payment.Amount.GreaterThan(inv.BalanceDue()) {
			return fmt.Errorf("%w: %s exceeds balance due %s",
				billing.ErrOverpayment, money.String(input.Payment.Amount), money.String(inv.BalanceDue()))
		}

		if _, err := tx.InsertPayment(ctx, inv.ID, reference, input.Payment); err != nil {
			return err
		}
		paid, err := tx.AddAmountPaid(ctx, inv.ID, input.Payment.Amount)
		if err != nil {
			return err
		}
		status := billing.DeriveStatus(inv.Total, paid, billing.StatusPending)
		if err := tx.SetStatus(ctx, inv.ID, status); err != nil {
			return err
		}

		if _, err := tx.RecordLedgerEntry(ctx, ledger.Entry{
			Type:        ledger.TypePayment,
			Date:        input.Payment.Date,
			Amount:      input.Payment.Amount,
			CustomerID:  &inv.CustomerID,
			Reference:   reference,
			Description: "Payment received for " + inv.Number,
		}); err != nil {
			return err
		}
		if _, err := tx.RecomputeCustomerBalance(ctx, inv.CustomerID); err != nil {
			return err
		}

		updated = inv
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
		return Invoice{}, err
	}

	s.afterWrite(ctx, "invoice.payment_added", updated.ID, map[string]any{
		"reference": reference,
		"amount":    money.String(input.Payment.Amount),
		"status":    string(updated.Status),
	})
	return updated, nil
}

// SettleCommission records a settlement installment against the broker
// commission, up to the remaining amount.
func (s *Service) SettleCommission(ctx context.Context, input SettleCommissionInput) (Invoice, error) {
	if !input.Amount.IsPositive() {
		return Invoice{}, billing.ErrNonPositiveAmount
	}
	if !input.Method.Valid() {
		return Invoice{}, fmt.Errorf("%w: %q", billing.ErrUnknownMethod, input.Method)
	}

	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.BrokerID == nil {
			return fmt.Errorf("%w: invoice %s has no broker", shared.ErrInvalidOperation, inv.Number)
		}
		remaining := inv.CommissionRemaining()
		if !remaining.IsPositive() {
			return fmt.Errorf("%w: commission for %s", shared.ErrAlreadySettled, inv.Number)
		}
		if input.Amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: %s exceeds remaining commission %s",
				shared.ErrValidation, money.String(input.Amount), money.String(remaining))
		}

		if _, err := tx.InsertCommissionPayment(ctx, input); err != nil {
			return err
		}
		paid, err := tx.AddCommissionPaid(ctx, inv.ID, input.Amount)
		if err != nil {
			return err
		}

		if _, err := tx.RecordLedgerEntry(ctx, ledger.Entry{
			Type:        ledger.TypeSettlement,
			Date:        input.Date,
			Amount:      input.Amount,
			CustomerID:  &inv.CustomerID,
			Reference:   inv.Number,
			Description: "Broker commission settled",
		}); err != nil {
			return err
		}
		if _, err := tx.RecomputeCustomerBalance(ctx, inv.CustomerID); err != nil {
			return err
		}

		updated = inv
		updated.CommissionPaid = paid
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterWrite(ctx, "invoice.commission_settled", updated.ID, map[string]any{
		"amount": money.String(input.Amount),
	})
	return updated, nil
}

// Get returns one invoice with lines and payment history.
func (s *Service) Get(ctx context.Context, id int64) (InvoiceWithDetails, error) {
	return s.repo.GetInvoiceWithDetails(ctx, id)
}

// List returns invoice headers matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Invoice, error) {
	if req.Status != "" {
		switch req.Status {
		case billing.StatusPaid, billing.StatusPartiallyPaid, billing.StatusPending:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, req.Status)
		}
	}
	return s.repo.ListInvoices(ctx, req)
}

// ListOverdue returns unpaid and partially paid invoices whose due date has
// passed.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
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
		Entity:   "invoice",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
