package invoices

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/shared"
)

type memoryState struct {
	invoices           map[int64]Invoice
	lines              map[int64][]LineItem
	payments           map[int64][]billing.PaymentRecord
	commissionPayments map[int64][]CommissionPayment
	entries            []ledger.Entry
	balances           map[int64]decimal.Decimal

	customers map[int64]bool
	brokers   map[int64]bool
	items     map[int64]bool

	nextID int64
	seq    int64
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		invoices:           map[int64]Invoice{},
		lines:              map[int64][]LineItem{},
		payments:           map[int64][]billing.PaymentRecord{},
		commissionPayments: map[int64][]CommissionPayment{},
		entries:            append([]ledger.Entry{}, s.entries...),
		balances:           map[int64]decimal.Decimal{},
		customers:          s.customers,
		brokers:            s.brokers,
		items:              s.items,
		nextID:             s.nextID,
		seq:                s.seq,
	}
	for k, v := range s.invoices {
		out.invoices[k] = v
	}
	for k, v := range s.lines {
		out.lines[k] = append([]LineItem{}, v...)
	}
	for k, v := range s.payments {
		out.payments[k] = append([]billing.PaymentRecord{}, v...)
	}
	for k, v := range s.commissionPayments {
		out.commissionPayments[k] = append([]CommissionPayment{}, v...)
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	return out
}

// memoryRepo implements Repository with transactional copy-on-commit
// semantics so failed transactions leave no trace.
type memoryRepo struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		invoices:           map[int64]Invoice{},
		lines:              map[int64][]LineItem{},
		payments:           map[int64][]billing.PaymentRecord{},
		commissionPayments: map[int64][]CommissionPayment{},
		balances:           map[int64]decimal.Decimal{},
		customers:          map[int64]bool{},
		brokers:            map[int64]bool{},
		items:              map[int64]bool{},
	}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

func (r *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := r.state.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (r *memoryRepo) GetInvoiceWithDetails(ctx context.Context, id int64) (InvoiceWithDetails, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	return InvoiceWithDetails{
		Invoice:            inv,
		Lines:              r.state.lines[id],
		Payments:           r.state.payments[id],
		CommissionPayments: r.state.commissionPayments[id],
	}, nil
}

func (r *memoryRepo) ListInvoices(_ context.Context, req ListRequest) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.state.invoices {
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		if req.CustomerID != 0 && inv.CustomerID != req.CustomerID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *memoryRepo) ListOverdue(_ context.Context, asOf time.Time) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.state.invoices {
		if inv.DueDate.Before(asOf) && inv.Status != billing.StatusPaid {
			out = append(out, inv)
		}
	}
	return out, nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) CustomerExists(_ context.Context, id int64) (bool, error) {
	return t.state.customers[id], nil
}

func (t *memoryTx) BrokerExists(_ context.Context, id int64) (bool, error) {
	return t.state.brokers[id], nil
}

func (t *memoryTx) InventoryItemExists(_ context.Context, id int64) (bool, error) {
	return t.state.items[id], nil
}

func (t *memoryTx) GenerateInvoiceNumber(_ context.Context) (string, error) {
	t.state.seq++
	return fmt.Sprintf("INV-%06d", t.state.seq), nil
}

func (t *memoryTx) CreateInvoice(_ context.Context, input CreateInvoiceInput, total, commissionAmount decimal.Decimal, status billing.Status) (int64, error) {
	t.state.nextID++
	id := t.state.nextID
	t.state.invoices[id] = Invoice{
		ID:               id,
		Number:           input.Number,
		CustomerID:       input.CustomerID,
		BrokerID:         input.BrokerID,
		Date:             input.Date,
		DueDate:          input.DueDate,
		Status:           status,
		Total:            total,
		AmountPaid:       decimal.Zero,
		CommissionType:   input.CommissionType,
		CommissionValue:  input.CommissionValue,
		CommissionAmount: commissionAmount,
		CommissionPaid:   decimal.Zero,
		Notes:            input.Notes,
	}
	return id, nil
}

func (t *memoryTx) CreateLine(_ context.Context, invoiceID int64, line CreateLineInput, subtotal decimal.Decimal) error {
	t.state.lines[invoiceID] = append(t.state.lines[invoiceID], LineItem{
		InvoiceID:       invoiceID,
		InventoryItemID: line.InventoryItemID,
		Meters:          line.Meters,
		UnitPrice:       line.UnitPrice,
		Subtotal:        subtotal,
	})
	return nil
}

func (t *memoryTx) GetInvoiceForUpdate(_ context.Context, id int64) (Invoice, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (t *memoryTx) InsertPayment(_ context.Context, invoiceID int64, reference string, p billing.PaymentInput) (int64, error) {
	t.state.nextID++
	t.state.payments[invoiceID] = append(t.state.payments[invoiceID], billing.PaymentRecord{
		ID:         t.state.nextID,
		Reference:  reference,
		DocumentID: invoiceID,
		Date:       p.Date,
		Amount:     p.Amount,
		Method:     p.Method,
	})
	return t.state.nextID, nil
}

func (t *memoryTx) AddAmountPaid(_ context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	t.state.invoices[id] = inv
	return inv.AmountPaid, nil
}

func (t *memoryTx) SetStatus(_ context.Context, id int64, status billing.Status) error {
	inv, ok := t.state.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	t.state.invoices[id] = inv
	return nil
}

func (t *memoryTx) InsertCommissionPayment(_ context.Context, input SettleCommissionInput) (int64, error) {
	t.state.nextID++
	t.state.commissionPayments[input.InvoiceID] = append(t.state.commissionPayments[input.InvoiceID], CommissionPayment{
		ID:        t.state.nextID,
		InvoiceID: input.InvoiceID,
		Date:      input.Date,
		Amount:    input.Amount,
		Method:    input.Method,
	})
	return t.state.nextID, nil
}

func (t *memoryTx) AddCommissionPaid(_ context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	inv.CommissionPaid = inv.CommissionPaid.Add(amount)
	t.state.invoices[id] = inv
	return inv.CommissionPaid, nil
}

func (t *memoryTx) RecordLedgerEntry(_ context.Context, entry ledger.Entry) (int64, error) {
	if !entry.Type.Valid() {
		return 0, fmt.Errorf("%w: unknown entry type", shared.ErrValidation)
	}
	if !entry.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	t.state.entries = append(t.state.entries, entry)
	return int64(len(t.state.entries)), nil
}

func (t *memoryTx) RecomputeCustomerBalance(_ context.Context, customerID int64) (decimal.Decimal, error) {
	var relevant []ledger.Entry
	for _, e := range t.state.entries {
		if e.CustomerID != nil && *e.CustomerID == customerID {
			relevant = append(relevant, e)
		}
	}
	balance := ledger.SumSigned(relevant)
	t.state.balances[customerID] = balance
	return balance, nil
}

type memoryIdem struct {
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, shared.AuditLog) error { return nil }

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(context.Context) error {
	c.bumps++
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryIdem, *countingInvalidator) {
	t.Helper()
	repo := newMemoryRepo()
	repo.state.customers[1] = true
	repo.state.brokers[7] = true
	repo.state.items[10] = true
	repo.state.items[11] = true

	idem := &memoryIdem{keys: map[string]bool{}}
	cache := &countingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, idem, noopAuditor{}, cache), repo, idem, cache
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func validCreateInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		CustomerID: 1,
		Date:       day(1),
		DueDate:    day(30),
		Lines: []CreateLineInput{
			{InventoryItemID: 10, Meters: dec("100"), UnitPrice: dec("3.50")},
			{InventoryItemID: 11, Meters: dec("50.5"), UnitPrice: dec("2.00")},
		},
	}
}

func TestCreateZeroTotalInvoiceIsPaid(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	input := validCreateInput()
	input.Lines = []CreateLineInput{
		{InventoryItemID: 10, Meters: dec("100"), UnitPrice: dec("0")},
	}
	detail, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, billing.StatusPaid, detail.Status)
	require.True(t, detail.BalanceDue().IsZero())
}

func TestCreateComputesTotalsAndLedger(t *testing.T) {
	svc, repo, _, cache := newTestService(t)

	detail, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	// 100*3.50 + 50.5*2.00 = 350.00 + 101.00.
	require.Equal(t, "451.00", detail.Total.StringFixed(2))
	require.Equal(t, billing.StatusPending, detail.Status)
	require.Equal(t, "INV-000001", detail.Number)
	require.Len(t, detail.Lines, 2)
	require.Equal(t, "350.00", detail.Lines[0].Subtotal.StringFixed(2))

	require.Len(t, repo.state.entries, 1)
	entry := repo.state.entries[0]
	require.Equal(t, ledger.TypeInvoice, entry.Type)
	require.Equal(t, "451.00", entry.SignedAmount().StringFixed(2))
	require.Equal(t, "451.00", repo.state.balances[1].StringFixed(2))
	require.Equal(t, 1, cache.bumps)
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	input := validCreateInput()
	input.Lines = nil
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, billing.ErrNoLines)
}

func TestCreateRejectsBrokerWithoutCommissionType(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	brokerID := int64(7)
	input := validCreateInput()
	input.BrokerID = &brokerID
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.state.invoices)
}

func TestCreatePercentageCommission(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	brokerID := int64(7)
	input := validCreateInput()
	input.BrokerID = &brokerID
	input.CommissionType = CommissionPercentage
	input.CommissionValue = dec("10")

	detail, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "45.10", detail.CommissionAmount.StringFixed(2))
	require.Equal(t, "45.10", detail.CommissionRemaining().StringFixed(2))
}

func TestAddPaymentProgressesStatus(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	detail, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	inv, err := svc.AddPayment(context.Background(), AddPaymentInput{
		InvoiceID: detail.ID,
		Payment:   billing.PaymentInput{Amount: dec("200"), Method: billing.MethodCash, Date: day(5)},
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusPartiallyPaid, inv.Status)
	require.Equal(t, "251.00", inv.BalanceDue().StringFixed(2))

	inv, err = svc.AddPayment(context.Background(), AddPaymentInput{
		InvoiceID: detail.ID,
		Payment:   billing.PaymentInput{Amount: dec("251"), Method: billing.MethodBank, Date: day(6), BankName: "HBL"},
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusPaid, inv.Status)
	require.True(t, inv.BalanceDue().IsZero())

	// Invoice +451 then payments -200 -251 nets to zero.
	require.True(t, repo.state.balances[1].IsZero())
	require.Len(t, repo.state.payments[detail.ID], 2)
	for _, p := range repo.state.payments[detail.ID] {
		require.Contains(t, p.Reference, "PAY-")
	}
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	detail, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	_, err = svc.AddPayment(context.Background(), AddPaymentInput{
		InvoiceID: detail.ID,
		Payment:   billing.PaymentInput{Amount: dec("451.01"), Method: billing.MethodCash, Date: day(5)},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	after, err := repo.GetInvoice(context.Background(), detail.ID)
	require.NoError(t, err)
	require.True(t, after.AmountPaid.IsZero())
	require.Equal(t, billing.StatusPending, after.Status)
	require.Empty(t, repo.state.payments[detail.ID])
}

func TestAddPaymentValidatesInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	detail, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	_, err = svc.AddPayment(context.Background(), AddPaymentInput{
		InvoiceID: detail.ID,
		Payment:   billing.PaymentInput{Amount: dec("0"), Method: billing.MethodCash, Date: day(5)},
	})
	require.ErrorIs(t, err, billing.ErrNonPositiveAmount)

	_, err = svc.AddPayment(context.Background(), AddPaymentInput{
		InvoiceID: detail.ID,
		Payment:   billing.PaymentInput{Amount: dec("10"), Method: "Cheque", Date: day(5)},
	})
	require.ErrorIs(t, err, billing.ErrUnknownMethod)
}

func TestAddPaymentIdempotencyKey(t *testing.T) {
	svc, _, idem, _ := newTestService(t)

	detail, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	input := AddPaymentInput{
		InvoiceID:      detail.ID,
		IdempotencyKey: "req-1",
		Payment:        billing.PaymentInput{Amount: dec("100"), Method: billing.MethodCash, Date: day(5)},
	}
	_, err = svc.AddPayment(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.AddPayment(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	// A failed payment releases the key for retry.
	overpay := AddPaymentInput{
		InvoiceID:      detail.ID,
		IdempotencyKey: "req-2",
		Payment:        billing.PaymentInput{Amount: dec("10000"), Method: billing.MethodCash, Date: day(5)},
	}
	_, err = svc.AddPayment(context.Background(), overpay)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.False(t, idem.keys["req-2"])
}

func TestSettleCommission(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	brokerID := int64(7)
	input := validCreateInput()
	input.BrokerID = &brokerID
	input.CommissionType = CommissionFixed
	input.CommissionValue = dec("60")
	detail, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "60.00", detail.CommissionAmount.StringFixed(2))

	_, err = svc.SettleCommission(context.Background(), SettleCommissionInput{
		InvoiceID: detail.ID, Amount: dec("100"), Date: day(10), Method: billing.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	inv, err := svc.SettleCommission(context.Background(), SettleCommissionInput{
		InvoiceID: detail.ID, Amount: dec("40"), Date: day(10), Method: billing.MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, "20.00", inv.CommissionRemaining().StringFixed(2))

	inv, err = svc.SettleCommission(context.Background(), SettleCommissionInput{
		InvoiceID: detail.ID, Amount: dec("20"), Date: day(11), Method: billing.MethodBank,
	})
	require.NoError(t, err)
	require.True(t, inv.CommissionRemaining().IsZero())

	_, err = svc.SettleCommission(context.Background(), SettleCommissionInput{
		InvoiceID: detail.ID, Amount: dec("1"), Date: day(12), Method: billing.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrAlreadySettled)

	// Settlements reduce the customer balance: 451 - 40 - 20.
	require.Equal(t, "391.00", repo.state.balances[1].StringFixed(2))
	require.Len(t, repo.state.commissionPayments[detail.ID], 2)
}

func TestSettleCommissionRequiresBroker(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	detail, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	_, err = svc.SettleCommission(context.Background(), SettleCommissionInput{
		InvoiceID: detail.ID, Amount: dec("10"), Date: day(10), Method: billing.MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrInvalidOperation)
}
