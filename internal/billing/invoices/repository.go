package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/platform/db"
	"github.com/textileflow/textileflow/internal/shared"
)

// Repository defines invoice data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetInvoiceWithDetails(ctx context.Context, id int64) (InvoiceWithDetails, error)
	ListInvoices(ctx context.Context, req ListRequest) ([]Invoice, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error)
}

// TxRepository defines the operations that run inside one transaction.
type TxRepository interface {
	CustomerExists(ctx context.Context, id int64) (bool, error)
	BrokerExists(ctx context.Context, id int64) (bool, error)
	InventoryItemExists(ctx context.Context, id int64) (bool, error)

	GenerateInvoiceNumber(ctx context.Context) (string, error)
	CreateInvoice(ctx context.Context, input CreateInvoiceInput, total, commissionAmount decimal.Decimal, status billing.Status) (int64, error)
	CreateLine(ctx context.Context, invoiceID int64, line CreateLineInput, subtotal decimal.Decimal) error

	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertPayment(ctx context.Context, invoiceID int64, reference string, p billing.PaymentInput) (int64, error)
	AddAmountPaid(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	SetStatus(ctx context.Context, id int64, status billing.Status) error

	InsertCommissionPayment(ctx context.Context, input SettleCommissionInput) (int64, error)
	AddCommissionPaid(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)

	RecordLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error)
	RecomputeCustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error)
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const invoiceColumns = `i.id, i.invoice_number, i.customer_id, c.name,
	i.broker_id, COALESCE(b.name, ''), i.invoice_date, i.due_date, i.status,
	i.total::text, i.amount_paid::text, COALESCE(i.commission_type, ''),
	i.commission_value::text, i.commission_amount::text, i.commission_paid::text,
	i.notes, i.created_at, i.updated_at`

const invoiceFrom = `FROM invoices i
	JOIN customers c ON c.id = i.customer_id
	LEFT JOIN brokers b ON b.id = i.broker_id`

func (r *pgRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s %s WHERE i.id = $1`, invoiceColumns, invoiceFrom), id)
	return scanInvoice(row)
}

func (r *pgRepository) GetInvoiceWithDetails(ctx context.Context, id int64) (InvoiceWithDetails, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}

	payments, err := r.listPayments(ctx, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}

	commissionPayments, err := r.listCommissionPayments(ctx, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}

	return InvoiceWithDetails{
		Invoice:            inv,
		Lines:              lines,
		Payments:           payments,
		CommissionPayments: commissionPayments,
	}, nil
}

func (r *pgRepository) listLines(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.invoice_id, l.inventory_item_id, it.fabric_type, it.lot_number,
		       l.meters::text, l.unit_price::text, l.subtotal::text
		FROM invoice_lines l
		JOIN inventory_items it ON it.id = l.inventory_item_id
		WHERE l.invoice_id = $1
		ORDER BY l.id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list lines: %w", err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var (
			l                       LineItem
			meters, price, subtotal string
		)
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.InventoryItemID, &l.FabricType, &l.LotNumber, &meters, &price, &subtotal); err != nil {
			return nil, fmt.Errorf("invoices: scan line: %w", err)
		}
		if l.Meters, err = money.Parse(meters); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = money.Parse(price); err != nil {
			return nil, err
		}
		if l.Subtotal, err = money.Parse(subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *pgRepository) listPayments(ctx context.Context, invoiceID int64) ([]billing.PaymentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reference, invoice_id, payment_date, amount::text, method,
		       COALESCE(bank_name, ''), COALESCE(transaction_id, ''), created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY payment_date DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.PaymentRecord
	for rows.Next() {
		var (
			p      billing.PaymentRecord
			amount string
			method string
		)
		if err := rows.Scan(&p.ID, &p.Reference, &p.DocumentID, &p.Date, &amount, &method, &p.BankName, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("invoices: scan payment: %w", err)
		}
		p.Method = billing.PaymentMethod(method)
		if p.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *pgRepository) listCommissionPayments(ctx context.Context, invoiceID int64) ([]CommissionPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, payment_date, amount::text, method, created_at
		FROM commission_payments
		WHERE invoice_id = $1
		ORDER BY payment_date DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list commission payments: %w", err)
	}
	defer rows.Close()

	var payments []CommissionPayment
	for rows.Next() {
		var (
			p      CommissionPayment
			amount string
			method string
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Date, &amount, &method, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("invoices: scan commission payment: %w", err)
		}
		p.Method = billing.PaymentMethod(method)
		if p.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *pgRepository) ListInvoices(ctx context.Context, req ListRequest) ([]Invoice, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE 1=1`, invoiceColumns, invoiceFrom)
	args := []any{}
	if req.Status != "" {
		args = append(args, string(req.Status))
		query += fmt.Sprintf(" AND i.status = $%d", len(args))
	}
	if req.CustomerID != 0 {
		args = append(args, req.CustomerID)
		query += fmt.Sprintf(" AND i.customer_id = $%d", len(args))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY i.invoice_date DESC, i.id DESC LIMIT $%d", len(args))
	args = append(args, req.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return r.queryInvoices(ctx, query, args...)
}

func (r *pgRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE i.due_date < $1 AND i.status <> $2 ORDER BY i.due_date, i.id`, invoiceColumns, invoiceFrom)
	return r.queryInvoices(ctx, query, asOf, string(billing.StatusPaid))
}

func (r *pgRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invoices: query: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.tx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, id)
}

func (r *pgTxRepository) BrokerExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.tx, `SELECT EXISTS(SELECT 1 FROM brokers WHERE id = $1)`, id)
}

func (r *pgTxRepository) InventoryItemExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.tx, `SELECT EXISTS(SELECT 1 FROM inventory_items WHERE id = $1)`, id)
}

func exists(ctx context.Context, tx pgx.Tx, query string, id int64) (bool, error) {
	var ok bool
	if err := tx.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("invoices: exists check: %w", err)
	}
	return ok, nil
}

func (r *pgTxRepository) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	var number string
	err := r.tx.QueryRow(ctx, `SELECT 'INV-' || to_char(nextval('invoice_number_seq'), 'FM000000')`).Scan(&number)
	if err != nil {
		return "", fmt.Errorf("invoices: generate number: %w", err)
	}
	return number, nil
}

func (r *pgTxRepository) CreateInvoice(ctx context.Context, input CreateInvoiceInput, total, commissionAmount decimal.Decimal, status billing.Status) (int64, error) {
	var commissionType *string
	if input.CommissionType != "" {
		s := string(input.CommissionType)
		commissionType = &s
	}
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, customer_id, broker_id, invoice_date, due_date, status,
			total, amount_paid, commission_type, commission_value, commission_amount, commission_paid, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, 0, $8, $9::numeric, $10::numeric, 0, $11)
		RETURNING id`,
		input.Number, input.CustomerID, input.BrokerID, input.Date, input.DueDate, string(status),
		money.String(total), commissionType, money.String(input.CommissionValue),
		money.String(commissionAmount), input.Notes).Scan(&id)
	if err != nil {
		return 0, shared.MapPgError(err)
	}
	return id, nil
}

func (r *pgTxRepository) CreateLine(ctx context.Context, invoiceID int64, line CreateLineInput, subtotal decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO invoice_lines (invoice_id, inventory_item_id, meters, unit_price, subtotal)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric)`,
		invoiceID, line.InventoryItemID, money.String(line.Meters), money.String(line.UnitPrice), money.String(subtotal))
	if err != nil {
		return shared.MapPgError(err)
	}
	return nil
}

func (r *pgTxRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	// Row lock serializes concurrent payments against the same invoice.
	row := r.tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s %s WHERE i.id = $1 FOR UPDATE OF i`, invoiceColumns, invoiceFrom), id)
	return scanInvoice(row)
}

func (r *pgTxRepository) InsertPayment(ctx context.Context, invoiceID int64, reference string, p billing.PaymentInput) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO invoice_payments (reference, invoice_id, payment_date, amount, method, bank_name, transaction_id)
		VALUES ($1, $2, $3, $4::numeric, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id`,
		reference, invoiceID, p.Date, money.String(p.Amount), string(p.Method), p.BankName, p.TransactionID).Scan(&id)
	if err != nil {
		return 0, shared.MapPgError(err)
	}
	return id, nil
}

func (r *pgTxRepository) AddAmountPaid(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var paid string
	err := r.tx.QueryRow(ctx, `
		UPDATE invoices SET amount_paid = amount_paid + $1::numeric, updated_at = NOW()
		WHERE id = $2
		RETURNING amount_paid::text`,
		money.String(amount), id).Scan(&paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrNotFound
		}
		return decimal.Zero, shared.MapPgError(err)
	}
	return money.Parse(paid)
}

func (r *pgTxRepository) SetStatus(ctx context.Context, id int64, status billing.Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

func (r *pgTxRepository) InsertCommissionPayment(ctx context.Context, input SettleCommissionInput) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO commission_payments (invoice_id, payment_date, amount, method)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING id`,
		input.InvoiceID, input.Date, money.String(input.Amount), string(input.Method)).Scan(&id)
	if err != nil {
		return 0, shared.MapPgError(err)
	}
	return id, nil
}

func (r *pgTxRepository) AddCommissionPaid(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var paid string
	err := r.tx.QueryRow(ctx, `
		UPDATE invoices SET commission_paid = commission_paid + $1::numeric, updated_at = NOW()
		WHERE id = $2
		RETURNING commission_paid::text`,
		money.String(amount), id).Scan(&paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrNotFound
		}
		return decimal.Zero, shared.MapPgError(err)
	}
	return money.Parse(paid)
}

func (r *pgTxRepository) RecordLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	return ledger.NewStore(r.tx).Insert(ctx, entry)
}

func (r *pgTxRepository) RecomputeCustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	return ledger.RecomputeCustomerBalanceTx(ctx, r.tx, customerID)
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv                                          Invoice
		status, commissionType                       string
		total, paid, commValue, commAmount, commPaid string
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName,
		&inv.BrokerID, &inv.BrokerName, &inv.Date, &inv.DueDate, &status,
		&total, &paid, &commissionType, &commValue, &commAmount, &commPaid,
		&inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, fmt.Errorf("invoices: scan invoice: %w", err)
	}
	inv.Status = billing.Status(status)
	inv.CommissionType = CommissionType(commissionType)
	if inv.Total, err = money.Parse(total); err != nil {
		return Invoice{}, err
	}
	if inv.AmountPaid, err = money.Parse(paid); err != nil {
		return Invoice{}, err
	}
	if inv.CommissionValue, err = money.Parse(commValue); err != nil {
		return Invoice{}, err
	}
	if inv.CommissionAmount, err = money.Parse(commAmount); err != nil {
		return Invoice{}, err
	}
	if inv.CommissionPaid, err = money.Parse(commPaid); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
