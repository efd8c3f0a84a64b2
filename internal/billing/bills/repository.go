package bills

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

// Repository defines bill data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetBill(ctx context.Context, id int64) (Bill, error)
	GetBillWithDetails(ctx context.Context, id int64) (BillWithDetails, error)
	ListBills(ctx context.Context, req ListRequest) ([]Bill, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]Bill, error)
}

// TxRepository defines the operations that run inside one transaction.
type TxRepository interface {
	VendorExists(ctx context.Context, id int64) (bool, error)

	GenerateBillNumber(ctx context.Context) (string, error)
	CreateBill(ctx context.Context, input CreateBillInput, total decimal.Decimal, status billing.Status) (int64, error)
	CreateLine(ctx context.Context, billID int64, line CreateLineInput, subtotal decimal.Decimal) error
	// MarkItemsBilled flips each lot's billed flag. Every id must name an
	// unbilled lot owned by the vendor or the whole call fails.
	MarkItemsBilled(ctx context.Context, vendorID int64, itemIDs []int64) error

	GetBillForUpdate(ctx context.Context, id int64) (Bill, error)
	InsertPayment(ctx context.Context, billID int64, reference string, p billing.PaymentInput) (int64, error)
	AddAmountPaid(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	SetStatus(ctx context.Context, id int64, status billing.Status) error

	RecordLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error)
	RecomputeVendorBalance(ctx context.Context, vendorID int64) (decimal.Decimal, error)
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

const billColumns = `b.id, b.bill_number, b.vendor_id, v.name, b.bill_date, b.due_date,
	b.status, b.total::text, b.amount_paid::text, b.notes, b.created_at, b.updated_at`

const billFrom = `FROM bills b JOIN vendors v ON v.id = b.vendor_id`

func (r *pgRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s %s WHERE b.id = $1`, billColumns, billFrom), id)
	return scanBill(row)
}

func (r *pgRepository) GetBillWithDetails(ctx context.Context, id int64) (BillWithDetails, error) {
	bill, err := r.GetBill(ctx, id)
	if err != nil {
		return BillWithDetails{}, err
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return BillWithDetails{}, err
	}
	payments, err := r.listPayments(ctx, id)
	if err != nil {
		return BillWithDetails{}, err
	}
	return BillWithDetails{Bill: bill, Lines: lines, Payments: payments}, nil
}

func (r *pgRepository) listLines(ctx context.Context, billID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.bill_id, l.inventory_item_id, it.fabric_type, it.lot_number,
		       l.meters::text, l.unit_price::text, l.subtotal::text
		FROM bill_lines l
		JOIN inventory_items it ON it.id = l.inventory_item_id
		WHERE l.bill_id = $1
		ORDER BY l.id`, billID)
	if err != nil {
		return nil, fmt.Errorf("bills: list lines: %w", err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var (
			l                       LineItem
			meters, price, subtotal string
		)
		if err := rows.Scan(&l.ID, &l.BillID, &l.InventoryItemID, &l.FabricType, &l.LotNumber, &meters, &price, &subtotal); err != nil {
			return nil, fmt.Errorf("bills: scan line: %w", err)
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

func (r *pgRepository) listPayments(ctx context.Context, billID int64) ([]billing.PaymentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reference, bill_id, payment_date, amount::text, method,
		       COALESCE(bank_name, ''), COALESCE(transaction_id, ''), created_at
		FROM bill_payments
		WHERE bill_id = $1
		ORDER BY payment_date DESC, id DESC`, billID)
	if err != nil {
		return nil, fmt.Errorf("bills: list payments: %w", err)
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
			return nil, fmt.Errorf("bills: scan payment: %w", err)
		}
		p.Method = billing.PaymentMethod(method)
		if p.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *pgRepository) ListBills(ctx context.Context, req ListRequest) ([]Bill, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE 1=1`, billColumns, billFrom)
	args := []any{}
	if req.Status != "" {
		args = append(args, string(req.Status))
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	if req.VendorID != 0 {
		args = append(args, req.VendorID)
		query += fmt.Sprintf(" AND b.vendor_id = $%d", len(args))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY b.bill_date DESC, b.id DESC LIMIT $%d", len(args))
	args = append(args, req.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return r.queryBills(ctx, query, args...)
}

func (r *pgRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]Bill, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.due_date < $1 AND b.status <> $2 ORDER BY b.due_date, b.id`, billColumns, billFrom)
	return r.queryBills(ctx, query, asOf, string(billing.StatusPaid))
}

func (r *pgRepository) queryBills(ctx context.Context, query string, args ...any) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bills: query: %w", err)
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) VendorExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vendors WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("bills: vendor exists: %w", err)
	}
	return ok, nil
}

func (r *pgTxRepository) GenerateBillNumber(ctx context.Context) (string, error) {
	var number string
	err := r.tx.QueryRow(ctx, `SELECT 'BILL-' || to_char(nextval('bill_number_seq'), 'FM000000')`).Scan(&number)
	if err != nil {
		return "", fmt.Errorf("bills: generate number: %w", err)
	}
	return number, nil
}

func (r *pgTxRepository) CreateBill(ctx context.Context, input CreateBillInput, total decimal.Decimal, status billing.Status) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO bills (bill_number, vendor_id, bill_date, due_date, status, total, amount_paid, notes)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, 0, $7)
		RETURNING id`,
		input.Number, input.VendorID, input.Date, input.DueDate, string(status),
		money.String(total), input.Notes).Scan(&id)
	if err != nil {
		return 0, shared.MapPgError(err)
	}
	return id, nil
}

func (r *pgTxRepository) CreateLine(ctx context.Context, billID int64, line CreateLineInput, subtotal decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO bill_lines (bill_id, inventory_item_id, meters, unit_price, subtotal)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric)`,
		billID, line.InventoryItemID, money.String(line.Meters), money.String(line.UnitPrice), money.String(subtotal))
	if err != nil {
		return shared.MapPgError(err)
	}
	return nil
}

func (r *pgTxRepository) MarkItemsBilled(ctx context.Context, vendorID int64, itemIDs []int64) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE inventory_items SET is_billed = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND vendor_id = $2 AND is_billed = FALSE`,
		itemIDs, vendorID)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() != int64(len(itemIDs)) {
		return r.classifyUnmarkedLots(ctx, itemIDs)
	}
	return nil
}

// classifyUnmarkedLots decides why the update skipped rows: a missing lot is
// NotFound, a foreign or already-billed one is an invalid operation.
func (r *pgTxRepository) classifyUnmarkedLots(ctx context.Context, itemIDs []int64) error {
	rows, err := r.tx.Query(ctx, `SELECT id FROM inventory_items WHERE id = ANY($1)`, itemIDs)
	if err != nil {
		return shared.MapPgError(err)
	}
	defer rows.Close()
	found := make(map[int64]bool, len(itemIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range itemIDs {
		if !found[id] {
			return fmt.Errorf("%w: inventory lot %d", shared.ErrNotFound, id)
		}
	}
	return fmt.Errorf("%w: one or more lots are already billed or belong to another vendor", shared.ErrInvalidOperation)
}

func (r *pgTxRepository) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	// Row lock serializes concurrent payments against the same bill.
	row := r.tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s %s WHERE b.id = $1 FOR UPDATE OF b`, billColumns, billFrom), id)
	return scanBill(row)
}

func (r *pgTxRepository) InsertPayment(ctx context.Context, billID int64, reference string, p billing.PaymentInput) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO bill_payments (reference, bill_id, payment_date, amount, method, bank_name, transaction_id)
		VALUES ($1, $2, $3, $4::numeric, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id`,
		reference, billID, p.Date, money.String(p.Amount), string(p.Method), p.BankName, p.TransactionID).Scan(&id)
	if err != nil {
		return 0, shared.MapPgError(err)
	}
	return id, nil
}

func (r *pgTxRepository) AddAmountPaid(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var paid string
	err := r.tx.QueryRow(ctx, `
		UPDATE bills SET amount_paid = amount_paid + $1::numeric, updated_at = NOW()
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
	_, err := r.tx.Exec(ctx, `UPDATE bills SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	return err
}

func (r *pgTxRepository) RecordLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	return ledger.NewStore(r.tx).Insert(ctx, entry)
}

func (r *pgTxRepository) RecomputeVendorBalance(ctx context.Context, vendorID int64) (decimal.Decimal, error) {
	return ledger.RecomputeVendorBalanceTx(ctx, r.tx, vendorID)
}

func scanBill(row pgx.Row) (Bill, error) {
	var (
		b           Bill
		status      string
		total, paid string
	)
	err := row.Scan(&b.ID, &b.Number, &b.VendorID, &b.VendorName, &b.Date, &b.DueDate,
		&status, &total, &paid, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.ErrNotFound
		}
		return Bill{}, fmt.Errorf("bills: scan bill: %w", err)
	}
	b.Status = billing.Status(status)
	if b.Total, err = money.Parse(total); err != nil {
		return Bill{}, err
	}
	if b.AmountPaid, err = money.Parse(paid); err != nil {
		return Bill{}, err
	}
	return b, nil
}
