package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/money"
)

// DocumentStatusSummary aggregates one document status bucket.
type DocumentStatusSummary struct {
	Status      string          `json:"status"`
	Count       int64           `json:"count"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// InventorySnapshot mirrors the stock position at report time.
type InventorySnapshot struct {
	TotalLots      int64           `json:"total_lots"`
	TotalMeters    decimal.Decimal `json:"total_meters"`
	UnbilledLots   int64           `json:"unbilled_lots"`
	UnbilledMeters decimal.Decimal `json:"unbilled_meters"`
	StockValue     decimal.Decimal `json:"stock_value"`
}

// Repository runs the aggregate queries behind the summary report.
type Repository interface {
	InvoiceStatusSummary(ctx context.Context) ([]DocumentStatusSummary, error)
	BillStatusSummary(ctx context.Context) ([]DocumentStatusSummary, error)
	LedgerTotals(ctx context.Context, from, to time.Time) ([]ledger.TypeTotal, error)
	InventorySnapshot(ctx context.Context) (InventorySnapshot, error)
	VendorLedger(ctx context.Context, id int64, limit, offset int) ([]ledger.Entry, error)
	CustomerLedger(ctx context.Context, id int64, limit, offset int) ([]ledger.Entry, error)
}

type pgRepository struct {
	pool  *pgxpool.Pool
	store *ledger.Store
}

// NewRepository builds the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool, store: ledger.NewStore(pool)}
}

func (r *pgRepository) InvoiceStatusSummary(ctx context.Context) ([]DocumentStatusSummary, error) {
	return r.statusSummary(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)::text, COALESCE(SUM(amount_paid), 0)::text
		FROM invoices
		GROUP BY status
		ORDER BY status`)
}

func (r *pgRepository) BillStatusSummary(ctx context.Context) ([]DocumentStatusSummary, error) {
	return r.statusSummary(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)::text, COALESCE(SUM(amount_paid), 0)::text
		FROM bills
		GROUP BY status
		ORDER BY status`)
}

func (r *pgRepository) statusSummary(ctx context.Context, query string) ([]DocumentStatusSummary, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reports: status summary: %w", err)
	}
	defer rows.Close()

	var out []DocumentStatusSummary
	for rows.Next() {
		var (
			s           DocumentStatusSummary
			total, paid string
		)
		if err := rows.Scan(&s.Status, &s.Count, &total, &paid); err != nil {
			return nil, fmt.Errorf("reports: scan status summary: %w", err)
		}
		if s.Total, err = money.Parse(total); err != nil {
			return nil, err
		}
		if s.Paid, err = money.Parse(paid); err != nil {
			return nil, err
		}
		s.Outstanding = s.Total.Sub(s.Paid)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgRepository) LedgerTotals(ctx context.Context, from, to time.Time) ([]ledger.TypeTotal, error) {
	return r.store.TotalsByType(ctx, from, to)
}

func (r *pgRepository) InventorySnapshot(ctx context.Context) (InventorySnapshot, error) {
	var (
		snap                               InventorySnapshot
		totalMeters, unbilledMeters, value string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(meters), 0)::text,
		       COUNT(*) FILTER (WHERE NOT is_billed),
		       COALESCE(SUM(meters) FILTER (WHERE NOT is_billed), 0)::text,
		       COALESCE(SUM(meters * unit_price), 0)::text
		FROM inventory_items`).Scan(&snap.TotalLots, &totalMeters, &snap.UnbilledLots, &unbilledMeters, &value)
	if err != nil {
		return InventorySnapshot{}, fmt.Errorf("reports: inventory snapshot: %w", err)
	}
	if snap.TotalMeters, err = money.Parse(totalMeters); err != nil {
		return InventorySnapshot{}, err
	}
	if snap.UnbilledMeters, err = money.Parse(unbilledMeters); err != nil {
		return InventorySnapshot{}, err
	}
	if snap.StockValue, err = money.Parse(value); err != nil {
		return InventorySnapshot{}, err
	}
	snap.StockValue = money.Round2(snap.StockValue)
	return snap, nil
}

func (r *pgRepository) VendorLedger(ctx context.Context, id int64, limit, offset int) ([]ledger.Entry, error) {
	return r.store.ListForVendor(ctx, id, limit, offset)
}

func (r *pgRepository) CustomerLedger(ctx context.Context, id int64, limit, offset int) ([]ledger.Entry, error) {
	return r.store.ListForCustomer(ctx, id, limit, offset)
}
