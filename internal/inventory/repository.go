package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/shared"
)

// Repository defines inventory data access.
type Repository interface {
	CreateItem(ctx context.Context, input CreateItemInput) (Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, error)
	UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error)
	DeleteItem(ctx context.Context, id int64) error
	Summarize(ctx context.Context) (Summary, error)

	CreateMasterItem(ctx context.Context, input MasterItemInput) (MasterItem, error)
	GetMasterItem(ctx context.Context, id int64) (MasterItem, error)
	ListMasterItems(ctx context.Context, activeOnly bool, limit, offset int) ([]MasterItem, error)
	UpdateMasterItem(ctx context.Context, id int64, input MasterItemInput) (MasterItem, error)
	DeleteMasterItem(ctx context.Context, id int64) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const itemColumns = `i.id, i.lot_number, i.fabric_type, i.meters::text, i.unit_price::text,
	i.vendor_id, v.name, i.received_date, i.is_billed, i.created_at, i.updated_at`

func (r *pgRepository) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO inventory_items (lot_number, fabric_type, meters, unit_price, vendor_id, received_date, is_billed)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, FALSE)
		RETURNING id`,
		input.LotNumber, input.FabricType, money.String(input.Meters), money.String(input.UnitPrice),
		input.VendorID, input.ReceivedDate).Scan(&id)
	if err != nil {
		return Item{}, shared.MapPgError(err)
	}
	return r.GetItem(ctx, id)
}

func (r *pgRepository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM inventory_items i
		JOIN vendors v ON v.id = i.vendor_id
		WHERE i.id = $1`, itemColumns), id)
	return scanItem(row)
}

func (r *pgRepository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM inventory_items i JOIN vendors v ON v.id = i.vendor_id WHERE 1=1`, itemColumns)
	args := []any{}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(" AND i.vendor_id = $%d", len(args))
	}
	if filter.UnbilledOnly {
		query += " AND i.is_billed = FALSE"
	}
	if filter.FabricType != "" {
		args = append(args, filter.FabricType)
		query += fmt.Sprintf(" AND i.fabric_type = $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY i.received_date DESC, i.id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: list items: %w", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgRepository) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inventory_items
		SET lot_number = $1, fabric_type = $2, meters = $3::numeric, unit_price = $4::numeric,
		    received_date = $5, updated_at = NOW()
		WHERE id = $6`,
		input.LotNumber, input.FabricType, money.String(input.Meters), money.String(input.UnitPrice),
		input.ReceivedDate, id)
	if err != nil {
		return Item{}, shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return Item{}, shared.ErrNotFound
	}
	return r.GetItem(ctx, id)
}

func (r *pgRepository) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) Summarize(ctx context.Context) (Summary, error) {
	var (
		s              Summary
		totalMeters    string
		unbilledMeters string
		stockValue     string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(meters), 0)::text,
		       COUNT(*) FILTER (WHERE NOT is_billed),
		       COALESCE(SUM(meters) FILTER (WHERE NOT is_billed), 0)::text,
		       COALESCE(SUM(meters * unit_price), 0)::text
		FROM inventory_items`).
		Scan(&s.TotalLots, &totalMeters, &s.UnbilledLots, &unbilledMeters, &stockValue)
	if err != nil {
		return Summary{}, fmt.Errorf("inventory: summarize: %w", err)
	}
	if s.TotalMeters, err = money.Parse(totalMeters); err != nil {
		return Summary{}, err
	}
	if s.UnbilledMeters, err = money.Parse(unbilledMeters); err != nil {
		return Summary{}, err
	}
	if s.StockValue, err = money.Parse(stockValue); err != nil {
		return Summary{}, err
	}
	s.StockValue = money.Round2(s.StockValue)
	return s, nil
}

func (r *pgRepository) CreateMasterItem(ctx context.Context, input MasterItemInput) (MasterItem, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO item_master (code, name, category, unit, standard_price, active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING id, code, name, category, unit, standard_price::text, active, created_at, updated_at`,
		input.Code, input.Name, input.Category, input.Unit, money.String(input.StandardPrice), input.Active)
	return scanMasterItem(row)
}

func (r *pgRepository) GetMasterItem(ctx context.Context, id int64) (MasterItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, name, category, unit, standard_price::text, active, created_at, updated_at
		FROM item_master WHERE id = $1`, id)
	return scanMasterItem(row)
}

func (r *pgRepository) ListMasterItems(ctx context.Context, activeOnly bool, limit, offset int) ([]MasterItem, error) {
	query := `SELECT id, code, name, category, unit, standard_price::text, active, created_at, updated_at FROM item_master`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY code LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("inventory: list master items: %w", err)
	}
	defer rows.Close()
	var out []MasterItem
	for rows.Next() {
		m, err := scanMasterItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgRepository) UpdateMasterItem(ctx context.Context, id int64, input MasterItemInput) (MasterItem, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE item_master
		SET code = $1, name = $2, category = $3, unit = $4, standard_price = $5::numeric, active = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING id, code, name, category, unit, standard_price::text, active, created_at, updated_at`,
		input.Code, input.Name, input.Category, input.Unit, money.String(input.StandardPrice), input.Active, id)
	return scanMasterItem(row)
}

func (r *pgRepository) DeleteMasterItem(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM item_master WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item   Item
		meters string
		price  string
	)
	err := row.Scan(&item.ID, &item.LotNumber, &item.FabricType, &meters, &price,
		&item.VendorID, &item.VendorName, &item.ReceivedDate, &item.IsBilled, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, fmt.Errorf("inventory: scan item: %w", err)
	}
	if item.Meters, err = money.Parse(meters); err != nil {
		return Item{}, err
	}
	if item.UnitPrice, err = money.Parse(price); err != nil {
		return Item{}, err
	}
	return item, nil
}

func scanMasterItem(row pgx.Row) (MasterItem, error) {
	var (
		m     MasterItem
		price string
	)
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Category, &m.Unit, &price, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MasterItem{}, shared.ErrNotFound
		}
		return MasterItem{}, shared.MapPgError(err)
	}
	if m.StandardPrice, err = money.Parse(price); err != nil {
		return MasterItem{}, err
	}
	return m, nil
}
