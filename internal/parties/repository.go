package parties

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/shared"
)

// Repository defines party data access.
type Repository interface {
	CreateVendor(ctx context.Context, input PartyInput) (Vendor, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	ListVendors(ctx context.Context, limit, offset int) ([]Vendor, error)
	UpdateVendor(ctx context.Context, id int64, input PartyInput) (Vendor, error)
	DeleteVendor(ctx context.Context, id int64) error

	CreateCustomer(ctx context.Context, input PartyInput) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error)
	UpdateCustomer(ctx context.Context, id int64, input PartyInput) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	CreateBroker(ctx context.Context, input PartyInput) (Broker, error)
	GetBroker(ctx context.Context, id int64) (Broker, error)
	ListBrokers(ctx context.Context, limit, offset int) ([]Broker, error)
	UpdateBroker(ctx context.Context, id int64, input PartyInput) (Broker, error)
	DeleteBroker(ctx context.Context, id int64) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) CreateVendor(ctx context.Context, input PartyInput) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vendors (name, phone, address, balance)
		VALUES ($1, $2, $3, 0)
		RETURNING id, name, phone, address, balance::text, created_at, updated_at`,
		input.Name, input.Phone, input.Address)
	return scanVendor(row)
}

func (r *pgRepository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, address, balance::text, created_at, updated_at
		FROM vendors WHERE id = $1`, id)
	return scanVendor(row)
}

func (r *pgRepository) ListVendors(ctx context.Context, limit, offset int) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, address, balance::text, created_at, updated_at
		FROM vendors ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("parties: list vendors: %w", err)
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *pgRepository) UpdateVendor(ctx context.Context, id int64, input PartyInput) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE vendors SET name = $1, phone = $2, address = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, phone, address, balance::text, created_at, updated_at`,
		input.Name, input.Phone, input.Address, id)
	return scanVendor(row)
}

func (r *pgRepository) DeleteVendor(ctx context.Context, id int64) error {
	return r.delete(ctx, "vendors", id)
}

func (r *pgRepository) CreateCustomer(ctx context.Context, input PartyInput) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, address, balance)
		VALUES ($1, $2, $3, 0)
		RETURNING id, name, phone, address, balance::text, created_at, updated_at`,
		input.Name, input.Phone, input.Address)
	return scanCustomer(row)
}

func (r *pgRepository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, address, balance::text, created_at, updated_at
		FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (r *pgRepository) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, address, balance::text, created_at, updated_at
		FROM customers ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("parties: list customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgRepository) UpdateCustomer(ctx context.Context, id int64, input PartyInput) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE customers SET name = $1, phone = $2, address = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, phone, address, balance::text, created_at, updated_at`,
		input.Name, input.Phone, input.Address, id)
	return scanCustomer(row)
}

func (r *pgRepository) DeleteCustomer(ctx context.Context, id int64) error {
	return r.delete(ctx, "customers", id)
}

func (r *pgRepository) CreateBroker(ctx context.Context, input PartyInput) (Broker, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO brokers (name, phone, address)
		VALUES ($1, $2, $3)
		RETURNING id, name, phone, address, created_at, updated_at`,
		input.Name, input.Phone, input.Address)
	return scanBroker(row)
}

func (r *pgRepository) GetBroker(ctx context.Context, id int64) (Broker, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, address, created_at, updated_at
		FROM brokers WHERE id = $1`, id)
	return scanBroker(row)
}

func (r *pgRepository) ListBrokers(ctx context.Context, limit, offset int) ([]Broker, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, address, created_at, updated_at
		FROM brokers ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("parties: list brokers: %w", err)
	}
	defer rows.Close()
	var out []Broker
	for rows.Next() {
		b, err := scanBroker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgRepository) UpdateBroker(ctx context.Context, id int64, input PartyInput) (Broker, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE brokers SET name = $1, phone = $2, address = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, phone, address, created_at, updated_at`,
		input.Name, input.Phone, input.Address, id)
	return scanBroker(row)
}

func (r *pgRepository) DeleteBroker(ctx context.Context, id int64) error {
	return r.delete(ctx, "brokers", id)
}

// delete refuses rather than cascades when the row is still referenced; the
// RESTRICT foreign keys surface here as 23503.
func (r *pgRepository) delete(ctx context.Context, table string, id int64) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanVendor(row pgx.Row) (Vendor, error) {
	var (
		v       Vendor
		balance string
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Phone, &v.Address, &balance, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, shared.ErrNotFound
		}
		return Vendor{}, fmt.Errorf("parties: scan vendor: %w", err)
	}
	var err error
	if v.Balance, err = money.Parse(balance); err != nil {
		return Vendor{}, err
	}
	return v, nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		c       Customer
		balance string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &balance, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrNotFound
		}
		return Customer{}, fmt.Errorf("parties: scan customer: %w", err)
	}
	var err error
	if c.Balance, err = money.Parse(balance); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func scanBroker(row pgx.Row) (Broker, error) {
	var b Broker
	if err := row.Scan(&b.ID, &b.Name, &b.Phone, &b.Address, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Broker{}, shared.ErrNotFound
		}
		return Broker{}, fmt.Errorf("parties: scan broker: %w", err)
	}
	return b, nil
}
