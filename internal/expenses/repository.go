package expenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/shared"
)

// Repository defines expense data access.
type Repository interface {
	Create(ctx context.Context, input Input) (Expense, error)
	Get(ctx context.Context, id int64) (Expense, error)
	List(ctx context.Context, filter ListFilter) ([]Expense, error)
	Delete(ctx context.Context, id int64) error
	Summarize(ctx context.Context, filter ListFilter) (Summary, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const expenseColumns = `id, expense_date, category, description, amount::text, payment_method, notes, created_at, updated_at`

func (r *pgRepository) Create(ctx context.Context, input Input) (Expense, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO expenses (expense_date, category, description, amount, payment_method, notes)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING %s`, expenseColumns),
		input.Date, string(input.Category), input.Description,
		money.String(input.Amount), string(input.Method), input.Notes)
	e, err := scanExpense(row)
	if err != nil {
		return Expense{}, shared.MapPgError(err)
	}
	return e, nil
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Expense, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM expenses WHERE id = $1`, expenseColumns), id)
	return scanExpense(row)
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	query := fmt.Sprintf(`SELECT %s FROM expenses WHERE 1=1`, expenseColumns)
	args := []any{}
	query, args = applyFilter(query, args, filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY expense_date DESC, id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expenses: list: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) Summarize(ctx context.Context, filter ListFilter) (Summary, error) {
	query := `SELECT category, COUNT(*), COALESCE(SUM(amount), 0)::text FROM expenses WHERE 1=1`
	args := []any{}
	query, args = applyFilter(query, args, filter)
	query += " GROUP BY category ORDER BY category"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return Summary{}, fmt.Errorf("expenses: summarize: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var (
			ct       CategoryTotal
			category string
			amount   string
		)
		if err := rows.Scan(&category, &ct.Count, &amount); err != nil {
			return Summary{}, fmt.Errorf("expenses: scan summary: %w", err)
		}
		ct.Category = Category(category)
		if ct.Amount, err = money.Parse(amount); err != nil {
			return Summary{}, err
		}
		summary.ByCategory = append(summary.ByCategory, ct)
		summary.Total = summary.Total.Add(ct.Amount)
		summary.Count += ct.Count
	}
	return summary, rows.Err()
}

func applyFilter(query string, args []any, filter ListFilter) (string, []any) {
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND expense_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND expense_date <= $%d", len(args))
	}
	return query, args
}

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		e                Expense
		category, method string
		amount           string
	)
	err := row.Scan(&e.ID, &e.Date, &category, &e.Description, &amount, &method, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, shared.ErrNotFound
		}
		return Expense{}, fmt.Errorf("expenses: scan: %w", err)
	}
	e.Category = Category(category)
	e.Method = billing.PaymentMethod(method)
	if e.Amount, err = money.Parse(amount); err != nil {
		return Expense{}, err
	}
	return e, nil
}
