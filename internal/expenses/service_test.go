package expenses

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/textileflow/textileflow/internal/billing"
	"github.com/textileflow/textileflow/internal/shared"
)

type memoryRepo struct {
	expenses map[int64]Expense
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{expenses: map[int64]Expense{}}
}

func (r *memoryRepo) Create(_ context.Context, input Input) (Expense, error) {
	r.nextID++
	e := Expense{
		ID:          r.nextID,
		Date:        input.Date,
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		Method:      input.Method,
		Notes:       input.Notes,
	}
	r.expenses[e.ID] = e
	return e, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return Expense{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Expense, error) {
	var out []Expense
	for _, e := range r.expenses {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.expenses[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.expenses, id)
	return nil
}

func (r *memoryRepo) Summarize(ctx context.Context, filter ListFilter) (Summary, error) {
	list, err := r.List(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	byCategory := map[Category]*CategoryTotal{}
	var summary Summary
	for _, e := range list {
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
		}
		ct.Count++
		ct.Amount = ct.Amount.Add(e.Amount)
		summary.Total = summary.Total.Add(e.Amount)
		summary.Count++
	}
	for _, ct := range byCategory {
		summary.ByCategory = append(summary.ByCategory, *ct)
	}
	return summary, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, nil), repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validInput() Input {
	return Input{
		Date:        time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Category:    CategoryOfficeRent,
		Description: "May office rent",
		Amount:      dec("45000"),
		Method:      billing.MethodBank,
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	input := validInput()
	input.Category = "Entertainment"
	_, err := svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.Description = "   "
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.Amount = dec("0")
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.Method = "Barter"
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, "45000.00", e.Amount.StringFixed(2))
}

func TestSummarizeGroupsByCategory(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	second := validInput()
	second.Category = CategoryElectricity
	second.Description = "April electricity"
	second.Amount = dec("12500.50")
	_, err = svc.Create(ctx, second)
	require.NoError(t, err)

	third := validInput()
	third.Description = "Security deposit"
	third.Amount = dec("5000")
	_, err = svc.Create(ctx, third)
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.Count)
	require.Equal(t, "62500.50", summary.Total.StringFixed(2))
	require.Len(t, summary.ByCategory, 2)

	_, err = svc.Summarize(ctx, ListFilter{Category: "Entertainment"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	e, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, e.ID))
	require.Empty(t, repo.expenses)
	require.ErrorIs(t, svc.Delete(ctx, e.ID), shared.ErrNotFound)
}
