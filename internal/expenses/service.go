package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/shared"
)

// Auditor records domain mutations.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies expense validation rules.
type Service struct {
	logger *slog.Logger
	repo   Repository
	audit  Auditor
}

func NewService(logger *slog.Logger, repo Repository, audit Auditor) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

// Create records a new expense.
func (s *Service) Create(ctx context.Context, input Input) (Expense, error) {
	if !input.Category.Valid() {
		return Expense{}, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, input.Category)
	}
	if strings.TrimSpace(input.Description) == "" {
		return Expense{}, fmt.Errorf("%w: description is required", shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if !input.Method.Valid() {
		return Expense{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, input.Method)
	}

	e, err := s.repo.Create(ctx, input)
	if err != nil {
		return Expense{}, err
	}
	s.recordAudit(ctx, "expense.created", e.ID, map[string]any{
		"category": string(e.Category),
		"amount":   money.String(e.Amount),
	})
	return e, nil
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List returns expenses matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, filter.Category)
	}
	return s.repo.List(ctx, filter)
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "expense.deleted", id, nil)
	return nil
}

// Summarize returns total spend and the per-category breakdown.
func (s *Service) Summarize(ctx context.Context, filter ListFilter) (Summary, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return Summary{}, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, filter.Category)
	}
	return s.repo.Summarize(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "expense",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
