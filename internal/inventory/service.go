package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/textileflow/textileflow/internal/shared"
)

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates fabric lot and catalog management.
type Service struct {
	logger *slog.Logger
	repo   Repository
	audit  Auditor
}

// NewService builds the inventory service.
func NewService(logger *slog.Logger, repo Repository, audit Auditor) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

func validateItemFields(lotNumber, fabricType string) error {
	if strings.TrimSpace(lotNumber) == "" {
		return fmt.Errorf("%w: lot number is required", shared.ErrValidation)
	}
	if strings.TrimSpace(fabricType) == "" {
		return fmt.Errorf("%w: fabric type is required", shared.ErrValidation)
	}
	return nil
}

// CreateItem registers a new fabric lot.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	if err := validateItemFields(input.LotNumber, input.FabricType); err != nil {
		return Item{}, err
	}
	if !input.Meters.IsPositive() {
		return Item{}, fmt.Errorf("%w: meters must be positive", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return Item{}, fmt.Errorf("%w: unit price cannot be negative", shared.ErrValidation)
	}
	if input.VendorID <= 0 {
		return Item{}, fmt.Errorf("%w: vendor is required", shared.ErrValidation)
	}
	item, err := s.repo.CreateItem(ctx, input)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "create", "inventory_item", item.ID)
	return item, nil
}

// GetItem fetches one lot.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems lists lots, optionally narrowed to a vendor's unbilled stock.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	return s.repo.ListItems(ctx, filter)
}

// UpdateItem mutates a lot. Billed lots are frozen: they back a bill line.
func (s *Service) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error) {
	if err := validateItemFields(input.LotNumber, input.FabricType); err != nil {
		return Item{}, err
	}
	if !input.Meters.IsPositive() {
		return Item{}, fmt.Errorf("%w: meters must be positive", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return Item{}, fmt.Errorf("%w: unit price cannot be negative", shared.ErrValidation)
	}
	current, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if current.IsBilled {
		return Item{}, fmt.Errorf("%w: lot %s is billed", shared.ErrInvalidOperation, current.LotNumber)
	}
	item, err := s.repo.UpdateItem(ctx, id, input)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "update", "inventory_item", id)
	return item, nil
}

// DeleteItem removes an unbilled lot. Billed lots are referenced by bill
// lines; the delete is refused before it reaches the store.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	current, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if current.IsBilled {
		return fmt.Errorf("%w: lot %s is billed", shared.ErrProtectedReference, current.LotNumber)
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "delete", "inventory_item", id)
	return nil
}

// Summarize reports the stock position.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	return s.repo.Summarize(ctx)
}

// CreateMasterItem adds a catalog entry.
func (s *Service) CreateMasterItem(ctx context.Context, input MasterItemInput) (MasterItem, error) {
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Name) == "" {
		return MasterItem{}, fmt.Errorf("%w: code and name are required", shared.ErrValidation)
	}
	if input.StandardPrice.IsNegative() {
		return MasterItem{}, fmt.Errorf("%w: standard price cannot be negative", shared.ErrValidation)
	}
	m, err := s.repo.CreateMasterItem(ctx, input)
	if err != nil {
		return MasterItem{}, err
	}
	s.recordAudit(ctx, "create", "item_master", m.ID)
	return m, nil
}

// GetMasterItem fetches one catalog entry.
func (s *Service) GetMasterItem(ctx context.Context, id int64) (MasterItem, error) {
	return s.repo.GetMasterItem(ctx, id)
}

// ListMasterItems lists catalog entries.
func (s *Service) ListMasterItems(ctx context.Context, activeOnly bool, limit, offset int) ([]MasterItem, error) {
	return s.repo.ListMasterItems(ctx, activeOnly, limit, offset)
}

// UpdateMasterItem mutates a catalog entry.
func (s *Service) UpdateMasterItem(ctx context.Context, id int64, input MasterItemInput) (MasterItem, error) {
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Name) == "" {
		return MasterItem{}, fmt.Errorf("%w: code and name are required", shared.ErrValidation)
	}
	m, err := s.repo.UpdateMasterItem(ctx, id, input)
	if err != nil {
		return MasterItem{}, err
	}
	s.recordAudit(ctx, "update", "item_master", id)
	return m, nil
}

// DeleteMasterItem removes a catalog entry.
func (s *Service) DeleteMasterItem(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMasterItem(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "delete", "item_master", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record failed", "entity", entity, "error", err)
	}
}
