package parties

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/shared"
)

// LedgerReader lists ledger entries for a party.
type LedgerReader interface {
	ListForVendor(ctx context.Context, vendorID int64, limit, offset int) ([]ledger.Entry, error)
	ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]ledger.Entry, error)
}

// BalanceReconciler recomputes cached balances from the ledger.
type BalanceReconciler interface {
	RecomputeVendorBalance(ctx context.Context, vendorID int64) (decimal.Decimal, error)
	RecomputeCustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates party management.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	entries LedgerReader
	recon   BalanceReconciler
	audit   Auditor
}

// NewService builds the party service.
func NewService(logger *slog.Logger, repo Repository, entries LedgerReader, recon BalanceReconciler, audit Auditor) *Service {
	return &Service{logger: logger, repo: repo, entries: entries, recon: recon, audit: audit}
}

func validateInput(input PartyInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	return nil
}

func (s *Service) CreateVendor(ctx context.Context, input PartyInput) (Vendor, error) {
	if err := validateInput(input); err != nil {
		return Vendor{}, err
	}
	v, err := s.repo.CreateVendor(ctx, input)
	if err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, "create", "vendor", v.ID)
	return v, nil
}

func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) ListVendors(ctx context.Context, limit, offset int) ([]Vendor, error) {
	return s.repo.ListVendors(ctx, limit, offset)
}

func (s *Service) UpdateVendor(ctx context.Context, id int64, input PartyInput) (Vendor, error) {
	if err := validateInput(input); err != nil {
		return Vendor{}, err
	}
	v, err := s.repo.UpdateVendor(ctx, id, input)
	if err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, "update", "vendor", id)
	return v, nil
}

func (s *Service) DeleteVendor(ctx context.Context, id int64) error {
	if err := s.repo.DeleteVendor(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "delete", "vendor", id)
	return nil
}

// VendorLedger lists a vendor's ledger entries newest-first.
func (s *Service) VendorLedger(ctx context.Context, id int64, limit, offset int) ([]ledger.Entry, error) {
	if _, err := s.repo.GetVendor(ctx, id); err != nil {
		return nil, err
	}
	return s.entries.ListForVendor(ctx, id, limit, offset)
}

// RecalculateVendorBalance reconciles the cached balance and returns it.
func (s *Service) RecalculateVendorBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	if _, err := s.repo.GetVendor(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return s.recon.RecomputeVendorBalance(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, input PartyInput) (Customer, error) {
	if err := validateInput(input); err != nil {
		return Customer{}, err
	}
	c, err := s.repo.CreateCustomer(ctx, input)
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, "create", "customer", c.ID)
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, limit, offset)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, input PartyInput) (Customer, error) {
	if err := validateInput(input); err != nil {
		return Customer{}, err
	}
	c, err := s.repo.UpdateCustomer(ctx, id, input)
	if err != nil {
		return Customer{}, err
	}
	s.recordAudit(ctx, "update", "customer", id)
	return c, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "delete", "customer", id)
	return nil
}

// CustomerLedger lists a customer's ledger entries newest-first.
func (s *Service) CustomerLedger(ctx context.Context, id int64, limit, offset int) ([]ledger.Entry, error) {
	if _, err := s.repo.GetCustomer(ctx, id); err != nil {
		return nil, err
	}
	return s.entries.ListForCustomer(ctx, id, limit, offset)
}

// RecalculateCustomerBalance reconciles the cached balance and returns it.
func (s *Service) RecalculateCustomerBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	if _, err := s.repo.GetCustomer(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return s.recon.RecomputeCustomerBalance(ctx, id)
}

func (s *Service) CreateBroker(ctx context.Context, input PartyInput) (Broker, error) {
	if err := validateInput(input); err != nil {
		return Broker{}, err
	}
	b, err := s.repo.CreateBroker(ctx, input)
	if err != nil {
		return Broker{}, err
	}
	s.recordAudit(ctx, "create", "broker", b.ID)
	return b, nil
}

func (s *Service) GetBroker(ctx context.Context, id int64) (Broker, error) {
	return s.repo.GetBroker(ctx, id)
}

func (s *Service) ListBrokers(ctx context.Context, limit, offset int) ([]Broker, error) {
	return s.repo.ListBrokers(ctx, limit, offset)
}

func (s *Service) UpdateBroker(ctx context.Context, id int64, input PartyInput) (Broker, error) {
	if err := validateInput(input); err != nil {
		return Broker{}, err
	}
	b, err := s.repo.UpdateBroker(ctx, id, input)
	if err != nil {
		return Broker{}, err
	}
	s.recordAudit(ctx, "update", "broker", id)
	return b, nil
}

func (s *Service) DeleteBroker(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBroker(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "delete", "broker", id)
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
