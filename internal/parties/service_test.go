package parties

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/shared"
)

type memoryPartyRepo struct {
	vendors   map[int64]Vendor
	customers map[int64]Customer
	brokers   map[int64]Broker
	protected map[int64]bool
	nextID    int64
}

func newMemoryPartyRepo() *memoryPartyRepo {
	return &memoryPartyRepo{
		vendors:   make(map[int64]Vendor),
		customers: make(map[int64]Customer),
		brokers:   make(map[int64]Broker),
		protected: make(map[int64]bool),
	}
}

func (r *memoryPartyRepo) CreateVendor(ctx context.Context, input PartyInput) (Vendor, error) {
	r.nextID++
	v := Vendor{ID: r.nextID, Name: input.Name, Phone: input.Phone, Address: input.Address, Balance: decimal.Zero, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.vendors[v.ID] = v
	return v, nil
}

func (r *memoryPartyRepo) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (r *memoryPartyRepo) ListVendors(ctx context.Context, limit, offset int) ([]Vendor, error) {
	var out []Vendor
	for _, v := range r.vendors {
		out = append(out, v)
	}
	return out, nil
}

func (r *memoryPartyRepo) UpdateVendor(ctx context.Context, id int64, input PartyInput) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	v.Name, v.Phone, v.Address = input.Name, input.Phone, input.Address
	r.vendors[id] = v
	return v, nil
}

func (r *memoryPartyRepo) DeleteVendor(ctx context.Context, id int64) error {
	if _, ok := r.vendors[id]; !ok {
		return shared.ErrNotFound
	}
	if r.protected[id] {
		return shared.ErrProtectedReference
	}
	delete(r.vendors, id)
	return nil
}

func (r *memoryPartyRepo) CreateCustomer(ctx context.Context, input PartyInput) (Customer, error) {
	r.nextID++
	c := Customer{ID: r.nextID, Name: input.Name, Balance: decimal.Zero}
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryPartyRepo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryPartyRepo) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	var out []Customer
	for _, c := range r.customers {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryPartyRepo) UpdateCustomer(ctx context.Context, id int64, input PartyInput) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	c.Name = input.Name
	r.customers[id] = c
	return c, nil
}

func (r *memoryPartyRepo) DeleteCustomer(ctx context.Context, id int64) error {
	if _, ok := r.customers[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *memoryPartyRepo) CreateBroker(ctx context.Context, input PartyInput) (Broker, error) {
	r.nextID++
	b := Broker{ID: r.nextID, Name: input.Name}
	r.brokers[b.ID] = b
	return b, nil
}

func (r *memoryPartyRepo) GetBroker(ctx context.Context, id int64) (Broker, error) {
	b, ok := r.brokers[id]
	if !ok {
		return Broker{}, shared.ErrNotFound
	}
	return b, nil
}

func (r *memoryPartyRepo) ListBrokers(ctx context.Context, limit, offset int) ([]Broker, error) {
	var out []Broker
	for _, b := range r.brokers {
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryPartyRepo) UpdateBroker(ctx context.Context, id int64, input PartyInput) (Broker, error) {
	b, ok := r.brokers[id]
	if !ok {
		return Broker{}, shared.ErrNotFound
	}
	b.Name = input.Name
	r.brokers[id] = b
	return b, nil
}

func (r *memoryPartyRepo) DeleteBroker(ctx context.Context, id int64) error {
	if _, ok := r.brokers[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.brokers, id)
	return nil
}

type memoryLedger struct {
	vendorEntries   map[int64][]ledger.Entry
	customerEntries map[int64][]ledger.Entry
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		vendorEntries:   make(map[int64][]ledger.Entry),
		customerEntries: make(map[int64][]ledger.Entry),
	}
}

func (l *memoryLedger) ListForVendor(ctx context.Context, vendorID int64, limit, offset int) ([]ledger.Entry, error) {
	return l.vendorEntries[vendorID], nil
}

func (l *memoryLedger) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]ledger.Entry, error) {
	return l.customerEntries[customerID], nil
}

type memoryReconciler struct {
	entries *memoryLedger
	repo    *memoryPartyRepo
	calls   int
}

func (m *memoryReconciler) RecomputeVendorBalance(ctx context.Context, vendorID int64) (decimal.Decimal, error) {
	m.calls++
	balance := ledger.SumSigned(m.entries.vendorEntries[vendorID])
	v := m.repo.vendors[vendorID]
	v.Balance = balance
	m.repo.vendors[vendorID] = v
	return balance, nil
}

func (m *memoryReconciler) RecomputeCustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	m.calls++
	balance := ledger.SumSigned(m.entries.customerEntries[customerID])
	c := m.repo.customers[customerID]
	c.Balance = balance
	m.repo.customers[customerID] = c
	return balance, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (*Service, *memoryPartyRepo, *memoryLedger, *memoryReconciler) {
	repo := newMemoryPartyRepo()
	entries := newMemoryLedger()
	recon := &memoryReconciler{entries: entries, repo: repo}
	return NewService(testLogger(), repo, entries, recon, nil), repo, entries, recon
}

func TestCreateVendorRequiresName(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.CreateVendor(context.Background(), PartyInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteVendorProtected(t *testing.T) {
	svc, repo, _, _ := newTestService()
	v, err := svc.CreateVendor(context.Background(), PartyInput{Name: "HA Fabrics"})
	require.NoError(t, err)

	repo.protected[v.ID] = true
	err = svc.DeleteVendor(context.Background(), v.ID)
	require.ErrorIs(t, err, shared.ErrProtectedReference)
	_, err = svc.GetVendor(context.Background(), v.ID)
	require.NoError(t, err)
}

func TestRecalculateVendorBalance(t *testing.T) {
	svc, _, entries, recon := newTestService()
	v, err := svc.CreateVendor(context.Background(), PartyInput{Name: "Loom House"})
	require.NoError(t, err)

	entries.vendorEntries[v.ID] = []ledger.Entry{
		{Type: ledger.TypeBill, Amount: decimal.RequireFromString("500.00"), VendorID: &v.ID},
		{Type: ledger.TypePayment, Amount: decimal.RequireFromString("200.00"), VendorID: &v.ID},
	}

	balance, err := svc.RecalculateVendorBalance(context.Background(), v.ID)
	require.NoError(t, err)
	require.Equal(t, "300.00", balance.StringFixed(2))

	// Idempotent: same result, no drift on repeat.
	again, err := svc.RecalculateVendorBalance(context.Background(), v.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(again))
	require.Equal(t, 2, recon.calls)

	stored, err := svc.GetVendor(context.Background(), v.ID)
	require.NoError(t, err)
	require.True(t, stored.Balance.Equal(balance))
}

func TestRecalculateUnknownVendor(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.RecalculateVendorBalance(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCustomerLedgerNewestFirstPassthrough(t *testing.T) {
	svc, _, entries, _ := newTestService()
	c, err := svc.CreateCustomer(context.Background(), PartyInput{Name: "City Textiles"})
	require.NoError(t, err)

	entries.customerEntries[c.ID] = []ledger.Entry{
		{ID: 2, Type: ledger.TypePayment, Amount: decimal.RequireFromString("100.00")},
		{ID: 1, Type: ledger.TypeInvoice, Amount: decimal.RequireFromString("100.00")},
	}
	got, err := svc.CustomerLedger(context.Background(), c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[0].ID)
}

type failingAuditor struct{ calls int }

func (f *failingAuditor) Record(context.Context, shared.AuditLog) error {
	f.calls++
	return errors.New("audit store unavailable")
}

func TestAuditFailureDoesNotBlockWrites(t *testing.T) {
	repo := newMemoryPartyRepo()
	entries := newMemoryLedger()
	recon := &memoryReconciler{entries: entries, repo: repo}
	audit := &failingAuditor{}
	svc := NewService(testLogger(), repo, entries, recon, audit)

	v, err := svc.CreateVendor(context.Background(), PartyInput{Name: "Al-Karam Textiles"})
	require.NoError(t, err)
	require.Equal(t, 1, audit.calls)

	stored, err := svc.GetVendor(context.Background(), v.ID)
	require.NoError(t, err)
	require.Equal(t, "Al-Karam Textiles", stored.Name)
}
