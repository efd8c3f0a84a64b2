package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/textileflow/textileflow/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryInventoryRepo struct {
	items  map[int64]Item
	master map[int64]MasterItem
	nextID int64
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{items: make(map[int64]Item), master: make(map[int64]MasterItem)}
}

func (r *memoryInventoryRepo) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	for _, existing := range r.items {
		if existing.LotNumber == input.LotNumber && existing.FabricType == input.FabricType {
			return Item{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	item := Item{
		ID:           r.nextID,
		LotNumber:    input.LotNumber,
		FabricType:   input.FabricType,
		Meters:       input.Meters,
		UnitPrice:    input.UnitPrice,
		VendorID:     input.VendorID,
		ReceivedDate: input.ReceivedDate,
	}
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryInventoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return item, nil
}

func (r *memoryInventoryRepo) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if filter.VendorID != 0 && item.VendorID != filter.VendorID {
			continue
		}
		if filter.UnbilledOnly && item.IsBilled {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *memoryInventoryRepo) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	item.LotNumber = input.LotNumber
	item.FabricType = input.FabricType
	item.Meters = input.Meters
	item.UnitPrice = input.UnitPrice
	item.ReceivedDate = input.ReceivedDate
	r.items[id] = item
	return item, nil
}

func (r *memoryInventoryRepo) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryInventoryRepo) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	s.TotalMeters = decimal.Zero
	s.UnbilledMeters = decimal.Zero
	s.StockValue = decimal.Zero
	for _, item := range r.items {
		s.TotalLots++
		s.TotalMeters = s.TotalMeters.Add(item.Meters)
		s.StockValue = s.StockValue.Add(item.TotalValue())
		if !item.IsBilled {
			s.UnbilledLots++
			s.UnbilledMeters = s.UnbilledMeters.Add(item.Meters)
		}
	}
	return s, nil
}

func (r *memoryInventoryRepo) CreateMasterItem(ctx context.Context, input MasterItemInput) (MasterItem, error) {
	r.nextID++
	m := MasterItem{ID: r.nextID, Code: input.Code, Name: input.Name, StandardPrice: input.StandardPrice, Active: input.Active}
	r.master[m.ID] = m
	return m, nil
}

func (r *memoryInventoryRepo) GetMasterItem(ctx context.Context, id int64) (MasterItem, error) {
	m, ok := r.master[id]
	if !ok {
		return MasterItem{}, shared.ErrNotFound
	}
	return m, nil
}

func (r *memoryInventoryRepo) ListMasterItems(ctx context.Context, activeOnly bool, limit, offset int) ([]MasterItem, error) {
	var out []MasterItem
	for _, m := range r.master {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryInventoryRepo) UpdateMasterItem(ctx context.Context, id int64, input MasterItemInput) (MasterItem, error) {
	m, ok := r.master[id]
	if !ok {
		return MasterItem{}, shared.ErrNotFound
	}
	m.Code, m.Name, m.Active = input.Code, input.Name, input.Active
	r.master[id] = m
	return m, nil
}

func (r *memoryInventoryRepo) DeleteMasterItem(ctx context.Context, id int64) error {
	if _, ok := r.master[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.master, id)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validInput() CreateItemInput {
	return CreateItemInput{
		LotNumber:    "LOT-001",
		FabricType:   "Cotton",
		Meters:       dec("120.50"),
		UnitPrice:    dec("85.00"),
		VendorID:     1,
		ReceivedDate: time.Now(),
	}
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(testLogger(), newMemoryInventoryRepo(), nil)

	input := validInput()
	input.Meters = dec("0")
	_, err := svc.CreateItem(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.UnitPrice = dec("-1")
	_, err = svc.CreateItem(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.LotNumber = ""
	_, err = svc.CreateItem(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateItemDuplicateLot(t *testing.T) {
	svc := NewService(testLogger(), newMemoryInventoryRepo(), nil)
	_, err := svc.CreateItem(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.CreateItem(context.Background(), validInput())
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestItemTotalValueDerived(t *testing.T) {
	item := Item{Meters: dec("120.50"), UnitPrice: dec("85.00")}
	require.Equal(t, "10242.50", item.TotalValue().StringFixed(2))
}

func TestUpdateBilledItemRefused(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(testLogger(), repo, nil)
	item, err := svc.CreateItem(context.Background(), validInput())
	require.NoError(t, err)

	stored := repo.items[item.ID]
	stored.IsBilled = true
	repo.items[item.ID] = stored

	_, err = svc.UpdateItem(context.Background(), item.ID, UpdateItemInput{
		LotNumber: "LOT-001", FabricType: "Cotton", Meters: dec("100"), UnitPrice: dec("85"), ReceivedDate: time.Now(),
	})
	require.ErrorIs(t, err, shared.ErrInvalidOperation)

	err = svc.DeleteItem(context.Background(), item.ID)
	require.ErrorIs(t, err, shared.ErrProtectedReference)
}

func TestSummarize(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(testLogger(), repo, nil)

	first, err := svc.CreateItem(context.Background(), validInput())
	require.NoError(t, err)

	second := validInput()
	second.LotNumber = "LOT-002"
	second.Meters = dec("80.00")
	_, err = svc.CreateItem(context.Background(), second)
	require.NoError(t, err)

	stored := repo.items[first.ID]
	stored.IsBilled = true
	repo.items[first.ID] = stored

	s, err := svc.Summarize(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), s.TotalLots)
	require.Equal(t, int64(1), s.UnbilledLots)
	require.Equal(t, "80.00", s.UnbilledMeters.StringFixed(2))
	require.Equal(t, "200.50", s.TotalMeters.StringFixed(2))
}

type failingAuditor struct{ calls int }

func (f *failingAuditor) Record(context.Context, shared.AuditLog) error {
	f.calls++
	return errors.New("audit store unavailable")
}

func TestAuditFailureDoesNotBlockWrites(t *testing.T) {
	repo := newMemoryInventoryRepo()
	audit := &failingAuditor{}
	svc := NewService(testLogger(), repo, audit)

	item, err := svc.CreateItem(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, 1, audit.calls)
	require.Contains(t, repo.items, item.ID)
}
