package reports

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/textileflow/textileflow/internal/ledger"
)

type mockRepo struct {
	invoiceRows    []DocumentStatusSummary
	invoiceCalls   int
	billRows       []DocumentStatusSummary
	billCalls      int
	totals         []ledger.TypeTotal
	totalsCalls    int
	snapshot       InventorySnapshot
	snapshotCalls  int
	vendorEntries  []ledger.Entry
	customerCalled int
}

func (m *mockRepo) InvoiceStatusSummary(context.Context) ([]DocumentStatusSummary, error) {
	m.invoiceCalls++
	return m.invoiceRows, nil
}

func (m *mockRepo) BillStatusSummary(context.Context) ([]DocumentStatusSummary, error) {
	m.billCalls++
	return m.billRows, nil
}

func (m *mockRepo) LedgerTotals(context.Context, time.Time, time.Time) ([]ledger.TypeTotal, error) {
	m.totalsCalls++
	return m.totals, nil
}

func (m *mockRepo) InventorySnapshot(context.Context) (InventorySnapshot, error) {
	m.snapshotCalls++
	return m.snapshot, nil
}

func (m *mockRepo) VendorLedger(context.Context, int64, int, int) ([]ledger.Entry, error) {
	return m.vendorEntries, nil
}

func (m *mockRepo) CustomerLedger(context.Context, int64, int, int) ([]ledger.Entry, error) {
	m.customerCalled++
	return nil, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, cache)
}

func testRepo() *mockRepo {
	return &mockRepo{
		invoiceRows: []DocumentStatusSummary{
			{Status: "Paid", Count: 2, Total: dec("1000"), Paid: dec("1000"), Outstanding: dec("0")},
			{Status: "Pending", Count: 1, Total: dec("451"), Paid: dec("0"), Outstanding: dec("451")},
		},
		billRows: []DocumentStatusSummary{
			{Status: "Unpaid", Count: 1, Total: dec("500"), Paid: dec("0"), Outstanding: dec("500")},
		},
		totals: []ledger.TypeTotal{
			{Type: ledger.TypeInvoice, Count: 3, Amount: dec("1451")},
			{Type: ledger.TypeBill, Count: 1, Amount: dec("500")},
		},
		snapshot: InventorySnapshot{
			TotalLots: 4, TotalMeters: dec("820.5"),
			UnbilledLots: 2, UnbilledMeters: dec("300"),
			StockValue: dec("2105.75"),
		},
	}
}

func TestBuildSummaryComposesPayload(t *testing.T) {
	repo := testRepo()
	svc := newTestService(t, repo)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	summary, err := svc.BuildSummary(context.Background(), from, to)
	require.NoError(t, err)

	require.Len(t, summary.Invoices, 2)
	require.Equal(t, "451.00", summary.Invoices[1].Outstanding)
	require.Len(t, summary.Bills, 1)
	require.Equal(t, "500.00", summary.Bills[0].Total)
	require.Len(t, summary.Ledger, 2)
	require.Equal(t, "Invoice", summary.Ledger[0].Type)
	require.Equal(t, "2105.75", summary.Inventory.StockValue)
	require.False(t, summary.GeneratedAt.IsZero())
}

func TestBuildSummaryCaches(t *testing.T) {
	repo := testRepo()
	svc := newTestService(t, repo)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.BuildSummary(context.Background(), from, to)
	require.NoError(t, err)
	_, err = svc.BuildSummary(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 1, repo.invoiceCalls)

	// A version bump retires the cached payload.
	require.NoError(t, svc.cache.Bump(context.Background()))
	_, err = svc.BuildSummary(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 2, repo.invoiceCalls)
}

func TestLedgerCSVFormatsAmounts(t *testing.T) {
	vendorID := int64(1)
	repo := testRepo()
	repo.vendorEntries = []ledger.Entry{
		{Type: ledger.TypeBill, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Amount: dec("12500.50"), VendorID: &vendorID, Reference: "BILL-000001", Description: "Bill received"},
		{Type: ledger.TypePayment, Date: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), Amount: dec("2500"), VendorID: &vendorID, Reference: "PAY-x", Description: "Payment made"},
	}
	svc := newTestService(t, repo)

	payload, err := svc.LedgerCSV(context.Background(), KindVendor, vendorID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Date,Type,Reference,Description,Amount,Signed Amount", lines[0])
	require.Contains(t, lines[1], `"12,500.50"`)
	require.Contains(t, lines[2], `"-2,500.00"`)

	_, err = svc.LedgerCSV(context.Background(), "warehouse", 1)
	require.Error(t, err)
}

func TestLedgerCSVKeepsLargeAmountsExact(t *testing.T) {
	vendorID := int64(1)
	repo := testRepo()
	// Above float64's integer range; every digit must survive grouping.
	repo.vendorEntries = []ledger.Entry{
		{Type: ledger.TypeBill, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Amount: dec("9007199254740993.12"), VendorID: &vendorID, Reference: "BILL-000002", Description: "Bulk order"},
	}
	svc := newTestService(t, repo)

	payload, err := svc.LedgerCSV(context.Background(), KindVendor, vendorID)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"9,007,199,254,740,993.12"`)
}
