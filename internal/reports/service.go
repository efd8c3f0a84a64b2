package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/textileflow/textileflow/internal/ledger"
)

// StatusLine is one status bucket rendered for the summary payload.
type StatusLine struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	Total       string `json:"total"`
	Paid        string `json:"paid"`
	Outstanding string `json:"outstanding"`
}

// LedgerLine is one entry-type bucket rendered for the summary payload.
type LedgerLine struct {
	Type   string `json:"type"`
	Count  int64  `json:"count"`
	Amount string `json:"amount"`
}

// InventoryLine renders the stock snapshot for the summary payload.
type InventoryLine struct {
	TotalLots      int64  `json:"total_lots"`
	TotalMeters    string `json:"total_meters"`
	UnbilledLots   int64  `json:"unbilled_lots"`
	UnbilledMeters string `json:"unbilled_meters"`
	StockValue     string `json:"stock_value"`
}

// Summary is the full dashboard payload. Amounts are fixed-point strings so
// the cached JSON round-trips without float drift.
type Summary struct {
	Invoices    []StatusLine  `json:"invoices"`
	Bills       []StatusLine  `json:"bills"`
	Ledger      []LedgerLine  `json:"ledger"`
	Inventory   InventoryLine `json:"inventory"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Service assembles cached report payloads.
type Service struct {
	logger *slog.Logger
	repo   Repository
	cache  *Cache
	group  singleflight.Group
}

func NewService(logger *slog.Logger, repo Repository, cache *Cache) *Service {
	return &Service{logger: logger, repo: repo, cache: cache}
}

// BuildSummary returns the dashboard summary, served from cache when warm.
// Concurrent cold builds for the same key collapse into one.
func (s *Service) BuildSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "summary",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return Summary{}, err
	}

	result := s.group.DoChan(key, func() (interface{}, error) {
		var summary Summary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return s.buildSummary(ctx, from, to)
		})
		return summary, err
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

func (s *Service) buildSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	invoices, err := s.repo.InvoiceStatusSummary(ctx)
	if err != nil {
		return Summary{}, err
	}
	bills, err := s.repo.BillStatusSummary(ctx)
	if err != nil {
		return Summary{}, err
	}
	totals, err := s.repo.LedgerTotals(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	snap, err := s.repo.InventorySnapshot(ctx)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		Invoices: statusLines(invoices),
		Bills:    statusLines(bills),
		Ledger:   make([]LedgerLine, 0, len(totals)),
		Inventory: InventoryLine{
			TotalLots:      snap.TotalLots,
			TotalMeters:    snap.TotalMeters.StringFixed(2),
			UnbilledLots:   snap.UnbilledLots,
			UnbilledMeters: snap.UnbilledMeters.StringFixed(2),
			StockValue:     snap.StockValue.StringFixed(2),
		},
		GeneratedAt: time.Now().UTC(),
	}
	for _, t := range totals {
		out.Ledger = append(out.Ledger, LedgerLine{
			Type:   string(t.Type),
			Count:  t.Count,
			Amount: t.Amount.StringFixed(2),
		})
	}
	return out, nil
}

func statusLines(in []DocumentStatusSummary) []StatusLine {
	out := make([]StatusLine, 0, len(in))
	for _, s := range in {
		out = append(out, StatusLine{
			Status:      s.Status,
			Count:       s.Count,
			Total:       s.Total.StringFixed(2),
			Paid:        s.Paid.StringFixed(2),
			Outstanding: s.Outstanding.StringFixed(2),
		})
	}
	return out
}

// csvLimit caps export size; party ledgers past this need date filters the
// dashboard does not offer yet.
const csvLimit = 10000

// LedgerKind selects which party ledger a CSV export covers.
type LedgerKind string

const (
	KindVendor   LedgerKind = "vendor"
	KindCustomer LedgerKind = "customer"
)

// LedgerCSV renders a party ledger as CSV with thousand-separated amounts.
func (s *Service) LedgerCSV(ctx context.Context, kind LedgerKind, partyID int64) ([]byte, error) {
	var (
		entries []ledger.Entry
		err     error
	)
	switch kind {
	case KindVendor:
		entries, err = s.repo.VendorLedger(ctx, partyID, csvLimit, 0)
	case KindCustomer:
		entries, err = s.repo.CustomerLedger(ctx, partyID, csvLimit, 0)
	default:
		return nil, fmt.Errorf("reports: unknown ledger kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	printer := message.NewPrinter(language.English)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Date", "Type", "Reference", "Description", "Amount", "Signed Amount"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			e.Date.Format("2006-01-02"),
			string(e.Type),
			e.Reference,
			e.Description,
			formatAmount(printer, e.Amount.StringFixed(2)),
			formatAmount(printer, e.SignedAmount().StringFixed(2)),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatAmount groups thousands without losing fixed-point precision: the
// integer digits go through the printer, the fraction is carried verbatim.
func formatAmount(p *message.Printer, fixed string) string {
	sign, rest := "", fixed
	if strings.HasPrefix(rest, "-") {
		sign, rest = "-", rest[1:]
	}
	intPart, frac, hasFrac := strings.Cut(rest, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return fixed
	}
	out := sign + p.Sprintf("%d", n)
	if hasFrac {
		out += "." + frac
	}
	return out
}
