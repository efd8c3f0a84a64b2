package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/platform/db"
)

// Store reads and appends ledger entries. It runs against either the pool or
// an open transaction, so document engines can append entries atomically with
// their own writes.
type Store struct {
	q db.Querier
}

// NewStore builds a Store over the given querier.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// Insert appends one entry. Entries are never updated or deleted afterwards.
func (s *Store) Insert(ctx context.Context, e Entry) (int64, error) {
	if !e.Type.Valid() {
		return 0, fmt.Errorf("ledger: unknown entry type %q", e.Type)
	}
	if !e.Amount.IsPositive() {
		return 0, fmt.Errorf("ledger: amount must be positive, got %s", e.Amount)
	}
	if (e.VendorID == nil) == (e.CustomerID == nil) {
		return 0, fmt.Errorf("ledger: entry must reference exactly one party")
	}
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO ledger_entries (entry_type, entry_date, amount, vendor_id, customer_id, reference, description)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		RETURNING id`,
		string(e.Type), e.Date, money.String(e.Amount), e.VendorID, e.CustomerID, e.Reference, e.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return id, nil
}

// ListForVendor returns a vendor's entries newest-first.
func (s *Store) ListForVendor(ctx context.Context, vendorID int64, limit, offset int) ([]Entry, error) {
	return s.list(ctx, "vendor_id", vendorID, limit, offset)
}

// ListForCustomer returns a customer's entries newest-first.
func (s *Store) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Entry, error) {
	return s.list(ctx, "customer_id", customerID, limit, offset)
}

func (s *Store) list(ctx context.Context, column string, partyID int64, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT id, entry_type, entry_date, amount::text, vendor_id, customer_id, reference, description, created_at
		FROM ledger_entries
		WHERE %s = $1
		ORDER BY entry_date DESC, id DESC
		LIMIT $2 OFFSET $3`, column),
		partyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			entryType string
			amount    string
		)
		if err := rows.Scan(&e.ID, &entryType, &e.Date, &amount, &e.VendorID, &e.CustomerID, &e.Reference, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		e.Type = EntryType(entryType)
		if e.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SignedSumForVendor computes the vendor's balance straight from the ledger.
func (s *Store) SignedSumForVendor(ctx context.Context, vendorID int64) (decimal.Decimal, error) {
	return s.signedSum(ctx, "vendor_id", vendorID)
}

// SignedSumForCustomer computes the customer's balance straight from the ledger.
func (s *Store) SignedSumForCustomer(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	return s.signedSum(ctx, "customer_id", customerID)
}

func (s *Store) signedSum(ctx context.Context, column string, partyID int64) (decimal.Decimal, error) {
	// The CASE mirrors the signs table; keep both in sync.
	var sum string
	err := s.q.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(CASE WHEN entry_type IN ('Bill','Invoice') THEN amount ELSE -amount END), 0)::text
		FROM ledger_entries
		WHERE %s = $1`, column),
		partyID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: signed sum: %w", err)
	}
	return money.Parse(sum)
}

// TotalsByType aggregates entry counts and absolute amounts per type over the
// given window. A zero from/to means unbounded on that side.
func (s *Store) TotalsByType(ctx context.Context, from, to time.Time) ([]TypeTotal, error) {
	rows, err := s.q.Query(ctx, `
		SELECT entry_type, COUNT(*), COALESCE(SUM(amount), 0)::text
		FROM ledger_entries
		WHERE ($1::date IS NULL OR entry_date >= $1)
		  AND ($2::date IS NULL OR entry_date <= $2)
		GROUP BY entry_type
		ORDER BY entry_type`,
		nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("ledger: totals by type: %w", err)
	}
	defer rows.Close()

	var totals []TypeTotal
	for rows.Next() {
		var (
			t      TypeTotal
			typ    string
			amount string
		)
		if err := rows.Scan(&typ, &t.Count, &amount); err != nil {
			return nil, fmt.Errorf("ledger: scan totals: %w", err)
		}
		t.Type = EntryType(typ)
		if t.Amount, err = money.Parse(amount); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
