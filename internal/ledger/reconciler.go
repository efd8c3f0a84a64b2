package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/textileflow/textileflow/internal/money"
	"github.com/textileflow/textileflow/internal/platform/db"
)

// Reconciler recomputes cached party balances from the ledger. It is the only
// component allowed to write the balance columns; every mutation path routes
// through it instead of touching the cache directly.
type Reconciler struct {
	pool *pgxpool.Pool
}

// NewReconciler builds a Reconciler over the pool.
func NewReconciler(pool *pgxpool.Pool) *Reconciler {
	return &Reconciler{pool: pool}
}

// RecomputeVendorBalance refreshes one vendor's cached balance and returns it.
// The sum and the write share a RepeatableRead snapshot, so a concurrent entry
// insert is either fully included or picked up by the next reconciliation.
func (r *Reconciler) RecomputeVendorBalance(ctx context.Context, vendorID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		balance, err = RecomputeVendorBalanceTx(ctx, tx, vendorID)
		return err
	})
	return balance, err
}

// RecomputeCustomerBalance refreshes one customer's cached balance and returns it.
func (r *Reconciler) RecomputeCustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		balance, err = RecomputeCustomerBalanceTx(ctx, tx, customerID)
		return err
	})
	return balance, err
}

// RecomputeVendorBalanceTx recomputes inside an existing transaction, used by
// the document engines to reconcile atomically with their own writes.
func RecomputeVendorBalanceTx(ctx context.Context, q db.Querier, vendorID int64) (decimal.Decimal, error) {
	sum, err := NewStore(q).SignedSumForVendor(ctx, vendorID)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, writeBalance(ctx, q, "vendors", vendorID, sum)
}

// RecomputeCustomerBalanceTx recomputes inside an existing transaction.
func RecomputeCustomerBalanceTx(ctx context.Context, q db.Querier, customerID int64) (decimal.Decimal, error) {
	sum, err := NewStore(q).SignedSumForCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, writeBalance(ctx, q, "customers", customerID, sum)
}

func writeBalance(ctx context.Context, q db.Querier, table string, id int64, balance decimal.Decimal) error {
	tag, err := q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET balance = $1::numeric, updated_at = NOW() WHERE id = $2`, table),
		money.String(balance), id)
	if err != nil {
		return fmt.Errorf("ledger: write %s balance: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: %s %d missing during reconciliation", table, id)
	}
	return nil
}
