package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/textileflow/textileflow/internal/jobs"
	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/money"
)

// BalanceIntegrity scans every party, recomputes the ledger-derived balance
// and overwrites the cached column when it has drifted.
type BalanceIntegrity struct {
	pool    *pgxpool.Pool
	recon   *ledger.Reconciler
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewBalanceIntegrity wires the scan.
func NewBalanceIntegrity(pool *pgxpool.Pool, recon *ledger.Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceIntegrity {
	return &BalanceIntegrity{pool: pool, recon: recon, logger: logger, metrics: metrics}
}

// Handle processes TaskBalanceIntegrity tasks.
func (j *BalanceIntegrity) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("balance_integrity")
	return tracker.End(j.run(ctx))
}

func (j *BalanceIntegrity) run(ctx context.Context) error {
	vendorDrift, err := j.scan(ctx, "vendor", "vendors", j.recon.RecomputeVendorBalance)
	if err != nil {
		return err
	}
	customerDrift, err := j.scan(ctx, "customer", "customers", j.recon.RecomputeCustomerBalance)
	if err != nil {
		return err
	}
	j.metrics.AddDrift("vendor", vendorDrift)
	j.metrics.AddDrift("customer", customerDrift)
	j.logger.Info("balance integrity scan finished",
		slog.Int("vendor_drift", vendorDrift),
		slog.Int("customer_drift", customerDrift))
	return nil
}

type partyBalance struct {
	id      int64
	balance decimal.Decimal
}

func (j *BalanceIntegrity) scan(ctx context.Context, kind, table string, recompute func(context.Context, int64) (decimal.Decimal, error)) (int, error) {
	rows, err := j.pool.Query(ctx, fmt.Sprintf(`SELECT id, balance::text FROM %s ORDER BY id`, table))
	if err != nil {
		return 0, fmt.Errorf("jobs: list %s: %w", table, err)
	}
	parties := make([]partyBalance, 0, 64)
	for rows.Next() {
		var (
			p   partyBalance
			raw string
		)
		if err := rows.Scan(&p.id, &raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("jobs: scan %s: %w", table, err)
		}
		if p.balance, err = money.Parse(raw); err != nil {
			rows.Close()
			return 0, err
		}
		parties = append(parties, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	drift := 0
	for _, p := range parties {
		computed, err := recompute(ctx, p.id)
		if err != nil {
			return drift, fmt.Errorf("jobs: recompute %s %d: %w", kind, p.id, err)
		}
		if !computed.Equal(p.balance) {
			drift++
			j.logger.Warn("balance drift corrected",
				slog.String("party_kind", kind),
				slog.Int64("party_id", p.id),
				slog.String("stored", money.String(p.balance)),
				slog.String("computed", money.String(computed)))
		}
	}
	return drift, nil
}
