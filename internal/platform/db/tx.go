package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textileflow/textileflow/internal/shared"
)

// WithTx executes a function within a RepeatableRead transaction. Serialization
// failures surface as shared.ErrConcurrencyConflict so callers can retry from a
// fresh read.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return shared.MapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if mapped := shared.MapPgError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
