package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapPgErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "invoices_number_key"}
	mapped := MapPgError(fmt.Errorf("create invoice: %w", pgErr))

	require.ErrorIs(t, mapped, ErrDuplicate)
	require.ErrorContains(t, mapped, "invoices_number_key")
}

func TestMapPgErrorForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "ledger_entries_vendor_id_fkey"}
	mapped := MapPgError(pgErr)

	require.ErrorIs(t, mapped, ErrProtectedReference)
	require.ErrorContains(t, mapped, "ledger_entries_vendor_id_fkey")
}

func TestMapPgErrorSerializationFailure(t *testing.T) {
	mapped := MapPgError(&pgconn.PgError{Code: "40001"})
	require.ErrorIs(t, mapped, ErrConcurrencyConflict)
}

func TestMapPgErrorPassThrough(t *testing.T) {
	require.NoError(t, MapPgError(nil))

	plain := errors.New("dial tcp: connection refused")
	require.Same(t, plain, MapPgError(plain))

	// Unrecognised SQLSTATEs keep the driver error intact.
	truncation := &pgconn.PgError{Code: "22001"}
	require.Equal(t, error(truncation), MapPgError(truncation))
}
