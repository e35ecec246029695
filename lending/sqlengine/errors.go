package sqlengine

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Postgres error codes after which a transaction may simply be run again.
var retryablePostgresCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// classifyError joins driver errors that justify a retry with the matching lending sentinel.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || lending.IsTransient(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryablePostgresCodes[pgErr.Code] {
		return errors.Join(lending.ErrConcurrencyConflict, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && retryablePostgresCodes[string(pqErr.Code)] {
		return errors.Join(lending.ErrConcurrencyConflict, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return errors.Join(lending.ErrConcurrencyConflict, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err) {
		return errors.Join(lending.ErrStoreUnavailable, err)
	}

	return err
}
