// Package sqlengine provides the transactional relational store of the lending system.
//
// The Store works with PostgreSQL (through pgx.Pool, sql.DB with lib/pq, or sqlx.DB)
// and with SQLite (through sql.DB with mattn/go-sqlite3). All SQL is built with goqu
// in prepared mode for the configured dialect.
//
// Copy counters are changed with conditional updates inside a transaction, so that
// reserving the last copy or returning a loan twice cannot be interleaved:
//
//	err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow lending.UnitOfWork) error {
//		reserved, err := uow.DecrementAvailableCopies(ctx, bookID)
//		// ...
//	})
//
// Driver errors that justify a retry (serialization failures, deadlocks, busy
// sqlite databases, broken connections) are returned joined with
// lending.ErrConcurrencyConflict or lending.ErrStoreUnavailable.
package sqlengine
