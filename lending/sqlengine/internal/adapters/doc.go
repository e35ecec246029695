// Package adapters provide database adapter implementations for the lending store.
//
// This package implements the adapter pattern to support pgx.Pool, sql.DB, and sqlx.DB.
// All adapters provide equivalent functionality through the common DBAdapter interface,
// including transactions, so the store works with any supported connection type.
//
// The sql.DB adapter also serves sqlite (mattn/go-sqlite3) connections.
package adapters
