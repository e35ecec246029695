package lendingtest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine"
)

// PostgresDSNEnv names the environment variable that enables the postgres tests.
const PostgresDSNEnv = "LIBRARY_TEST_POSTGRES_DSN"

// SQLiteDSN returns a DSN for a fresh database file in dir. Writers take the lock
// at BEGIN and wait for each other instead of failing.
func SQLiteDSN(dir string) string {
	return "file:" + filepath.Join(dir, "library.db") + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=1"
}

// GivenSQLiteStore opens a migrated sqlite store in a temporary directory.
func GivenSQLiteStore(t testing.TB, options ...sqlengine.Option) sqlengine.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", SQLiteDSN(t.TempDir()))
	require.NoError(t, err, "error in arranging test data")

	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := sqlengine.NewStoreFromSQLDB(db, append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)...)
	require.NoError(t, err, "error in arranging test data")

	require.NoError(t, store.Migrate(context.Background()), "error in arranging test data")

	return store
}

// GivenPostgresStore opens a migrated postgres store with its own tables.
// It skips the test unless LIBRARY_TEST_POSTGRES_DSN is set.
func GivenPostgresStore(t testing.TB, options ...sqlengine.Option) sqlengine.Store {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err, "error in arranging test data")
	t.Cleanup(pool.Close)

	prefix := "t" + UniqueSuffix()
	tables := sqlengine.WithTableNames(prefix+"_authors", prefix+"_books", prefix+"_loans")

	store, err := sqlengine.NewStoreFromPGXPool(pool, append([]sqlengine.Option{tables}, options...)...)
	require.NoError(t, err, "error in arranging test data")

	require.NoError(t, store.Migrate(context.Background()), "error in arranging test data")

	t.Cleanup(func() {
		for _, table := range []string{prefix + "_loans", prefix + "_books", prefix + "_authors"} {
			_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
		}
	})

	return store
}

// ForEachDialect runs test against sqlite, and against postgres when LIBRARY_TEST_POSTGRES_DSN is set.
func ForEachDialect(t *testing.T, test func(t *testing.T, store sqlengine.Store), options ...sqlengine.Option) {
	t.Helper()

	t.Run(sqlengine.DialectSQLite, func(t *testing.T) {
		test(t, GivenSQLiteStore(t, options...))
	})

	t.Run(sqlengine.DialectPostgres, func(t *testing.T) {
		test(t, GivenPostgresStore(t, options...))
	})
}
