package sqlengine_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/lendingtest"
)

func forEachDialect(t *testing.T, test func(t *testing.T, store sqlengine.Store), options ...sqlengine.Option) {
	t.Helper()
	lendingtest.ForEachDialect(t, test, options...)
}

// whileHolding runs first inside a unit of work and, before committing it, starts second
// in another goroutine and keeps the transaction open for a while. It returns once both
// are done, with the error of the first unit of work.
func whileHolding(t *testing.T, store sqlengine.Store, first lending.UnitOfWorkFunc, second func()) error {
	t.Helper()

	done := make(chan struct{})

	err := store.WithinUnitOfWork(context.Background(), func(ctx context.Context, uow lending.UnitOfWork) error {
		if err := first(ctx, uow); err != nil {
			close(done)
			return err
		}

		go func() {
			defer close(done)
			second()
		}()

		time.Sleep(150 * time.Millisecond)

		return nil
	})

	<-done

	return err
}

func givenLoan(t *testing.T, store sqlengine.Store, bookID lending.BookID, member string, loanDate time.Time) lending.Loan {
	t.Helper()

	var loan lending.Loan

	err := store.WithinUnitOfWork(context.Background(), func(ctx context.Context, uow lending.UnitOfWork) error {
		reserved, err := uow.DecrementAvailableCopies(ctx, bookID)
		if err != nil {
			return err
		}

		if !reserved {
			return lending.ErrNoCopiesAvailable
		}

		loan, err = uow.InsertLoan(ctx, lending.BuildLoan(bookID, member, loanDate))

		return err
	})
	require.NoError(t, err, "error in arranging test data")

	return loan
}

func givenReturned(t *testing.T, store sqlengine.Store, loan lending.Loan, returnedAt time.Time) {
	t.Helper()

	err := store.WithinUnitOfWork(context.Background(), func(ctx context.Context, uow lending.UnitOfWork) error {
		if _, err := uow.MarkLoanReturned(ctx, loan.ID, returnedAt); err != nil {
			return err
		}

		_, err := uow.IncrementAvailableCopies(ctx, loan.BookID)

		return err
	})
	require.NoError(t, err, "error in arranging test data")
}

func Test_NewStore_Rejects(t *testing.T) {
	_, err := sqlengine.NewStoreFromSQLDB(nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)

	_, err = sqlengine.NewStoreFromPGXPool(nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)

	_, err = sqlengine.NewStoreFromSQLX(nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)

	db, err := sql.Open("sqlite3", lendingtest.SQLiteDSN(t.TempDir()))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = sqlengine.NewStoreFromSQLDB(db, sqlengine.WithDialect("mysql"))
	assert.ErrorIs(t, err, lending.ErrUnsupportedDialect)

	_, err = sqlengine.NewStoreFromSQLDB(db, sqlengine.WithTableNames("authors", "", "loans"))
	assert.ErrorIs(t, err, lending.ErrEmptyTableName)
}

func Test_Store_Migrate_IsIdempotent(t *testing.T) {
	store := lendingtest.GivenSQLiteStore(t)

	assert.NoError(t, store.Migrate(context.Background()), "Should run again without error")
	assert.Equal(t, sqlengine.DialectSQLite, store.Dialect())
}

func Test_Store_InsertLoan_RoundTripsTimestamps(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		book := lendingtest.GivenBook(t, store, 1)
		loanDate := time.Date(2026, time.March, 2, 10, 0, 0, 123456789, time.FixedZone("CET", 3600))

		// act
		inserted := givenLoan(t, store, book.ID, "Alice", loanDate)
		loaded, err := store.LoanByID(context.Background(), inserted.ID)

		// assert
		require.NoError(t, err)
		assert.Positive(t, inserted.ID, "Should assign an id")
		assert.Equal(t, inserted, loaded, "Should load what was inserted")
		assert.Equal(t, lending.ToTimestamp(loanDate), loaded.LoanDate)
		assert.Equal(t, lending.ToTimestamp(loanDate).Add(lending.LoanPeriod), loaded.DueDate)
		assert.Nil(t, loaded.ReturnedAt)
	})
}

func Test_Store_MarkLoanReturned_OnlyOnce(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		book := lendingtest.GivenBook(t, store, 1)
		loan := givenLoan(t, store, book.ID, "Alice", lendingtest.FixtureTime())
		returnedAt := lendingtest.FixtureTime().Add(48 * time.Hour)

		var marks []bool

		// act
		for n := 0; n < 2; n++ {
			err := store.WithinUnitOfWork(context.Background(), func(ctx context.Context, uow lending.UnitOfWork) error {
				marked, err := uow.MarkLoanReturned(ctx, loan.ID, returnedAt.Add(time.Duration(len(marks))*time.Hour))
				marks = append(marks, marked)

				return err
			})
			require.NoError(t, err)
		}

		// assert
		assert.Equal(t, []bool{true, false}, marks, "Should mark a loan returned only once")

		loaded, err := store.LoanByID(context.Background(), loan.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded.ReturnedAt)
		assert.Equal(t, returnedAt, *loaded.ReturnedAt, "Should keep the first return time")
	})
}

func Test_Store_DecrementAvailableCopies_InterleavedUnitsOfWork(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		book := lendingtest.GivenBook(t, store, 1)

		var (
			first, second bool
			secondErr     error
		)

		// act
		firstErr := whileHolding(t, store,
			func(ctx context.Context, uow lending.UnitOfWork) error {
				var err error
				first, err = uow.DecrementAvailableCopies(ctx, book.ID)

				return err
			},
			func() {
				secondErr = store.WithinUnitOfWork(context.Background(), func(ctx context.Context, uow lending.UnitOfWork) error {
					var err error
					second, err = uow.DecrementAvailableCopies(ctx, book.ID)

					return err
				})
			},
		)

		// assert
		require.NoError(t, firstErr)
		require.NoError(t, secondErr)
		assert.True(t, first, "Should hand the last copy to the first unit of work")
		assert.False(t, second, "Should not hand the last copy out a second time")

		reloaded, err := store.BookByID(context.Background(), book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.AvailableCopies)
	})
}

func Test_Store_MarkLoanReturned_InterleavedUnitsOfWork(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		book := lendingtest.GivenBook(t, store, 1)
		loan := givenLoan(t, store, book.ID, "Alice", lendingtest.FixtureTime())
		returnedAt := lendingtest.FixtureTime().Add(48 * time.Hour)

		var (
			first, second bool
			secondErr     error
		)

		// act
		firstErr := whileHolding(t, store,
			func(ctx context.Context, uow lending.UnitOfWork) error {
				var err error
				first, err = uow.MarkLoanReturned(ctx, loan.ID, returnedAt)

				return err
			},
			func() {
				secondErr = store.WithinUnitOfWork(context.Background(), func(ctx context.Context, uow lending.UnitOfWork) error {
					var err error
					second, err = uow.MarkLoanReturned(ctx, loan.ID, returnedAt.Add(time.Hour))

					return err
				})
			},
		)

		// assert
		require.NoError(t, firstErr)
		require.NoError(t, secondErr)
		assert.True(t, first)
		assert.False(t, second, "Should not mark a loan returned that a concurrent unit of work returned")
	})
}

func Test_Store_WithinUnitOfWork_RollsBack(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		ctx := context.Background()
		book := lendingtest.GivenBook(t, store, 1)
		errAbort := errors.New("abort")

		// act
		err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow lending.UnitOfWork) error {
			if _, err := uow.DecrementAvailableCopies(ctx, book.ID); err != nil {
				return err
			}

			if _, err := uow.InsertLoan(ctx, lending.BuildLoan(book.ID, "Alice", lendingtest.FixtureTime())); err != nil {
				return err
			}

			return errAbort
		})

		// assert
		assert.ErrorIs(t, err, errAbort)

		reloaded, err := store.BookByID(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.AvailableCopies, "Should undo the reservation")

		loans, err := store.AllLoans(ctx)
		require.NoError(t, err)
		assert.Empty(t, loans, "Should undo the loan")
	})
}

func Test_Store_WithinUnitOfWork_CanceledContext(t *testing.T) {
	// arrange
	store := lendingtest.GivenSQLiteStore(t)
	book := lendingtest.GivenBook(t, store, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow lending.UnitOfWork) error {
		_, err := uow.DecrementAvailableCopies(ctx, book.ID)
		return err
	})

	// assert
	assert.ErrorIs(t, err, context.Canceled)

	reloaded, err := store.BookByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCopies)
}

func Test_Store_Observability(t *testing.T) {
	// arrange
	logger, logSpy := lendingtest.NewLoggerSpy()
	metrics := lendingtest.NewMetricsCollectorSpy()
	tracing := lendingtest.NewTracingCollectorSpy()
	store := lendingtest.GivenSQLiteStore(t,
		sqlengine.WithLogger(logger), sqlengine.WithMetrics(metrics), sqlengine.WithTracing(tracing))
	book := lendingtest.GivenBook(t, store, 1)

	// act
	givenLoan(t, store, book.ID, "Alice", lendingtest.FixtureTime())
	_, err := store.LoanByID(context.Background(), 999)

	// assert
	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
	assert.True(t, logSpy.HasInfoLog("store operation: loan inserted").WithAttrKey("loan_id").Assert(),
		"Should log the inserted loan")
	assert.True(t, logSpy.HasDebugLog("executed sql for: insert_loan").WithDurationMS().Assert(),
		"Should log the statement with its duration")
	assert.True(t, metrics.HasDurationRecord("lending_store_operation_duration_seconds").
		WithLabel("operation", "unit_of_work").WithStatus(lending.StatusSuccess).Assert())
	assert.True(t, metrics.HasDurationRecord("lending_store_operation_duration_seconds").
		WithLabel("operation", "loan_by_id").WithStatus(lending.StatusRejected).Assert(),
		"Should label a missing loan as rejected")
	assert.False(t, metrics.HasCounterRecord("lending_store_errors_total").Assert(), "Should count no store errors")

	span, found := tracing.FinishedSpan("lending.store.loan_by_id")
	require.True(t, found)
	assert.Equal(t, lending.StatusRejected, span.Status)
	assert.Equal(t, "not_found", span.EndAttributes["error_type"])
}
