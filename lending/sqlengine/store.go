package sqlengine

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine/internal/adapters"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

const (
	defaultAuthorsTableName = "authors"
	defaultBooksTableName   = "books"
	defaultLoansTableName   = "loans"

	logMsgBuildQueryFailed   = "failed to build sql statement"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgBeginFailed        = "failed to begin transaction"
	logMsgCommitFailed       = "failed to commit transaction"
	logMsgRollbackFailed     = "failed to roll back transaction"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "store operation: "

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrDurationMS   = "duration_ms"
	logAttrRowsAffected = "rows_affected"
	logAttrBookID       = "book_id"
	logAttrLoanID       = "loan_id"
	logAttrAuthorID     = "author_id"
	logAttrDialect      = "dialect"

	colID              = "id"
	colFirstName       = "first_name"
	colLastName        = "last_name"
	colDescription     = "description"
	colBirthYear       = "birth_year"
	colTitle           = "title"
	colISBN            = "isbn"
	colPublicationYear = "publication_year"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colAuthorID        = "author_id"
	colBookID          = "book_id"
	colMemberName      = "member_name"
	colLoanDate        = "loan_date"
	colDueDate         = "due_date"
	colReturnedAt      = "returned_at"
)

type tableNames struct {
	authors string
	books   string
	loans   string
}

// Store is the relational implementation of the book store and the loan store.
type Store struct {
	db               adapters.DBAdapter
	dialectName      string
	dialect          goqu.DialectWrapper
	tables           tableNames
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolWithReplica creates a new Store whose eventually consistent reads
// are served by the replica pool.
func NewStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
// Use WithDialect(DialectSQLite) for sqlite connections.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{
		db:          db,
		dialectName: DialectPostgres,
		tables: tableNames{
			authors: defaultAuthorsTableName,
			books:   defaultBooksTableName,
			loans:   defaultLoansTableName,
		},
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	s.dialect = goqu.Dialect(s.dialectName)

	return s, nil
}

// Dialect returns the configured SQL dialect name.
func (s Store) Dialect() string {
	return s.dialectName
}

// WithinUnitOfWork runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including when ctx is canceled.
func (s Store) WithinUnitOfWork(ctx context.Context, fn lending.UnitOfWorkFunc) (err error) {
	ctx, observer := s.startOperation(ctx, operationUnitOfWork)
	defer func() { observer.finish(err) }()

	return s.transact(ctx, func(tx adapters.DBTx) error {
		return fn(ctx, unitOfWork{store: s, tx: tx})
	})
}

func (s Store) transact(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		err = classifyError(err)
		s.logError(ctx, logMsgBeginFailed, err)
		return err
	}

	if err = fn(tx); err != nil {
		s.rollback(ctx, tx)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = classifyError(err)
		s.logError(ctx, logMsgCommitFailed, err)
		s.rollback(ctx, tx)
		return err
	}

	return nil
}

func (s Store) rollback(ctx context.Context, tx adapters.DBTx) {
	if rollbackErr := tx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
		s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
	}
}

// unitOfWork implements lending.UnitOfWork on an open transaction.
type unitOfWork struct {
	store Store
	tx    adapters.DBTx
}

func (u unitOfWork) BookByID(ctx context.Context, bookID lending.BookID) (lending.Book, error) {
	return u.store.bookByID(ctx, u.tx, bookID)
}

func (u unitOfWork) DecrementAvailableCopies(ctx context.Context, bookID lending.BookID) (bool, error) {
	return u.store.decrementAvailableCopies(ctx, u.tx, bookID)
}

func (u unitOfWork) IncrementAvailableCopies(ctx context.Context, bookID lending.BookID) (bool, error) {
	return u.store.incrementAvailableCopies(ctx, u.tx, bookID)
}

func (u unitOfWork) InsertLoan(ctx context.Context, loan lending.Loan) (lending.Loan, error) {
	return u.store.insertLoan(ctx, u.tx, loan)
}

func (u unitOfWork) LoanByID(ctx context.Context, loanID lending.LoanID) (lending.Loan, error) {
	return u.store.loanByID(ctx, u.tx, loanID)
}

func (u unitOfWork) MarkLoanReturned(ctx context.Context, loanID lending.LoanID, returnedAt time.Time) (bool, error) {
	return u.store.markLoanReturned(ctx, u.tx, loanID, returnedAt)
}

var _ lending.UnitOfWork = unitOfWork{}

// sqlBuilder is implemented by all goqu datasets.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

// rowScanner is the scanning part of adapters.DBRows.
type rowScanner interface {
	Scan(dest ...any) error
}

// query runs a select and calls each for every row, closing the rows afterward.
func (s Store) query(
	ctx context.Context,
	ex adapters.Executor,
	action string,
	builder sqlBuilder,
	each func(row rowScanner) error,
) error {

	sqlQuery, args, err := builder.ToSQL()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrQuery, action)
		return err
	}

	start := time.Now()

	rows, err := ex.Query(ctx, sqlQuery, args...)
	if err != nil {
		err = classifyError(err)
		s.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
		return err
	}
	defer s.closeRows(ctx, rows)

	for rows.Next() {
		if err = each(rows); err != nil {
			s.logError(ctx, logMsgScanRowFailed, err, logAttrQuery, sqlQuery)
			return err
		}
	}

	if err = rows.Err(); err != nil {
		err = classifyError(err)
		s.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
		return err
	}

	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	return nil
}

// exec runs a statement and returns the number of affected rows.
func (s Store) exec(ctx context.Context, ex adapters.Executor, action string, builder sqlBuilder) (adapters.DBResult, int64, error) {
	sqlQuery, args, err := builder.ToSQL()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrQuery, action)
		return nil, 0, err
	}

	start := time.Now()

	result, err := ex.Exec(ctx, sqlQuery, args...)
	if err != nil {
		err = classifyError(err)
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return nil, 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, err, logAttrQuery, sqlQuery)
		return nil, 0, err
	}

	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	return result, rowsAffected, nil
}

// insert runs an insert and returns the generated id, via RETURNING where the dialect has it.
func (s Store) insert(ctx context.Context, ex adapters.Executor, action string, ds *goqu.InsertDataset) (int64, error) {
	if s.dialectName == DialectPostgres {
		var id int64

		err := s.query(ctx, ex, action, ds.Returning(goqu.C(colID)), func(row rowScanner) error {
			return row.Scan(&id)
		})

		return id, err
	}

	result, _, err := s.exec(ctx, ex, action, ds)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// count runs a single-value COUNT or SUM select.
func (s Store) count(ctx context.Context, ex adapters.Executor, action string, builder sqlBuilder) (int, error) {
	var n int64

	err := s.query(ctx, ex, action, builder, func(row rowScanner) error {
		return row.Scan(&n)
	})

	return int(n), err
}

func (s Store) from(table string) *goqu.SelectDataset {
	return s.dialect.From(table).Prepared(true)
}

func (s Store) insertInto(table string) *goqu.InsertDataset {
	return s.dialect.Insert(table).Prepared(true)
}

func (s Store) update(table string) *goqu.UpdateDataset {
	return s.dialect.Update(table).Prepared(true)
}

func (s Store) deleteFrom(table string) *goqu.DeleteDataset {
	return s.dialect.Delete(table).Prepared(true)
}

// toTimestamp converts scanned driver times into the canonical representation.
func toTimestamp(t time.Time) time.Time {
	return lending.ToTimestamp(t)
}
