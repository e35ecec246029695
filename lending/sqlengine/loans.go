package sqlengine

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine/internal/adapters"
)

func loanColumns(table string) []any {
	t := goqu.T(table)

	return []any{
		t.Col(colID),
		t.Col(colBookID),
		t.Col(colMemberName),
		t.Col(colLoanDate),
		t.Col(colDueDate),
		t.Col(colReturnedAt),
	}
}

func scanLoan(row rowScanner) (lending.Loan, error) {
	var (
		loan       lending.Loan
		returnedAt *time.Time
	)

	if err := row.Scan(&loan.ID, &loan.BookID, &loan.MemberName, &loan.LoanDate, &loan.DueDate, &returnedAt); err != nil {
		return lending.Loan{}, err
	}

	loan.LoanDate = toTimestamp(loan.LoanDate)
	loan.DueDate = toTimestamp(loan.DueDate)

	if returnedAt != nil {
		normalized := toTimestamp(*returnedAt)
		loan.ReturnedAt = &normalized
	}

	return loan, nil
}

// newestFirst is the ordering of every loan listing.
func (s Store) newestFirst() []exp.OrderedExpression {
	t := goqu.T(s.tables.loans)

	return []exp.OrderedExpression{t.Col(colLoanDate).Desc(), t.Col(colID).Desc()}
}

func (s Store) selectLoans(ctx context.Context, ex adapters.Executor, action string, ds *goqu.SelectDataset) ([]lending.Loan, error) {
	loans := make([]lending.Loan, 0)

	err := s.query(ctx, ex, action, ds, func(row rowScanner) error {
		loan, scanErr := scanLoan(row)
		loans = append(loans, loan)

		return scanErr
	})
	if err != nil {
		return nil, err
	}

	return loans, nil
}

func (s Store) insertLoan(ctx context.Context, ex adapters.Executor, loan lending.Loan) (lending.Loan, error) {
	loan.LoanDate = lending.ToTimestamp(loan.LoanDate)
	loan.DueDate = lending.ToTimestamp(loan.DueDate)

	ds := s.insertInto(s.tables.loans).Rows(goqu.Record{
		colBookID:     loan.BookID,
		colMemberName: loan.MemberName,
		colLoanDate:   loan.LoanDate,
		colDueDate:    loan.DueDate,
	})

	id, err := s.insert(ctx, ex, "insert_loan", ds)
	if err != nil {
		return lending.Loan{}, err
	}

	loan.ID = id

	s.logOperation(ctx, "loan inserted", logAttrLoanID, loan.ID, logAttrBookID, loan.BookID)

	return loan, nil
}

func (s Store) markLoanReturned(ctx context.Context, ex adapters.Executor, loanID lending.LoanID, returnedAt time.Time) (bool, error) {
	ds := s.update(s.tables.loans).
		Set(goqu.Record{colReturnedAt: lending.ToTimestamp(returnedAt)}).
		Where(goqu.C(colID).Eq(loanID), goqu.C(colReturnedAt).IsNull())

	_, rowsAffected, err := s.exec(ctx, ex, "mark_loan_returned", ds)
	if err != nil {
		return false, err
	}

	if rowsAffected == 1 {
		s.logOperation(ctx, "loan returned", logAttrLoanID, loanID, logAttrRowsAffected, rowsAffected)
	}

	return rowsAffected == 1, nil
}

// LoanByID returns lending.ErrLoanNotFound when the loan does not exist.
func (s Store) LoanByID(ctx context.Context, loanID lending.LoanID) (_ lending.Loan, err error) {
	ctx, observer := s.startOperation(ctx, operationLoanByID)
	defer func() { observer.finish(err) }()

	return s.loanByID(ctx, s.db, loanID)
}

func (s Store) loanByID(ctx context.Context, ex adapters.Executor, loanID lending.LoanID) (lending.Loan, error) {
	loans, err := s.selectLoans(
		ctx, ex, operationLoanByID,
		s.from(s.tables.loans).Select(loanColumns(s.tables.loans)...).Where(goqu.C(colID).Eq(loanID)),
	)
	if err != nil {
		return lending.Loan{}, err
	}

	if len(loans) == 0 {
		return lending.Loan{}, lending.ErrLoanNotFound
	}

	return loans[0], nil
}

// LoansByBook lists all loans of a book, newest first. With activeOnly, returned loans are left out.
func (s Store) LoansByBook(ctx context.Context, bookID lending.BookID, activeOnly bool) (_ []lending.Loan, err error) {
	ctx, observer := s.startOperation(ctx, operationLoansByBook)
	defer func() { observer.finish(err) }()

	conditions := []exp.Expression{goqu.C(colBookID).Eq(bookID)}
	if activeOnly {
		conditions = append(conditions, goqu.C(colReturnedAt).IsNull())
	}

	return s.selectLoans(
		ctx, s.db, operationLoansByBook,
		s.from(s.tables.loans).Select(loanColumns(s.tables.loans)...).Where(conditions...).Order(s.newestFirst()...),
	)
}

// LoansByMember lists all loans of a member, newest first.
func (s Store) LoansByMember(ctx context.Context, memberName string) (_ []lending.Loan, err error) {
	ctx, observer := s.startOperation(ctx, operationLoansByMember)
	defer func() { observer.finish(err) }()

	return s.selectLoans(
		ctx, s.db, operationLoansByMember,
		s.from(s.tables.loans).
			Select(loanColumns(s.tables.loans)...).
			Where(goqu.C(colMemberName).Eq(memberName)).
			Order(s.newestFirst()...),
	)
}

// ActiveLoans lists every loan not returned yet, oldest due date first.
func (s Store) ActiveLoans(ctx context.Context) (_ []lending.Loan, err error) {
	ctx, observer := s.startOperation(ctx, operationActiveLoans)
	defer func() { observer.finish(err) }()

	return s.selectLoans(
		ctx, s.db, operationActiveLoans,
		s.from(s.tables.loans).
			Select(loanColumns(s.tables.loans)...).
			Where(goqu.C(colReturnedAt).IsNull()).
			Order(goqu.C(colDueDate).Asc(), goqu.C(colID).Asc()),
	)
}

// Loans lists all loans, newest first. A non-empty filter keeps loans whose book title
// or member name contains it, ignoring case.
func (s Store) Loans(ctx context.Context, filter string) (_ []lending.Loan, err error) {
	ctx, observer := s.startOperation(ctx, operationLoans)
	defer func() { observer.finish(err) }()

	loans := goqu.T(s.tables.loans)
	books := goqu.T(s.tables.books)

	ds := s.from(s.tables.loans).
		Select(loanColumns(s.tables.loans)...).
		Join(books, goqu.On(loans.Col(colBookID).Eq(books.Col(colID)))).
		Order(s.newestFirst()...)

	if filter = strings.TrimSpace(filter); filter != "" {
		pattern := "%" + filter + "%"
		ds = ds.Where(goqu.Or(
			books.Col(colTitle).ILike(pattern),
			loans.Col(colMemberName).ILike(pattern),
		))
	}

	return s.selectLoans(ctx, s.db, operationLoans, ds)
}

// AllLoans returns the complete loan history, the raw material of the statistics.
func (s Store) AllLoans(ctx context.Context) (_ []lending.Loan, err error) {
	ctx, observer := s.startOperation(ctx, operationAllLoans)
	defer func() { observer.finish(err) }()

	return s.selectLoans(
		ctx, s.db, operationAllLoans,
		s.from(s.tables.loans).Select(loanColumns(s.tables.loans)...).Order(goqu.C(colID).Asc()),
	)
}
