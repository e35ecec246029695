package lending

import (
	"context"
	"time"
)

// UnitOfWork is the transactional view of the store handed to a UnitOfWorkFunc.
// Everything done through it commits or rolls back together.
type UnitOfWork interface {
	// BookByID returns ErrBookNotFound when the book does not exist.
	BookByID(ctx context.Context, bookID BookID) (Book, error)

	// DecrementAvailableCopies decrements the count only if it is positive.
	// It reports whether a row was changed.
	DecrementAvailableCopies(ctx context.Context, bookID BookID) (bool, error)

	// IncrementAvailableCopies increments the count only if it is below the total.
	// It reports whether a row was changed.
	IncrementAvailableCopies(ctx context.Context, bookID BookID) (bool, error)

	// InsertLoan persists a new loan and returns it with its assigned id.
	InsertLoan(ctx context.Context, loan Loan) (Loan, error)

	// LoanByID returns ErrLoanNotFound when the loan does not exist.
	LoanByID(ctx context.Context, loanID LoanID) (Loan, error)

	// MarkLoanReturned sets returnedAt only if the loan is still active.
	// It reports whether a row was changed.
	MarkLoanReturned(ctx context.Context, loanID LoanID, returnedAt time.Time) (bool, error)
}

// UnitOfWorkFunc runs inside one transaction. Returning an error rolls it back.
type UnitOfWorkFunc func(ctx context.Context, uow UnitOfWork) error

// BookWithAuthor is a Book joined with its author's display name.
type BookWithAuthor struct {
	Book
	AuthorName string `json:"authorName"`
}

// CatalogTotals are the catalog-wide counts shown in the library summary.
type CatalogTotals struct {
	Books           int `json:"totalBooks"`
	Authors         int `json:"totalAuthors"`
	AvailableCopies int `json:"totalAvailableCopies"`
}
