package lending

import (
	"context"
	"errors"
	"fmt"
)

// Configuration errors returned by constructors and options.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("empty table name supplied")
	ErrUnsupportedDialect    = errors.New("unsupported sql dialect")
	ErrNilStore              = errors.New("store must not be nil")
	ErrNilClock              = errors.New("clock must not be nil")
)

// Validation errors: the request itself is malformed.
var (
	ErrEmptyMemberName    = errors.New("member name must not be empty")
	ErrInvalidTotalCopies = errors.New("total copies must be at least 1")
	ErrInvalidTopN        = errors.New("top count must be between 1 and 100")
	ErrInvalidISBN        = errors.New("isbn must be a valid ISBN-10 or ISBN-13")
	ErrInvalidInput       = errors.New("invalid input")
)

// NotFound errors: the referenced entity does not exist.
var (
	ErrBookNotFound   = errors.New("book not found")
	ErrLoanNotFound   = errors.New("loan not found")
	ErrAuthorNotFound = errors.New("author not found")
)

// Business rule errors: expected outcomes of valid requests.
var (
	ErrNoCopiesAvailable  = errors.New("no copies available")
	ErrAlreadyReturned    = errors.New("loan already returned")
	ErrAuthorHasBooks     = errors.New("author still owns books")
	ErrBookHasActiveLoans = errors.New("book has active loans")
	ErrTotalBelowOnLoan   = errors.New("total copies must not be below the copies on loan")
)

// Invariant violations: bugs in the bookkeeping, never silently corrected.
var (
	ErrCapacityExceeded = errors.New("available copies would exceed total copies")
	ErrStockMismatch    = errors.New("available copies do not match active loans")
)

// Transient errors: the unit of work may be retried.
var (
	ErrConcurrencyConflict = errors.New("concurrency conflict, transaction must be retried")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// InvariantViolationError carries the ids and counts involved in an invariant violation.
type InvariantViolationError struct {
	Kind            error
	BookID          BookID
	LoanID          LoanID
	AvailableCopies int
	TotalCopies     int
	ActiveLoans     int
}

func (e InvariantViolationError) Error() string {
	msg := fmt.Sprintf(
		"%s: book_id=%d available_copies=%d total_copies=%d",
		e.Kind, e.BookID, e.AvailableCopies, e.TotalCopies,
	)

	if e.LoanID != 0 {
		msg += fmt.Sprintf(" loan_id=%d", e.LoanID)
	}

	if errors.Is(e.Kind, ErrStockMismatch) {
		msg += fmt.Sprintf(" active_loans=%d", e.ActiveLoans)
	}

	return msg
}

func (e InvariantViolationError) Unwrap() error {
	return e.Kind
}

// LogArgs returns the violation context as slog key-value pairs.
func (e InvariantViolationError) LogArgs() []any {
	return []any{
		"book_id", e.BookID,
		"loan_id", e.LoanID,
		"available_copies", e.AvailableCopies,
		"total_copies", e.TotalCopies,
		"active_loans", e.ActiveLoans,
	}
}

// IsValidation reports whether err rejects malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyMemberName) ||
		errors.Is(err, ErrInvalidTotalCopies) ||
		errors.Is(err, ErrInvalidTopN) ||
		errors.Is(err, ErrInvalidISBN) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound reports whether err means a referenced entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrAuthorNotFound)
}

// IsBusinessRule reports whether err is an expected, non-exceptional outcome.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrNoCopiesAvailable) ||
		errors.Is(err, ErrAlreadyReturned) ||
		errors.Is(err, ErrAuthorHasBooks) ||
		errors.Is(err, ErrBookHasActiveLoans) ||
		errors.Is(err, ErrTotalBelowOnLoan)
}

// IsInvariantViolation reports whether err indicates corrupted bookkeeping.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrStockMismatch)
}

// IsTransient reports whether the failed unit of work may be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrStoreUnavailable)
}

// ErrorType returns a low-cardinality label for metrics and spans.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsValidation(err):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	case IsBusinessRule(err):
		return "business_rule"
	case IsInvariantViolation(err):
		return "invariant_violation"
	case errors.Is(err, ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}
