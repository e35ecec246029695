package inventory

import (
	"context"
	"fmt"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	metricInvariantViolations = "inventory_invariant_violations_total"
	metricCopiesReserved      = "inventory_copies_reserved_total"
	metricCopiesReleased      = "inventory_copies_released_total"
	metricReservationsDenied  = "inventory_reservations_denied_total"

	logMsgInvariantViolation = "inventory invariant violated"
	logMsgCopyReserved       = "inventory: copy reserved"
	logMsgCopyReleased       = "inventory: copy released"
	logMsgNoCopyAvailable    = "inventory: no copy available"

	labelKind = "kind"
)

// CopyCounter is the part of a unit of work the Ledger operates on.
type CopyCounter interface {
	BookByID(ctx context.Context, bookID lending.BookID) (lending.Book, error)
	DecrementAvailableCopies(ctx context.Context, bookID lending.BookID) (bool, error)
	IncrementAvailableCopies(ctx context.Context, bookID lending.BookID) (bool, error)
}

// BookReader looks up a book outside of a unit of work.
type BookReader interface {
	BookByID(ctx context.Context, bookID lending.BookID) (lending.Book, error)
}

// Availability tells whether a book can be loaned right now.
type Availability struct {
	BookID          lending.BookID `json:"bookId"`
	Available       bool           `json:"available"`
	AvailableCopies int            `json:"availableCopies"`
	TotalCopies     int            `json:"totalCopies"`
}

// ConservationSource provides what VerifyConservation compares.
type ConservationSource interface {
	AllBooks(ctx context.Context) ([]lending.Book, error)
	ActiveLoanCounts(ctx context.Context) (map[lending.BookID]int, error)
}

// Ledger reserves and releases copies.
type Ledger struct {
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
}

// Option defines a functional option for configuring the Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Invariant violations are logged at error level.
func WithLogger(logger lending.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain logger.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(l *Ledger) {
		l.contextualLogger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(l *Ledger) {
		l.metricsCollector = collector
	}
}

// NewLedger creates a Ledger.
func NewLedger(options ...Option) Ledger {
	l := Ledger{}

	for _, option := range options {
		option(&l)
	}

	return l
}

// TryReserveCopy takes one copy of the book if one is available and reports whether it did.
// When nothing could be taken it tells a missing book (lending.ErrBookNotFound) apart
// from an exhausted one (false, nil).
func (l Ledger) TryReserveCopy(ctx context.Context, uow CopyCounter, bookID lending.BookID) (bool, error) {
	reserved, err := uow.DecrementAvailableCopies(ctx, bookID)
	if err != nil {
		return false, err
	}

	if reserved {
		l.incrementCounter(ctx, metricCopiesReserved, nil)
		l.logDebug(ctx, logMsgCopyReserved, "book_id", bookID)

		return true, nil
	}

	book, err := uow.BookByID(ctx, bookID)
	if err != nil {
		return false, err
	}

	if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
		return false, l.violation(ctx, lending.InvariantViolationError{
			Kind:            lending.ErrStockMismatch,
			BookID:          book.ID,
			AvailableCopies: book.AvailableCopies,
			TotalCopies:     book.TotalCopies,
		})
	}

	l.incrementCounter(ctx, metricReservationsDenied, nil)
	l.logDebug(ctx, logMsgNoCopyAvailable, "book_id", bookID)

	return false, nil
}

// BookAvailability answers whether a copy of the book could be reserved right now.
// The answer is a snapshot; only TryReserveCopy actually takes a copy.
func (l Ledger) BookAvailability(ctx context.Context, books BookReader, bookID lending.BookID) (Availability, error) {
	book, err := books.BookByID(ctx, bookID)
	if err != nil {
		return Availability{}, err
	}

	return Availability{
		BookID:          book.ID,
		Available:       book.AvailableCopies > 0,
		AvailableCopies: book.AvailableCopies,
		TotalCopies:     book.TotalCopies,
	}, nil
}

// ReleaseCopy gives one copy of the book back.
// It fails with lending.ErrBookNotFound for an unknown book and with an
// InvariantViolationError wrapping lending.ErrCapacityExceeded when every copy is already in stock.
func (l Ledger) ReleaseCopy(ctx context.Context, uow CopyCounter, bookID lending.BookID) error {
	released, err := uow.IncrementAvailableCopies(ctx, bookID)
	if err != nil {
		return err
	}

	if released {
		l.incrementCounter(ctx, metricCopiesReleased, nil)
		l.logDebug(ctx, logMsgCopyReleased, "book_id", bookID)

		return nil
	}

	book, err := uow.BookByID(ctx, bookID)
	if err != nil {
		return err
	}

	return l.violation(ctx, lending.InvariantViolationError{
		Kind:            lending.ErrCapacityExceeded,
		BookID:          book.ID,
		AvailableCopies: book.AvailableCopies,
		TotalCopies:     book.TotalCopies,
	})
}

// VerifyConservation checks, for every book, that the available copies equal the total
// minus the active loans and stay within 0..total. Mismatches are reported, never corrected.
func (l Ledger) VerifyConservation(ctx context.Context, source ConservationSource) ([]lending.InvariantViolationError, error) {
	books, err := source.AllBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}

	activeLoans, err := source.ActiveLoanCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active loan counts: %w", err)
	}

	violations := make([]lending.InvariantViolationError, 0)

	for _, book := range books {
		active := activeLoans[book.ID]

		if CopiesConserved(book, active) {
			continue
		}

		violation := lending.InvariantViolationError{
			Kind:            lending.ErrStockMismatch,
			BookID:          book.ID,
			AvailableCopies: book.AvailableCopies,
			TotalCopies:     book.TotalCopies,
			ActiveLoans:     active,
		}

		_ = l.violation(ctx, violation)
		violations = append(violations, violation)
	}

	return violations, nil
}

// CopiesConserved reports whether book's counters are consistent with activeLoans.
func CopiesConserved(book lending.Book, activeLoans int) bool {
	return book.AvailableCopies >= 0 &&
		book.AvailableCopies <= book.TotalCopies &&
		book.AvailableCopies == book.TotalCopies-activeLoans
}

func (l Ledger) violation(ctx context.Context, violation lending.InvariantViolationError) error {
	l.incrementCounter(ctx, metricInvariantViolations, map[string]string{labelKind: violation.Kind.Error()})

	args := violation.LogArgs()

	switch {
	case l.contextualLogger != nil:
		l.contextualLogger.ErrorContext(ctx, logMsgInvariantViolation, append([]any{"error", violation.Error()}, args...)...)
	case l.logger != nil:
		l.logger.Error(logMsgInvariantViolation, append([]any{"error", violation.Error()}, args...)...)
	}

	return violation
}

func (l Ledger) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case l.contextualLogger != nil:
		l.contextualLogger.DebugContext(ctx, msg, args...)
	case l.logger != nil:
		l.logger.Debug(msg, args...)
	}
}

func (l Ledger) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if l.metricsCollector == nil {
		return
	}

	if labels == nil {
		labels = map[string]string{}
	}

	if contextualCollector, ok := l.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		l.metricsCollector.IncrementCounter(metric, labels)
	}
}
