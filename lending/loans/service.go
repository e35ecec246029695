package loans

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/inventory"
)

const defaultUnitOfWorkTimeout = 5 * time.Second

// ErrInvalidUnitOfWorkTimeout is returned when a non-positive unit-of-work timeout is configured.
var ErrInvalidUnitOfWorkTimeout = errors.New("unit of work timeout must be positive")

// Store is the loan store the Service needs.
type Store interface {
	WithinUnitOfWork(ctx context.Context, fn lending.UnitOfWorkFunc) error
	BookByID(ctx context.Context, bookID lending.BookID) (lending.Book, error)
	LoanByID(ctx context.Context, loanID lending.LoanID) (lending.Loan, error)
	LoansByBook(ctx context.Context, bookID lending.BookID, activeOnly bool) ([]lending.Loan, error)
	LoansByMember(ctx context.Context, memberName string) ([]lending.Loan, error)
	ActiveLoans(ctx context.Context) ([]lending.Loan, error)
	Loans(ctx context.Context, filter string) ([]lending.Loan, error)
}

// Service creates and returns loans and answers loan queries.
type Service struct {
	store             Store
	ledger            inventory.Ledger
	clock             lending.Clock
	retryOptions      []RetryOption
	unitOfWorkTimeout time.Duration
	logger            lending.Logger
	contextualLogger  lending.ContextualLogger
	metricsCollector  lending.MetricsCollector
	tracingCollector  lending.TracingCollector
}

// Option defines a functional option for configuring the Service.
type Option func(*Service) error

// WithClock sets the source of "now". Defaults to lending.SystemClock.
func WithClock(clock lending.Clock) Option {
	return func(s *Service) error {
		if clock == nil {
			return lending.ErrNilClock
		}

		s.clock = clock

		return nil
	}
}

// WithLedger sets the inventory ledger, e.g. one with its own logger and metrics.
func WithLedger(ledger inventory.Ledger) Option {
	return func(s *Service) error {
		s.ledger = ledger
		return nil
	}
}

// WithRetryOptions configures the retry of transient unit-of-work failures.
func WithRetryOptions(options ...RetryOption) Option {
	return func(s *Service) error {
		s.retryOptions = append(s.retryOptions, options...)
		return nil
	}
}

// WithUnitOfWorkTimeout bounds each attempt of a unit of work. An attempt that runs
// into it fails with lending.ErrStoreUnavailable.
func WithUnitOfWorkTimeout(timeout time.Duration) Option {
	return func(s *Service) error {
		if timeout <= 0 {
			return ErrInvalidUnitOfWorkTimeout
		}

		s.unitOfWorkTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger lending.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain logger.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector, also used for retry metrics.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(s *Service) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector lending.TracingCollector) Option {
	return func(s *Service) error {
		s.tracingCollector = collector
		return nil
	}
}

// NewService creates a Service on top of store.
func NewService(store Store, options ...Option) (Service, error) {
	if store == nil {
		return Service{}, lending.ErrNilStore
	}

	s := Service{
		store:             store,
		ledger:            inventory.NewLedger(),
		clock:             lending.SystemClock{},
		unitOfWorkTimeout: defaultUnitOfWorkTimeout,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Service{}, err
		}
	}

	// Validate the retry options once instead of on the first command.
	if _, err := RetryWithExponentialBackoff(context.Background(), func(context.Context) error { return nil }, s.retryOptions...); err != nil {
		return Service{}, err
	}

	return s, nil
}

// CreateLoan lends a copy of the book to the member.
// Reserving the copy and inserting the loan commit together or not at all.
func (s Service) CreateLoan(ctx context.Context, command CreateLoanCommand) (_ lending.LoanView, err error) {
	var retryMetrics RetryMetrics

	ctx, observer := s.startCommand(ctx, command.CommandType(), map[string]string{
		logAttrBookID: strconv.FormatInt(command.BookID, 10),
	})
	defer func() {
		observer.finishCommand(err, retryMetrics, logAttrBookID, command.BookID)
	}()

	command.MemberName = strings.TrimSpace(command.MemberName)
	if command.MemberName == "" {
		return lending.LoanView{}, lending.ErrEmptyMemberName
	}

	now := s.clock.Now()

	var loan lending.Loan

	retryMetrics, err = s.runUnitOfWork(ctx, command.CommandType(), func(ctx context.Context, uow lending.UnitOfWork) error {
		if _, err := uow.BookByID(ctx, command.BookID); err != nil {
			return err
		}

		reserved, err := s.ledger.TryReserveCopy(ctx, uow, command.BookID)
		if err != nil {
			return err
		}

		if !reserved {
			return lending.ErrNoCopiesAvailable
		}

		loan, err = uow.InsertLoan(ctx, lending.BuildLoan(command.BookID, command.MemberName, now))

		return err
	})
	if err != nil {
		return lending.LoanView{}, err
	}

	return loan.View(now), nil
}

// ReturnLoan closes an active loan and gives its copy back.
// A second return of the same loan fails with lending.ErrAlreadyReturned and changes nothing.
func (s Service) ReturnLoan(ctx context.Context, command ReturnLoanCommand) (_ lending.LoanView, err error) {
	var retryMetrics RetryMetrics

	ctx, observer := s.startCommand(ctx, command.CommandType(), map[string]string{
		logAttrLoanID: strconv.FormatInt(command.LoanID, 10),
	})
	defer func() {
		observer.finishCommand(err, retryMetrics, logAttrLoanID, command.LoanID)
	}()

	now := s.clock.Now()

	var loan lending.Loan

	retryMetrics, err = s.runUnitOfWork(ctx, command.CommandType(), func(ctx context.Context, uow lending.UnitOfWork) error {
		var err error

		loan, err = uow.LoanByID(ctx, command.LoanID)
		if err != nil {
			return err
		}

		if !loan.IsActive() {
			return lending.ErrAlreadyReturned
		}

		marked, err := uow.MarkLoanReturned(ctx, command.LoanID, now)
		if err != nil {
			return err
		}

		if !marked {
			return lending.ErrAlreadyReturned
		}

		if err = s.ledger.ReleaseCopy(ctx, uow, loan.BookID); err != nil {
			var violation lending.InvariantViolationError
			if errors.As(err, &violation) {
				violation.LoanID = command.LoanID
				return violation
			}

			return err
		}

		returnedAt := lending.ToTimestamp(now)
		loan.ReturnedAt = &returnedAt

		return nil
	})
	if err != nil {
		return lending.LoanView{}, err
	}

	return loan.View(now), nil
}

// runUnitOfWork runs fn in a unit of work, bounded by the unit-of-work timeout,
// and retries it on transient failures.
func (s Service) runUnitOfWork(ctx context.Context, commandType string, fn lending.UnitOfWorkFunc) (RetryMetrics, error) {
	options := s.retryOptions
	if s.metricsCollector != nil {
		options = append(options[:len(options):len(options)], WithRetryMetrics(s.metricsCollector, commandType))
	}

	return RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.unitOfWorkTimeout)
		defer cancel()

		err := s.store.WithinUnitOfWork(attemptCtx, fn)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return errors.Join(lending.ErrStoreUnavailable, err)
		}

		return err
	}, options...)
}

// LoanByID returns one loan.
func (s Service) LoanByID(ctx context.Context, loanID lending.LoanID) (_ lending.LoanView, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeLoanByID)
	defer func() { observer.finishQuery(err, 1) }()

	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return lending.LoanView{}, err
	}

	return loan.View(s.clock.Now()), nil
}

// LoansByBook returns the loan history of a book, newest first.
func (s Service) LoansByBook(ctx context.Context, bookID lending.BookID) ([]lending.LoanView, error) {
	return s.loansOfBook(ctx, queryTypeLoansByBook, bookID, false)
}

// ActiveLoansByBook returns the loans of a book that are not returned yet, newest first.
func (s Service) ActiveLoansByBook(ctx context.Context, bookID lending.BookID) ([]lending.LoanView, error) {
	return s.loansOfBook(ctx, queryTypeActiveLoansByBook, bookID, true)
}

func (s Service) loansOfBook(ctx context.Context, queryType string, bookID lending.BookID, activeOnly bool) (views []lending.LoanView, err error) {
	ctx, observer := s.startQuery(ctx, queryType)
	defer func() { observer.finishQuery(err, len(views)) }()

	if _, err = s.store.BookByID(ctx, bookID); err != nil {
		return nil, err
	}

	loans, err := s.store.LoansByBook(ctx, bookID, activeOnly)
	if err != nil {
		return nil, err
	}

	return lending.ViewsOf(loans, s.clock.Now()), nil
}

// LoansByMember returns the loan history of a member, newest first.
func (s Service) LoansByMember(ctx context.Context, memberName string) (views []lending.LoanView, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeLoansByMember)
	defer func() { observer.finishQuery(err, len(views)) }()

	loans, err := s.store.LoansByMember(ctx, memberName)
	if err != nil {
		return nil, err
	}

	return lending.ViewsOf(loans, s.clock.Now()), nil
}

// ActiveLoans returns every loan not returned yet.
func (s Service) ActiveLoans(ctx context.Context) (views []lending.LoanView, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeActiveLoans)
	defer func() { observer.finishQuery(err, len(views)) }()

	loans, err := s.store.ActiveLoans(ctx)
	if err != nil {
		return nil, err
	}

	return lending.ViewsOf(loans, s.clock.Now()), nil
}

// OverdueLoans returns the active loans past their due date.
// It applies the same predicate as every other read path.
func (s Service) OverdueLoans(ctx context.Context) (views []lending.LoanView, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeOverdueLoans)
	defer func() { observer.finishQuery(err, len(views)) }()

	loans, err := s.store.ActiveLoans(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	views = make([]lending.LoanView, 0)

	for _, loan := range loans {
		if view := loan.View(now); view.IsOverdue {
			views = append(views, view)
		}
	}

	return views, nil
}

// Loans returns all loans, newest first, optionally filtered by book title or member name.
func (s Service) Loans(ctx context.Context, filter string) (views []lending.LoanView, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeLoans)
	defer func() { observer.finishQuery(err, len(views)) }()

	loans, err := s.store.Loans(ctx, filter)
	if err != nil {
		return nil, err
	}

	return lending.ViewsOf(loans, s.clock.Now()), nil
}
