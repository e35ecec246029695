package statistics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store is the read side the Service aggregates over.
type Store interface {
	AllLoans(ctx context.Context) ([]lending.Loan, error)
	BooksWithAuthors(ctx context.Context, bookIDs []lending.BookID) ([]lending.BookWithAuthor, error)
	CatalogTotals(ctx context.Context) (lending.CatalogTotals, error)
}

// SummaryCache keeps a recently computed LibrarySummary.
// A miss is reported with found == false and a nil error.
type SummaryCache interface {
	Load(ctx context.Context) (summary LibrarySummary, found bool, err error)
	Save(ctx context.Context, summary LibrarySummary) error
}

// MostBorrowedBook is one entry of the most-borrowed ranking.
type MostBorrowedBook struct {
	BookID      lending.BookID   `json:"bookId"`
	Title       string           `json:"title"`
	ISBN        string           `json:"isbn"`
	AuthorID    lending.AuthorID `json:"authorId"`
	AuthorName  string           `json:"authorName"`
	BorrowCount int              `json:"borrowCount"`
}

// LoanStatistics are the loan counts plus the average duration of returned loans.
type LoanStatistics struct {
	LoanCounts
	AverageLoanDurationDays float64 `json:"averageLoanDurationDays"`
}

// LibrarySummary is the dashboard view over catalog and loans.
type LibrarySummary struct {
	lending.CatalogTotals
	LoanStatistics    LoanStatistics     `json:"loanStatistics"`
	UniqueBorrowers   int                `json:"uniqueBorrowers"`
	MostBorrowedBooks []MostBorrowedBook `json:"mostBorrowedBooks"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// Service answers statistics queries. It only reads.
type Service struct {
	store            Store
	clock            lending.Clock
	cache            SummaryCache
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
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

// WithSummaryCache caches the library summary.
func WithSummaryCache(cache SummaryCache) Option {
	return func(s *Service) error {
		s.cache = cache
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

// WithMetrics sets the metrics collector.
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
		store: store,
		clock: lending.SystemClock{},
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Service{}, err
		}
	}

	return s, nil
}

// MostBorrowedBooks ranks the books by how often they were borrowed, returned loans included.
// topN must be within MinTopN..MaxTopN.
func (s Service) MostBorrowedBooks(ctx context.Context, topN int) (books []MostBorrowedBook, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeMostBorrowedBooks)
	defer func() { observer.finish(err) }()

	if err = ValidateTopN(topN); err != nil {
		return nil, err
	}

	loans, err := s.store.AllLoans(lending.WithEventualConsistency(ctx))
	if err != nil {
		return nil, err
	}

	return s.enrich(ctx, MostBorrowed(loans, topN))
}

// AverageLoanDuration is the mean duration of returned loans in days, rounded to two decimals.
func (s Service) AverageLoanDuration(ctx context.Context) (_ float64, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeAverageLoanDuration)
	defer func() { observer.finish(err) }()

	loans, err := s.store.AllLoans(lending.WithEventualConsistency(ctx))
	if err != nil {
		return 0, err
	}

	return roundToTwoDecimals(AverageLoanDurationDays(loans)), nil
}

// LoanCounts splits all loans into active, completed and overdue.
func (s Service) LoanCounts(ctx context.Context) (_ LoanCounts, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeLoanCounts)
	defer func() { observer.finish(err) }()

	loans, err := s.store.AllLoans(lending.WithEventualConsistency(ctx))
	if err != nil {
		return LoanCounts{}, err
	}

	return CountLoans(loans, s.clock.Now()), nil
}

// LoanStatistics returns the loan counts together with the average loan duration.
func (s Service) LoanStatistics(ctx context.Context) (_ LoanStatistics, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeLoanStatistics)
	defer func() { observer.finish(err) }()

	loans, err := s.store.AllLoans(lending.WithEventualConsistency(ctx))
	if err != nil {
		return LoanStatistics{}, err
	}

	return loanStatisticsOf(loans, s.clock.Now()), nil
}

// LibrarySummary combines catalog totals, loan statistics and the SummaryTopN most borrowed books.
// Catalog and loans are read concurrently. With a SummaryCache, a cached summary is served
// as long as it lives and cache failures fall back to computing it.
func (s Service) LibrarySummary(ctx context.Context) (summary LibrarySummary, err error) {
	ctx, observer := s.startQuery(ctx, queryTypeLibrarySummary)
	defer func() { observer.finish(err) }()

	if s.cache != nil {
		cached, found, loadErr := s.cache.Load(ctx)
		switch {
		case loadErr != nil:
			s.logWarn(ctx, logMsgCacheLoadFailed, logAttrError, loadErr.Error())
		case found:
			s.logDebug(ctx, logMsgCacheHit)
			return cached, nil
		}
	}

	now := s.clock.Now()
	g, gctx := errgroup.WithContext(lending.WithEventualConsistency(ctx))

	g.Go(func() error {
		totals, totalsErr := s.store.CatalogTotals(gctx)
		summary.CatalogTotals = totals

		return totalsErr
	})

	g.Go(func() error {
		loans, loansErr := s.store.AllLoans(gctx)
		if loansErr != nil {
			return loansErr
		}

		summary.LoanStatistics = loanStatisticsOf(loans, now)
		summary.UniqueBorrowers = DistinctMembers(loans)

		var enrichErr error
		summary.MostBorrowedBooks, enrichErr = s.enrich(gctx, MostBorrowed(loans, SummaryTopN))

		return enrichErr
	})

	if err = g.Wait(); err != nil {
		return LibrarySummary{}, err
	}

	summary.GeneratedAt = lending.ToTimestamp(now)

	if s.cache != nil {
		if saveErr := s.cache.Save(ctx, summary); saveErr != nil {
			s.logWarn(ctx, logMsgCacheSaveFailed, logAttrError, saveErr.Error())
		}
	}

	return summary, nil
}

func loanStatisticsOf(loans []lending.Loan, now time.Time) LoanStatistics {
	return LoanStatistics{
		LoanCounts:              CountLoans(loans, now),
		AverageLoanDurationDays: roundToTwoDecimals(AverageLoanDurationDays(loans)),
	}
}

// enrich attaches title, ISBN and author to a ranking. Books that vanished meanwhile keep only their id.
func (s Service) enrich(ctx context.Context, ranking []BorrowCount) ([]MostBorrowedBook, error) {
	books := make([]MostBorrowedBook, 0, len(ranking))
	if len(ranking) == 0 {
		return books, nil
	}

	ids := make([]lending.BookID, 0, len(ranking))
	for _, entry := range ranking {
		ids = append(ids, entry.BookID)
	}

	details, err := s.store.BooksWithAuthors(lending.WithEventualConsistency(ctx), ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[lending.BookID]lending.BookWithAuthor, len(details))
	for _, detail := range details {
		byID[detail.ID] = detail
	}

	for _, entry := range ranking {
		book := MostBorrowedBook{BookID: entry.BookID, BorrowCount: entry.Count}

		if detail, ok := byID[entry.BookID]; ok {
			book.Title = detail.Title
			book.ISBN = detail.ISBN
			book.AuthorID = detail.AuthorID
			book.AuthorName = detail.AuthorName
		}

		books = append(books, book)
	}

	return books, nil
}
