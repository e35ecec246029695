package statistics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine"
	"github.com/AntonStoeckl/library-lending-go/lending/statistics"
	"github.com/AntonStoeckl/library-lending-go/lending/summarycache"
	"github.com/AntonStoeckl/library-lending-go/testutil/lendingtest"
)

type library struct {
	store sqlengine.Store
	clock *lendingtest.FakeClock
	loans loans.Service
	books []lending.Book
}

// givenLibrary lends book 0 three times (two returned after 2 and 4 days),
// book 1 three times and book 2 once.
func givenLibrary(t *testing.T) library {
	t.Helper()

	ctx := context.Background()
	store := lendingtest.GivenSQLiteStore(t)
	clock := lendingtest.NewFakeClock(lendingtest.FixtureTime())

	loanService, err := loans.NewService(store, loans.WithClock(clock))
	require.NoError(t, err, "error in arranging test data")

	author := lendingtest.GivenAuthor(t, store)
	lib := library{store: store, clock: clock, loans: loanService}

	for _, title := range []string{"The Dispossessed", "The Lathe of Heaven", "Always Coming Home"} {
		lib.books = append(lib.books, lendingtest.GivenBookOf(t, store, author, title, 5))
	}

	lend := func(book lending.Book, member string) lending.LoanView {
		view, lendErr := loanService.CreateLoan(ctx, loans.BuildCreateLoanCommand(book.ID, member))
		require.NoError(t, lendErr, "error in arranging test data")

		return view
	}

	giveBack := func(view lending.LoanView) {
		_, returnErr := loanService.ReturnLoan(ctx, loans.BuildReturnLoanCommand(view.ID))
		require.NoError(t, returnErr, "error in arranging test data")
	}

	first := lend(lib.books[0], "Alice")
	second := lend(lib.books[0], "Bob")
	lend(lib.books[0], "Carol")
	lend(lib.books[1], "Alice")
	lend(lib.books[1], "Dave")
	lend(lib.books[1], "Bob")
	lend(lib.books[2], "Alice")

	clock.Advance(2 * day)
	giveBack(first)
	clock.Advance(2 * day)
	giveBack(second)

	return lib
}

func givenStatisticsService(t *testing.T, lib library, options ...statistics.Option) statistics.Service {
	t.Helper()

	service, err := statistics.NewService(lib.store, append([]statistics.Option{statistics.WithClock(lib.clock)}, options...)...)
	require.NoError(t, err, "error in arranging test data")

	return service
}

func Test_Service_MostBorrowedBooks(t *testing.T) {
	// arrange
	lib := givenLibrary(t)
	service := givenStatisticsService(t, lib)

	// act
	books, err := service.MostBorrowedBooks(context.Background(), 2)

	// assert
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, lib.books[0].ID, books[0].BookID)
	assert.Equal(t, lib.books[1].ID, books[1].BookID)
	assert.Equal(t, 3, books[0].BorrowCount)
	assert.Equal(t, "The Dispossessed", books[0].Title)
	assert.Equal(t, "Ursula Le Guin", books[0].AuthorName)
	assert.Equal(t, lib.books[0].ISBN, books[0].ISBN)
}

func Test_Service_MostBorrowedBooks_RejectsTopN(t *testing.T) {
	service := givenStatisticsService(t, givenLibrary(t))

	for _, topN := range []int{0, -1, 101} {
		_, err := service.MostBorrowedBooks(context.Background(), topN)
		assert.ErrorIs(t, err, lending.ErrInvalidTopN, "topN=%d", topN)
	}
}

func Test_Service_LoanStatistics(t *testing.T) {
	// arrange
	lib := givenLibrary(t)
	service := givenStatisticsService(t, lib)
	lib.clock.Advance(11*day + time.Hour)

	// act
	stats, err := service.LoanStatistics(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, statistics.LoanCounts{Total: 7, Active: 5, Completed: 2, Overdue: 5}, stats.LoanCounts)
	assert.InDelta(t, 3.0, stats.AverageLoanDurationDays, 1e-9)

	average, err := service.AverageLoanDuration(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, average, 1e-9)
}

func Test_Service_AverageLoanDuration_NoReturnsYet(t *testing.T) {
	store := lendingtest.GivenSQLiteStore(t)
	service, err := statistics.NewService(store)
	require.NoError(t, err)

	average, err := service.AverageLoanDuration(context.Background())

	require.NoError(t, err)
	assert.Zero(t, average)
}

func Test_Service_LibrarySummary(t *testing.T) {
	// arrange
	lib := givenLibrary(t)
	service := givenStatisticsService(t, lib)

	// act
	summary, err := service.LibrarySummary(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Books)
	assert.Equal(t, 1, summary.Authors)
	assert.Equal(t, 15-5, summary.AvailableCopies)
	assert.Equal(t, 7, summary.LoanStatistics.Total)
	assert.Equal(t, 4, summary.UniqueBorrowers)
	assert.Len(t, summary.MostBorrowedBooks, 3)
	assert.Equal(t, lib.clock.Now(), summary.GeneratedAt)
}

func Test_Service_LibrarySummary_UsesCache(t *testing.T) {
	// arrange
	lib := givenLibrary(t)
	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	cache, err := summarycache.New(client, summarycache.WithTTL(time.Minute))
	require.NoError(t, err)

	logger, logSpy := lendingtest.NewLoggerSpy()
	service := givenStatisticsService(t, lib, statistics.WithSummaryCache(cache), statistics.WithLogger(logger))
	ctx := context.Background()

	first, err := service.LibrarySummary(ctx)
	require.NoError(t, err)

	// act: lend once more, the cached summary must not see it yet
	_, err = lib.loans.CreateLoan(ctx, loans.BuildCreateLoanCommand(lib.books[2].ID, "Erin"))
	require.NoError(t, err)

	second, err := service.LibrarySummary(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, first, second)
	assert.True(t, logSpy.HasDebugLog("library summary served from cache").Assert())

	require.NoError(t, cache.Invalidate(ctx))

	third, err := service.LibrarySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, third.LoanStatistics.Total)
}

type brokenCache struct{}

func (brokenCache) Load(context.Context) (statistics.LibrarySummary, bool, error) {
	return statistics.LibrarySummary{}, false, errors.New("connection refused")
}

func (brokenCache) Save(context.Context, statistics.LibrarySummary) error {
	return errors.New("connection refused")
}

func Test_Service_LibrarySummary_CacheFailureFallsBack(t *testing.T) {
	// arrange
	lib := givenLibrary(t)
	logger, logSpy := lendingtest.NewLoggerSpy()
	service := givenStatisticsService(t, lib, statistics.WithSummaryCache(brokenCache{}), statistics.WithLogger(logger))

	// act
	summary, err := service.LibrarySummary(context.Background())

	// assert
	require.NoError(t, err, "Should compute the summary when the cache is down")
	assert.Equal(t, 7, summary.LoanStatistics.Total)
	assert.True(t, logSpy.HasWarnLog("library summary cache load failed").Assert())
	assert.True(t, logSpy.HasWarnLog("library summary cache save failed").Assert())
}

type failingStore struct {
	statistics.Store
}

func (failingStore) AllLoans(context.Context) ([]lending.Loan, error) {
	return nil, lending.ErrStoreUnavailable
}

func (failingStore) CatalogTotals(context.Context) (lending.CatalogTotals, error) {
	return lending.CatalogTotals{Books: 1}, nil
}

func Test_Service_LibrarySummary_StoreFailure(t *testing.T) {
	// arrange
	metrics := lendingtest.NewMetricsCollectorSpy()
	service, err := statistics.NewService(failingStore{}, statistics.WithMetrics(metrics))
	require.NoError(t, err)

	// act
	summary, err := service.LibrarySummary(context.Background())

	// assert
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
	assert.Zero(t, summary.Books, "Should not return a partial summary")
	assert.True(t, metrics.HasCounterRecord(statistics.QueryCallsMetric).WithStatus(lending.StatusError).Assert())
}

func Test_NewService_RejectsNilStore(t *testing.T) {
	_, err := statistics.NewService(nil)
	assert.ErrorIs(t, err, lending.ErrNilStore)
}
