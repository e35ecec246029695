package loans_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/testutil/lendingtest"
)

// flakyStore fails the first failures units of work with failWith, then delegates.
type flakyStore struct {
	loans.Store
	failures int32
	failWith error
	calls    atomic.Int32
}

func (s *flakyStore) WithinUnitOfWork(ctx context.Context, fn lending.UnitOfWorkFunc) error {
	if s.calls.Add(1) <= s.failures {
		return s.failWith
	}

	return s.Store.WithinUnitOfWork(ctx, fn)
}

// blockingStore never finishes a unit of work before its context ends.
type blockingStore struct {
	loans.Store
	calls atomic.Int32
}

func (s *blockingStore) WithinUnitOfWork(ctx context.Context, _ lending.UnitOfWorkFunc) error {
	s.calls.Add(1)
	<-ctx.Done()

	return ctx.Err()
}

func Test_RetryWithExponentialBackoff_RetriesTransientErrors(t *testing.T) {
	// arrange
	calls := 0
	fn := func(context.Context) error {
		calls++
		if calls < 3 {
			return lending.ErrConcurrencyConflict
		}

		return nil
	}

	// act
	metrics, err := loans.RetryWithExponentialBackoff(context.Background(), fn,
		loans.WithMaxAttempts(3), loans.WithBaseDelay(time.Millisecond), loans.WithJitterFactor(0))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Attempts)
	assert.Equal(t, 3*time.Millisecond, metrics.TotalDelay, "Should double the delay per retry")
	assert.Equal(t, "none", metrics.LastErrorType)
	assert.False(t, metrics.RetriesExhausted)
}

func Test_RetryWithExponentialBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	fn := func(context.Context) error {
		calls++
		return lending.ErrNoCopiesAvailable
	}

	metrics, err := loans.RetryWithExponentialBackoff(context.Background(), fn, loans.WithMaxAttempts(5))

	assert.ErrorIs(t, err, lending.ErrNoCopiesAvailable)
	assert.Equal(t, 1, calls, "Should not retry a business rule outcome")
	assert.Equal(t, "business_rule", metrics.LastErrorType)
}

func Test_RetryWithExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	// arrange
	spy := lendingtest.NewMetricsCollectorSpy()
	fn := func(context.Context) error { return lending.ErrStoreUnavailable }

	// act
	metrics, err := loans.RetryWithExponentialBackoff(context.Background(), fn,
		loans.WithMaxAttempts(2), loans.WithBaseDelay(0), loans.WithRetryMetrics(spy, "CreateLoan"))

	// assert
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
	assert.Equal(t, 2, metrics.Attempts)
	assert.True(t, metrics.RetriesExhausted)
	assert.Equal(t, 1, spy.HasCounterRecord(loans.CommandHandlerRetriesMetric).
		WithLabel("command_type", "CreateLoan").
		WithLabel("error_type", "store_unavailable").
		Count())
	assert.True(t, spy.HasCounterRecord(loans.CommandHandlerMaxRetriesReachedMetric).Assert())
	assert.True(t, spy.HasDurationRecord(loans.CommandHandlerRetryDelayMetric).Assert())
}

func Test_RetryWithExponentialBackoff_StopsWhenCallerCancels(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fn := func(context.Context) error {
		calls++
		cancel()

		return lending.ErrConcurrencyConflict
	}

	// act
	_, err := loans.RetryWithExponentialBackoff(ctx, fn, loans.WithMaxAttempts(5))

	// assert
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func Test_RetryOptions_Reject(t *testing.T) {
	noop := func(context.Context) error { return nil }
	ctx := context.Background()

	testCases := []struct {
		name     string
		option   loans.RetryOption
		expected error
	}{
		{"zero attempts", loans.WithMaxAttempts(0), loans.ErrInvalidMaxAttempts},
		{"negative delay", loans.WithBaseDelay(-time.Millisecond), loans.ErrNegativeBaseDelay},
		{"jitter above one", loans.WithJitterFactor(1.5), loans.ErrInvalidJitterFactor},
		{"nil collector", loans.WithRetryMetrics(nil, "CreateLoan"), loans.ErrNilMetricsCollector},
		{"empty command type", loans.WithRetryMetrics(lendingtest.NewMetricsCollectorSpy(), ""), loans.ErrEmptyCommandType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loans.RetryWithExponentialBackoff(ctx, noop, tc.option)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func Test_Service_CreateLoan_RetriesConcurrencyConflict(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := lendingtest.GivenSQLiteStore(t)
	book := lendingtest.GivenBook(t, store, 1)
	flaky := &flakyStore{Store: store, failures: 1, failWith: lending.ErrConcurrencyConflict}
	metrics := lendingtest.NewMetricsCollectorSpy()

	service, err := loans.NewService(flaky,
		loans.WithMetrics(metrics),
		loans.WithRetryOptions(loans.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)

	// act
	loan, err := service.CreateLoan(ctx, loans.BuildCreateLoanCommand(book.ID, "Alice"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Equal(t, "Alice", loan.MemberName)
	assert.True(t, metrics.HasCounterRecord(loans.CommandHandlerRetriesMetric).
		WithLabel("error_type", "concurrency_conflict").Assert())

	refreshed, err := store.BookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.AvailableCopies, "Should reserve exactly one copy across attempts")
}

func Test_Service_CreateLoan_GivesUpAfterDefaultRetry(t *testing.T) {
	// arrange
	store := lendingtest.GivenSQLiteStore(t)
	book := lendingtest.GivenBook(t, store, 1)
	flaky := &flakyStore{Store: store, failures: 10, failWith: lending.ErrConcurrencyConflict}

	service, err := loans.NewService(flaky, loans.WithRetryOptions(loans.WithBaseDelay(0)))
	require.NoError(t, err)

	// act
	_, err = service.CreateLoan(context.Background(), loans.BuildCreateLoanCommand(book.ID, "Alice"))

	// assert
	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.Equal(t, int32(2), flaky.calls.Load(), "Should retry once by default")
}

func Test_Service_ReturnLoan_UnitOfWorkTimeout(t *testing.T) {
	// arrange
	store := lendingtest.GivenSQLiteStore(t)
	blocking := &blockingStore{Store: store}

	service, err := loans.NewService(blocking,
		loans.WithUnitOfWorkTimeout(20*time.Millisecond),
		loans.WithRetryOptions(loans.WithMaxAttempts(1)),
	)
	require.NoError(t, err)

	// act
	_, err = service.ReturnLoan(context.Background(), loans.BuildReturnLoanCommand(1))

	// assert
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), blocking.calls.Load())
}

func Test_Service_CreateLoan_CallerCancellationIsNotRetried(t *testing.T) {
	// arrange
	store := lendingtest.GivenSQLiteStore(t)
	book := lendingtest.GivenBook(t, store, 1)
	blocking := &blockingStore{Store: store}

	service, err := loans.NewService(blocking, loans.WithRetryOptions(loans.WithMaxAttempts(3)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// act
	_, err = service.CreateLoan(ctx, loans.BuildCreateLoanCommand(book.ID, "Alice"))

	// assert
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, lending.ErrStoreUnavailable), "Should not blame the store for the caller's deadline")
	assert.Equal(t, int32(1), blocking.calls.Load())
}
