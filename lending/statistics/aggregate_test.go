package statistics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/statistics"
	"github.com/AntonStoeckl/library-lending-go/testutil/lendingtest"
)

const day = 24 * time.Hour

func loansOf(bookIDs ...lending.BookID) []lending.Loan {
	loans := make([]lending.Loan, 0, len(bookIDs))
	for i, bookID := range bookIDs {
		loans = append(loans, lending.BuildLoan(bookID, "member", lendingtest.FixtureTime().Add(time.Duration(i)*time.Hour)))
	}

	return loans
}

func returnedAfter(loan lending.Loan, d time.Duration) lending.Loan {
	returnedAt := loan.LoanDate.Add(d)
	loan.ReturnedAt = &returnedAt

	return loan
}

func Test_MostBorrowed_BreaksTiesByBookID(t *testing.T) {
	// arrange: C borrowed once, A and B three times each, interleaved
	const a, b, c = lending.BookID(1), lending.BookID(2), lending.BookID(3)
	loans := loansOf(b, c, a, b, a, b, a)

	// act
	for n := 0; n < 10; n++ {
		ranking := statistics.MostBorrowed(loans, 2)

		// assert
		assert.Equal(t, []statistics.BorrowCount{{BookID: a, Count: 3}, {BookID: b, Count: 3}}, ranking,
			"Should order equal counts by book id on every run")
	}
}

func Test_MostBorrowed_FewerBooksThanTopN(t *testing.T) {
	ranking := statistics.MostBorrowed(loansOf(7, 7, 3), 10)

	assert.Equal(t, []statistics.BorrowCount{{BookID: 7, Count: 2}, {BookID: 3, Count: 1}}, ranking)
	assert.Empty(t, statistics.MostBorrowed(nil, 10))
}

func Test_AverageLoanDurationDays(t *testing.T) {
	loans := loansOf(1, 1, 1)

	assert.Zero(t, statistics.AverageLoanDurationDays(loans), "Should be zero without returned loans")

	loans[0] = returnedAfter(loans[0], 2*day)
	loans[1] = returnedAfter(loans[1], 5*day)

	assert.InDelta(t, 3.5, statistics.AverageLoanDurationDays(loans), 1e-9, "Should ignore active loans")

	loans[2] = returnedAfter(loans[2], 12*time.Hour)

	assert.InDelta(t, 2.5, statistics.AverageLoanDurationDays(loans), 1e-9)
}

func Test_CountLoans(t *testing.T) {
	// arrange
	loans := loansOf(1, 2, 3)
	loans[0] = returnedAfter(loans[0], 20*day)
	now := loans[1].DueDate.Add(time.Minute)

	// act
	counts := statistics.CountLoans(loans, now)

	// assert
	assert.Equal(t, statistics.LoanCounts{Total: 3, Active: 2, Completed: 1, Overdue: 1}, counts,
		"Should count a loan returned late as completed, not overdue")
}

func Test_DistinctMembers(t *testing.T) {
	loans := []lending.Loan{
		lending.BuildLoan(1, "Alice", lendingtest.FixtureTime()),
		lending.BuildLoan(2, "Alice", lendingtest.FixtureTime()),
		lending.BuildLoan(2, "Bob", lendingtest.FixtureTime()),
	}

	assert.Equal(t, 2, statistics.DistinctMembers(loans))
	assert.Zero(t, statistics.DistinctMembers(nil))
}

func Test_TopN_Bounds(t *testing.T) {
	testCases := []struct {
		n     int
		valid bool
	}{
		{n: -5, valid: false},
		{n: 0, valid: false},
		{n: 1, valid: true},
		{n: 10, valid: true},
		{n: 100, valid: true},
		{n: 101, valid: false},
	}

	for _, tc := range testCases {
		err := statistics.ValidateTopN(tc.n)
		if tc.valid {
			assert.NoError(t, err, "n=%d", tc.n)
		} else {
			assert.ErrorIs(t, err, lending.ErrInvalidTopN, "n=%d", tc.n)
		}
	}
}
