package sqlengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/lendingtest"
)

const dayDuration = 24 * time.Hour

func ids(loans []lending.Loan) []lending.LoanID {
	result := make([]lending.LoanID, 0, len(loans))
	for _, loan := range loans {
		result = append(result, loan.ID)
	}

	return result
}

func Test_Store_LoanQueries(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		ctx := context.Background()
		t0 := lendingtest.FixtureTime()
		author := lendingtest.GivenAuthor(t, store)
		earthsea := lendingtest.GivenBookOf(t, store, author, "A Wizard of Earthsea", 3)
		dispossessed := lendingtest.GivenBookOf(t, store, author, "The Dispossessed", 3)

		first := givenLoan(t, store, earthsea.ID, "Alice", t0)
		second := givenLoan(t, store, earthsea.ID, "Bob", t0.Add(dayDuration))
		third := givenLoan(t, store, dispossessed.ID, "Alice", t0.Add(2*dayDuration))
		givenReturned(t, store, first, t0.Add(5*dayDuration))

		t.Run("loans by book newest first", func(t *testing.T) {
			loans, err := store.LoansByBook(ctx, earthsea.ID, false)
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{second.ID, first.ID}, ids(loans))
		})

		t.Run("active loans by book", func(t *testing.T) {
			loans, err := store.LoansByBook(ctx, earthsea.ID, true)
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{second.ID}, ids(loans))
		})

		t.Run("loans by member newest first", func(t *testing.T) {
			loans, err := store.LoansByMember(ctx, "Alice")
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{third.ID, first.ID}, ids(loans))

			loans, err = store.LoansByMember(ctx, "Nobody")
			require.NoError(t, err)
			assert.NotNil(t, loans)
			assert.Empty(t, loans)
		})

		t.Run("active loans by due date", func(t *testing.T) {
			loans, err := store.ActiveLoans(ctx)
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{second.ID, third.ID}, ids(loans))
		})

		t.Run("filter by title ignoring case", func(t *testing.T) {
			loans, err := store.Loans(ctx, "DISPOSSESSED")
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{third.ID}, ids(loans))
		})

		t.Run("filter by member", func(t *testing.T) {
			loans, err := store.Loans(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{second.ID}, ids(loans))
		})

		t.Run("blank filter lists everything", func(t *testing.T) {
			loans, err := store.Loans(ctx, "  ")
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{third.ID, second.ID, first.ID}, ids(loans))
		})

		t.Run("all loans", func(t *testing.T) {
			loans, err := store.AllLoans(ctx)
			require.NoError(t, err)
			assert.Equal(t, []lending.LoanID{first.ID, second.ID, third.ID}, ids(loans))
			require.NotNil(t, loans[0].ReturnedAt)
			assert.Equal(t, t0.Add(5*dayDuration), *loans[0].ReturnedAt)
		})
	})
}

func Test_Store_Aggregates(t *testing.T) {
	forEachDialect(t, func(t *testing.T, store sqlengine.Store) {
		// arrange
		ctx := context.Background()
		t0 := lendingtest.FixtureTime()
		author := lendingtest.GivenAuthor(t, store)
		earthsea := lendingtest.GivenBookOf(t, store, author, "A Wizard of Earthsea", 3)
		dispossessed := lendingtest.GivenBookOf(t, store, author, "The Dispossessed", 2)

		returned := givenLoan(t, store, earthsea.ID, "Alice", t0)
		givenReturned(t, store, returned, t0.Add(dayDuration))
		givenLoan(t, store, earthsea.ID, "Bob", t0)
		givenLoan(t, store, dispossessed.ID, "Carol", t0)

		t.Run("active loan counts", func(t *testing.T) {
			counts, err := store.ActiveLoanCounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[lending.BookID]int{earthsea.ID: 1, dispossessed.ID: 1}, counts)
		})

		t.Run("books with authors", func(t *testing.T) {
			books, err := store.BooksWithAuthors(ctx, []lending.BookID{dispossessed.ID, 4711, earthsea.ID})
			require.NoError(t, err)
			require.Len(t, books, 2, "Should skip unknown ids")
			assert.Equal(t, earthsea.ID, books[0].ID)
			assert.Equal(t, "The Dispossessed", books[1].Title)
			assert.Equal(t, "Ursula Le Guin", books[1].AuthorName)

			books, err = store.BooksWithAuthors(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, books)
		})

		t.Run("catalog totals", func(t *testing.T) {
			totals, err := store.CatalogTotals(ctx)
			require.NoError(t, err)
			assert.Equal(t, lending.CatalogTotals{Books: 2, Authors: 1, AvailableCopies: 3}, totals)
		})
	})
}

func Test_Store_CatalogTotals_Empty(t *testing.T) {
	totals, err := lendingtest.GivenSQLiteStore(t).CatalogTotals(context.Background())

	require.NoError(t, err)
	assert.Equal(t, lending.CatalogTotals{}, totals, "Should sum no copies to zero")
}
