package sqlengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// ActiveLoanCounts returns the number of active loans per book. Books without any are absent.
func (s Store) ActiveLoanCounts(ctx context.Context) (_ map[lending.BookID]int, err error) {
	ctx, observer := s.startOperation(ctx, operationActiveLoanCounts)
	defer func() { observer.finish(err) }()

	counts := make(map[lending.BookID]int)

	ds := s.from(s.tables.loans).
		Select(goqu.C(colBookID), goqu.COUNT(goqu.Star())).
		Where(goqu.C(colReturnedAt).IsNull()).
		GroupBy(goqu.C(colBookID))

	err = s.query(ctx, s.db, operationActiveLoanCounts, ds, func(row rowScanner) error {
		var (
			bookID lending.BookID
			count  int64
		)

		if scanErr := row.Scan(&bookID, &count); scanErr != nil {
			return scanErr
		}

		counts[bookID] = int(count)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}

// BooksWithAuthors returns the requested books joined with their author names.
// Unknown ids are skipped.
func (s Store) BooksWithAuthors(ctx context.Context, bookIDs []lending.BookID) (_ []lending.BookWithAuthor, err error) {
	ctx, observer := s.startOperation(ctx, operationBooksWithAuthors)
	defer func() { observer.finish(err) }()

	result := make([]lending.BookWithAuthor, 0, len(bookIDs))
	if len(bookIDs) == 0 {
		return result, nil
	}

	books := goqu.T(s.tables.books)
	authors := goqu.T(s.tables.authors)

	columns := append(bookColumns(s.tables.books), authors.Col(colFirstName), authors.Col(colLastName))

	ds := s.from(s.tables.books).
		Select(columns...).
		Join(authors, goqu.On(books.Col(colAuthorID).Eq(authors.Col(colID)))).
		Where(books.Col(colID).In(bookIDs)).
		Order(books.Col(colID).Asc())

	err = s.query(ctx, s.db, operationBooksWithAuthors, ds, func(row rowScanner) error {
		var (
			entry  lending.BookWithAuthor
			author lending.Author
		)

		scanErr := row.Scan(
			&entry.ID, &entry.Title, &entry.ISBN, &entry.PublicationYear,
			&entry.TotalCopies, &entry.AvailableCopies, &entry.AuthorID,
			&author.FirstName, &author.LastName,
		)
		if scanErr != nil {
			return scanErr
		}

		entry.AuthorName = author.FullName()
		result = append(result, entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CatalogTotals counts books and authors and sums the available copies.
// The three values come from independent statements.
func (s Store) CatalogTotals(ctx context.Context) (_ lending.CatalogTotals, err error) {
	ctx, observer := s.startOperation(ctx, operationCatalogTotals)
	defer func() { observer.finish(err) }()

	var totals lending.CatalogTotals

	totals.Books, err = s.count(ctx, s.db, operationCatalogTotals, s.from(s.tables.books).Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return lending.CatalogTotals{}, err
	}

	totals.Authors, err = s.count(ctx, s.db, operationCatalogTotals, s.from(s.tables.authors).Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return lending.CatalogTotals{}, err
	}

	totals.AvailableCopies, err = s.count(
		ctx, s.db, operationCatalogTotals,
		s.from(s.tables.books).Select(goqu.COALESCE(goqu.SUM(colAvailableCopies), goqu.L("0"))),
	)
	if err != nil {
		return lending.CatalogTotals{}, err
	}

	return totals, nil
}
