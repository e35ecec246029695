package sqlengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine/internal/adapters"
)

func authorColumns() []any {
	return []any{colID, colFirstName, colLastName, colDescription, colBirthYear}
}

func bookColumns(table string) []any {
	t := goqu.T(table)

	return []any{
		t.Col(colID),
		t.Col(colTitle),
		t.Col(colISBN),
		t.Col(colPublicationYear),
		t.Col(colTotalCopies),
		t.Col(colAvailableCopies),
		t.Col(colAuthorID),
	}
}

func scanAuthor(row rowScanner) (lending.Author, error) {
	var a lending.Author
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Description, &a.BirthYear)

	return a, err
}

func scanBook(row rowScanner) (lending.Book, error) {
	var b lending.Book
	err := row.Scan(&b.ID, &b.Title, &b.ISBN, &b.PublicationYear, &b.TotalCopies, &b.AvailableCopies, &b.AuthorID)

	return b, err
}

// CreateAuthor inserts an author and returns it with its assigned id.
func (s Store) CreateAuthor(ctx context.Context, author lending.Author) (_ lending.Author, err error) {
	ctx, observer := s.startOperation(ctx, operationCreateAuthor)
	defer func() { observer.finish(err) }()

	ds := s.insertInto(s.tables.authors).Rows(goqu.Record{
		colFirstName:   author.FirstName,
		colLastName:    author.LastName,
		colDescription: author.Description,
		colBirthYear:   author.BirthYear,
	})

	author.ID, err = s.insert(ctx, s.db, operationCreateAuthor, ds)
	if err != nil {
		return lending.Author{}, err
	}

	return author, nil
}

// AuthorByID returns lending.ErrAuthorNotFound when the author does not exist.
func (s Store) AuthorByID(ctx context.Context, authorID lending.AuthorID) (_ lending.Author, err error) {
	ctx, observer := s.startOperation(ctx, operationAuthorByID)
	defer func() { observer.finish(err) }()

	return s.authorByID(ctx, s.db, authorID)
}

func (s Store) authorByID(ctx context.Context, ex adapters.Executor, authorID lending.AuthorID) (lending.Author, error) {
	var (
		author lending.Author
		found  bool
	)

	ds := s.from(s.tables.authors).Select(authorColumns()...).Where(goqu.C(colID).Eq(authorID))

	err := s.query(ctx, ex, operationAuthorByID, ds, func(row rowScanner) error {
		var scanErr error
		author, scanErr = scanAuthor(row)
		found = true

		return scanErr
	})
	if err != nil {
		return lending.Author{}, err
	}

	if !found {
		return lending.Author{}, lending.ErrAuthorNotFound
	}

	return author, nil
}

// DeleteAuthor removes an author that owns no books.
// It fails with lending.ErrAuthorHasBooks otherwise; books are never cascaded.
func (s Store) DeleteAuthor(ctx context.Context, authorID lending.AuthorID) (err error) {
	ctx, observer := s.startOperation(ctx, operationDeleteAuthor)
	defer func() { observer.finish(err) }()

	return s.transact(ctx, func(tx adapters.DBTx) error {
		if _, err := s.authorByID(ctx, tx, authorID); err != nil {
			return err
		}

		ownedBooks, err := s.count(
			ctx, tx, operationDeleteAuthor,
			s.from(s.tables.books).Select(goqu.COUNT(goqu.Star())).Where(goqu.C(colAuthorID).Eq(authorID)),
		)
		if err != nil {
			return err
		}

		if ownedBooks > 0 {
			return lending.ErrAuthorHasBooks
		}

		if _, _, err = s.exec(ctx, tx, operationDeleteAuthor, s.deleteFrom(s.tables.authors).Where(goqu.C(colID).Eq(authorID))); err != nil {
			return err
		}

		s.logOperation(ctx, operationDeleteAuthor, logAttrAuthorID, authorID)

		return nil
	})
}

// CreateBook inserts a book with all of its copies available.
func (s Store) CreateBook(ctx context.Context, book lending.Book) (_ lending.Book, err error) {
	ctx, observer := s.startOperation(ctx, operationCreateBook)
	defer func() { observer.finish(err) }()

	if book.TotalCopies < 1 {
		return lending.Book{}, lending.ErrInvalidTotalCopies
	}

	book.AvailableCopies = book.TotalCopies

	err = s.transact(ctx, func(tx adapters.DBTx) error {
		if _, err := s.authorByID(ctx, tx, book.AuthorID); err != nil {
			return err
		}

		ds := s.insertInto(s.tables.books).Rows(goqu.Record{
			colTitle:           book.Title,
			colISBN:            book.ISBN,
			colPublicationYear: book.PublicationYear,
			colTotalCopies:     book.TotalCopies,
			colAvailableCopies: book.AvailableCopies,
			colAuthorID:        book.AuthorID,
		})

		var insertErr error
		book.ID, insertErr = s.insert(ctx, tx, operationCreateBook, ds)

		return insertErr
	})
	if err != nil {
		return lending.Book{}, err
	}

	return book, nil
}

// BookByID returns lending.ErrBookNotFound when the book does not exist.
func (s Store) BookByID(ctx context.Context, bookID lending.BookID) (_ lending.Book, err error) {
	ctx, observer := s.startOperation(ctx, operationBookByID)
	defer func() { observer.finish(err) }()

	return s.bookByID(ctx, s.db, bookID)
}

func (s Store) bookByID(ctx context.Context, ex adapters.Executor, bookID lending.BookID) (lending.Book, error) {
	return s.selectBook(ctx, ex, s.from(s.tables.books).Select(bookColumns(s.tables.books)...).Where(goqu.C(colID).Eq(bookID)))
}

// lockBookByID reads a book and, on postgres, holds its row lock until the transaction ends.
// sqlite transactions begun with _txlock=immediate already hold the database write lock.
func (s Store) lockBookByID(ctx context.Context, tx adapters.DBTx, bookID lending.BookID) (lending.Book, error) {
	ds := s.from(s.tables.books).Select(bookColumns(s.tables.books)...).Where(goqu.C(colID).Eq(bookID))
	if s.dialectName == DialectPostgres {
		ds = ds.ForUpdate(exp.Wait)
	}

	return s.selectBook(ctx, tx, ds)
}

func (s Store) selectBook(ctx context.Context, ex adapters.Executor, ds *goqu.SelectDataset) (lending.Book, error) {
	var (
		book  lending.Book
		found bool
	)

	err := s.query(ctx, ex, operationBookByID, ds, func(row rowScanner) error {
		var scanErr error
		book, scanErr = scanBook(row)
		found = true

		return scanErr
	})
	if err != nil {
		return lending.Book{}, err
	}

	if !found {
		return lending.Book{}, lending.ErrBookNotFound
	}

	return book, nil
}

// BooksByAuthor lists the books of an existing author ordered by id.
func (s Store) BooksByAuthor(ctx context.Context, authorID lending.AuthorID) (_ []lending.Book, err error) {
	ctx, observer := s.startOperation(ctx, operationBooksByAuthor)
	defer func() { observer.finish(err) }()

	if _, err = s.authorByID(ctx, s.db, authorID); err != nil {
		return nil, err
	}

	return s.selectBooks(
		ctx, operationBooksByAuthor,
		s.from(s.tables.books).
			Select(bookColumns(s.tables.books)...).
			Where(goqu.C(colAuthorID).Eq(authorID)).
			Order(goqu.C(colID).Asc()),
	)
}

// AllBooks lists every book ordered by id.
func (s Store) AllBooks(ctx context.Context) (_ []lending.Book, err error) {
	ctx, observer := s.startOperation(ctx, operationAllBooks)
	defer func() { observer.finish(err) }()

	return s.selectBooks(
		ctx, operationAllBooks,
		s.from(s.tables.books).Select(bookColumns(s.tables.books)...).Order(goqu.C(colID).Asc()),
	)
}

func (s Store) selectBooks(ctx context.Context, action string, ds *goqu.SelectDataset) ([]lending.Book, error) {
	books := make([]lending.Book, 0)

	err := s.query(ctx, s.db, action, ds, func(row rowScanner) error {
		book, scanErr := scanBook(row)
		books = append(books, book)

		return scanErr
	})
	if err != nil {
		return nil, err
	}

	return books, nil
}

// DeleteBook removes a book without active loans, together with its loan history.
// It fails with lending.ErrBookHasActiveLoans while copies are lent out.
func (s Store) DeleteBook(ctx context.Context, bookID lending.BookID) (err error) {
	ctx, observer := s.startOperation(ctx, operationDeleteBook)
	defer func() { observer.finish(err) }()

	return s.transact(ctx, func(tx adapters.DBTx) error {
		// The lock keeps a concurrent loan from slipping in between the count and the delete.
		if _, err := s.lockBookByID(ctx, tx, bookID); err != nil {
			return err
		}

		activeLoans, err := s.count(
			ctx, tx, operationDeleteBook,
			s.from(s.tables.loans).
				Select(goqu.COUNT(goqu.Star())).
				Where(goqu.C(colBookID).Eq(bookID), goqu.C(colReturnedAt).IsNull()),
		)
		if err != nil {
			return err
		}

		if activeLoans > 0 {
			return lending.ErrBookHasActiveLoans
		}

		if _, _, err = s.exec(ctx, tx, operationDeleteBook, s.deleteFrom(s.tables.loans).Where(goqu.C(colBookID).Eq(bookID))); err != nil {
			return err
		}

		if _, _, err = s.exec(ctx, tx, operationDeleteBook, s.deleteFrom(s.tables.books).Where(goqu.C(colID).Eq(bookID))); err != nil {
			return err
		}

		s.logOperation(ctx, operationDeleteBook, logAttrBookID, bookID)

		return nil
	})
}

// BookByISBN returns the book with the given normalized ISBN, the lowest id first when
// several books share it. It returns lending.ErrBookNotFound when there is none.
func (s Store) BookByISBN(ctx context.Context, isbn string) (_ lending.Book, err error) {
	ctx, observer := s.startOperation(ctx, operationBookByISBN)
	defer func() { observer.finish(err) }()

	books, err := s.selectBooks(
		ctx, operationBookByISBN,
		s.from(s.tables.books).
			Select(bookColumns(s.tables.books)...).
			Where(goqu.C(colISBN).Eq(isbn)).
			Order(goqu.C(colID).Asc()).
			Limit(1),
	)
	if err != nil {
		return lending.Book{}, err
	}

	if len(books) == 0 {
		return lending.Book{}, lending.ErrBookNotFound
	}

	return books[0], nil
}

// UpdateBook changes the details and the total copies of a book and returns it as stored.
// A changed total shifts the available copies by the same amount, so the copies on loan
// stay on loan. A total below the copies on loan fails with lending.ErrTotalBelowOnLoan.
func (s Store) UpdateBook(ctx context.Context, book lending.Book) (_ lending.Book, err error) {
	ctx, observer := s.startOperation(ctx, operationUpdateBook)
	defer func() { observer.finish(err) }()

	if book.TotalCopies < 1 {
		return lending.Book{}, lending.ErrInvalidTotalCopies
	}

	var updated lending.Book

	err = s.transact(ctx, func(tx adapters.DBTx) error {
		if _, err := s.authorByID(ctx, tx, book.AuthorID); err != nil {
			return err
		}

		ds := s.update(s.tables.books).
			Set(goqu.Record{
				colTitle:           book.Title,
				colISBN:            book.ISBN,
				colPublicationYear: book.PublicationYear,
				colAuthorID:        book.AuthorID,
				colTotalCopies:     book.TotalCopies,
				colAvailableCopies: goqu.L(colAvailableCopies+" + (? - "+colTotalCopies+")", book.TotalCopies),
			}).
			Where(
				goqu.C(colID).Eq(book.ID),
				goqu.L(colTotalCopies+" - "+colAvailableCopies+" <= ?", book.TotalCopies),
			)

		_, rowsAffected, err := s.exec(ctx, tx, operationUpdateBook, ds)
		if err != nil {
			return err
		}

		if rowsAffected == 0 {
			if _, err = s.bookByID(ctx, tx, book.ID); err != nil {
				return err
			}

			return lending.ErrTotalBelowOnLoan
		}

		updated, err = s.bookByID(ctx, tx, book.ID)
		if err != nil {
			return err
		}

		s.logOperation(ctx, operationUpdateBook, logAttrBookID, book.ID)

		return nil
	})
	if err != nil {
		return lending.Book{}, err
	}

	return updated, nil
}

// decrementAvailableCopies takes one copy only while at least one is available.
func (s Store) decrementAvailableCopies(ctx context.Context, ex adapters.Executor, bookID lending.BookID) (bool, error) {
	ds := s.update(s.tables.books).
		Set(goqu.Record{colAvailableCopies: goqu.L(colAvailableCopies + " - 1")}).
		Where(goqu.C(colID).Eq(bookID), goqu.C(colAvailableCopies).Gt(0))

	_, rowsAffected, err := s.exec(ctx, ex, "decrement_available_copies", ds)

	return rowsAffected == 1, err
}

// incrementAvailableCopies gives one copy back only while below the total.
func (s Store) incrementAvailableCopies(ctx context.Context, ex adapters.Executor, bookID lending.BookID) (bool, error) {
	ds := s.update(s.tables.books).
		Set(goqu.Record{colAvailableCopies: goqu.L(colAvailableCopies + " + 1")}).
		Where(goqu.C(colID).Eq(bookID), goqu.C(colAvailableCopies).Lt(goqu.C(colTotalCopies)))

	_, rowsAffected, err := s.exec(ctx, ex, "increment_available_copies", ds)

	return rowsAffected == 1, err
}
