package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/isbn"
)

type createAuthorRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Description string `json:"description"`
	BirthYear   int    `json:"birthYear"`
}

// bookRequest is the body of both book creation and book update.
type bookRequest struct {
	Title           string           `json:"title"`
	ISBN            string           `json:"isbn"`
	PublicationYear int              `json:"publicationYear"`
	TotalCopies     int              `json:"totalCopies"`
	AuthorID        lending.AuthorID `json:"authorId"`
}

func (h *Handler) createAuthor(w http.ResponseWriter, r *http.Request) {
	var req createAuthorRequest
	if !h.decode(w, r, &req) {
		return
	}

	author := lending.Author{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Description: strings.TrimSpace(req.Description),
		BirthYear:   req.BirthYear,
	}

	if author.FullName() == "" {
		h.fail(w, r, "create_author", fmt.Errorf("%w: firstName or lastName is required", lending.ErrInvalidInput))
		return
	}

	author, err := h.catalog.CreateAuthor(r.Context(), author)
	if err != nil {
		h.fail(w, r, "create_author", err)
		return
	}

	writeSuccess(w, http.StatusCreated, author)
}

func (h *Handler) getAuthor(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "authorID")
	if err != nil {
		h.fail(w, r, "get_author", err)
		return
	}

	author, err := h.catalog.AuthorByID(r.Context(), authorID)
	if err != nil {
		h.fail(w, r, "get_author", err)
		return
	}

	writeSuccess(w, http.StatusOK, author)
}

func (h *Handler) deleteAuthor(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "authorID")
	if err == nil {
		err = h.catalog.DeleteAuthor(r.Context(), authorID)
	}

	if err != nil {
		h.fail(w, r, "delete_author", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) booksByAuthor(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "authorID")
	if err != nil {
		h.fail(w, r, "books_by_author", err)
		return
	}

	if _, err = h.catalog.AuthorByID(r.Context(), authorID); err != nil {
		h.fail(w, r, "books_by_author", err)
		return
	}

	books, err := h.catalog.BooksByAuthor(r.Context(), authorID)
	if err != nil {
		h.fail(w, r, "books_by_author", err)
		return
	}

	if books == nil {
		books = []lending.Book{}
	}

	writeSuccess(w, http.StatusOK, books)
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !h.decode(w, r, &req) {
		return
	}

	book, err := req.toBook()
	if err == nil {
		book, err = h.catalog.CreateBook(r.Context(), book)
	}

	if err != nil {
		h.fail(w, r, "create_book", err)
		return
	}

	writeSuccess(w, http.StatusCreated, book)
}

func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		h.fail(w, r, "update_book", err)
		return
	}

	var req bookRequest
	if !h.decode(w, r, &req) {
		return
	}

	book, err := req.toBook()
	if err == nil {
		book.ID = bookID
		book, err = h.catalog.UpdateBook(r.Context(), book)
	}

	if err != nil {
		h.fail(w, r, "update_book", err)
		return
	}

	writeSuccess(w, http.StatusOK, book)
}

// toBook normalizes the ISBN and validates the request.
func (req bookRequest) toBook() (lending.Book, error) {
	book := lending.Book{
		Title:           strings.TrimSpace(req.Title),
		ISBN:            isbn.Normalize(req.ISBN),
		PublicationYear: req.PublicationYear,
		TotalCopies:     req.TotalCopies,
		AuthorID:        req.AuthorID,
	}

	switch {
	case book.Title == "":
		return lending.Book{}, fmt.Errorf("%w: title is required", lending.ErrInvalidInput)
	case !isbn.Valid(book.ISBN):
		return lending.Book{}, lending.ErrInvalidISBN
	case book.TotalCopies < 1:
		return lending.Book{}, lending.ErrInvalidTotalCopies
	}

	return book, nil
}

func (h *Handler) bookByISBN(w http.ResponseWriter, r *http.Request) {
	value := isbn.Normalize(chi.URLParam(r, "isbn"))
	if !isbn.Valid(value) {
		h.fail(w, r, "book_by_isbn", lending.ErrInvalidISBN)
		return
	}

	book, err := h.catalog.BookByISBN(r.Context(), value)
	if err != nil {
		h.fail(w, r, "book_by_isbn", err)
		return
	}

	writeSuccess(w, http.StatusOK, book)
}

func (h *Handler) bookAvailability(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		h.fail(w, r, "book_availability", err)
		return
	}

	availability, err := h.ledger.BookAvailability(r.Context(), h.catalog, bookID)
	if err != nil {
		h.fail(w, r, "book_availability", err)
		return
	}

	writeSuccess(w, http.StatusOK, availability)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		h.fail(w, r, "get_book", err)
		return
	}

	book, err := h.catalog.BookByID(r.Context(), bookID)
	if err != nil {
		h.fail(w, r, "get_book", err)
		return
	}

	writeSuccess(w, http.StatusOK, book)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err == nil {
		err = h.catalog.DeleteBook(r.Context(), bookID)
	}

	if err != nil {
		h.fail(w, r, "delete_book", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
