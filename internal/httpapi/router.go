package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/inventory"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/lending/statistics"
)

// LoanService is what the loan endpoints need, implemented by loans.Service.
type LoanService interface {
	CreateLoan(ctx context.Context, command loans.CreateLoanCommand) (lending.LoanView, error)
	ReturnLoan(ctx context.Context, command loans.ReturnLoanCommand) (lending.LoanView, error)
	LoanByID(ctx context.Context, loanID lending.LoanID) (lending.LoanView, error)
	LoansByBook(ctx context.Context, bookID lending.BookID) ([]lending.LoanView, error)
	ActiveLoansByBook(ctx context.Context, bookID lending.BookID) ([]lending.LoanView, error)
	LoansByMember(ctx context.Context, memberName string) ([]lending.LoanView, error)
	ActiveLoans(ctx context.Context) ([]lending.LoanView, error)
	OverdueLoans(ctx context.Context) ([]lending.LoanView, error)
	Loans(ctx context.Context, filter string) ([]lending.LoanView, error)
}

// StatisticsService is what the statistics endpoints need, implemented by statistics.Service.
type StatisticsService interface {
	MostBorrowedBooks(ctx context.Context, topN int) ([]statistics.MostBorrowedBook, error)
	LoanStatistics(ctx context.Context) (statistics.LoanStatistics, error)
	LibrarySummary(ctx context.Context) (statistics.LibrarySummary, error)
}

// Catalog is what the author and book endpoints need, implemented by sqlengine.Store.
type Catalog interface {
	CreateAuthor(ctx context.Context, author lending.Author) (lending.Author, error)
	AuthorByID(ctx context.Context, authorID lending.AuthorID) (lending.Author, error)
	DeleteAuthor(ctx context.Context, authorID lending.AuthorID) error
	CreateBook(ctx context.Context, book lending.Book) (lending.Book, error)
	BookByID(ctx context.Context, bookID lending.BookID) (lending.Book, error)
	BookByISBN(ctx context.Context, isbn string) (lending.Book, error)
	UpdateBook(ctx context.Context, book lending.Book) (lending.Book, error)
	BooksByAuthor(ctx context.Context, authorID lending.AuthorID) ([]lending.Book, error)
	DeleteBook(ctx context.Context, bookID lending.BookID) error
}

// Ledger answers availability questions, implemented by inventory.Ledger.
type Ledger interface {
	BookAvailability(ctx context.Context, books inventory.BookReader, bookID lending.BookID) (inventory.Availability, error)
}

// Handler holds the HTTP endpoints.
type Handler struct {
	loans      LoanService
	statistics StatisticsService
	catalog    Catalog
	ledger     Ledger
	logger     *slog.Logger
}

// NewHandler creates a Handler. A nil logger falls back to slog.Default.
func NewHandler(
	loanService LoanService,
	statisticsService StatisticsService,
	catalog Catalog,
	ledger Ledger,
	logger *slog.Logger,
) *Handler {

	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		loans:      loanService,
		statistics: statisticsService,
		catalog:    catalog,
		ledger:     ledger,
		logger:     logger.With("module", "http", "layer", "adapter"),
	}
}

// NewRouter registers the routes and the middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CleanPath)
	r.Use(middleware.StripSlashes)
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok") })

	r.Route("/api", func(r chi.Router) {
		r.Route("/loans", func(r chi.Router) {
			r.Post("/", handler.createLoan)
			r.Get("/", handler.listLoans)
			r.Get("/active", handler.activeLoans)
			r.Get("/overdue", handler.overdueLoans)
			r.Get("/member", handler.loansByMember)
			r.Get("/{loanID}", handler.getLoan)
			r.Put("/{loanID}/return", handler.returnLoan)
		})

		r.Route("/books", func(r chi.Router) {
			r.Post("/", handler.createBook)
			r.Get("/isbn/{isbn}", handler.bookByISBN)
			r.Get("/{bookID}", handler.getBook)
			r.Put("/{bookID}", handler.updateBook)
			r.Delete("/{bookID}", handler.deleteBook)
			r.Get("/{bookID}/available", handler.bookAvailability)
			r.Get("/{bookID}/loans", handler.loansByBook)
			r.Get("/{bookID}/loans/active", handler.activeLoansByBook)
		})

		r.Route("/authors", func(r chi.Router) {
			r.Post("/", handler.createAuthor)
			r.Get("/{authorID}", handler.getAuthor)
			r.Delete("/{authorID}", handler.deleteAuthor)
			r.Get("/{authorID}/books", handler.booksByAuthor)
		})

		r.Route("/statistics", func(r chi.Router) {
			r.Get("/most-borrowed", handler.mostBorrowed)
			r.Get("/loans", handler.loanStatistics)
			r.Get("/library", handler.librarySummary)
		})
	})

	return r
}
