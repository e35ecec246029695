package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/statistics"
)

func (h *Handler) mostBorrowed(w http.ResponseWriter, r *http.Request) {
	topN := statistics.DefaultTopN

	if raw := r.URL.Query().Get("topCount"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, "most_borrowed", fmt.Errorf("%w: topCount must be an integer", lending.ErrInvalidTopN))
			return
		}

		topN = parsed
	}

	books, err := h.statistics.MostBorrowedBooks(r.Context(), topN)
	if err != nil {
		h.fail(w, r, "most_borrowed", err)
		return
	}

	writeSuccess(w, http.StatusOK, books)
}

func (h *Handler) loanStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statistics.LoanStatistics(r.Context())
	if err != nil {
		h.fail(w, r, "loan_statistics", err)
		return
	}

	writeSuccess(w, http.StatusOK, stats)
}

func (h *Handler) librarySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.statistics.LibrarySummary(r.Context())
	if err != nil {
		h.fail(w, r, "library_summary", err)
		return
	}

	writeSuccess(w, http.StatusOK, summary)
}
