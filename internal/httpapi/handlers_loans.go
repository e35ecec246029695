package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
)

type createLoanRequest struct {
	BookID     lending.BookID `json:"bookId"`
	MemberName string         `json:"memberName"`
}

func (h *Handler) createLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if !h.decode(w, r, &req) {
		return
	}

	loan, err := h.loans.CreateLoan(r.Context(), loans.BuildCreateLoanCommand(req.BookID, req.MemberName))
	if err != nil {
		h.fail(w, r, "create_loan", err)
		return
	}

	writeSuccess(w, http.StatusCreated, loan)
}

func (h *Handler) returnLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		h.fail(w, r, "return_loan", err)
		return
	}

	loan, err := h.loans.ReturnLoan(r.Context(), loans.BuildReturnLoanCommand(loanID))
	if err != nil {
		h.fail(w, r, "return_loan", err)
		return
	}

	writeSuccess(w, http.StatusOK, loan)
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "loanID")
	if err != nil {
		h.fail(w, r, "get_loan", err)
		return
	}

	loan, err := h.loans.LoanByID(r.Context(), loanID)
	if err != nil {
		h.fail(w, r, "get_loan", err)
		return
	}

	writeSuccess(w, http.StatusOK, loan)
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	views, err := h.loans.Loans(r.Context(), r.URL.Query().Get("filter"))
	h.writeLoans(w, r, "list_loans", views, err)
}

func (h *Handler) activeLoans(w http.ResponseWriter, r *http.Request) {
	views, err := h.loans.ActiveLoans(r.Context())
	h.writeLoans(w, r, "active_loans", views, err)
}

func (h *Handler) overdueLoans(w http.ResponseWriter, r *http.Request) {
	views, err := h.loans.OverdueLoans(r.Context())
	h.writeLoans(w, r, "overdue_loans", views, err)
}

func (h *Handler) loansByMember(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		h.fail(w, r, "loans_by_member", fmt.Errorf("%w: name query parameter is required", lending.ErrInvalidInput))
		return
	}

	views, err := h.loans.LoansByMember(r.Context(), name)
	h.writeLoans(w, r, "loans_by_member", views, err)
}

func (h *Handler) loansByBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		h.fail(w, r, "loans_by_book", err)
		return
	}

	views, err := h.loans.LoansByBook(r.Context(), bookID)
	h.writeLoans(w, r, "loans_by_book", views, err)
}

func (h *Handler) activeLoansByBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		h.fail(w, r, "active_loans_by_book", err)
		return
	}

	views, err := h.loans.ActiveLoansByBook(r.Context(), bookID)
	h.writeLoans(w, r, "active_loans_by_book", views, err)
}

func (h *Handler) writeLoans(w http.ResponseWriter, r *http.Request, operation string, views []lending.LoanView, err error) {
	if err != nil {
		h.fail(w, r, operation, err)
		return
	}

	if views == nil {
		views = []lending.LoanView{}
	}

	writeSuccess(w, http.StatusOK, views)
}
