package httpapi

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error codes of the error envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidJSON       = "INVALID_JSON"
	CodeNotFound          = "NOT_FOUND"
	CodeNoCopiesAvailable = "NO_COPIES_AVAILABLE"
	CodeAlreadyReturned   = "LOAN_ALREADY_RETURNED"
	CodeAuthorHasBooks    = "AUTHOR_HAS_BOOKS"
	CodeBookHasLoans      = "BOOK_HAS_ACTIVE_LOANS"
	CodeTotalBelowOnLoan  = "TOTAL_BELOW_COPIES_ON_LOAN"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorResponse struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// mapError translates a lending error into status, code and a message safe to show.
func mapError(err error) (int, string, string) {
	switch {
	case lending.IsValidation(err):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case lending.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, lending.ErrNoCopiesAvailable):
		return http.StatusConflict, CodeNoCopiesAvailable, err.Error()
	case errors.Is(err, lending.ErrAlreadyReturned):
		return http.StatusConflict, CodeAlreadyReturned, err.Error()
	case errors.Is(err, lending.ErrAuthorHasBooks):
		return http.StatusConflict, CodeAuthorHasBooks, err.Error()
	case errors.Is(err, lending.ErrBookHasActiveLoans):
		return http.StatusConflict, CodeBookHasLoans, err.Error()
	case errors.Is(err, lending.ErrTotalBelowOnLoan):
		return http.StatusConflict, CodeTotalBelowOnLoan, err.Error()
	case lending.IsBusinessRule(err):
		return http.StatusConflict, CodeConflict, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}
