package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// fail logs and writes the error envelope for err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, message := mapError(err)

	fields := []any{
		"operation", operation,
		"status_code", status,
		"error_code", code,
		"error", err.Error(),
		"request_id", requestIDFromContext(r.Context()),
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "http operation failed", fields...)
	} else {
		h.logger.WarnContext(r.Context(), "http operation failed", fields...)
	}

	writeError(w, r, status, code, message)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidJSON, "request body is not valid JSON")
		return false
	}

	return true
}

// pathID parses a positive int64 path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", lending.ErrInvalidInput, name)
	}

	return id, nil
}
