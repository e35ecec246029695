package lending_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_ErrorClassification(t *testing.T) {
	testCases := []struct {
		err        error
		errorType  string
		status     string
		transient  bool
		invariants bool
	}{
		{err: nil, errorType: "none", status: lending.StatusSuccess},
		{err: lending.ErrEmptyMemberName, errorType: "validation", status: lending.StatusRejected},
		{err: fmt.Errorf("%w: title too long", lending.ErrInvalidInput), errorType: "validation", status: lending.StatusRejected},
		{err: lending.ErrBookNotFound, errorType: "not_found", status: lending.StatusRejected},
		{err: lending.ErrNoCopiesAvailable, errorType: "business_rule", status: lending.StatusRejected},
		{err: lending.ErrAlreadyReturned, errorType: "business_rule", status: lending.StatusRejected},
		{err: lending.ErrTotalBelowOnLoan, errorType: "business_rule", status: lending.StatusRejected},
		{
			err:        lending.InvariantViolationError{Kind: lending.ErrCapacityExceeded, BookID: 1},
			errorType:  "invariant_violation",
			status:     lending.StatusError,
			invariants: true,
		},
		{err: lending.ErrConcurrencyConflict, errorType: "concurrency_conflict", status: lending.StatusError, transient: true},
		{err: errors.Join(lending.ErrStoreUnavailable, context.DeadlineExceeded), errorType: "store_unavailable", status: lending.StatusTimeout, transient: true},
		{err: context.Canceled, errorType: "context_canceled", status: lending.StatusCanceled},
		{err: errors.New("boom"), errorType: "other", status: lending.StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.errorType, func(t *testing.T) {
			assert.Equal(t, tc.errorType, lending.ErrorType(tc.err))
			assert.Equal(t, tc.status, lending.StatusOf(tc.err))
			assert.Equal(t, tc.transient, lending.IsTransient(tc.err))
			assert.Equal(t, tc.invariants, lending.IsInvariantViolation(tc.err))
		})
	}
}

func Test_InvariantViolationError(t *testing.T) {
	// arrange
	violation := lending.InvariantViolationError{
		Kind:            lending.ErrStockMismatch,
		BookID:          4,
		LoanID:          9,
		AvailableCopies: 3,
		TotalCopies:     2,
		ActiveLoans:     1,
	}

	// act
	wrapped := fmt.Errorf("return loan: %w", violation)

	// assert
	assert.ErrorIs(t, wrapped, lending.ErrStockMismatch, "Should unwrap to its kind")
	assert.Equal(t,
		"available copies do not match active loans: book_id=4 available_copies=3 total_copies=2 loan_id=9 active_loans=1",
		violation.Error())

	var target lending.InvariantViolationError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, lending.BookID(4), target.BookID)
	assert.Contains(t, target.LogArgs(), "available_copies")
}
