package sqlengine

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_classifyError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "pgx serialization failure", err: &pgconn.PgError{Code: "40001"}, expected: lending.ErrConcurrencyConflict},
		{name: "pgx deadlock", err: fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), expected: lending.ErrConcurrencyConflict},
		{name: "pq lock not available", err: &pq.Error{Code: "55P03"}, expected: lending.ErrConcurrencyConflict},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, expected: lending.ErrConcurrencyConflict},
		{name: "sqlite locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, expected: lending.ErrConcurrencyConflict},
		{name: "bad connection", err: driver.ErrBadConn, expected: lending.ErrStoreUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			err := classifyError(tc.err)

			// assert
			assert.ErrorIs(t, err, tc.expected, "Should classify the driver error as transient")
			assert.ErrorIs(t, err, tc.err, "Should keep the driver error")
		})
	}
}

func Test_classifyError_KeepsPermanentErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "sqlite constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}},
		{name: "canceled", err: context.Canceled},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			err := classifyError(tc.err)

			// assert
			assert.Equal(t, tc.err, err, "Should return the error unchanged")
			assert.False(t, lending.IsTransient(err), "Should not classify the error as transient")
		})
	}

	assert.NoError(t, classifyError(nil), "Should pass nil through")
}
