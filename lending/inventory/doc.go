// Package inventory provides the Ledger, the sole authority for mutating a book's
// available-copy count.
//
// The Ledger never reads then writes. Reserving a copy is one conditional decrement,
// releasing one is one conditional increment, both executed on the caller's unit of
// work so that the count change commits or rolls back together with the loan.
//
// A release that would push the count above the total is an invariant violation.
// It is logged at error level, counted, and returned as a lending.InvariantViolationError;
// the count is never clamped.
package inventory
