// Package loans implements the loan lifecycle: creating a loan against a reserved copy,
// returning it, and the read paths over loans.
//
// CreateLoan and ReturnLoan each run as one unit of work on the store together with the
// inventory.Ledger call they depend on. Transient store failures retry the whole unit of
// work with bounded exponential backoff. Not-found and business rule outcomes
// (lending.ErrNoCopiesAvailable, lending.ErrAlreadyReturned) are returned unchanged.
//
// Every read path returns lending.LoanView values whose IsOverdue flag is evaluated
// against a single "now" from the injected lending.Clock.
package loans
