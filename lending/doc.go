// Package lending provides the core types of the library lending system.
//
// It defines the catalog entities (Book, Author), the Loan with its derived
// overdue predicate, the error taxonomy shared by all components, the injected
// Clock, and the dependency-free observability interfaces used by the store,
// the inventory ledger and the services.
//
// The components built on top of it are:
//   - inventory: the Ledger, the sole authority for available-copy counts
//   - loans: the loan lifecycle (create, return, retrieval)
//   - statistics: read-only rollups over the loan history
//   - sqlengine: the transactional relational store (postgres or sqlite)
//
// Common usage pattern:
//
//	store, err := sqlengine.NewStoreFromPGXPool(pool, sqlengine.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//
//	service, err := loans.NewService(store, loans.WithClock(lending.SystemClock{}))
//	loan, err := service.CreateLoan(ctx, loans.BuildCreateLoanCommand(bookID, "Alice"))
//	if errors.Is(err, lending.ErrNoCopiesAvailable) {
//		// business outcome, not a failure
//	}
package lending
