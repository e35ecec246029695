// Package statistics computes read-only rollups over the loan history.
//
// The aggregation itself is a set of pure functions over loan rows (MostBorrowed,
// AverageLoanDurationDays, CountLoans, DistinctMembers). The Service loads the rows
// from the store with eventual consistency and composes them; it never writes.
package statistics
