package statistics

import (
	"math"
	"sort"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	// DefaultTopN is the number of most-borrowed books returned when the caller does not ask for one.
	DefaultTopN = 10

	// MinTopN and MaxTopN bound the accepted top count.
	MinTopN = 1
	MaxTopN = 100

	// SummaryTopN is the number of most-borrowed books in the library summary.
	SummaryTopN = 5

	day = 24 * time.Hour
)

// BorrowCount is how often one book was borrowed, returned loans included.
type BorrowCount struct {
	BookID lending.BookID
	Count  int
}

// LoanCounts splits the loan history by state.
type LoanCounts struct {
	Total     int `json:"totalLoans"`
	Active    int `json:"activeLoans"`
	Completed int `json:"completedLoans"`
	Overdue   int `json:"overdueLoans"`
}

// ValidateTopN rejects a top count outside MinTopN..MaxTopN.
func ValidateTopN(n int) error {
	if n < MinTopN || n > MaxTopN {
		return lending.ErrInvalidTopN
	}

	return nil
}

// MostBorrowed counts loans per book and returns the topN books ordered by count descending,
// ties broken by book id ascending. topN must be positive.
func MostBorrowed(loans []lending.Loan, topN int) []BorrowCount {
	counts := make(map[lending.BookID]int)
	for _, loan := range loans {
		counts[loan.BookID]++
	}

	ranking := make([]BorrowCount, 0, len(counts))
	for bookID, count := range counts {
		ranking = append(ranking, BorrowCount{BookID: bookID, Count: count})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}

		return ranking[i].BookID < ranking[j].BookID
	})

	if len(ranking) > topN {
		ranking = ranking[:topN]
	}

	return ranking
}

// AverageLoanDurationDays is the mean of returnedAt - loanDate in days over returned loans.
// It is 0 when no loan was returned yet.
func AverageLoanDurationDays(loans []lending.Loan) float64 {
	var (
		total     time.Duration
		completed int
	)

	for _, loan := range loans {
		if duration, ok := loan.Duration(); ok {
			total += duration
			completed++
		}
	}

	if completed == 0 {
		return 0
	}

	return total.Seconds() / day.Seconds() / float64(completed)
}

// CountLoans splits loans into active, completed and overdue at now.
func CountLoans(loans []lending.Loan, now time.Time) LoanCounts {
	counts := LoanCounts{Total: len(loans)}

	for _, loan := range loans {
		if !loan.IsActive() {
			counts.Completed++
			continue
		}

		counts.Active++

		if loan.IsOverdue(now) {
			counts.Overdue++
		}
	}

	return counts
}

// DistinctMembers counts the members who ever borrowed a book.
func DistinctMembers(loans []lending.Loan) int {
	members := make(map[string]struct{})
	for _, loan := range loans {
		members[loan.MemberName] = struct{}{}
	}

	return len(members)
}

func roundToTwoDecimals(v float64) float64 {
	return math.Round(v*100) / 100
}
