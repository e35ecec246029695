package lending_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var loanDate = time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)

func Test_BuildLoan(t *testing.T) {
	// act
	loan := lending.BuildLoan(7, "Alice", loanDate.Add(123*time.Nanosecond))

	// assert
	assert.Equal(t, lending.BookID(7), loan.BookID)
	assert.Equal(t, "Alice", loan.MemberName)
	assert.Equal(t, loanDate, loan.LoanDate, "Should truncate the loan date to microseconds")
	assert.Equal(t, loanDate.Add(14*24*time.Hour), loan.DueDate, "Should be due after the loan period")
	assert.True(t, loan.IsActive(), "Should start active")
}

func Test_Loan_IsOverdue(t *testing.T) {
	loan := lending.BuildLoan(1, "Alice", loanDate)
	returnedAt := loan.DueDate.Add(72 * time.Hour)
	returnedLate := loan
	returnedLate.ReturnedAt = &returnedAt

	testCases := []struct {
		name string
		loan lending.Loan
		now  time.Time
		want bool
	}{
		{name: "active before due date", loan: loan, now: loan.DueDate.Add(-time.Second), want: false},
		{name: "active exactly at due date", loan: loan, now: loan.DueDate, want: false},
		{name: "active past due date", loan: loan, now: loan.DueDate.Add(time.Microsecond), want: true},
		{name: "returned late", loan: returnedLate, now: loan.DueDate.Add(30 * 24 * time.Hour), want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.loan.IsOverdue(tc.now))
			assert.Equal(t, tc.want, tc.loan.View(tc.now).IsOverdue, "Should agree with the view")
		})
	}
}

func Test_Loan_Duration(t *testing.T) {
	loan := lending.BuildLoan(1, "Bob", loanDate)

	_, ok := loan.Duration()
	assert.False(t, ok, "Should have no duration while active")

	returnedAt := loanDate.Add(36 * time.Hour)
	loan.ReturnedAt = &returnedAt

	duration, ok := loan.Duration()
	assert.True(t, ok)
	assert.Equal(t, 36*time.Hour, duration)
}

func Test_ViewsOf(t *testing.T) {
	// arrange
	overdue := lending.BuildLoan(1, "Alice", loanDate.Add(-20*24*time.Hour))
	current := lending.BuildLoan(2, "Bob", loanDate)

	// act
	views := lending.ViewsOf([]lending.Loan{overdue, current}, loanDate)

	// assert
	assert.Len(t, views, 2)
	assert.True(t, views[0].IsOverdue)
	assert.False(t, views[1].IsOverdue)
	assert.NotNil(t, lending.ViewsOf(nil, loanDate), "Should return an empty slice, not nil")
}

func Test_Author_FullName(t *testing.T) {
	assert.Equal(t, "Frank Herbert", lending.Author{FirstName: "Frank", LastName: "Herbert"}.FullName())
	assert.Equal(t, "Homer", lending.Author{FirstName: "Homer"}.FullName())
	assert.Equal(t, "Moliere", lending.Author{LastName: "Moliere"}.FullName())
}

func Test_ToTimestamp(t *testing.T) {
	local := time.Date(2026, time.March, 1, 10, 30, 0, 1500, time.FixedZone("CET", 3600))

	assert.Equal(t, time.Date(2026, time.March, 1, 9, 30, 0, 1000, time.UTC), lending.ToTimestamp(local))
}
