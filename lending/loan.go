package lending

import "time"

// LoanPeriod is the fixed lending policy: a loan is due this long after it was created.
const LoanPeriod = 14 * 24 * time.Hour

type (
	// BookID identifies a Book, assigned by storage.
	BookID = int64

	// AuthorID identifies an Author, assigned by storage.
	AuthorID = int64

	// LoanID identifies a Loan, assigned by storage.
	LoanID = int64
)

// Author owns zero or more Books. It cannot be removed while it still owns any.
type Author struct {
	ID          AuthorID `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Description string   `json:"description"`
	BirthYear   int      `json:"birthYear"`
}

// FullName returns "FirstName LastName".
func (a Author) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}

	if a.FirstName == "" {
		return a.LastName
	}

	return a.FirstName + " " + a.LastName
}

// Book is a catalog entry with a number of physical copies.
// AvailableCopies is mutated only by the inventory ledger.
type Book struct {
	ID              BookID   `json:"id"`
	Title           string   `json:"title"`
	ISBN            string   `json:"isbn"`
	PublicationYear int      `json:"publicationYear"`
	TotalCopies     int      `json:"totalCopies"`
	AvailableCopies int      `json:"availableCopies"`
	AuthorID        AuthorID `json:"authorId"`
}

// Loan records one physical copy lent to a member.
// A Loan is Active while ReturnedAt is nil and Returned once it is set.
type Loan struct {
	ID         LoanID     `json:"id"`
	BookID     BookID     `json:"bookId"`
	MemberName string     `json:"memberName"`
	LoanDate   time.Time  `json:"loanDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnedAt *time.Time `json:"returnedAt"`
}

// BuildLoan constructs a new active Loan starting at loanDate.
func BuildLoan(bookID BookID, memberName string, loanDate time.Time) Loan {
	loanDate = ToTimestamp(loanDate)

	return Loan{
		BookID:     bookID,
		MemberName: memberName,
		LoanDate:   loanDate,
		DueDate:    DueDateFor(loanDate),
	}
}

// DueDateFor returns the due date of a loan created at loanDate.
func DueDateFor(loanDate time.Time) time.Time {
	return loanDate.Add(LoanPeriod)
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// IsOverdue is the single overdue predicate: active and past its due date at now.
// A returned loan is never overdue, no matter how late it was returned.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.ReturnedAt == nil && now.After(l.DueDate)
}

// Duration returns how long a returned loan lasted. It is false for active loans.
func (l Loan) Duration() (time.Duration, bool) {
	if l.ReturnedAt == nil {
		return 0, false
	}

	return l.ReturnedAt.Sub(l.LoanDate), true
}

// View evaluates the derived overdue flag against now.
func (l Loan) View(now time.Time) LoanView {
	return LoanView{
		Loan:      l,
		IsOverdue: l.IsOverdue(now),
	}
}

// LoanView is a Loan as presented to readers, with IsOverdue evaluated at one instant.
type LoanView struct {
	Loan
	IsOverdue bool `json:"isOverdue"`
}

// ViewsOf evaluates all loans against the same now.
func ViewsOf(loans []Loan, now time.Time) []LoanView {
	views := make([]LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, loan.View(now))
	}

	return views
}

// ToTimestamp normalizes a time to the precision every supported store can round-trip:
// UTC, truncated to microseconds.
func ToTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
