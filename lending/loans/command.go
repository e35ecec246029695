package loans

import (
	"strings"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	createLoanCommandType = "CreateLoan"
	returnLoanCommandType = "ReturnLoan"
)

// CreateLoanCommand asks for a copy of BookID to be lent to MemberName.
type CreateLoanCommand struct {
	BookID     lending.BookID
	MemberName string
}

// BuildCreateLoanCommand creates a CreateLoanCommand with a trimmed member name.
func BuildCreateLoanCommand(bookID lending.BookID, memberName string) CreateLoanCommand {
	return CreateLoanCommand{
		BookID:     bookID,
		MemberName: strings.TrimSpace(memberName),
	}
}

// CommandType returns the command type name used in logs, metrics and spans.
func (c CreateLoanCommand) CommandType() string {
	return createLoanCommandType
}

// ReturnLoanCommand closes the loan LoanID.
type ReturnLoanCommand struct {
	LoanID lending.LoanID
}

// BuildReturnLoanCommand creates a ReturnLoanCommand.
func BuildReturnLoanCommand(loanID lending.LoanID) ReturnLoanCommand {
	return ReturnLoanCommand{LoanID: loanID}
}

// CommandType returns the command type name used in logs, metrics and spans.
func (c ReturnLoanCommand) CommandType() string {
	return returnLoanCommandType
}
