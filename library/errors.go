package library

import "fmt"

// Entity kinds used in NotFoundError and DuplicateIDError.
const (
	KindBook   = "book"
	KindMember = "member"
	KindLoan   = "loan"
)

// StorageIOError reports a table file that could not be read or written.
type StorageIOError struct {
	Table string
	Path  string
	Err   error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("table %s (%s): %v", e.Table, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

// StorageFormatError reports a malformed row or field. Line is the physical
// line in the file (header is line 1), Record the 1-based data row; zero means
// unknown.
type StorageFormatError struct {
	Table  string
	Line   int
	Record int
	Field  string
	Reason string
}

func (e *StorageFormatError) Error() string {
	msg := "table " + e.Table
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Record > 0 {
		msg += fmt.Sprintf(" row %d", e.Record)
	}
	if e.Field != "" {
		msg += " field " + e.Field
	}
	return msg + ": " + e.Reason
}

// DuplicateIDError is returned by Insert when the id is already taken.
type DuplicateIDError struct {
	Kind string
	ID   string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.ID)
}

// NotFoundError reports a referenced book, member or loan that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// BookUnavailableError is returned when lending a book that is already out.
type BookUnavailableError struct {
	BookID string
	LoanID string
}

func (e *BookUnavailableError) Error() string {
	if e.LoanID == "" {
		return fmt.Sprintf("book %s is not available", e.BookID)
	}
	return fmt.Sprintf("book %s is not available (open loan %s)", e.BookID, e.LoanID)
}

// BookNotOnLoanError is returned when returning a book nobody borrowed.
type BookNotOnLoanError struct {
	BookID string
}

func (e *BookNotOnLoanError) Error() string {
	return fmt.Sprintf("book %s is not on loan", e.BookID)
}

// LoanLimitExceededError is returned when a member already holds the maximum
// number of open loans.
type LoanLimitExceededError struct {
	MemberID string
	Open     int
	Max      int
}

func (e *LoanLimitExceededError) Error() string {
	return fmt.Sprintf("member %s has %d open loans (max %d)", e.MemberID, e.Open, e.Max)
}

// InvalidDateRangeError is returned when a return date precedes the loan date.
type InvalidDateRangeError struct {
	LoanID     string
	LoanDate   string
	ReturnDate string
}

func (e *InvalidDateRangeError) Error() string {
	return fmt.Sprintf("loan %s: return date %s is before loan date %s", e.LoanID, e.ReturnDate, e.LoanDate)
}

// InvalidDateError is returned for a date that is not a YYYY-MM-DD calendar date.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", e.Value)
}
