package library

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxLoansPerMember is the loan cap used when none is configured.
const DefaultMaxLoansPerMember = 2

// Service implements the lending protocol on top of the repositories.
//
// Each book moves AVAILABLE -> ON_LOAN on LendBook and back on ReturnBook.
// Every operation validates completely before it writes anything, so a
// rejected call leaves all tables untouched.
type Service struct {
	books    *BookRepository
	members  *MemberRepository
	loans    *LoanRepository
	maxLoans int
	newID    func() string
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for successful mutations.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithIDGenerator replaces the loan id generator (random UUIDs by default).
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// NewService wires the repositories with an explicit loan cap. A cap below
// one falls back to DefaultMaxLoansPerMember.
func NewService(books *BookRepository, members *MemberRepository, loans *LoanRepository, maxLoans int, opts ...ServiceOption) *Service {
	if maxLoans < 1 {
		maxLoans = DefaultMaxLoansPerMember
	}
	s := &Service{
		books:    books,
		members:  members,
		loans:    loans,
		maxLoans: maxLoans,
		newID:    uuid.NewString,
		logger:   slog.New(discardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxLoansPerMember returns the configured loan cap.
func (s *Service) MaxLoansPerMember() int { return s.maxLoans }

// ListBooks renders one line per book in table order.
func (s *Service) ListBooks() ([]string, error) {
	books, err := s.books.FindAll()
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(books))
	for _, b := range books {
		lines = append(lines, fmt.Sprintf("%s | %s | %s | %s", b.ID, b.Title, b.Author, b.Status))
	}
	return lines, nil
}

// ListMembers renders one line per member in table order.
func (s *Service) ListMembers() ([]string, error) {
	members, err := s.members.FindAll()
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(members))
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%s | %s", m.ID, m.FullName))
	}
	return lines, nil
}

// ListOpenLoans renders one line per loan that has not been returned.
func (s *Service) ListOpenLoans() ([]string, error) {
	loans, err := s.loans.FindAll()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range loans {
		if !l.Open() {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s | book %s | member %s | since %s", l.ID, l.BookID, l.MemberID, l.LoanDate))
	}
	return lines, nil
}

// LendBook lends bookID to memberID on dateYmd (YYYY-MM-DD).
//
// Checks run in order and the first failure wins: the book exists, the member
// exists, the book has no open loan, the member is below the loan cap.
func (s *Service) LendBook(bookID, memberID, dateYmd string) (string, error) {
	if _, err := parseDate(dateYmd); err != nil {
		return "", err
	}

	book, err := s.books.FindByID(bookID)
	if err != nil {
		return "", err
	}
	if book == nil {
		return "", &NotFoundError{Kind: KindBook, ID: bookID}
	}

	member, err := s.members.FindByID(memberID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", &NotFoundError{Kind: KindMember, ID: memberID}
	}

	loans, err := s.loans.FindAll()
	if err != nil {
		return "", err
	}
	if open := openLoanFor(loans, bookID); open != nil {
		return "", &BookUnavailableError{BookID: bookID, LoanID: open.ID}
	}
	if !book.Available() {
		return "", &BookUnavailableError{BookID: bookID}
	}

	held := 0
	for _, l := range loans {
		if l.Open() && l.MemberID == memberID {
			held++
		}
	}
	if held >= s.maxLoans {
		return "", &LoanLimitExceededError{MemberID: memberID, Open: held, Max: s.maxLoans}
	}

	// The loan goes first so a failed status write leaves a returnable loan.
	loan := Loan{ID: s.newID(), BookID: bookID, MemberID: memberID, LoanDate: dateYmd}
	if err := s.loans.Insert(loan); err != nil {
		return "", fmt.Errorf("record loan: %w", err)
	}
	book.Status = StatusOnLoan
	if err := s.books.Save(*book); err != nil {
		return "", fmt.Errorf("update book status: %w", err)
	}

	s.logger.Info("book lent", "book_id", bookID, "member_id", memberID, "loan_id", loan.ID, "date", dateYmd)
	return fmt.Sprintf("Book '%s' (%s) lent to %s (%s) on %s.", book.Title, book.ID, member.FullName, member.ID, dateYmd), nil
}

// ReturnBook closes the open loan of bookID with dateYmd as return date.
func (s *Service) ReturnBook(bookID, dateYmd string) (string, error) {
	returned, err := parseDate(dateYmd)
	if err != nil {
		return "", err
	}

	book, err := s.books.FindByID(bookID)
	if err != nil {
		return "", err
	}
	if book == nil {
		return "", &NotFoundError{Kind: KindBook, ID: bookID}
	}

	loans, err := s.loans.FindAll()
	if err != nil {
		return "", err
	}
	loan := openLoanFor(loans, bookID)
	if loan == nil {
		return "", &BookNotOnLoanError{BookID: bookID}
	}

	loaned, err := parseDate(loan.LoanDate)
	if err != nil {
		return "", err
	}
	if returned.Before(loaned) {
		return "", &InvalidDateRangeError{LoanID: loan.ID, LoanDate: loan.LoanDate, ReturnDate: dateYmd}
	}

	// The book goes first: if closing the loan then fails, the open loan
	// still blocks lending and the return can be retried.
	book.Status = StatusAvailable
	if err := s.books.Save(*book); err != nil {
		return "", fmt.Errorf("update book status: %w", err)
	}
	loan.ReturnDate = dateYmd
	if err := s.loans.Save(*loan); err != nil {
		return "", fmt.Errorf("close loan: %w", err)
	}

	s.logger.Info("book returned", "book_id", bookID, "member_id", loan.MemberID, "loan_id", loan.ID, "date", dateYmd)
	return fmt.Sprintf("Book '%s' (%s) returned by member %s on %s.", book.Title, book.ID, loan.MemberID, dateYmd), nil
}

// BookStatus describes whether bookID is available or who holds it.
func (s *Service) BookStatus(bookID string) (string, error) {
	book, err := s.books.FindByID(bookID)
	if err != nil {
		return "", err
	}
	if book == nil {
		return "", &NotFoundError{Kind: KindBook, ID: bookID}
	}

	loans, err := s.loans.FindAll()
	if err != nil {
		return "", err
	}
	loan := openLoanFor(loans, bookID)
	if loan == nil {
		return fmt.Sprintf("Book '%s' (%s) is %s.", book.Title, book.ID, StatusAvailable), nil
	}

	borrower := loan.MemberID
	if m, err := s.members.FindByID(loan.MemberID); err != nil {
		return "", err
	} else if m != nil {
		borrower = fmt.Sprintf("%s (%s)", m.FullName, m.ID)
	}
	return fmt.Sprintf("Book '%s' (%s) is %s: lent to %s since %s.", book.Title, book.ID, StatusOnLoan, borrower, loan.LoanDate), nil
}

func openLoanFor(loans []Loan, bookID string) *Loan {
	for i := range loans {
		if loans[i].BookID == bookID && loans[i].Open() {
			return &loans[i]
		}
	}
	return nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, &InvalidDateError{Value: v}
	}
	return t, nil
}
