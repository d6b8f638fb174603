package library

// BookStatus is the availability of a book, kept consistent with the loan table.
type BookStatus string

const (
	StatusAvailable BookStatus = "AVAILABLE"
	StatusOnLoan    BookStatus = "ON_LOAN"
)

// DateLayout is the stable form of every date stored in the tables.
const DateLayout = "2006-01-02"

// The col tags name the table columns; validation errors are reported with
// them.

// Book represents a catalog entry and its current availability.
type Book struct {
	ID     string     `col:"id" json:"id" validate:"required"`
	Title  string     `col:"title" json:"title" validate:"required"`
	Author string     `col:"author" json:"author"`
	Status BookStatus `col:"status" json:"status" validate:"required,oneof=AVAILABLE ON_LOAN"`
}

// Available reports whether the book can be lent.
func (b *Book) Available() bool { return b.Status == StatusAvailable }

// Member represents a registered library member.
type Member struct {
	ID       string `col:"id" json:"id" validate:"required"`
	FullName string `col:"fullName" json:"full_name" validate:"required"`
}

// Loan records a book lent to a member. ReturnDate is empty while the loan is open.
type Loan struct {
	ID         string `col:"id" json:"id" validate:"required"`
	BookID     string `col:"bookId" json:"book_id" validate:"required"`
	MemberID   string `col:"memberId" json:"member_id" validate:"required"`
	LoanDate   string `col:"loanDate" json:"loan_date" validate:"required,datetime=2006-01-02"`
	ReturnDate string `col:"returnDate" json:"return_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Open reports whether the book is still out.
func (l *Loan) Open() bool { return l.ReturnDate == "" }

// Snapshot is the complete library state, used for exports.
type Snapshot struct {
	Books   []Book   `json:"books"`
	Members []Member `json:"members"`
	Loans   []Loan   `json:"loans"`
}
