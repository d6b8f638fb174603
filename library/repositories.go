package library

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	bookHeader   = []string{"id", "title", "author", "status"}
	memberHeader = []string{"id", "fullName"}
	loanHeader   = []string{"id", "bookId", "memberId", "loanDate", "returnDate"}
)

var recordValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("col"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// table maps one storage table to entities of type T. Every mutation
// rewrites the whole table; at the catalog sizes this tool targets that is
// simpler than patching rows in place and keeps each write atomic.
type table[T any] struct {
	store        TableStore
	name         string
	kind         string
	header       []string
	allowMissing bool
	id           func(*T) string
	toRow        func(*T) Row
	fromRow      func(Row) T
	check        func(*T) *StorageFormatError
}

func (t *table[T]) findAll() ([]T, error) {
	var (
		rows []Row
		err  error
	)
	if t.allowMissing {
		rows, err = t.store.ReadTableIfExists(t.name)
	} else {
		rows, err = t.store.ReadTable(t.name)
	}
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		for _, h := range t.header {
			if _, ok := row[h]; !ok {
				return nil, &StorageFormatError{Table: t.name, Record: i + 1, Field: h, Reason: "missing column"}
			}
		}
		v := t.fromRow(row)
		if ferr := t.validate(&v); ferr != nil {
			ferr.Record = i + 1
			return nil, ferr
		}
		id := t.id(&v)
		if seen[id] {
			return nil, &StorageFormatError{Table: t.name, Record: i + 1, Field: "id", Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = true
		out = append(out, v)
	}
	return out, nil
}

func (t *table[T]) findByID(id string) (*T, error) {
	all, err := t.findAll()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if t.id(&all[i]) == id {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (t *table[T]) insert(v T) error {
	if ferr := t.validate(&v); ferr != nil {
		return ferr
	}
	all, err := t.findAll()
	if err != nil {
		return err
	}
	id := t.id(&v)
	for i := range all {
		if t.id(&all[i]) == id {
			return &DuplicateIDError{Kind: t.kind, ID: id}
		}
	}
	return t.writeAll(append(all, v))
}

func (t *table[T]) save(v T) error {
	if ferr := t.validate(&v); ferr != nil {
		return ferr
	}
	all, err := t.findAll()
	if err != nil {
		return err
	}
	id := t.id(&v)
	for i := range all {
		if t.id(&all[i]) == id {
			all[i] = v
			return t.writeAll(all)
		}
	}
	return &NotFoundError{Kind: t.kind, ID: id}
}

func (t *table[T]) writeAll(all []T) error {
	rows := make([]Row, len(all))
	for i := range all {
		rows[i] = t.toRow(&all[i])
	}
	return t.store.WriteTable(t.name, t.header, rows)
}

func (t *table[T]) validate(v *T) *StorageFormatError {
	if err := recordValidator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &StorageFormatError{Table: t.name, Field: verrs[0].Field(), Reason: describeFieldError(verrs[0])}
		}
		return &StorageFormatError{Table: t.name, Reason: err.Error()}
	}
	if t.check != nil {
		return t.check(v)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "oneof":
		return fmt.Sprintf("%q is not one of %s", fe.Value(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%q is not a YYYY-MM-DD date", fe.Value())
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

// BookRepository is the typed view over the books table.
type BookRepository struct {
	t *table[Book]
}

// NewBookRepository reads and writes books through store.
func NewBookRepository(store TableStore) *BookRepository {
	return &BookRepository{t: &table[Book]{
		store:  store,
		name:   TableBooks,
		kind:   KindBook,
		header: bookHeader,
		id:     func(b *Book) string { return b.ID },
		toRow: func(b *Book) Row {
			return Row{"id": b.ID, "title": b.Title, "author": b.Author, "status": string(b.Status)}
		},
		fromRow: func(r Row) Book {
			return Book{ID: r["id"], Title: r["title"], Author: r["author"], Status: BookStatus(r["status"])}
		},
	}}
}

// FindAll returns every book in table order.
func (r *BookRepository) FindAll() ([]Book, error) { return r.t.findAll() }

// FindByID returns the book with id, or nil if there is none.
func (r *BookRepository) FindByID(id string) (*Book, error) { return r.t.findByID(id) }

// Insert adds a new book; the id must not exist yet.
func (r *BookRepository) Insert(b Book) error { return r.t.insert(b) }

// Save replaces the stored book with the same id.
func (r *BookRepository) Save(b Book) error { return r.t.save(b) }

// MemberRepository is the typed view over the members table.
type MemberRepository struct {
	t *table[Member]
}

// NewMemberRepository reads and writes members through store.
func NewMemberRepository(store TableStore) *MemberRepository {
	return &MemberRepository{t: &table[Member]{
		store:  store,
		name:   TableMembers,
		kind:   KindMember,
		header: memberHeader,
		id:     func(m *Member) string { return m.ID },
		toRow: func(m *Member) Row {
			return Row{"id": m.ID, "fullName": m.FullName}
		},
		fromRow: func(r Row) Member {
			return Member{ID: r["id"], FullName: r["fullName"]}
		},
	}}
}

// FindAll returns every member in table order.
func (r *MemberRepository) FindAll() ([]Member, error) { return r.t.findAll() }

// FindByID returns the member with id, or nil if there is none.
func (r *MemberRepository) FindByID(id string) (*Member, error) { return r.t.findByID(id) }

// Insert adds a member. The lending service never calls it; it exists for
// catalog imports.
func (r *MemberRepository) Insert(m Member) error { return r.t.insert(m) }

// LoanRepository is the typed view over the loans table. The table may not
// exist before the first loan is recorded.
type LoanRepository struct {
	t *table[Loan]
}

// NewLoanRepository reads and writes loans through store.
func NewLoanRepository(store TableStore) *LoanRepository {
	return &LoanRepository{t: &table[Loan]{
		store:        store,
		name:         TableLoans,
		kind:         KindLoan,
		header:       loanHeader,
		allowMissing: true,
		id:           func(l *Loan) string { return l.ID },
		toRow: func(l *Loan) Row {
			return Row{"id": l.ID, "bookId": l.BookID, "memberId": l.MemberID, "loanDate": l.LoanDate, "returnDate": l.ReturnDate}
		},
		fromRow: func(r Row) Loan {
			return Loan{ID: r["id"], BookID: r["bookId"], MemberID: r["memberId"], LoanDate: r["loanDate"], ReturnDate: r["returnDate"]}
		},
		check: checkLoanDates,
	}}
}

// FindAll returns every loan, open or closed, in table order. A missing
// loans table yields none.
func (r *LoanRepository) FindAll() ([]Loan, error) { return r.t.findAll() }

// FindByID returns the loan with id, or nil if there is none.
func (r *LoanRepository) FindByID(id string) (*Loan, error) { return r.t.findByID(id) }

// Insert appends a new loan; the id must not exist yet.
func (r *LoanRepository) Insert(l Loan) error { return r.t.insert(l) }

// Save replaces the stored loan with the same id.
func (r *LoanRepository) Save(l Loan) error { return r.t.save(l) }

// Validate reports whether l could be stored, without touching the table.
func (r *LoanRepository) Validate(l Loan) error {
	if ferr := r.t.validate(&l); ferr != nil {
		return ferr
	}
	return nil
}

func checkLoanDates(l *Loan) *StorageFormatError {
	if l.ReturnDate == "" {
		return nil
	}
	loaned, _ := time.Parse(DateLayout, l.LoanDate)
	returned, _ := time.Parse(DateLayout, l.ReturnDate)
	if returned.Before(loaned) {
		return &StorageFormatError{Table: TableLoans, Field: "returnDate", Reason: fmt.Sprintf("%s is before loan date %s", l.ReturnDate, l.LoanDate)}
	}
	return nil
}
