package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ImportSummary counts what ImportLegacyDatabase did.
type ImportSummary struct {
	Members    int
	Books      int
	Loans      int
	Duplicates int
	Skipped    int
}

type legacyCheckout struct {
	id, bookID, memberID int64
	checkedOut           time.Time
	returned             sql.NullTime
}

// ImportLegacyDatabase copies members, books and checkouts from a SQLite
// library database (the schema used before the flat-file tables) into the
// tables managed by mgr. Numeric ids become M<n>, B<n> and L<n>. Records whose
// id already exists are counted as duplicates and left untouched. Checkouts
// are skipped when their book was not imported by this run (so its status
// stays consistent with its loans), when their member is unknown, when their
// dates do not make a valid loan, or when the book already has an open
// checkout.
func ImportLegacyDatabase(dbPath string, mgr *LibraryManager) (ImportSummary, error) {
	var sum ImportSummary

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return sum, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return sum, fmt.Errorf("open sqlite: %w", err)
	}

	if err := mgr.InitTables(); err != nil {
		return sum, err
	}

	checkouts, err := legacyCheckouts(db)
	if err != nil {
		return sum, err
	}

	// Members first so loans never reference a member that is not there yet.
	memberIDs := make(map[int64]bool)
	if err := eachRow(db, `SELECT id,name FROM members ORDER BY id`, func(rows *sql.Rows) error {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		memberIDs[id] = true
		return countInsert(&sum, &sum.Members, mgr.Members().Insert(Member{ID: legacyID("M", id), FullName: name}))
	}); err != nil {
		return sum, err
	}

	// Books start AVAILABLE and are marked ON_LOAN only after their open loan
	// is in the loans table, so a failure in between leaves a returnable loan.
	books := make(map[int64]Book)
	if err := eachRow(db, `SELECT id,title,author FROM books ORDER BY id`, func(rows *sql.Rows) error {
		var (
			id            int64
			title, author string
		)
		if err := rows.Scan(&id, &title, &author); err != nil {
			return err
		}
		b := Book{ID: legacyID("B", id), Title: title, Author: author, Status: StatusAvailable}
		before := sum.Books
		if err := countInsert(&sum, &sum.Books, mgr.Books().Insert(b)); err != nil {
			return err
		}
		if sum.Books > before {
			books[id] = b
		}
		return nil
	}); err != nil {
		return sum, err
	}

	seenOpen := make(map[int64]bool)
	for _, c := range checkouts {
		book, ok := books[c.bookID]
		if !ok || !memberIDs[c.memberID] {
			sum.Skipped++
			continue
		}
		loan := Loan{
			ID:       legacyID("L", c.id),
			BookID:   book.ID,
			MemberID: legacyID("M", c.memberID),
			LoanDate: c.checkedOut.Format(DateLayout),
		}
		if c.returned.Valid {
			loan.ReturnDate = c.returned.Time.Format(DateLayout)
		}
		if mgr.Loans().Validate(loan) != nil || (loan.Open() && seenOpen[c.bookID]) {
			sum.Skipped++
			continue
		}

		before := sum.Loans
		if err := countInsert(&sum, &sum.Loans, mgr.Loans().Insert(loan)); err != nil {
			return sum, err
		}
		if !loan.Open() || sum.Loans == before {
			continue
		}
		seenOpen[c.bookID] = true
		book.Status = StatusOnLoan
		if err := mgr.Books().Save(book); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func legacyCheckouts(db *sql.DB) ([]legacyCheckout, error) {
	var out []legacyCheckout
	err := eachRow(db, `SELECT id,book_id,member_id,checkout_time,return_time FROM checkouts ORDER BY id`, func(rows *sql.Rows) error {
		var c legacyCheckout
		if err := rows.Scan(&c.id, &c.bookID, &c.memberID, &c.checkedOut, &c.returned); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func eachRow(db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("query legacy database: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// countInsert tallies the result of an Insert. Duplicates are counted and
// swallowed; any other error is returned.
func countInsert(sum *ImportSummary, counter *int, err error) error {
	var dup *DuplicateIDError
	switch {
	case err == nil:
		*counter++
		return nil
	case errors.As(err, &dup):
		sum.Duplicates++
		return nil
	}
	return err
}

func legacyID(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}
