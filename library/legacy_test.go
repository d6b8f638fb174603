package library

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacyDB builds a SQLite file with the pre-CSV schema and the given
// statements applied.
func legacyDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	schema := []string{
		`CREATE TABLE members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL
        );`,
		`CREATE TABLE books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            content TEXT,
            available INTEGER NOT NULL DEFAULT 1,
            borrower_id INTEGER REFERENCES members(id)
        );`,
		`CREATE TABLE checkouts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id),
            member_id INTEGER NOT NULL REFERENCES members(id),
            checkout_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            return_time DATETIME
        );`,
	}
	for _, s := range append(schema, stmts...) {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

func TestImportLegacyDatabase(t *testing.T) {
	dbPath := legacyDB(t,
		`INSERT INTO members(id,name) VALUES(1,'Ada Lovelace'),(2,'Grace Hopper')`,
		`INSERT INTO books(id,title,author) VALUES(1,'Dune','Frank Herbert'),(2,'Emma','Jane Austen'),(3,'Ulysses','James Joyce')`,
		`INSERT INTO checkouts(id,book_id,member_id,checkout_time,return_time) VALUES
            (1,1,1,'2024-01-10 09:00:00','2024-01-15 17:30:00'),
            (2,1,2,'2024-02-01 10:00:00',NULL),
            (3,2,9,'2024-02-02 10:00:00',NULL),
            (4,3,1,'2024-02-03 10:00:00',NULL),
            (5,3,2,'2024-02-04 10:00:00',NULL)`,
	)
	mgr := newManager(t)

	sum, err := ImportLegacyDatabase(dbPath, mgr)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Members: 2, Books: 3, Loans: 3, Skipped: 2}, sum)

	snap, err := mgr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []Member{{ID: "M1", FullName: "Ada Lovelace"}, {ID: "M2", FullName: "Grace Hopper"}}, snap.Members)
	assert.Equal(t, []Book{
		{ID: "B1", Title: "Dune", Author: "Frank Herbert", Status: StatusOnLoan},
		{ID: "B2", Title: "Emma", Author: "Jane Austen", Status: StatusAvailable},
		{ID: "B3", Title: "Ulysses", Author: "James Joyce", Status: StatusOnLoan},
	}, snap.Books)
	assert.Equal(t, []Loan{
		{ID: "L1", BookID: "B1", MemberID: "M1", LoanDate: "2024-01-10", ReturnDate: "2024-01-15"},
		{ID: "L2", BookID: "B1", MemberID: "M2", LoanDate: "2024-02-01"},
		{ID: "L4", BookID: "B3", MemberID: "M1", LoanDate: "2024-02-03"},
	}, snap.Loans)
	assertConsistent(t, mgr.Storage())

	// Imported data is immediately usable by the lending service.
	_, err = mgr.ReturnBook("B3", "2024-02-10")
	require.NoError(t, err)
}

func TestImportLegacyDatabaseTwiceCountsDuplicates(t *testing.T) {
	dbPath := legacyDB(t,
		`INSERT INTO members(id,name) VALUES(1,'Ada Lovelace')`,
		`INSERT INTO books(id,title,author) VALUES(1,'Dune','Frank Herbert')`,
		`INSERT INTO checkouts(id,book_id,member_id,checkout_time) VALUES(1,1,1,'2024-01-10 09:00:00')`,
	)
	mgr := newManager(t)

	_, err := ImportLegacyDatabase(dbPath, mgr)
	require.NoError(t, err)
	before := tableState(t, mgr.Storage())

	sum, err := ImportLegacyDatabase(dbPath, mgr)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Duplicates: 2, Skipped: 1}, sum)
	assert.Equal(t, before, tableState(t, mgr.Storage()))
}

func TestImportLegacyDatabaseSkipsInvalidCheckouts(t *testing.T) {
	dbPath := legacyDB(t,
		`INSERT INTO members(id,name) VALUES(1,'Ada Lovelace')`,
		`INSERT INTO books(id,title,author) VALUES(1,'Dune','Frank Herbert'),(2,'Emma','Jane Austen'),(3,'Ulysses','James Joyce')`,
		`INSERT INTO checkouts(id,book_id,member_id,checkout_time,return_time) VALUES
            (1,1,1,'2024-01-10 09:00:00','2024-01-05 09:00:00'),
            (2,2,1,'2024-02-01 10:00:00',NULL),
            (3,3,1,'2024-03-01 10:00:00','2024-02-01 10:00:00'),
            (4,3,1,'2024-03-02 10:00:00',NULL)`,
	)
	mgr := newManager(t)

	sum, err := ImportLegacyDatabase(dbPath, mgr)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Members: 1, Books: 3, Loans: 2, Skipped: 2}, sum)

	snap, err := mgr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []Loan{
		{ID: "L2", BookID: "B2", MemberID: "M1", LoanDate: "2024-02-01"},
		{ID: "L4", BookID: "B3", MemberID: "M1", LoanDate: "2024-03-02"},
	}, snap.Loans)
	assert.Equal(t, StatusAvailable, snap.Books[0].Status)
	assert.Equal(t, StatusOnLoan, snap.Books[1].Status)
	assert.Equal(t, StatusOnLoan, snap.Books[2].Status)
	assertConsistent(t, mgr.Storage())

	_, err = mgr.ReturnBook("B2", "2024-02-10")
	require.NoError(t, err)
	_, err = mgr.LendBook("B1", "M1", "2024-02-11")
	require.NoError(t, err)
}

func TestImportLegacyDatabaseMissingFile(t *testing.T) {
	mgr := newManager(t)

	_, err := ImportLegacyDatabase(filepath.Join(t.TempDir(), "nope.db"), mgr)
	assert.Error(t, err)
}
