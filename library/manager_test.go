package library

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *LibraryManager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	n := 0
	mgr, err := NewLibraryManager(cfg, WithLoanIDs(func() string {
		n++
		return fmt.Sprintf("L%d", n)
	}))
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	return mgr
}

func TestInitTablesCreatesHeaderOnlyFiles(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, mgr.InitTables())

	for name, header := range map[string]string{
		TableBooks:   "id,title,author,status\n",
		TableMembers: "id,fullName\n",
		TableLoans:   "id,bookId,memberId,loanDate,returnDate\n",
	} {
		data, err := os.ReadFile(mgr.Storage().Path(name))
		require.NoError(t, err, name)
		assert.Equal(t, header, string(data), name)
	}

	books, err := mgr.ListBooks()
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestInitTablesKeepsExistingData(t *testing.T) {
	mgr := newManager(t)
	writeFile(t, mgr.Storage(), TableBooks, seedBooks)
	require.NoError(t, mgr.InitTables())

	data, err := os.ReadFile(mgr.Storage().Path(TableBooks))
	require.NoError(t, err)
	assert.Equal(t, seedBooks, string(data))
}

func TestManagerCirculation(t *testing.T) {
	mgr := newManager(t)
	writeFile(t, mgr.Storage(), TableBooks, seedBooks)
	writeFile(t, mgr.Storage(), TableMembers, seedMembers)

	msg, err := mgr.LendBook("B1", "M1", "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "Book 'Dune' (B1) lent to Ada Lovelace (M1) on 2024-01-10.", msg)

	open, err := mgr.ListOpenLoans()
	require.NoError(t, err)
	assert.Equal(t, []string{"L1 | book B1 | member M1 | since 2024-01-10"}, open)

	msg, err = mgr.ReturnBook("B1", "2024-01-20")
	require.NoError(t, err)
	assert.Equal(t, "Book 'Dune' (B1) returned by member M1 on 2024-01-20.", msg)

	status, err := mgr.BookStatus("B1")
	require.NoError(t, err)
	assert.Equal(t, "Book 'Dune' (B1) is AVAILABLE.", status)
}

func TestManagerSnapshot(t *testing.T) {
	mgr := newManager(t)
	writeFile(t, mgr.Storage(), TableBooks, seedBooks)
	writeFile(t, mgr.Storage(), TableMembers, seedMembers)
	_, err := mgr.LendBook("B2", "M2", "2024-03-03")
	require.NoError(t, err)

	snap, err := mgr.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Books, 3)
	assert.Len(t, snap.Members, 2)
	assert.Equal(t, []Loan{{ID: "L1", BookID: "B2", MemberID: "M2", LoanDate: "2024-03-03"}}, snap.Loans)
	assert.Equal(t, StatusOnLoan, snap.Books[1].Status)
}

func TestManagerUsesConfiguredDelimiterAndCap(t *testing.T) {
	cfg := Config{
		DataDir:           filepath.Join(t.TempDir(), "data"),
		MaxLoansPerMember: 1,
		DateFormat:        DateLayout,
		Delimiter:         ';',
	}
	mgr, err := NewLibraryManager(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Service().MaxLoansPerMember())

	writeFile(t, mgr.Storage(), TableBooks, "id;title;author;status\nB1;Dune, Messiah;Herbert;AVAILABLE\nB2;Emma;Austen;AVAILABLE\n")
	writeFile(t, mgr.Storage(), TableMembers, "id;fullName\nM1;Ada\n")

	books, err := mgr.ListBooks()
	require.NoError(t, err)
	assert.Equal(t, "B1 | Dune, Messiah | Herbert | AVAILABLE", books[0])

	_, err = mgr.LendBook("B1", "M1", "2024-01-10")
	require.NoError(t, err)
	_, err = mgr.LendBook("B2", "M1", "2024-01-10")
	var limit *LoanLimitExceededError
	require.ErrorAs(t, err, &limit)

	loans, err := os.ReadFile(mgr.Storage().Path(TableLoans))
	require.NoError(t, err)
	assert.Contains(t, string(loans), "id;bookId;memberId;loanDate;returnDate\n")
}

func TestManagerMissingBooksTable(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.ListBooks()
	var ioErr *StorageIOError
	require.ErrorAs(t, err, &ioErr)

	_, err = mgr.Snapshot()
	require.ErrorAs(t, err, &ioErr)
}
