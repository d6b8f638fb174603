package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// LibraryManager is a thin façade over storage, repositories and service,
// keeping CLI code simple.
type LibraryManager struct {
	cfg     Config
	storage *CSVStorage
	books   *BookRepository
	members *MemberRepository
	loans   *LoanRepository
	svc     *Service
}

// ManagerOption configures a LibraryManager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	logger *slog.Logger
	newID  func() string
}

// WithManagerLogger sets the logger shared by storage and service.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = l }
}

// WithLoanIDs sets the loan id generator passed to the service.
func WithLoanIDs(fn func() string) ManagerOption {
	return func(o *managerOptions) { o.newID = fn }
}

// NewLibraryManager opens (or creates) the data directory named in cfg.
func NewLibraryManager(cfg Config, opts ...ManagerOption) (*LibraryManager, error) {
	o := managerOptions{logger: slog.New(discardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}

	storage, err := NewCSVStorage(cfg.DataDir, WithDelimiter(cfg.Delimiter), WithStorageLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	lm := &LibraryManager{
		cfg:     cfg,
		storage: storage,
		books:   NewBookRepository(storage),
		members: NewMemberRepository(storage),
		loans:   NewLoanRepository(storage),
	}
	svcOpts := []ServiceOption{WithLogger(o.logger)}
	if o.newID != nil {
		svcOpts = append(svcOpts, WithIDGenerator(o.newID))
	}
	lm.svc = NewService(lm.books, lm.members, lm.loans, cfg.MaxLoansPerMember, svcOpts...)
	return lm, nil
}

func (lm *LibraryManager) Config() Config             { return lm.cfg }
func (lm *LibraryManager) Storage() *CSVStorage       { return lm.storage }
func (lm *LibraryManager) Service() *Service          { return lm.svc }
func (lm *LibraryManager) Books() *BookRepository     { return lm.books }
func (lm *LibraryManager) Members() *MemberRepository { return lm.members }
func (lm *LibraryManager) Loans() *LoanRepository     { return lm.loans }

// ------------------ Circulation ------------------

func (lm *LibraryManager) LendBook(bookID, memberID, dateYmd string) (string, error) {
	return lm.svc.LendBook(bookID, memberID, dateYmd)
}

func (lm *LibraryManager) ReturnBook(bookID, dateYmd string) (string, error) {
	return lm.svc.ReturnBook(bookID, dateYmd)
}

func (lm *LibraryManager) BookStatus(bookID string) (string, error) {
	return lm.svc.BookStatus(bookID)
}

// ------------------ Listings ------------------

func (lm *LibraryManager) ListBooks() ([]string, error)     { return lm.svc.ListBooks() }
func (lm *LibraryManager) ListMembers() ([]string, error)   { return lm.svc.ListMembers() }
func (lm *LibraryManager) ListOpenLoans() ([]string, error) { return lm.svc.ListOpenLoans() }

// Snapshot reads all three tables.
func (lm *LibraryManager) Snapshot() (*Snapshot, error) {
	books, err := lm.books.FindAll()
	if err != nil {
		return nil, err
	}
	members, err := lm.members.FindAll()
	if err != nil {
		return nil, err
	}
	loans, err := lm.loans.FindAll()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Books: books, Members: members, Loans: loans}, nil
}

// InitTables writes a header-only file for every table that does not exist
// yet. Lending never does this implicitly: a missing books or members table
// is reported as a StorageIOError.
func (lm *LibraryManager) InitTables() error {
	for _, t := range []struct {
		name   string
		header []string
	}{
		{TableBooks, bookHeader},
		{TableMembers, memberHeader},
		{TableLoans, loanHeader},
	} {
		_, err := os.Stat(lm.storage.Path(t.name))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return &StorageIOError{Table: t.name, Path: lm.storage.Path(t.name), Err: err}
		}
		if err := lm.storage.WriteTable(t.name, t.header, nil); err != nil {
			return err
		}
	}
	return nil
}
