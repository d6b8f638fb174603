package library

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// Table names known to the storage engine.
const (
	TableBooks   = "books"
	TableMembers = "members"
	TableLoans   = "loans"
)

// Row maps a header field name to its raw value.
type Row map[string]string

// TableStore reads and writes whole tables. The repositories depend on this
// interface; CSVStorage is the only production implementation.
type TableStore interface {
	ReadTable(name string) ([]Row, error)
	ReadTableIfExists(name string) ([]Row, error)
	WriteTable(name string, header []string, rows []Row) error
}

// CSVStorage keeps one delimited text file per table inside dir.
type CSVStorage struct {
	dir       string
	delimiter rune
	logger    *slog.Logger
}

// StorageOption configures a CSVStorage.
type StorageOption func(*CSVStorage)

// WithDelimiter sets the field delimiter (default ',').
func WithDelimiter(d rune) StorageOption {
	return func(s *CSVStorage) { s.delimiter = d }
}

// WithStorageLogger sets the logger used for table reads and writes.
func WithStorageLogger(l *slog.Logger) StorageOption {
	return func(s *CSVStorage) { s.logger = l }
}

// NewCSVStorage creates dir if needed so a first run succeeds.
func NewCSVStorage(dir string, opts ...StorageOption) (*CSVStorage, error) {
	s := &CSVStorage{dir: dir, delimiter: ',', logger: slog.New(discardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	switch s.delimiter {
	case quote, '\r', '\n', 0:
		return nil, fmt.Errorf("invalid delimiter %q", s.delimiter)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return s, nil
}

// Dir returns the directory holding the table files.
func (s *CSVStorage) Dir() string { return s.dir }

// Path returns the file backing the named table.
func (s *CSVStorage) Path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// ReadTable returns every row of the table in file order. A missing file is a
// StorageIOError.
func (s *CSVStorage) ReadTable(name string) ([]Row, error) {
	return s.read(name, false)
}

// ReadTableIfExists is ReadTable for tables that may not have been created
// yet: a missing file yields no rows.
func (s *CSVStorage) ReadTableIfExists(name string) ([]Row, error) {
	return s.read(name, true)
}

func (s *CSVStorage) read(name string, allowMissing bool) ([]Row, error) {
	path := s.Path(name)
	f, err := os.Open(path)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("table not created yet", "table", name)
			return []Row{}, nil
		}
		return nil, &StorageIOError{Table: name, Path: path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &StorageIOError{Table: name, Path: path, Err: err}
	}

	records, err := decodeRecords(name, data, s.delimiter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &StorageFormatError{Table: name, Reason: "missing header row"}
	}

	header := records[0].fields
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, &StorageFormatError{Table: name, Line: records[0].line, Field: h, Reason: "duplicate header field"}
		}
		seen[h] = true
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec.fields) != len(header) {
			return nil, &StorageFormatError{
				Table:  name,
				Line:   rec.line,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(rec.fields)),
			}
		}
		row := make(Row, len(header))
		for i, h := range header {
			row[h] = rec.fields[i]
		}
		rows = append(rows, row)
	}
	s.logger.Debug("table read", "table", name, "rows", len(rows))
	return rows, nil
}

// WriteTable replaces the whole table. The rows are written to a temporary
// file in the same directory which is then renamed over the old file, so the
// table is always either the previous or the new complete version. Values
// must be valid UTF-8; otherwise nothing is written.
func (s *CSVStorage) WriteTable(name string, header []string, rows []Row) error {
	path := s.Path(name)

	var buf bytes.Buffer
	if err := checkUTF8(name, 0, header, header); err != nil {
		return err
	}
	encodeRecord(&buf, header, s.delimiter)
	fields := make([]string, len(header))
	for n, row := range rows {
		for i, h := range header {
			fields[i] = row[h]
		}
		if err := checkUTF8(name, n+1, header, fields); err != nil {
			return err
		}
		encodeRecord(&buf, fields, s.delimiter)
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return &StorageIOError{Table: name, Path: path, Err: err}
	}
	s.logger.Debug("table written", "table", name, "rows", len(rows))
	return nil
}

// checkUTF8 rejects values that would not read back unchanged.
func checkUTF8(table string, record int, header, fields []string) error {
	for i, f := range fields {
		if !utf8.ValidString(f) {
			return &StorageFormatError{Table: table, Record: record, Field: header[i], Reason: "invalid UTF-8"}
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
