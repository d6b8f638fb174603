package library

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const quote = '"'

// encodeRecord appends one record, terminated by '\n', to buf. Fields holding
// the delimiter, a quote, CR or LF are quoted with embedded quotes doubled.
func encodeRecord(buf *bytes.Buffer, fields []string, delim rune) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteRune(delim)
		}
		if !strings.ContainsRune(f, delim) && !strings.ContainsAny(f, "\"\r\n") {
			buf.WriteString(f)
			continue
		}
		buf.WriteByte(quote)
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte(quote)
	}
	buf.WriteByte('\n')
}

// decodedRecord is one parsed record and the physical line it started on.
type decodedRecord struct {
	line   int
	fields []string
}

// decodeRecords splits data into records. Bytes inside quotes are kept as-is,
// so every value written by encodeRecord comes back unchanged. Blank lines
// between records are skipped. Data must be valid UTF-8.
func decodeRecords(table string, data []byte, delim rune) ([]decodedRecord, error) {
	var (
		records []decodedRecord
		fields  []string
		field   strings.Builder
		line    = 1
		start   = 1
	)
	if line, ok := firstInvalidUTF8(data); !ok {
		return nil, &StorageFormatError{Table: table, Line: line, Reason: "invalid UTF-8"}
	}
	text := []rune(string(data))
	n := len(text)

	endRecord := func() {
		fields = append(fields, field.String())
		field.Reset()
		if len(fields) == 1 && fields[0] == "" {
			fields = nil
			return
		}
		records = append(records, decodedRecord{line: start, fields: fields})
		fields = nil
	}

	i := 0
	atFieldStart := true
	for i < n {
		c := text[i]
		if atFieldStart && c == quote {
			i++
			closed := false
			for i < n {
				if text[i] == quote {
					if i+1 < n && text[i+1] == quote {
						field.WriteRune(quote)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				if text[i] == '\n' {
					line++
				}
				field.WriteRune(text[i])
				i++
			}
			if !closed {
				return nil, &StorageFormatError{Table: table, Line: start, Reason: "unterminated quoted field"}
			}
			if i < n && text[i] != delim && text[i] != '\n' && !(text[i] == '\r' && i+1 < n && text[i+1] == '\n') {
				return nil, &StorageFormatError{Table: table, Line: line, Reason: "unexpected character after closing quote"}
			}
			atFieldStart = false
			continue
		}
		switch {
		case c == delim:
			fields = append(fields, field.String())
			field.Reset()
			atFieldStart = true
			i++
		case c == '\r' && i+1 < n && text[i+1] == '\n':
			i++
		case c == '\n':
			endRecord()
			line++
			start = line
			atFieldStart = true
			i++
		case c == quote:
			return nil, &StorageFormatError{Table: table, Line: line, Reason: "bare quote in unquoted field"}
		default:
			field.WriteRune(c)
			atFieldStart = false
			i++
		}
	}
	if len(fields) > 0 || field.Len() > 0 {
		endRecord()
	}
	return records, nil
}

// firstInvalidUTF8 reports whether data is valid UTF-8 and, if not, the line
// holding the first bad byte.
func firstInvalidUTF8(data []byte) (int, bool) {
	line := 1
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return line, false
		}
		if r == '\n' {
			line++
		}
		i += size
	}
	return line, true
}
