package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tally/internal/record"
)

// Required header sets per file kind. Extra columns are allowed and carried
// through as attributes.
var (
	sendColumns    = []string{"identity_key", "timestamp", "org_key", "email"}
	openColumns    = []string{"identity_key", "timestamp", "views", "clicks", "last_opened"}
	contactColumns = []string{"email", "org_key"}
)

// header maps column names to field positions and remembers which columns
// are passthrough attributes.
type header struct {
	index  map[string]int
	extras []string // columns beyond the required set, source order
}

// readHeader consumes the first CSV record and checks the required columns
// are all present. Missing columns are reported individually.
func readHeader(r *csv.Reader, file string, required []string) (*header, []RowError) {
	row, err := r.Read()
	if err == io.EOF {
		return nil, []RowError{{File: file, Line: 1, Message: "file is empty", Code: ErrEmptyFile}}
	}
	if err != nil {
		return nil, []RowError{{File: file, Line: 1, Message: err.Error(), Code: ErrEmptyFile}}
	}

	h := &header{index: make(map[string]int, len(row))}
	for i, name := range row {
		h.index[strings.TrimSpace(name)] = i
	}

	var errs []RowError
	for _, col := range required {
		if _, ok := h.index[col]; !ok {
			errs = append(errs, RowError{
				File: file, Line: 1, Column: col,
				Message: "required column is missing",
				Code:    ErrMissingHeader,
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	requiredSet := make(map[string]bool, len(required))
	for _, col := range required {
		requiredSet[col] = true
	}
	for _, name := range row {
		name = strings.TrimSpace(name)
		if !requiredSet[name] {
			h.extras = append(h.extras, name)
		}
	}
	return h, nil
}

// rowScanner walks data rows, tolerating ragged rows so later rows still
// get validated.
type rowScanner struct {
	r    *csv.Reader
	file string
	line int
	dead bool
}

func newScanner(r *csv.Reader, file string) *rowScanner {
	return &rowScanner{r: r, file: file, line: 1}
}

// next returns the next data row, or nil at EOF. Ragged rows produce a
// RowError and a nil row. Any other read error repeats on every Read, so
// it is reported once and the rest of the file is abandoned.
func (s *rowScanner) next() ([]string, *RowError) {
	if s.dead {
		return nil, nil
	}
	row, err := s.r.Read()
	if err == io.EOF {
		return nil, nil
	}
	s.line++
	if err != nil {
		re := RowError{File: s.file, Line: s.line, Message: "wrong number of fields", Code: ErrRaggedRow}
		if !errors.Is(err, csv.ErrFieldCount) {
			re.Message = err.Error()
			s.dead = true
		}
		return nil, &re
	}
	return row, nil
}

// rowReader extracts and validates typed fields from one row.
type rowReader struct {
	row  []string
	h    *header
	file string
	line int
	errs *[]RowError
}

func (rr *rowReader) raw(col string) string {
	i, ok := rr.h.index[col]
	if !ok || i >= len(rr.row) {
		return ""
	}
	return strings.TrimSpace(rr.row[i])
}

func (rr *rowReader) fail(col, msg, code string) {
	*rr.errs = append(*rr.errs, RowError{
		File: rr.file, Line: rr.line, Column: col, Message: msg, Code: code,
	})
}

// str reads a required string field.
func (rr *rowReader) str(col string) string {
	v := rr.raw(col)
	if v == "" {
		rr.fail(col, "required field is empty", ErrEmptyField)
	}
	return v
}

// timestamp reads a required export-layout timestamp.
func (rr *rowReader) timestamp(col string) time.Time {
	v := rr.raw(col)
	if v == "" {
		rr.fail(col, "required field is empty", ErrEmptyField)
		return time.Time{}
	}
	t, err := record.ParseTimestamp(v)
	if err != nil {
		rr.fail(col, fmt.Sprintf("bad timestamp %q, want DD/MM/YYYY HH:MM:SS", v), ErrBadTimestamp)
	}
	return t
}

// optionalTimestamp reads a timestamp that may be empty.
func (rr *rowReader) optionalTimestamp(col string) time.Time {
	v := rr.raw(col)
	t, err := record.ParseOptionalTimestamp(v)
	if err != nil {
		rr.fail(col, fmt.Sprintf("bad timestamp %q, want DD/MM/YYYY HH:MM:SS", v), ErrBadTimestamp)
	}
	return t
}

// counter reads a non-negative integer field. Empty counts as zero.
func (rr *rowReader) counter(col string) int {
	v := rr.raw(col)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		rr.fail(col, fmt.Sprintf("bad counter %q, want a non-negative integer", v), ErrBadCounter)
		return 0
	}
	return n
}

// attrs collects the passthrough columns into an attribute map. Empty
// values are kept so downstream output preserves the source shape.
func (rr *rowReader) attrs() record.Attrs {
	if len(rr.h.extras) == 0 {
		return nil
	}
	a := make(record.Attrs, len(rr.h.extras))
	for _, col := range rr.h.extras {
		a[col] = rr.raw(col)
	}
	return a
}

// ReadSendEvents parses a send export. The sender label comes from the
// manifest source name, not from the file. Rows are returned in file order;
// any validation problems are collected, not fail-fast.
func ReadSendEvents(r io.Reader, file, sender string) ([]record.SendEvent, []RowError) {
	cr := csv.NewReader(r)
	h, errs := readHeader(cr, file, sendColumns)
	if h == nil {
		return nil, errs
	}

	var sends []record.SendEvent
	sc := newScanner(cr, file)
	for {
		row, rowErr := sc.next()
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		if row == nil {
			break
		}

		before := len(errs)
		rr := &rowReader{row: row, h: h, file: file, line: sc.line, errs: &errs}
		ev := record.SendEvent{
			IdentityKey: rr.str("identity_key"),
			Email:       rr.str("email"),
			OrgKey:      rr.str("org_key"),
			Sender:      sender,
			Timestamp:   rr.timestamp("timestamp"),
			Attrs:       rr.attrs(),
		}
		if len(errs) == before {
			sends = append(sends, ev)
		}
	}
	return sends, errs
}

// ReadOpenEvents parses an open export.
func ReadOpenEvents(r io.Reader, file string) ([]record.OpenEvent, []RowError) {
	cr := csv.NewReader(r)
	h, errs := readHeader(cr, file, openColumns)
	if h == nil {
		return nil, errs
	}

	var opens []record.OpenEvent
	sc := newScanner(cr, file)
	for {
		row, rowErr := sc.next()
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		if row == nil {
			break
		}

		before := len(errs)
		rr := &rowReader{row: row, h: h, file: file, line: sc.line, errs: &errs}
		ev := record.OpenEvent{
			IdentityKey: rr.str("identity_key"),
			Timestamp:   rr.timestamp("timestamp"),
			Views:       rr.counter("views"),
			Clicks:      rr.counter("clicks"),
			LastOpened:  rr.optionalTimestamp("last_opened"),
			Attrs:       rr.attrs(),
		}
		if len(errs) == before {
			opens = append(opens, ev)
		}
	}
	return opens, errs
}

// ReadContacts parses a contact directory export. Duplicate emails are kept
// in file order; the resolver applies its own first-row-wins rule.
func ReadContacts(r io.Reader, file string) ([]record.Contact, []RowError) {
	cr := csv.NewReader(r)
	h, errs := readHeader(cr, file, contactColumns)
	if h == nil {
		return nil, errs
	}

	var contacts []record.Contact
	sc := newScanner(cr, file)
	for {
		row, rowErr := sc.next()
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		if row == nil {
			break
		}

		before := len(errs)
		rr := &rowReader{row: row, h: h, file: file, line: sc.line, errs: &errs}
		c := record.Contact{
			Email:  rr.str("email"),
			OrgKey: rr.raw("org_key"), // may be empty, send org is the fallback
			Attrs:  rr.attrs(),
		}
		if len(errs) == before {
			contacts = append(contacts, c)
		}
	}
	return contacts, errs
}
