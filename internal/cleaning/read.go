package cleaning

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// Delimiter is the field separator of both the raw export and the cleaned table.
const Delimiter = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a delimited text table held as strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	for _, h := range t.Header {
		if h == col {
			return true
		}
	}
	return false
}

// ReadTable parses semicolon-delimited UTF-8 text with a header row.
// Any parse failure is returned as a *SourceFormatError.
func ReadTable(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = Delimiter
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SourceFormatError{Err: eris.New("empty input")}
		}
		return nil, &SourceFormatError{Err: eris.Wrap(err, "read header")}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SourceFormatError{Err: eris.Wrap(err, "read row")}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// rowReader feeds already-parsed rows to csvutil.
type rowReader struct {
	rows [][]string
	pos  int
}

func (r *rowReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	rec := r.rows[r.pos]
	r.pos++
	return rec, nil
}

// DecodeRaw maps table rows onto RawRecords by (renamed) column name.
// Columns the record type does not know are ignored.
func DecodeRaw(t *Table) ([]model.RawRecord, error) {
	if len(t.Rows) == 0 {
		return nil, nil
	}
	dec, err := csvutil.NewDecoder(&rowReader{rows: t.Rows}, t.Header...)
	if err != nil {
		return nil, &SourceFormatError{Err: eris.Wrap(err, "init decoder")}
	}

	out := make([]model.RawRecord, 0, len(t.Rows))
	for {
		var rec model.RawRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &SourceFormatError{Err: eris.Wrap(err, "decode row")}
		}
		out = append(out, rec)
	}
	return out, nil
}
