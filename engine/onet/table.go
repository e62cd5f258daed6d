// Package onet reads the O*NET tab-delimited database files and builds the
// per-run lookups (occupation dictionary, cross-reference index) that the
// fact emitters join against.
package onet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a header lacks a required column.
var ErrMissingColumn = errors.New("onet: missing column")

// Row is one data record addressed by header name.
type Row struct {
	Line   int
	cols   map[string]int
	fields []string
}

// NewRow builds a Row from a column→value map. Used by tests and by
// sources that are not tabular files.
func NewRow(values map[string]string) Row {
	cols := make(map[string]int, len(values))
	fields := make([]string, 0, len(values))
	for k, v := range values {
		cols[k] = len(fields)
		fields = append(fields, v)
	}
	return Row{cols: cols, fields: fields}
}

// Get returns the trimmed value of column, or "" when absent.
func (r Row) Get(column string) string {
	i, ok := r.cols[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// Float parses column as float64.
func (r Row) Float(column string) (float64, error) {
	v := r.Get(column)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("onet: column %q value %q: %w", column, v, err)
	}
	return f, nil
}

// Int parses column as int.
func (r Row) Int(column string) (int, error) {
	v := r.Get(column)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("onet: column %q value %q: %w", column, v, err)
	}
	return n, nil
}

// Table is a fully read tabular file.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Require checks that every named column is present in the header.
func (t *Table) Require(columns ...string) error {
	have := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = struct{}{}
	}
	for _, c := range columns {
		if _, ok := have[c]; !ok {
			return fmt.Errorf("%w %q in %s", ErrMissingColumn, c, t.Name)
		}
	}
	return nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ReadTable parses tab-delimited records with a header row.
// Rows shorter than the header are kept; missing cells read as "".
func ReadTable(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{Name: name}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("onet: read header %s: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		cols[h] = i
	}

	t := &Table{Name: name, Columns: header}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("onet: read %s line %d: %w", name, line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.Rows = append(t.Rows, Row{Line: line, cols: cols, fields: rec})
	}
	return t, nil
}
