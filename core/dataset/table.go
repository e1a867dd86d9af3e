// Package dataset loads and shapes the tabular CSV data consumed by
// training and auditing.
package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHeader indicates a CSV stream without a header row.
	ErrNoHeader = errors.New("csv has no header row")

	// ErrRaggedRow indicates a record whose width differs from the header.
	ErrRaggedRow = errors.New("row width differs from header")

	// ErrInvalidPattern indicates a column pattern that could not be compiled.
	ErrInvalidPattern = errors.New("invalid column pattern")
)

// Table is an immutable rectangular block of string cells under named
// columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewTable builds a table, validating that rows are rectangular and
// column names are distinct.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d: %w",
				i, len(row), len(columns), ErrRaggedRow)
		}
	}
	return &Table{columns: columns, index: index, rows: rows}, nil
}

// Columns returns the column names in header order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Cell returns the value at row i under the named column.
func (t *Table) Cell(i int, column string) (string, bool) {
	j, ok := t.index[column]
	if !ok {
		return "", false
	}
	return t.rows[i][j], true
}

// Row returns row i as a column-keyed map.
func (t *Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.columns))
	for j, name := range t.columns {
		out[name] = t.rows[i][j]
	}
	return out
}

// Rows materializes every row as a column-keyed map, the shape the
// network builder consumes.
func (t *Table) Rows() []map[string]string {
	out := make([]map[string]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Select projects the table onto the named columns, preserving their
// order in the argument.
func (t *Table) Select(columns []string) (*Table, error) {
	indices := make([]int, len(columns))
	for i, name := range columns {
		j, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("select: unknown column %q", name)
		}
		indices[i] = j
	}
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		cells := make([]string, len(indices))
		for i, j := range indices {
			cells[i] = row[j]
		}
		rows[r] = cells
	}
	return NewTable(append([]string(nil), columns...), rows)
}
