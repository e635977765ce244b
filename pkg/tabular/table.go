package tabular

import (
	"fmt"
)

// Table is an in-memory tabular dataset: an ordered set of named columns and
// row-major cell data. Cells are kept as strings; interpretation (numeric,
// datetime, categorical) is left to the consumer, mirroring how the platform
// infers encodings server-side.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates an empty Table with the given column names. Column names must
// be unique; an empty column name is rejected.
func New(columns ...string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, ok := index[col]; ok {
			return nil, fmt.Errorf("duplicate column name %q", col)
		}
		index[col] = i
	}
	return &Table{
		columns: append([]string(nil), columns...),
		index:   index,
	}, nil
}

// FromRecords builds a Table from raw records where the first record is the
// header row. It is the in-memory equivalent of ReadCSV.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return New()
	}
	t, err := New(records[0]...)
	if err != nil {
		return nil, err
	}
	for _, row := range records[1:] {
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Columns returns the column names in order. The returned slice must not be
// modified.
func (t *Table) Columns() []string {
	return t.columns
}

// NumRows returns the number of data rows in the table.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// NumColumns returns the number of columns in the table.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow adds a data row. The row must have exactly one cell per column.
func (t *Table) AppendRow(row []string) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.columns))
	}
	t.rows = append(t.rows, append([]string(nil), row...))
	return nil
}

// Cell returns the value at the given row index and column name.
func (t *Table) Cell(row int, column string) (string, error) {
	ci, ok := t.index[column]
	if !ok {
		return "", fmt.Errorf("unknown column %q", column)
	}
	if row < 0 || row >= len(t.rows) {
		return "", fmt.Errorf("row index %d out of range [0,%d)", row, len(t.rows))
	}
	return t.rows[row][ci], nil
}

// Column returns a copy of all values in the named column, in row order.
func (t *Table) Column(name string) ([]string, error) {
	ci, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[ci]
	}
	return values, nil
}

// Row returns a copy of the row at the given index.
func (t *Table) Row(i int) ([]string, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("row index %d out of range [0,%d)", i, len(t.rows))
	}
	return append([]string(nil), t.rows[i]...), nil
}

// Head returns a new Table containing at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	if n < 0 {
		n = 0
	}
	head := &Table{
		columns: append([]string(nil), t.columns...),
		index:   t.index,
	}
	for _, row := range t.rows[:n] {
		head.rows = append(head.rows, append([]string(nil), row...))
	}
	return head
}

// Select returns a new Table restricted to the given columns, preserving row
// order. This is the primary way to build a seed table: fix a handful of
// attribute columns and leave the rest to be synthesized.
func (t *Table) Select(columns ...string) (*Table, error) {
	out, err := New(columns...)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(columns))
	for i, col := range columns {
		ci, ok := t.index[col]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		indices[i] = ci
	}
	for _, row := range t.rows {
		selected := make([]string, len(indices))
		for i, ci := range indices {
			selected[i] = row[ci]
		}
		out.rows = append(out.rows, selected)
	}
	return out, nil
}

// Records returns the table as raw records, header row first. The result is
// a deep copy and safe to modify.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.rows)+1)
	records = append(records, append([]string(nil), t.columns...))
	for _, row := range t.rows {
		records = append(records, append([]string(nil), row...))
	}
	return records
}
