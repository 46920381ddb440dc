// Package table provides the immutable rectangular Table value that every
// merge operation consumes and produces.
//
// A Table is an ordered list of uniquely named columns and an ordered list of
// rows. Every row holds exactly one value per column; a missing value is nil.
// Cell values are nil, string, float64, int64, bool or time.Time.
//
// Operations never modify their receiver. They return a new Table that may
// share row storage with the original, which is safe because neither side
// ever writes to it again.
package table

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/nconklindev/tablemerge/internal/types"
)

type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New builds a Table from column names and positional rows. Short rows are
// padded with nil; rows longer than the column list are rejected. The input
// slices are copied.
func New(columns []string, rows [][]any) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, &types.DuplicateColumnError{Column: c}
		}
		index[c] = i
	}

	out := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) > len(columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(r), len(columns))
		}
		row := make([]any, len(columns))
		copy(row, r)
		out[i] = row
	}

	return &Table{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    out,
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(columns []string, rows ...[]any) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// fromOwned wraps slices the caller promises not to touch again.
func fromOwned(columns []string, rows [][]any) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Table{columns: columns, index: index, rows: rows}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) NumRows() int { return len(t.rows) }

func (t *Table) NumCols() int { return len(t.columns) }

// HasColumn reports whether the table has a column with this exact name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Value returns the cell at row i in the named column, or nil when the
// column does not exist.
func (t *Table) Value(i int, column string) any {
	c, ok := t.index[column]
	if !ok {
		return nil
	}
	return t.rows[i][c]
}

// Row returns a copy of row i in column order.
func (t *Table) Row(i int) []any {
	return append([]any(nil), t.rows[i]...)
}

// RowMap returns row i keyed by column name.
func (t *Table) RowMap(i int) map[string]any {
	m := make(map[string]any, len(t.columns))
	for c, name := range t.columns {
		m[name] = t.rows[i][c]
	}
	return m
}

// All iterates rows in order. The yielded slice must not be modified.
func (t *Table) All() iter.Seq2[int, []any] {
	return func(yield func(int, []any) bool) {
		for i, r := range t.rows {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Column returns a copy of every value in the named column.
func (t *Table) Column(name string) ([]any, error) {
	c, ok := t.index[name]
	if !ok {
		return nil, &types.ColumnSelectionError{Columns: []string{name}, Source: "table"}
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[c]
	}
	return out, nil
}

// Select projects the table onto the given columns, in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	var missing []string
	for i, name := range columns {
		c, ok := t.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[i] = c
	}
	if len(missing) > 0 {
		return nil, &types.ColumnSelectionError{Columns: missing, Source: "table"}
	}

	rows := make([][]any, len(t.rows))
	for r, src := range t.rows {
		row := make([]any, len(idx))
		for i, c := range idx {
			row[i] = src[c]
		}
		rows[r] = row
	}

	out, err := New(columns, nil)
	if err != nil {
		return nil, err
	}
	out.rows = rows
	return out, nil
}

// Rename returns a table whose columns are renamed according to mapping.
// Columns absent from mapping keep their names.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	var missing []string
	for from := range mapping {
		if !t.HasColumn(from) {
			missing = append(missing, from)
		}
	}
	if len(missing) > 0 {
		return nil, &types.ColumnSelectionError{Columns: missing, Source: "table"}
	}

	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if to, ok := mapping[c]; ok {
			cols[i] = to
		} else {
			cols[i] = c
		}
	}

	out, err := New(cols, nil)
	if err != nil {
		return nil, err
	}
	out.rows = t.rows
	return out, nil
}

// WithConstant appends a column holding the same value in every row.
func (t *Table) WithConstant(name string, value any) (*Table, error) {
	if t.HasColumn(name) {
		return nil, &types.DuplicateColumnError{Column: name}
	}

	rows := make([][]any, len(t.rows))
	for i, r := range t.rows {
		row := make([]any, len(r)+1)
		copy(row, r)
		row[len(r)] = value
		rows[i] = row
	}
	return fromOwned(append(t.Columns(), name), rows), nil
}

// Take returns the rows at the given positions, in the given order.
func (t *Table) Take(positions []int) *Table {
	rows := make([][]any, len(positions))
	for i, p := range positions {
		rows[i] = t.rows[p]
	}
	return fromOwned(t.Columns(), rows)
}

// Head returns at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	if n < 0 {
		n = 0
	}
	return fromOwned(t.Columns(), t.rows[:n:n])
}

// Equal reports whether both tables have the same columns and cell values
// in the same order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	return reflect.DeepEqual(t.columns, o.columns) && reflect.DeepEqual(t.rows, o.rows)
}

// Builder accumulates rows for a table with a fixed column list. It is the
// staging copy used by merge operations; the Table it produces is
// independent of the builder.
type Builder struct {
	columns []string
	rows    [][]any
}

// NewBuilder validates the columns and returns an empty builder.
func NewBuilder(columns []string, capacity int) (*Builder, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, &types.DuplicateColumnError{Column: c}
		}
		seen[c] = struct{}{}
	}
	return &Builder{
		columns: append([]string(nil), columns...),
		rows:    make([][]any, 0, capacity),
	}, nil
}

// Append adds a row. The builder takes ownership of row, which must have
// exactly one value per column.
func (b *Builder) Append(row []any) {
	if len(row) != len(b.columns) {
		panic(fmt.Sprintf("table: row has %d values for %d columns", len(row), len(b.columns)))
	}
	b.rows = append(b.rows, row)
}

// Len is the number of rows appended so far.
func (b *Builder) Len() int { return len(b.rows) }

// Table returns the built table. The builder must not be used afterwards.
func (b *Builder) Table() *Table {
	t := fromOwned(b.columns, b.rows)
	b.columns, b.rows = nil, nil
	return t
}
