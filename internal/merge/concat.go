package merge

import (
	"fmt"

	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"
)

// Column names used when concatenated rows are tagged with their origin.
const (
	SourceFileColumn  = "source_file"
	SourceSheetColumn = "source_sheet"
)

// SourceLabel names where a table came from.
type SourceLabel struct {
	File  string
	Sheet string
}

// Concatenate stacks tables vertically. The result's columns are the union
// of the input columns in first-seen order; cells for columns a table lacks
// are nil. When labels is non-nil it must hold one label per table, and two
// trailing columns record each row's source file and sheet.
func Concatenate(tables []*table.Table, labels []SourceLabel) (*table.Table, error) {
	if len(tables) == 0 {
		return nil, types.ErrEmptyInput
	}
	if labels != nil && len(labels) != len(tables) {
		return nil, fmt.Errorf("concatenate: %d source labels for %d tables", len(labels), len(tables))
	}

	taken := make(map[string]struct{})
	at := make(map[string]int)
	var columns []string
	total := 0
	for _, t := range tables {
		for _, c := range t.Columns() {
			if _, ok := taken[c]; !ok {
				taken[c] = struct{}{}
				at[c] = len(columns)
				columns = append(columns, c)
			}
		}
		total += t.NumRows()
	}
	data := len(columns)

	if labels != nil {
		columns = append(columns,
			uniqueName(SourceFileColumn, taken),
			uniqueName(SourceSheetColumn, taken),
		)
	}

	b, err := table.NewBuilder(columns, total)
	if err != nil {
		return nil, err
	}

	for ti, t := range tables {
		// target[i] is where column i of this table lands in the result.
		target := make([]int, t.NumCols())
		for i, c := range t.Columns() {
			target[i] = at[c]
		}

		for _, row := range t.All() {
			out := make([]any, len(columns))
			for i, v := range row {
				out[target[i]] = v
			}
			if labels != nil {
				out[data] = labels[ti].File
				out[data+1] = labels[ti].Sheet
			}
			b.Append(out)
		}
	}

	return b.Table(), nil
}
