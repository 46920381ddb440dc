package merge

import (
	"fmt"

	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"
)

// Source positions used in lookup diagnostics.
const (
	PrimarySource   = 0
	SecondarySource = 1
)

// Lookup enriches primary with the selected columns of secondary, matching
// rows on keys the way a spreadsheet VLOOKUP does.
//
// Every primary row appears exactly once, in order. When a key occurs more
// than once in secondary only its first row is used; those keys are listed
// in the diagnostics and the affected result rows are marked in a note
// column. Secondary rows whose key never occurs in primary are returned as
// unmatched rows.
//
// A selected column whose name already exists in primary is added as
// "<name>_2". An empty selection is allowed and leaves primary's columns
// unchanged apart from the note column.
func Lookup(primary, secondary *table.Table, keys, selected []string) (*Result, error) {
	if primary == nil || secondary == nil {
		got := 0
		if primary != nil || secondary != nil {
			got = 1
		}
		return nil, &types.InsufficientTablesError{Need: 2, Got: got}
	}
	if len(keys) == 0 {
		return nil, &types.NoCommonKeyError{}
	}
	if err := requireKeys(primary, keys, "primary table"); err != nil {
		return nil, err
	}
	if err := requireKeys(secondary, keys, "lookup table"); err != nil {
		return nil, err
	}

	selected, err := validateSelection(secondary, keys, selected)
	if err != nil {
		return nil, err
	}

	c := NewCollector(keys)
	c.AddDuplicates(SecondarySource, secondary)
	c.AddUnmatched(SecondarySource, secondary, keySet(primary, keys))

	// First occurrence wins.
	secKeys := keyColumns(secondary, keys)
	first := make(map[string]int, secondary.NumRows())
	for i, row := range secondary.All() {
		if k, ok := rowKey(row, secKeys); ok {
			if _, seen := first[k]; !seen {
				first[k] = i
			}
		}
	}

	taken := make(map[string]struct{}, primary.NumCols()+len(selected))
	columns := primary.Columns()
	for _, col := range columns {
		taken[col] = struct{}{}
	}
	picks := make([]int, len(selected))
	for i, col := range selected {
		picks[i], _ = secondary.ColumnIndex(col)
		name := col
		if _, clash := taken[col]; clash {
			name = fmt.Sprintf("%s_%d", col, SecondarySource+1)
		}
		columns = append(columns, uniqueName(name, taken))
	}

	b, err := table.NewBuilder(columns, primary.NumRows())
	if err != nil {
		return nil, err
	}
	priKeys := keyColumns(primary, keys)
	width := primary.NumCols()
	for _, row := range primary.All() {
		out := make([]any, len(columns))
		copy(out, row)
		if k, ok := rowKey(row, priKeys); ok {
			if si, hit := first[k]; hit {
				src := secondary.Row(si)
				for j, p := range picks {
					out[width+j] = src[p]
				}
			}
		}
		b.Append(out)
	}

	res := &Result{Table: b.Table(), Diagnostics: c.Diagnostics()}
	if res.Diagnostics.HasDuplicates() {
		res.Table, res.NoteColumn, err = annotate(res.Table, keys, res.Diagnostics.DuplicateSet())
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// validateSelection checks that every selected column is a non-key column
// of secondary and drops repeats.
func validateSelection(secondary *table.Table, keys, selected []string) ([]string, error) {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	seen := make(map[string]bool, len(selected))
	out := make([]string, 0, len(selected))
	var bad []string
	for _, col := range selected {
		if seen[col] {
			continue
		}
		seen[col] = true
		if isKey[col] || !secondary.HasColumn(col) {
			bad = append(bad, col)
			continue
		}
		out = append(out, col)
	}
	if len(bad) > 0 {
		return nil, &types.ColumnSelectionError{Columns: bad, Source: "lookup table"}
	}
	return out, nil
}

// LookupColumns returns the secondary columns that can be brought in: all
// of them except the keys. This is also the default selection.
func LookupColumns(secondary *table.Table, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var out []string
	for _, c := range secondary.Columns() {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	return out
}
