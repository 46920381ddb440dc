package merge

import (
	"fmt"

	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"
)

// Join aligns two or more tables on shared key columns.
//
// The tables are folded left to right: the first table is the initial
// accumulator and each following table is joined into it with the chosen
// relational semantics. A key repeated on either side multiplies rows
// (fan-out); such rows are marked in a note column and listed in the
// diagnostics.
//
// Non-key columns that occur in more than one input are renamed to
// "<name>_<n>", n being the 1-based input position, before any joining.
// Moving a table to another position therefore changes its suffixes.
func Join(tables []*table.Table, keys []string, how types.JoinType) (*Result, error) {
	if len(tables) < 2 {
		return nil, &types.InsufficientTablesError{Need: 2, Got: len(tables)}
	}
	if len(keys) == 0 {
		return nil, &types.NoCommonKeyError{}
	}
	how, err := types.ParseJoinType(string(how))
	if err != nil {
		return nil, err
	}
	for i, t := range tables {
		if err := requireKeys(t, keys, sourceName(i)); err != nil {
			return nil, err
		}
	}

	prepared, err := disambiguate(tables, keys)
	if err != nil {
		return nil, err
	}

	c := NewCollector(keys)
	c.AddDuplicates(0, tables[0])

	acc := prepared[0]
	for i := 1; i < len(prepared); i++ {
		c.AddDuplicates(i, tables[i])
		c.AddUnmatched(i, tables[i], keySet(acc, keys))

		acc, err = joinPair(acc, prepared[i], keys, how)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", sourceName(i), err)
		}
	}

	res := &Result{Table: acc, Diagnostics: c.Diagnostics()}
	if res.Diagnostics.HasDuplicates() {
		res.Table, res.NoteColumn, err = annotate(acc, keys, res.Diagnostics.DuplicateSet())
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// disambiguate renames non-key columns shared by several inputs so every
// column of the final result has a unique name traceable to its input.
func disambiguate(tables []*table.Table, keys []string) ([]*table.Table, error) {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	owners := make(map[string]int)
	taken := make(map[string]struct{})
	for _, t := range tables {
		for _, c := range t.Columns() {
			owners[c]++
			taken[c] = struct{}{}
		}
	}

	out := make([]*table.Table, len(tables))
	for i, t := range tables {
		mapping := make(map[string]string)
		for _, c := range t.Columns() {
			if isKey[c] || owners[c] < 2 {
				continue
			}
			mapping[c] = uniqueName(fmt.Sprintf("%s_%d", c, i+1), taken)
		}
		if len(mapping) == 0 {
			out[i] = t
			continue
		}
		renamed, err := t.Rename(mapping)
		if err != nil {
			return nil, err
		}
		out[i] = renamed
	}
	return out, nil
}

// joinPair joins right into left on keys. Result columns are left's columns
// followed by right's non-key columns. Key cells come from the left row, or
// from the right row when there is no left row.
//
// Row order: inner, left and outer follow left's rows, each expanded by its
// matches in right order; outer then appends unmatched right rows. right
// follows right's rows, each expanded by its matches in left order.
func joinPair(left, right *table.Table, keys []string, how types.JoinType) (*table.Table, error) {
	taken := make(map[string]struct{}, left.NumCols()+right.NumCols())
	columns := left.Columns()
	for _, c := range columns {
		taken[c] = struct{}{}
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var rightVals []int
	for i, c := range right.Columns() {
		if isKey[c] {
			continue
		}
		rightVals = append(rightVals, i)
		columns = append(columns, uniqueName(c, taken))
	}

	leftKeys := keyColumns(left, keys)
	rightKeys := keyColumns(right, keys)
	width := left.NumCols()

	b, err := table.NewBuilder(columns, left.NumRows())
	if err != nil {
		return nil, err
	}

	emit := func(l, r []any) {
		row := make([]any, len(columns))
		if l != nil {
			copy(row, l)
		} else {
			for i, p := range leftKeys {
				row[p] = r[rightKeys[i]]
			}
		}
		if r != nil {
			for j, c := range rightVals {
				row[width+j] = r[c]
			}
		}
		b.Append(row)
	}

	if how == types.JoinRight {
		index := keyIndex(left, keys)
		for _, r := range right.All() {
			k, ok := rowKey(r, rightKeys)
			matches := index[k]
			if !ok || len(matches) == 0 {
				emit(nil, r)
				continue
			}
			for _, li := range matches {
				emit(left.Row(li), r)
			}
		}
		return b.Table(), nil
	}

	index := keyIndex(right, keys)
	matched := make([]bool, right.NumRows())
	for _, l := range left.All() {
		k, ok := rowKey(l, leftKeys)
		matches := index[k]
		if !ok || len(matches) == 0 {
			if how != types.JoinInner {
				emit(l, nil)
			}
			continue
		}
		for _, ri := range matches {
			emit(l, right.Row(ri))
			matched[ri] = true
		}
	}

	if how == types.JoinOuter {
		for i, r := range right.All() {
			if !matched[i] {
				emit(nil, r)
			}
		}
	}
	return b.Table(), nil
}

func sourceName(i int) string {
	return fmt.Sprintf("table %d", i+1)
}
