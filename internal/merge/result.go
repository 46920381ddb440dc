package merge

import (
	"fmt"

	"github.com/nconklindev/tablemerge/internal/table"
)

// NoteColumn is the preferred name of the annotation column added to a
// result when duplicate keys caused fan-out or a first-match pick.
const NoteColumn = "merge_note"

// Result is the outcome of a single merge action.
type Result struct {
	Table       *table.Table
	Diagnostics Diagnostics
	// NoteColumn names the annotation column, or is empty when none was
	// added.
	NoteColumn string
}

// annotate appends a note column flagging rows whose key is in dup. The
// row count is unchanged.
func annotate(t *table.Table, keys []string, dup map[string]struct{}) (*table.Table, string, error) {
	taken := make(map[string]struct{}, t.NumCols())
	for _, c := range t.Columns() {
		taken[c] = struct{}{}
	}
	name := uniqueName(NoteColumn, taken)

	pos := keyColumns(t, keys)
	b, err := table.NewBuilder(append(t.Columns(), name), t.NumRows())
	if err != nil {
		return nil, "", err
	}
	for _, row := range t.All() {
		out := make([]any, len(row)+1)
		copy(out, row)
		if k, ok := rowKey(row, pos); ok {
			if _, hit := dup[k]; hit {
				out[len(row)] = DuplicateNote
			}
		}
		b.Append(out)
	}
	return b.Table(), name, nil
}

// uniqueName returns base, or base with the smallest numeric suffix that is
// not in taken. The returned name is added to taken.
func uniqueName(base string, taken map[string]struct{}) string {
	name := base
	for n := 2; ; n++ {
		if _, used := taken[name]; !used {
			break
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
	taken[name] = struct{}{}
	return name
}

// CommonColumns returns the columns present in every table, in the order
// they appear in the first one. These are the candidate join keys.
func CommonColumns(tables ...*table.Table) []string {
	if len(tables) == 0 {
		return nil
	}
	var out []string
	for _, c := range tables[0].Columns() {
		shared := true
		for _, t := range tables[1:] {
			if !t.HasColumn(c) {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, c)
		}
	}
	return out
}
