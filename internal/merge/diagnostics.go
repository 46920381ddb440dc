package merge

import (
	"github.com/nconklindev/tablemerge/internal/table"
)

// DuplicateNote is written to the note column of rows whose key was
// duplicated in a source table.
const DuplicateNote = "duplicate key"

// DuplicateKey is a key value that occurs more than once in one source.
type DuplicateKey struct {
	// Source is the input position of the table holding the duplicates.
	Source int
	// Key is the canonical key.
	Key string
	// Values are the key cells of the first occurrence, in key order.
	Values []any
	// Rows are the positions of every occurrence in the source table.
	Rows []int
}

// Count is the number of rows sharing the key.
func (d DuplicateKey) Count() int { return len(d.Rows) }

func (d DuplicateKey) String() string { return displayKey(d.Key) }

// UnmatchedRows are rows of a joined-in source whose key has no
// counterpart on the anchor side.
type UnmatchedRows struct {
	Source int
	// Positions are the row positions in the source table.
	Positions []int
	// Rows holds the unmatched rows with the source's original columns.
	Rows *table.Table
}

// Diagnostics is the advisory record that accompanies a merge result.
type Diagnostics struct {
	Keys       []string
	Duplicates []DuplicateKey
	Unmatched  []UnmatchedRows
}

func (d Diagnostics) HasDuplicates() bool { return len(d.Duplicates) > 0 }

// DuplicateSet returns every duplicated canonical key across all sources.
func (d Diagnostics) DuplicateSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.Duplicates))
	for _, dup := range d.Duplicates {
		set[dup.Key] = struct{}{}
	}
	return set
}

// DuplicateKeys returns the duplicated keys in display form, first seen
// first, without repeats.
func (d Diagnostics) DuplicateKeys() []string {
	seen := make(map[string]struct{}, len(d.Duplicates))
	var out []string
	for _, dup := range d.Duplicates {
		if _, ok := seen[dup.Key]; ok {
			continue
		}
		seen[dup.Key] = struct{}{}
		out = append(out, dup.String())
	}
	return out
}

// UnmatchedCount is the total number of unmatched rows over all sources.
func (d Diagnostics) UnmatchedCount() int {
	n := 0
	for _, u := range d.Unmatched {
		n += u.Rows.NumRows()
	}
	return n
}

// UnmatchedFor returns the unmatched rows recorded for a source.
func (d Diagnostics) UnmatchedFor(source int) (UnmatchedRows, bool) {
	for _, u := range d.Unmatched {
		if u.Source == source {
			return u, true
		}
	}
	return UnmatchedRows{}, false
}

// Collector gathers duplicate-key and unmatched-row findings while a merge
// runs. A Collector serves a single merge and is not safe for concurrent use.
type Collector struct {
	keys      []string
	dups      []DuplicateKey
	unmatched []UnmatchedRows
}

func NewCollector(keys []string) *Collector {
	return &Collector{keys: append([]string(nil), keys...)}
}

// AddDuplicates records every key that occurs more than once in t, in
// order of first occurrence. Rows with an empty key are ignored.
func (c *Collector) AddDuplicates(source int, t *table.Table) {
	pos := keyColumns(t, c.keys)
	first := make(map[string]int, t.NumRows())
	var found []DuplicateKey

	for i, row := range t.All() {
		k, ok := rowKey(row, pos)
		if !ok {
			continue
		}
		at, seen := first[k]
		if !seen {
			found = append(found, DuplicateKey{Source: source, Key: k, Rows: []int{i}, Values: keyValues(row, pos)})
			first[k] = len(found) - 1
			continue
		}
		found[at].Rows = append(found[at].Rows, i)
	}

	for _, d := range found {
		if len(d.Rows) > 1 {
			c.dups = append(c.dups, d)
		}
	}
}

// AddUnmatched records rows of t whose key is not in anchor. Rows with an
// empty key can never match and are always recorded.
func (c *Collector) AddUnmatched(source int, t *table.Table, anchor map[string]struct{}) {
	pos := keyColumns(t, c.keys)
	var positions []int
	for i, row := range t.All() {
		k, ok := rowKey(row, pos)
		if ok {
			if _, hit := anchor[k]; hit {
				continue
			}
		}
		positions = append(positions, i)
	}
	if len(positions) == 0 {
		return
	}
	c.unmatched = append(c.unmatched, UnmatchedRows{
		Source:    source,
		Positions: positions,
		Rows:      t.Take(positions),
	})
}

// Diagnostics returns everything collected so far.
func (c *Collector) Diagnostics() Diagnostics {
	return Diagnostics{
		Keys:       append([]string(nil), c.keys...),
		Duplicates: append([]DuplicateKey(nil), c.dups...),
		Unmatched:  append([]UnmatchedRows(nil), c.unmatched...),
	}
}

func keyValues(row []any, pos []int) []any {
	out := make([]any, len(pos))
	for i, p := range pos {
		out[i] = row[p]
	}
	return out
}
