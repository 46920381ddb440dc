package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode is the merge mode chosen by the user.
type Mode string

const (
	ModeLookup      Mode = "lookup"
	ModeConcatenate Mode = "concatenate"
	ModeJoin        Mode = "join"
)

// Modes lists the merge modes in the order they are offered to the user.
var Modes = []Mode{ModeLookup, ModeConcatenate, ModeJoin}

// Label returns the human-readable name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeLookup:
		return "Lookup (VLOOKUP)"
	case ModeConcatenate:
		return "Concatenate"
	case ModeJoin:
		return "Key join"
	}
	return string(m)
}

// JoinType selects relational join semantics for a key join.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinOuter JoinType = "outer"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
)

// JoinTypes lists the supported join types in display order.
var JoinTypes = []JoinType{JoinInner, JoinOuter, JoinLeft, JoinRight}

// ParseJoinType converts user input to a JoinType.
func ParseJoinType(s string) (JoinType, error) {
	jt := JoinType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range JoinTypes {
		if jt == known {
			return jt, nil
		}
	}
	return "", fmt.Errorf("unknown join type %q (want inner, outer, left or right)", s)
}

// SheetRef identifies one source table: a file, a sheet inside it and the
// 0-indexed row holding the column headers. HeaderRow < 0 asks the loader
// to detect the header row.
type SheetRef struct {
	Path      string
	Sheet     string
	HeaderRow int
}

// FileLabel is the base name of the source file.
func (r SheetRef) FileLabel() string {
	return filepath.Base(r.Path)
}

func (r SheetRef) String() string {
	if r.Sheet == "" {
		return r.FileLabel()
	}
	return r.FileLabel() + ":" + r.Sheet
}

// MergeReport summarizes a completed merge action.
type MergeReport struct {
	MergeID         string   `json:"merge_id"`
	Mode            Mode     `json:"mode"`
	Sources         []string `json:"sources"`
	Rows            int      `json:"rows"`
	Columns         int      `json:"columns"`
	DuplicateKeys   []string `json:"duplicate_keys,omitempty"`
	UnmatchedRows   int      `json:"unmatched_rows"`
	OutputFile      string   `json:"output_file,omitempty"`
	UnmatchedFile   string   `json:"unmatched_file,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}
