package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput is returned when an operation receives no tables.
	ErrEmptyInput = errors.New("no tables supplied")

	// ErrEmptyColumnSelection is returned when a lookup must add at least
	// one column and none was selected.
	ErrEmptyColumnSelection = errors.New("no columns selected")
)

// InsufficientTablesError reports that fewer tables were supplied than an
// operation requires.
type InsufficientTablesError struct {
	Need int
	Got  int
}

func (e *InsufficientTablesError) Error() string {
	return fmt.Sprintf("need at least %d tables, got %d", e.Need, e.Got)
}

// NoCommonKeyError reports a join requested without a usable shared key.
// Key is empty when no key was chosen at all.
type NoCommonKeyError struct {
	Key    string
	Source string
}

func (e *NoCommonKeyError) Error() string {
	if e.Key == "" {
		return "no join key selected"
	}
	return fmt.Sprintf("key column %q not found in %s", e.Key, e.Source)
}

// SheetReadError reports that a source could not be parsed.
type SheetReadError struct {
	Source string
	Sheet  string
	Err    error
}

func (e *SheetReadError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("read %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("read %s sheet %q: %v", e.Source, e.Sheet, e.Err)
}

func (e *SheetReadError) Unwrap() error { return e.Err }

// ColumnSelectionError reports selected columns missing from a table.
type ColumnSelectionError struct {
	Columns []string
	Source  string
}

func (e *ColumnSelectionError) Error() string {
	return fmt.Sprintf("columns not found in %s: %s", e.Source, strings.Join(e.Columns, ", "))
}

// DuplicateColumnError reports a table built with a repeated column name.
type DuplicateColumnError struct {
	Column string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("duplicate column name %q", e.Column)
}

// Describe turns an error into a short message suitable for end users.
func Describe(err error) string {
	var (
		insufficient *InsufficientTablesError
		noKey        *NoCommonKeyError
		readErr      *SheetReadError
		selErr       *ColumnSelectionError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Select at least one sheet to merge."
	case errors.Is(err, ErrEmptyColumnSelection):
		return "Select at least one column to bring in from the lookup table."
	case errors.As(err, &insufficient):
		return fmt.Sprintf("This merge needs at least %d sheets; %d selected.", insufficient.Need, insufficient.Got)
	case errors.As(err, &noKey):
		if noKey.Key == "" {
			return "Select at least one key column shared by every sheet."
		}
		return fmt.Sprintf("Column %q is missing from %s, so it cannot be used as a key.", noKey.Key, noKey.Source)
	case errors.As(err, &readErr):
		return fmt.Sprintf("Could not read %s: %v", readErr.Source, readErr.Err)
	case errors.As(err, &selErr):
		return fmt.Sprintf("Columns not found in %s: %s", selErr.Source, strings.Join(selErr.Columns, ", "))
	}
	return err.Error()
}
