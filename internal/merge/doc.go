// Package merge combines tables.
//
// Three operations are provided:
//
//   - [Concatenate] stacks any number of tables, reconciling their columns.
//   - [Join] aligns two or more tables on key columns with inner, outer,
//     left or right semantics. Repeated keys multiply rows.
//   - [Lookup] enriches a primary table from a secondary one using the
//     first matching row only, so the primary row count never changes.
//
// Key cells are compared through [CanonicalKey], which makes numeric and
// textual spellings of the same number equal. Join and Lookup return a
// [Result] carrying [Diagnostics]: keys repeated within a source and rows
// of a joined-in source that found no partner. Diagnostics never change
// which rows are in the result.
package merge
