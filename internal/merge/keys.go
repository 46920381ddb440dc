package merge

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"

	"github.com/shopspring/decimal"
)

// keySeparator joins the parts of a compound key. It cannot appear in
// spreadsheet text typed by a user.
const keySeparator = "\x1f"

// plainNumber matches numeric text that is safe to read as a number.
// Leading zeros are excluded so codes like "007" stay text.
var plainNumber = regexp.MustCompile(`^[+-]?(0|[1-9]\d*)(\.\d+)?$`)

// CanonicalKey maps a cell value to the text used when comparing join keys.
//
// Numbers and numeric text share one form, so 1, 1.0, "1" and " 1.00 " all
// become "1". Dates without a time of day become YYYY-MM-DD. Other text is
// trimmed and otherwise compared as-is. nil and blank text become "".
func CanonicalKey(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return canonicalText(x)
	case float64:
		return canonicalFloat(x)
	case float32:
		return canonicalFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case fmt.Stringer:
		return canonicalText(x.String())
	}
	return canonicalText(fmt.Sprint(v))
}

func canonicalText(s string) string {
	s = strings.TrimSpace(s)
	if plainNumber.MatchString(s) {
		if d, err := decimal.NewFromString(s); err == nil {
			return d.String()
		}
	}
	return s
}

func canonicalFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return decimal.NewFromFloat(f).String()
}

// keyColumns resolves key names to column positions in t.
func keyColumns(t *table.Table, keys []string) []int {
	pos := make([]int, len(keys))
	for i, k := range keys {
		pos[i], _ = t.ColumnIndex(k)
	}
	return pos
}

// rowKey builds the canonical compound key of a row. ok is false when any
// key part is empty; such rows never match anything.
func rowKey(row []any, pos []int) (key string, ok bool) {
	if len(pos) == 1 {
		k := CanonicalKey(row[pos[0]])
		return k, k != ""
	}
	parts := make([]string, len(pos))
	for i, p := range pos {
		parts[i] = CanonicalKey(row[p])
		if parts[i] == "" {
			return "", false
		}
	}
	return strings.Join(parts, keySeparator), true
}

// keySet collects every non-empty key present in t.
func keySet(t *table.Table, keys []string) map[string]struct{} {
	pos := keyColumns(t, keys)
	set := make(map[string]struct{}, t.NumRows())
	for _, row := range t.All() {
		if k, ok := rowKey(row, pos); ok {
			set[k] = struct{}{}
		}
	}
	return set
}

// keyIndex maps each key to the rows holding it, in row order.
func keyIndex(t *table.Table, keys []string) map[string][]int {
	pos := keyColumns(t, keys)
	idx := make(map[string][]int, t.NumRows())
	for i, row := range t.All() {
		if k, ok := rowKey(row, pos); ok {
			idx[k] = append(idx[k], i)
		}
	}
	return idx
}

// displayKey renders a canonical key for people.
func displayKey(key string) string {
	return strings.ReplaceAll(key, keySeparator, " | ")
}

// requireKeys checks that every key column exists in t.
func requireKeys(t *table.Table, keys []string, source string) error {
	for _, k := range keys {
		if !t.HasColumn(k) {
			return &types.NoCommonKeyError{Key: k, Source: source}
		}
	}
	return nil
}
