package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"

	"github.com/xuri/excelize/v2"
)

// RowDetectionLimit bounds how many rows are inspected when guessing the
// header row.
const RowDetectionLimit = 10

// AutoHeader asks the loader to detect the header row.
const AutoHeader = -1

var errNoHeader = errors.New("could not find header row")

// IsSupported reports whether a file name has a loadable extension.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// Sheets lists the sheet names of a workbook. A CSV file has a single sheet
// named after the file.
func Sheets(r io.Reader, name string) ([]string, error) {
	if isCSV(name) {
		return []string{csvSheetName(name)}, nil
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &types.SheetReadError{Source: filepath.Base(name), Err: err}
	}
	defer f.Close()

	list := f.GetSheetList()
	if len(list) == 0 {
		return nil, &types.SheetReadError{Source: filepath.Base(name), Err: errors.New("workbook has no sheets")}
	}
	return list, nil
}

// SheetsFile is Sheets for a file on disk.
func SheetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.SheetReadError{Source: filepath.Base(path), Err: err}
	}
	defer f.Close()
	return Sheets(f, path)
}

// Load reads one sheet into a Table. name is the file name and selects the
// format by extension. sheet may be empty for the first sheet. headerRow is
// 0-indexed; AutoHeader detects it.
//
// Column names are trimmed with whitespace runs collapsed. A blank header
// becomes "Unnamed: <position>" and a repeated one gets ".1", ".2" and so
// on. Trailing columns with a blank header and no data are dropped, as are
// rows with no data at all.
func Load(r io.Reader, name, sheet string, headerRow int) (*table.Table, error) {
	source := filepath.Base(name)

	var (
		grid  [][]any
		label = sheet
		err   error
	)
	if isCSV(name) {
		grid, err = readCSV(r)
		label = csvSheetName(name)
	} else {
		grid, label, err = readXLSX(r, sheet)
	}
	if err != nil {
		return nil, &types.SheetReadError{Source: source, Sheet: label, Err: err}
	}

	t, err := buildTable(grid, headerRow)
	if err != nil {
		return nil, &types.SheetReadError{Source: source, Sheet: label, Err: err}
	}
	return t, nil
}

// LoadFile loads the sheet described by ref.
func LoadFile(ref types.SheetRef) (*table.Table, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, &types.SheetReadError{Source: ref.FileLabel(), Sheet: ref.Sheet, Err: err}
	}
	defer f.Close()
	return Load(f, ref.Path, ref.Sheet, ref.HeaderRow)
}

func csvSheetName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readCSV(r io.Reader) ([][]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")

	grid := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				row[j] = cell
			}
		}
		grid[i] = row
	}
	return grid, nil
}

func readXLSX(r io.Reader, sheet string) ([][]any, string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, sheet, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, sheet, fmt.Errorf("sheet not found")
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, sheet, err
	}
	if len(rows) == 0 {
		return nil, sheet, fmt.Errorf("empty sheet")
	}

	typer := newCellTyper(f, sheet)
	grid := make([][]any, len(rows))
	for i, row := range rows {
		out := make([]any, len(row))
		for j, raw := range row {
			out[j] = typer.value(j+1, i+1, raw)
		}
		grid[i] = out
	}
	return grid, sheet, nil
}

// cellTyper turns raw cell text into a typed value using the cell's type
// and number format.
type cellTyper struct {
	f      *excelize.File
	sheet  string
	isDate map[int]bool
}

func newCellTyper(f *excelize.File, sheet string) *cellTyper {
	return &cellTyper{f: f, sheet: sheet, isDate: make(map[int]bool)}
}

func (c *cellTyper) value(col, row int, raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := c.f.GetCellType(c.sheet, ref)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		return raw
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		if c.dateFormatted(ref) {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				return t
			}
		}
		return n
	}
	return raw
}

func (c *cellTyper) dateFormatted(ref string) bool {
	styleID, err := c.f.GetCellStyle(c.sheet, ref)
	if err != nil {
		return false
	}
	if known, ok := c.isDate[styleID]; ok {
		return known
	}

	date := false
	if style, err := c.f.GetStyle(styleID); err == nil {
		date = isDateFormat(style.NumFmt)
		if style.CustomNumFmt != nil {
			date = isDateLayout(*style.CustomNumFmt)
		}
	}
	c.isDate[styleID] = date
	return date
}

func isDateFormat(fmtID int) bool {
	switch fmtID {
	case 14, 15, 16, 17, 22, 27, 30, 36, 45, 46, 47, 50, 57:
		return true
	}
	return false
}

// isDateLayout recognises custom number formats such as "yyyy-mm-dd" or
// "d/m/yy h:mm".
func isDateLayout(layout string) bool {
	l := strings.ToLower(layout)
	if strings.Contains(l, "[$-") {
		l = l[strings.Index(l, "]")+1:]
	}
	return strings.Contains(l, "yy") || (strings.Contains(l, "d") && strings.Contains(l, "m"))
}

func buildTable(grid [][]any, headerRow int) (*table.Table, error) {
	if headerRow == AutoHeader {
		headerRow = findHeaderRow(grid)
		if headerRow < 0 {
			return nil, errNoHeader
		}
	}
	if headerRow < 0 || headerRow >= len(grid) {
		return nil, fmt.Errorf("header row %d is outside the sheet (%d rows)", headerRow+1, len(grid))
	}

	header := grid[headerRow]
	data := grid[headerRow+1:]

	width := len(header)
	for _, row := range data {
		width = max(width, len(row))
	}

	raw := make([]string, width)
	for i := range width {
		if i < len(header) && header[i] != nil {
			raw[i] = cleanHeader(header[i])
		}
	}

	// Drop trailing columns that have neither a name nor data.
	for width > 0 && raw[width-1] == "" && columnEmpty(data, width-1) {
		width--
	}
	columns := nameColumns(raw[:width])

	rows := make([][]any, 0, len(data))
	for _, row := range data {
		if len(row) > width {
			row = row[:width]
		}
		if rowEmpty(row) {
			continue
		}
		rows = append(rows, row)
	}
	return table.New(columns, rows)
}

func cleanHeader(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	default:
		s = FormatValue(x)
	}
	return strings.Join(strings.Fields(s), " ")
}

// nameColumns fills blank names and makes repeated names unique.
func nameColumns(raw []string) []string {
	seen := make(map[string]int, len(raw))
	used := make(map[string]bool, len(raw))
	for _, r := range raw {
		used[r] = true
	}

	out := make([]string, len(raw))
	for i, name := range raw {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			candidate := name
			for {
				n++
				candidate = fmt.Sprintf("%s.%d", name, n)
				if !used[candidate] {
					break
				}
			}
			seen[name] = n
			used[candidate] = true
			out[i] = candidate
			continue
		}
		seen[name] = 0
		used[name] = true
		out[i] = name
	}
	return out
}

func columnEmpty(data [][]any, col int) bool {
	for _, row := range data {
		if col < len(row) && row[col] != nil {
			return false
		}
	}
	return true
}

func rowEmpty(row []any) bool {
	for _, v := range row {
		if v != nil {
			return false
		}
	}
	return true
}

// findHeaderRow locates the first row that appears to be a header
// by finding the row with the most non-empty text cells
func findHeaderRow(rows [][]any) int {
	maxNonEmpty := 0
	headerIdx := -1

	searchLimit := min(len(rows), RowDetectionLimit*2)

	for i := 0; i < searchLimit; i++ {
		nonEmptyCount := 0
		hasText := false

		for _, cell := range rows[i] {
			if cell == nil {
				continue
			}
			nonEmptyCount++
			if s, ok := cell.(string); ok && containsLetters(s) {
				hasText = true
			}
		}

		// A header has text and more filled cells than any earlier candidate.
		if nonEmptyCount >= 1 && hasText && nonEmptyCount > maxNonEmpty {
			maxNonEmpty = nonEmptyCount
			headerIdx = i
		}
	}

	return headerIdx
}

// containsLetters checks if a string contains any alphabetic characters
func containsLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// ReadAll is a convenience for callers holding the whole file in memory.
func ReadAll(data []byte, name, sheet string, headerRow int) (*table.Table, error) {
	return Load(bytes.NewReader(data), name, sheet, headerRow)
}
