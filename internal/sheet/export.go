package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nconklindev/tablemerge/internal/table"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// Sheet is a named table destined for one worksheet.
type Sheet struct {
	Name  string
	Table *table.Table
}

// Export renders t as a single-sheet xlsx document: a header row followed
// by one row per table row.
func Export(t *table.Table, sheetName string) ([]byte, error) {
	return ExportWorkbook([]Sheet{{Name: sheetName, Table: t}})
}

// ExportWorkbook renders several tables, one worksheet each, in order.
func ExportWorkbook(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	var (
		st  styles
		err error
	)
	if st.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	// Built-in formats: 14 is m/d/yyyy, 22 is m/d/yyyy h:mm.
	if st.date, err = f.NewStyle(&excelize.Style{NumFmt: 14}); err != nil {
		return nil, fmt.Errorf("create date style: %w", err)
	}
	if st.dateTime, err = f.NewStyle(&excelize.Style{NumFmt: 22}); err != nil {
		return nil, fmt.Errorf("create date-time style: %w", err)
	}

	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := sheetName(s.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", name, err)
		}

		if err := writeSheet(f, name, s.Table, st); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// styles are the style IDs shared by every sheet of a workbook.
type styles struct {
	header   int
	date     int
	dateTime int
}

func writeSheet(f *excelize.File, name string, t *table.Table, st styles) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	cols := t.Columns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = excelize.Cell{Value: c, StyleID: st.header}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, row := range t.All() {
		cells := make([]any, len(row))
		for i, v := range row {
			if tm, ok := v.(time.Time); ok {
				style := st.date
				if hasClock(tm) {
					style = st.dateTime
				}
				cells[i] = excelize.Cell{Value: tm, StyleID: style}
				continue
			}
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet %q: %w", name, err)
	}
	return nil
}

// sheetName makes name acceptable to Excel and unique within the workbook.
func sheetName(name string, i int, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = fmt.Sprintf("Sheet%d", i+1)
	}
	name = truncate(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ExportCSV renders t as CSV with a header row.
func ExportCSV(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns()); err != nil {
		return nil, err
	}
	record := make([]string, t.NumCols())
	for _, row := range t.All() {
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes sheets to path. A .csv path receives only the first
// sheet; any other path is written as an xlsx workbook.
func WriteFile(path string, sheets ...Sheet) error {
	var (
		data []byte
		err  error
	)
	if isCSV(path) {
		if len(sheets) == 0 {
			return fmt.Errorf("nothing to export")
		}
		data, err = ExportCSV(sheets[0].Table)
	} else {
		data, err = ExportWorkbook(sheets)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FormatValue renders a cell value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if hasClock(x) {
			return x.Format(time.DateTime)
		}
		return x.Format(time.DateOnly)
	}
	return fmt.Sprint(v)
}

// hasClock reports whether t carries a time of day.
func hasClock(t time.Time) bool {
	return t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
}
