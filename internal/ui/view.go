package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
)

// maxCellWidth caps preview cells so wide text does not push columns off
// screen.
const maxCellWidth = 18

var modeHelp = map[types.Mode]string{
	types.ModeLookup:      "Add columns from a lookup sheet to every row of a primary sheet",
	types.ModeConcatenate: "Stack sheets on top of each other, aligning columns by name",
	types.ModeJoin:        "Combine sheets side by side on shared key columns",
}

func (m Model) View() string {
	switch m.state {
	case stateMode:
		return m.viewMode()
	case stateFilePicker:
		return m.viewFilePicker()
	case stateLoadingSheets:
		return m.viewLoading("Reading workbooks...")
	case stateSheets:
		return m.viewSheets()
	case stateLoadingTables:
		return m.viewLoading("Loading sheets...")
	case stateKeys:
		return m.viewKeys()
	case stateColumns:
		return m.viewColumns()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewMode() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▦ Tablemerge"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("How should the tables be merged?"))
	s.WriteString("\n\n")

	for i, mode := range types.Modes {
		cursor := " "
		line := mode.Label()
		if m.cursor == i {
			cursor = ">"
			line = SelectedStyle.Render(fmt.Sprintf("%s %s", cursor, line))
		} else {
			line = UnselectedStyle.Render(fmt.Sprintf("%s %s", cursor, line))
		}
		s.WriteString(line)
		s.WriteString("\n")
		s.WriteString(DimStyle.Render("    " + modeHelp[mode]))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("↑/↓: navigate • enter: choose • q: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▦ " + m.mode.Label()))
	s.WriteString("\n")
	switch m.mode {
	case types.ModeLookup:
		s.WriteString(SubtitleStyle.Render("Select the primary file, then the lookup file"))
	default:
		s.WriteString(SubtitleStyle.Render(fmt.Sprintf("Select at least %d CSV or XLSX files, in merge order", m.needed())))
	}
	s.WriteString("\n")

	for i, src := range m.sources {
		s.WriteString(CheckedStyle.Render(fmt.Sprintf("%d. %s", i+1, shortenPath(src.path, m.pathWidth()))))
		s.WriteString("\n")
	}
	if m.warning != "" {
		s.WriteString(WarningStyle.Render(m.warning))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: add file • x: remove last • tab: continue • q: quit"))

	return s.String()
}

func (m Model) viewLoading(what string) string {
	return BoxStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), what))
}

func (m Model) viewSheets() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▦ Choose Sheets"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Pick the sheet and header row for each file"))
	s.WriteString("\n\n")

	for i, src := range m.sources {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}

		sheetName := ""
		if len(src.sheets) > 0 {
			sheetName = src.sheets[src.sheet]
			if len(src.sheets) > 1 {
				sheetName = fmt.Sprintf("‹ %s › (%d/%d)", sheetName, src.sheet+1, len(src.sheets))
			}
		}
		header := "auto"
		if src.headerRow > 0 {
			header = fmt.Sprintf("%d", src.headerRow)
		}

		line := fmt.Sprintf("%s %s  %s  header row: %s", cursor, filepath.Base(src.path), sheetName, header)
		if m.cursor == i {
			line = SelectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	if m.mode == types.ModeConcatenate {
		tag := "[ ]"
		if m.tagSource {
			tag = "[x]"
		}
		s.WriteString(fmt.Sprintf("\nTag rows with source file and sheet: %s\n", tag))
	}
	if m.warning != "" {
		s.WriteString("\n")
		s.WriteString(WarningStyle.Render(m.warning))
		s.WriteString("\n")
	}

	help := "↑/↓: file • ←/→: sheet • +/-: header row (0 = auto) • enter: continue • esc: back • q: quit"
	if m.mode == types.ModeConcatenate {
		help = "↑/↓: file • ←/→: sheet • +/-: header row (0 = auto) • s: tag source • enter: merge • esc: back • q: quit"
	}
	s.WriteString(HelpStyle.Render(help))

	return BoxStyle.Render(s.String())
}

func (m Model) viewKeys() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▦ Select Key Columns"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("Columns present in all %d sheets", len(m.sources))))
	s.WriteString("\n\n")

	for i, c := range m.candidates {
		s.WriteString(checkLine(c, m.cursor == i, m.keys[c]))
		s.WriteString("\n")
	}

	help := "↑/↓: navigate • space: toggle • enter: continue • esc: back • q: quit"
	if m.mode == types.ModeJoin {
		s.WriteString(fmt.Sprintf("\nJoin type: %s\n", CheckedStyle.Render(string(m.how))))
		help = "↑/↓: navigate • space: toggle • t: join type • enter: merge • esc: back • q: quit"
	}
	if m.warning != "" {
		s.WriteString("\n")
		s.WriteString(WarningStyle.Render(m.warning))
		s.WriteString("\n")
	}
	s.WriteString(HelpStyle.Render(help))

	return BoxStyle.Render(s.String())
}

func (m Model) viewColumns() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▦ Select Columns to Bring In"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("From %s", filepath.Base(m.sources[1].path))))
	s.WriteString("\n\n")

	for i, c := range m.lookupCols {
		s.WriteString(checkLine(c, m.cursor == i, m.selectedCols[c]))
		s.WriteString("\n")
	}
	if m.warning != "" {
		s.WriteString("\n")
		s.WriteString(WarningStyle.Render(m.warning))
		s.WriteString("\n")
	}
	s.WriteString(HelpStyle.Render("↑/↓: navigate • space: toggle • a: all/none • enter: merge • esc: back • q: quit"))

	return BoxStyle.Render(s.String())
}

func checkLine(name string, current, checked bool) string {
	cursor := " "
	if current {
		cursor = ">"
	}
	mark := " "
	if checked {
		mark = "✓"
	}

	line := fmt.Sprintf("%s [%s] %s", cursor, mark, name)
	switch {
	case current:
		return SelectedStyle.Render(line)
	case checked:
		return CheckedStyle.Render(line)
	}
	return UnselectedStyle.Render(line)
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▦ Processing..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Merging %d sheets (%s)...", m.spinner.View(), len(m.sources), strings.ToLower(m.mode.Label())))
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func (m Model) viewComplete() string {
	var s strings.Builder
	report := m.outcome.Report
	diag := m.outcome.Result.Diagnostics

	s.WriteString(TitleStyle.Render("✓ Merge Complete!"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Result: %d rows, %d columns\n", report.Rows, report.Columns))
	s.WriteString(SuccessStyle.Render(fmt.Sprintf("Output: %s", shortenPath(report.OutputFile, m.pathWidth()))))
	s.WriteString("\n")

	if diag.HasDuplicates() {
		keys := report.DuplicateKeys
		more := ""
		if len(keys) > 5 {
			more = fmt.Sprintf(" and %d more", len(keys)-5)
			keys = keys[:5]
		}
		s.WriteString(WarningStyle.Render(fmt.Sprintf("Duplicate keys: %s%s (rows flagged in %s)", strings.Join(keys, ", "), more, m.outcome.Result.NoteColumn)))
		s.WriteString("\n")
	}
	if n := diag.UnmatchedCount(); n > 0 {
		s.WriteString(WarningStyle.Render(fmt.Sprintf("Unmatched rows: %d, saved to %s", n, shortenPath(report.UnmatchedFile, m.pathWidth()))))
		s.WriteString("\n")
	}

	if n := m.cfg.Output.PreviewRows; n > 0 && report.Rows > 0 {
		s.WriteString("\n")
		s.WriteString(renderPreview(m.outcome.Preview(n), m.width-8))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("r: new merge • enter/q: exit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder

	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString(types.Describe(m.err))
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press enter to exit"))

	return BoxStyle.Render(s.String())
}

// renderPreview draws the first rows of a table as a bordered grid.
func renderPreview(t *table.Table, width int) string {
	rows := make([][]string, 0, t.NumRows())
	for _, row := range t.All() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = truncate(sheet.FormatValue(v), maxCellWidth)
		}
		rows = append(rows, cells)
	}

	headers := make([]string, t.NumCols())
	for i, c := range t.Columns() {
		headers[i] = truncate(c, maxCellWidth)
	}

	grid := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(DimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return previewHeaderStyle
			}
			return previewCellStyle
		})
	if width > 20 {
		grid = grid.Width(width)
	}
	return grid.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (m Model) pathWidth() int {
	// Leave room for padding and borders
	return max(30, m.width-20)
}

func shortenPath(p string, maxLen int) string {
	r := []rune(p)
	if len(r) > maxLen {
		return "..." + string(r[len(r)-maxLen+3:])
	}
	return p
}
