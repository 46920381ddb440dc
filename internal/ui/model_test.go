package ui

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nconklindev/tablemerge/internal/config"
	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"
	"github.com/nconklindev/tablemerge/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel() Model {
	cfg := config.Default()
	return InitialModel(cfg, workflow.NewRunner(cfg))
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		if !ok {
			t.Fatalf("Update returned %T; want Model", next)
		}
	}
	return m
}

func writeCSV(t *testing.T, name, content string) types.SheetRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return types.SheetRef{Path: path}
}

// atKeys puts a model on the key screen with the given sheets loaded.
func atKeys(t *testing.T, mode types.Mode, tables ...*table.Table) Model {
	t.Helper()
	m := newTestModel()
	m.mode = mode
	m.state = stateLoadingTables
	for i := range tables {
		m.sources = append(m.sources, source{path: "/data/file" + string(rune('a'+i)) + ".xlsx", sheets: []string{"Sheet1"}, headerRow: 1})
	}
	m = send(t, m, tablesLoadedMsg{tables: tables})
	if m.state != stateKeys {
		t.Fatalf("state = %v; want stateKeys", m.state)
	}
	return m
}

func TestModeSelection(t *testing.T) {
	tests := []struct {
		name  string
		moves int
		want  types.Mode
	}{
		{"Lookup", 0, types.ModeLookup},
		{"Concatenate", 1, types.ModeConcatenate},
		{"Join", 2, types.ModeJoin},
		{"Clamped at last", 5, types.ModeJoin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel()
			for range tt.moves {
				m = send(t, m, key("down"))
			}
			m = send(t, m, key("enter"))

			if m.state != stateFilePicker {
				t.Errorf("state = %v; want stateFilePicker", m.state)
			}
			if m.mode != tt.want {
				t.Errorf("mode = %s; want %s", m.mode, tt.want)
			}
		})
	}
}

func TestFilePickerKeys(t *testing.T) {
	m := newTestModel()
	m.mode = types.ModeJoin
	m.state = stateFilePicker
	m.sources = []source{{path: "/data/a.csv"}}

	m = send(t, m, key("tab"))
	if m.state != stateFilePicker {
		t.Errorf("state = %v; want stateFilePicker with one file", m.state)
	}
	if !strings.Contains(m.warning, "at least 2") {
		t.Errorf("warning = %q; want a minimum-file warning", m.warning)
	}

	m = send(t, m, key("x"))
	if len(m.sources) != 0 {
		t.Errorf("sources = %d after remove; want 0", len(m.sources))
	}
	if m.warning != "" {
		t.Errorf("warning = %q; want it cleared by the next key", m.warning)
	}
}

func TestAddSource(t *testing.T) {
	m := newTestModel()
	m.mode = types.ModeLookup
	m.state = stateFilePicker

	next, _ := m.addSource("/data/a.xlsx")
	m = next.(Model)
	next, _ = m.addSource("/data/a.xlsx")
	m = next.(Model)
	if len(m.sources) != 1 {
		t.Fatalf("sources = %d; want duplicates rejected", len(m.sources))
	}
	if m.warning == "" {
		t.Error("expected a warning for a duplicate file")
	}

	next, cmd := m.addSource("/data/b.xlsx")
	m = next.(Model)
	if m.state != stateLoadingSheets {
		t.Errorf("state = %v; want lookup to continue after two files", m.state)
	}
	if cmd == nil {
		t.Error("expected a command to read the workbooks")
	}
}

func TestLookupAcceptsTwoFiles(t *testing.T) {
	m := newTestModel()
	m.mode = types.ModeLookup
	m.state = stateSheets
	m.sources = []source{
		{path: "/data/a.xlsx", sheets: []string{"Sheet1"}, headerRow: 1},
		{path: "/data/b.xlsx", sheets: []string{"Sheet1"}, headerRow: 1},
	}

	m = send(t, m, key("esc"))
	if m.state != stateFilePicker {
		t.Fatalf("state = %v; want stateFilePicker", m.state)
	}

	next, cmd := m.addSource("/data/c.xlsx")
	m = next.(Model)
	if len(m.sources) != 2 {
		t.Errorf("sources = %d; want a third file refused", len(m.sources))
	}
	if m.warning != lookupLimitWarning {
		t.Errorf("warning = %q; want %q", m.warning, lookupLimitWarning)
	}
	if m.state != stateFilePicker || cmd != nil {
		t.Errorf("state = %v; want to stay on the file picker", m.state)
	}

	m.sources = append(m.sources, source{path: "/data/c.xlsx"})
	m = send(t, m, key("tab"))
	if m.state != stateFilePicker || m.warning != lookupLimitWarning {
		t.Errorf("state = %v, warning = %q; want tab refused with three files", m.state, m.warning)
	}

	m = send(t, m, key("x"), key("tab"))
	if m.state != stateLoadingSheets {
		t.Errorf("state = %v; want two files to continue", m.state)
	}
	if len(m.sources) != 2 {
		t.Errorf("sources = %d; want 2", len(m.sources))
	}
}

func TestSheetsLoaded(t *testing.T) {
	m := newTestModel()
	m.mode = types.ModeJoin
	m.state = stateLoadingSheets
	m.sources = []source{{path: "/data/a.xlsx"}, {path: "/data/b.csv"}}

	m = send(t, m, sheetsLoadedMsg{sheets: [][]string{{"Jan", "Feb", "Mar"}, {"b"}}})
	if m.state != stateSheets {
		t.Fatalf("state = %v; want stateSheets", m.state)
	}
	if m.sources[0].headerRow != 1 {
		t.Errorf("headerRow = %d; want the configured default 1", m.sources[0].headerRow)
	}

	m = send(t, m, key("left"), key("+"), key("+"))
	if got := m.sources[0].ref(); got.Sheet != "Mar" || got.HeaderRow != 2 {
		t.Errorf("ref = %+v; want sheet Mar, header index 2", got)
	}

	m = send(t, m, key("down"), key("-"), key("right"))
	if got := m.sources[1].ref(); got.Sheet != "b" || got.HeaderRow != sheet.AutoHeader {
		t.Errorf("ref = %+v; want sheet b with auto header", got)
	}

	m = send(t, m, key("-"))
	if m.sources[1].headerRow != 0 {
		t.Errorf("headerRow = %d; want it to stop at 0", m.sources[1].headerRow)
	}

	if view := m.View(); !strings.Contains(view, "auto") || !strings.Contains(view, "Mar") {
		t.Errorf("view does not show sheet and header choices:\n%s", view)
	}
}

func TestLoadErrorShowsErrorState(t *testing.T) {
	m := newTestModel()
	m.state = stateLoadingSheets
	m.sources = []source{{path: "/data/a.xlsx"}}

	err := &types.SheetReadError{Source: "a.xlsx", Err: errors.New("boom")}
	m = send(t, m, sheetsLoadedMsg{err: err})
	if m.state != stateError {
		t.Fatalf("state = %v; want stateError", m.state)
	}
	if view := m.View(); !strings.Contains(view, types.Describe(err)) {
		t.Errorf("error view missing description:\n%s", view)
	}
}

func TestNoCommonColumns(t *testing.T) {
	m := newTestModel()
	m.mode = types.ModeJoin
	m.state = stateLoadingTables
	m.sources = []source{{path: "/data/a.csv"}, {path: "/data/b.csv"}}

	m = send(t, m, tablesLoadedMsg{tables: []*table.Table{
		table.MustNew([]string{"id"}, []any{"1"}),
		table.MustNew([]string{"code"}, []any{"1"}),
	}})
	if m.state != stateSheets {
		t.Errorf("state = %v; want to return to sheet selection", m.state)
	}
	if m.warning == "" {
		t.Error("expected a warning about missing shared columns")
	}
}

func TestJoinKeys(t *testing.T) {
	m := atKeys(t, types.ModeJoin,
		table.MustNew([]string{"id", "region", "a"}),
		table.MustNew([]string{"region", "id", "b"}),
	)

	if want := []string{"id", "region"}; !slices.Equal(m.candidates, want) {
		t.Errorf("candidates = %v; want %v", m.candidates, want)
	}

	m = send(t, m, key("enter"))
	if m.state != stateKeys || m.warning == "" {
		t.Errorf("state = %v, warning = %q; want to stay with a warning", m.state, m.warning)
	}

	m = send(t, m, key(" "), key("down"), key(" "), key(" "))
	if got := m.selectedKeys(); !slices.Equal(got, []string{"id"}) {
		t.Errorf("selectedKeys = %v; want [id]", got)
	}

	m = send(t, m, key("t"), key("t"))
	if m.how != types.JoinLeft {
		t.Errorf("how = %s; want %s", m.how, types.JoinLeft)
	}
	m = send(t, m, key("t"), key("t"))
	if m.how != types.JoinInner {
		t.Errorf("how = %s; want it to wrap to %s", m.how, types.JoinInner)
	}

	req := m.request()
	if req.Mode != types.ModeJoin || !slices.Equal(req.Keys, []string{"id"}) || req.How != types.JoinInner {
		t.Errorf("request = %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLookupColumns(t *testing.T) {
	m := atKeys(t, types.ModeLookup,
		table.MustNew([]string{"sku", "qty"}),
		table.MustNew([]string{"sku", "name", "price"}),
	)

	m = send(t, m, key(" "), key("enter"))
	if m.state != stateColumns {
		t.Fatalf("state = %v; want stateColumns", m.state)
	}
	if got := m.selectedColumns(); !slices.Equal(got, []string{"name", "price"}) {
		t.Errorf("selectedColumns = %v; want all lookup columns by default", got)
	}

	m = send(t, m, key("a"))
	if got := m.selectedColumns(); len(got) != 0 {
		t.Errorf("selectedColumns = %v; want none after toggling all", got)
	}

	m = send(t, m, key("enter"))
	if m.state != stateColumns {
		t.Errorf("state = %v; want to stay on columns", m.state)
	}
	if m.warning != types.Describe(types.ErrEmptyColumnSelection) {
		t.Errorf("warning = %q", m.warning)
	}

	m = send(t, m, key("down"), key(" "))
	req := m.request()
	if !slices.Equal(req.Selected, []string{"price"}) || !slices.Equal(req.Keys, []string{"sku"}) {
		t.Errorf("request = %+v; want keys [sku], selected [price]", req)
	}
	if !req.RequireColumns {
		t.Error("expected the interactive request to require columns")
	}

	m = send(t, m, key("esc"))
	if m.state != stateKeys {
		t.Errorf("state = %v; want esc to return to keys", m.state)
	}
}

func TestConcatenateRequest(t *testing.T) {
	m := newTestModel()
	m.mode = types.ModeConcatenate
	m.state = stateSheets
	m.sources = []source{
		{path: "/data/jan.xlsx", sheets: []string{"Data"}, headerRow: 1},
		{path: "/data/feb.csv", sheets: []string{"feb"}, headerRow: 0},
	}

	m = send(t, m, key("s"))
	req := m.request()
	if !req.TagSources {
		t.Error("expected s to turn on source tagging")
	}
	if len(req.Sources) != 2 || req.Sources[0].HeaderRow != 0 || req.Sources[1].HeaderRow != sheet.AutoHeader {
		t.Errorf("sources = %+v", req.Sources)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestMergeComplete(t *testing.T) {
	m := newTestModel()
	m.state = stateProcessing

	failed := send(t, m, mergeCompleteMsg{err: types.ErrEmptyInput})
	if failed.state != stateError {
		t.Errorf("state = %v; want stateError", failed.state)
	}

	out, err := workflow.Run(t.Context(), workflow.Request{
		Mode:    types.ModeConcatenate,
		Sources: []types.SheetRef{writeCSV(t, "a.csv", "id,name\n1,Alice\n2,Bob\n")},
	}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	out.Report.OutputFile = "/tmp/merged.xlsx"

	done := send(t, m, mergeCompleteMsg{outcome: out})
	if done.state != stateComplete {
		t.Fatalf("state = %v; want stateComplete", done.state)
	}
	view := done.View()
	for _, want := range []string{"2 rows, 2 columns", "merged.xlsx", "Alice"} {
		if !strings.Contains(view, want) {
			t.Errorf("complete view missing %q:\n%s", want, view)
		}
	}

	restarted := send(t, done, key("r"))
	if restarted.state != stateMode || restarted.outcome != nil {
		t.Errorf("state = %v; want a fresh model after r", restarted.state)
	}
}

func TestRenderPreview(t *testing.T) {
	tbl := table.MustNew([]string{"id", "description"},
		[]any{1.0, strings.Repeat("x", 40)},
		[]any{2.0, nil},
	)

	got := renderPreview(tbl, 0)
	for _, want := range []string{"id", "description", "xxx…"} {
		if !strings.Contains(got, want) {
			t.Errorf("preview missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, strings.Repeat("x", maxCellWidth)) {
		t.Errorf("preview cell not truncated:\n%s", got)
	}
}

func TestShortenPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"Short", "/a/b.csv", 20, "/a/b.csv"},
		{"Exact", "/abc/d.csv", 10, "/abc/d.csv"},
		{"Long", "/home/user/reports/q1.xlsx", 12, "...s/q1.xlsx"},
		{"Multi-byte", "/資料/報表/銷售資料合併.xlsx", 12, "...資料合併.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shortenPath(tt.input, tt.max)
			if got != tt.expected {
				t.Errorf("shortenPath(%q, %d) = %q; want %q", tt.input, tt.max, got, tt.expected)
			}
		})
	}
}
