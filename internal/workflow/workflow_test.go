package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nconklindev/tablemerge/internal/merge"
	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeWorkbook writes each table to its own sheet of a new workbook.
func writeWorkbook(t *testing.T, dir, name string, sheets ...sheet.Sheet) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, sheet.WriteFile(path, sheets...))
	return path
}

func TestRun_Join(t *testing.T) {
	dir := t.TempDir()
	people := writeWorkbook(t, dir, "people.xlsx",
		sheet.Sheet{Name: "Staff", Table: table.MustNew([]string{"id", "name"},
			[]any{1.0, "Alice"},
			[]any{2.0, "Bob"},
		)},
	)
	hours := writeCSV(t, dir, "hours.csv", "id,hours\n2,7.5\n2,8\n9,1\n")

	progress := make(chan float64, 10)
	out, err := Run(context.Background(), Request{
		Mode:    types.ModeJoin,
		Sources: []types.SheetRef{{Path: people}, {Path: hours}},
		Keys:    []string{"id"},
		How:     types.JoinLeft,
	}, progress)
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "Staff", out.Request.Sources[0].Sheet, "first sheet resolved")
	assert.Equal(t, "hours", out.Request.Sources[1].Sheet)

	res := out.Result.Table
	assert.Equal(t, []string{"id", "name", "hours", merge.NoteColumn}, res.Columns())
	require.Equal(t, 3, res.NumRows())
	assert.Equal(t, []any{1.0, "Alice", nil, nil}, res.Row(0))
	assert.Equal(t, []any{2.0, "Bob", "7.5", merge.DuplicateNote}, res.Row(1))
	assert.Equal(t, []any{2.0, "Bob", "8", merge.DuplicateNote}, res.Row(2))

	assert.Equal(t, []string{"2"}, out.Report.DuplicateKeys)
	assert.Equal(t, 1, out.Report.UnmatchedRows)
	assert.Equal(t, []string{"people.xlsx:Staff", "hours.csv:hours"}, out.Report.Sources)
	assert.Equal(t, 3, out.Report.Rows)
	assert.Equal(t, 4, out.Report.Columns)

	close(progress)
	var last float64
	for p := range progress {
		assert.GreaterOrEqual(t, p, last)
		last = p
	}
	assert.InDelta(t, mergedProgress, last, 1e-9)
}

func TestRun_JoinTypeSpelling(t *testing.T) {
	dir := t.TempDir()
	people := writeCSV(t, dir, "people.csv", "id,name\n1,Alice\n2,Bob\n")
	hours := writeCSV(t, dir, "hours.csv", "id,hours\n2,7\n9,1\n")

	tests := []struct {
		how  types.JoinType
		want types.JoinType
		rows int
	}{
		{"OUTER", types.JoinOuter, 3},
		{" Right ", types.JoinRight, 2},
		{"", types.JoinInner, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			out, err := Run(context.Background(), Request{
				Mode:    types.ModeJoin,
				Sources: []types.SheetRef{{Path: people}, {Path: hours}},
				Keys:    []string{"id"},
				How:     tt.how,
			}, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.want, out.Request.How)
			assert.Equal(t, tt.rows, out.Result.Table.NumRows())
		})
	}
}

func TestRun_Lookup(t *testing.T) {
	dir := t.TempDir()
	orders := writeCSV(t, dir, "orders.csv", "sku,qty\nA1,3\nB2,1\nZZ,4\n")
	catalog := writeCSV(t, dir, "catalog.csv", "sku,price,colour\nA1,9.99,red\nB2,5,blue\nC3,1,green\n")

	t.Run("Default selection brings every non-key column", func(t *testing.T) {
		out, err := Run(context.Background(), Request{
			Mode:    types.ModeLookup,
			Sources: []types.SheetRef{{Path: orders}, {Path: catalog}},
			Keys:    []string{"sku"},
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"sku", "qty", "price", "colour"}, out.Result.Table.Columns())
		assert.Equal(t, 3, out.Result.Table.NumRows())
		assert.Nil(t, out.Result.Table.Value(2, "price"))
		assert.Equal(t, 1, out.Report.UnmatchedRows)
	})

	t.Run("Explicit selection", func(t *testing.T) {
		out, err := Run(context.Background(), Request{
			Mode:     types.ModeLookup,
			Sources:  []types.SheetRef{{Path: orders}, {Path: catalog}},
			Keys:     []string{"sku"},
			Selected: []string{"price"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"sku", "qty", "price"}, out.Result.Table.Columns())
	})

	t.Run("Required columns", func(t *testing.T) {
		_, err := Run(context.Background(), Request{
			Mode:           types.ModeLookup,
			Sources:        []types.SheetRef{{Path: orders}, {Path: catalog}},
			Keys:           []string{"sku"},
			Selected:       []string{},
			RequireColumns: true,
		}, nil)
		assert.ErrorIs(t, err, types.ErrEmptyColumnSelection)
	})
}

func TestRun_ConcatenateTagsSources(t *testing.T) {
	dir := t.TempDir()
	jan := writeCSV(t, dir, "jan.csv", "id,amount\n1,10\n")
	feb := writeCSV(t, dir, "feb.csv", "id,amount,note\n2,20,late\n")

	out, err := Run(context.Background(), Request{
		Mode:       types.ModeConcatenate,
		Sources:    []types.SheetRef{{Path: jan}, {Path: feb}},
		TagSources: true,
	}, nil)
	require.NoError(t, err)

	res := out.Result.Table
	assert.Equal(t, []string{"id", "amount", "note", merge.SourceFileColumn, merge.SourceSheetColumn}, res.Columns())
	assert.Equal(t, []any{"1", "10", nil, "jan.csv", "jan"}, res.Row(0))
	assert.Equal(t, []any{"2", "20", "late", "feb.csv", "feb"}, res.Row(1))
	assert.Empty(t, out.Result.NoteColumn)
	assert.Zero(t, out.Report.UnmatchedRows)
}

func TestRun_HeaderRowOffset(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "Exported 2024-01-01,\nid,v\n1,x\n")
	b := writeCSV(t, dir, "b.csv", "id,w\n1,y\n")

	out, err := Run(context.Background(), Request{
		Mode:    types.ModeJoin,
		Sources: []types.SheetRef{{Path: a, HeaderRow: 1}, {Path: b}},
		Keys:    []string{"id"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "x", "y"}, out.Result.Table.Row(0))
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id,v\n1,x\n")
	b := writeCSV(t, dir, "b.csv", "code,w\n1,y\n")

	tests := []struct {
		name  string
		req   Request
		check func(t *testing.T, err error)
	}{
		{
			name: "No sources",
			req:  Request{Mode: types.ModeConcatenate},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, types.ErrEmptyInput)
			},
		},
		{
			name: "Join needs two tables",
			req:  Request{Mode: types.ModeJoin, Sources: []types.SheetRef{{Path: a}}, Keys: []string{"id"}},
			check: func(t *testing.T, err error) {
				var insufficient *types.InsufficientTablesError
				require.ErrorAs(t, err, &insufficient)
				assert.Equal(t, 1, insufficient.Got)
			},
		},
		{
			name: "Lookup takes exactly two",
			req:  Request{Mode: types.ModeLookup, Sources: []types.SheetRef{{Path: a}, {Path: a}, {Path: a}}, Keys: []string{"id"}},
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "No key",
			req:  Request{Mode: types.ModeJoin, Sources: []types.SheetRef{{Path: a}, {Path: b}}},
			check: func(t *testing.T, err error) {
				var noKey *types.NoCommonKeyError
				assert.ErrorAs(t, err, &noKey)
			},
		},
		{
			name: "Key missing from second table",
			req:  Request{Mode: types.ModeJoin, Sources: []types.SheetRef{{Path: a}, {Path: b}}, Keys: []string{"id"}},
			check: func(t *testing.T, err error) {
				var noKey *types.NoCommonKeyError
				require.ErrorAs(t, err, &noKey)
				assert.Equal(t, "id", noKey.Key)
			},
		},
		{
			name: "Unreadable source",
			req:  Request{Mode: types.ModeConcatenate, Sources: []types.SheetRef{{Path: filepath.Join(dir, "gone.xlsx")}}},
			check: func(t *testing.T, err error) {
				var readErr *types.SheetReadError
				require.ErrorAs(t, err, &readErr)
				assert.Equal(t, "gone.xlsx", readErr.Source)
			},
		},
		{
			name: "Bad join type",
			req:  Request{Mode: types.ModeJoin, Sources: []types.SheetRef{{Path: a}, {Path: a}}, Keys: []string{"id"}, How: "cross"},
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "Unknown mode",
			req:  Request{Mode: "zip", Sources: []types.SheetRef{{Path: a}}},
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Run(context.Background(), tt.req, nil)
			assert.Nil(t, out)
			tt.check(t, err)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id\n1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Request{Mode: types.ModeConcatenate, Sources: []types.SheetRef{{Path: a}}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSave_WritesResultAndUnmatched(t *testing.T) {
	dir := t.TempDir()
	left := writeCSV(t, dir, "left.csv", "id,a\n1,x\n")
	right := writeWorkbook(t, dir, "right.xlsx",
		sheet.Sheet{Name: "Data", Table: table.MustNew([]string{"id", "b"},
			[]any{"1", "y"},
			[]any{"7", "orphan"},
		)},
	)

	out, err := Run(context.Background(), Request{
		Mode:    types.ModeJoin,
		Sources: []types.SheetRef{{Path: left}, {Path: right, Sheet: "Data"}},
		Keys:    []string{"id"},
	}, nil)
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	runner := &Runner{Concurrency: 2, Sheet: "Result", UnmatchedSuffix: "_unmatched"}
	require.NoError(t, runner.Save(out, outDir, "merged.xlsx"))

	assert.Equal(t, filepath.Join(outDir, "merged.xlsx"), out.Report.OutputFile)
	assert.Equal(t, filepath.Join(outDir, "merged_unmatched.xlsx"), out.Report.UnmatchedFile)

	names, err := sheet.SheetsFile(out.Report.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"Result"}, names)

	saved, err := sheet.LoadFile(types.SheetRef{Path: out.Report.OutputFile, Sheet: "Result"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "a", "b"}, saved.Columns())
	assert.Equal(t, 1, saved.NumRows())

	f, err := excelize.OpenFile(out.Report.UnmatchedFile)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"right - Data"}, f.GetSheetList())
	rows, err := f.GetRows("right - Data")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "b"}, {"7", "orphan"}}, rows)
}

func TestSave_UnmatchedSheetsFollowSourceOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id,x\n1,a1\n")
	b := writeCSV(t, dir, "b.csv", "id,y\n2,b2\n")
	c := writeCSV(t, dir, "c.csv", "id,z\n2,c2\n3,c3\n")

	out, err := Run(context.Background(), Request{
		Mode:    types.ModeJoin,
		Sources: []types.SheetRef{{Path: a}, {Path: b}, {Path: c}},
		Keys:    []string{"id"},
		How:     types.JoinOuter,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, Save(out, dir, "merged.xlsx"))

	f, err := excelize.OpenFile(out.Report.UnmatchedFile)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"b", "c"}, f.GetSheetList())

	rows, err := f.GetRows("c")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "z"}, {"3", "c3"}}, rows)
}

func TestSave_NoUnmatchedFileWhenAllMatched(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id,v\n1,x\n")
	b := writeCSV(t, dir, "b.csv", "id,w\n1,y\n")

	out, err := Run(context.Background(), Request{
		Mode:    types.ModeJoin,
		Sources: []types.SheetRef{{Path: a}, {Path: b}},
		Keys:    []string{"id"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, Save(out, dir, "merged.csv"))
	assert.Empty(t, out.Report.UnmatchedFile)

	raw, err := os.ReadFile(filepath.Join(dir, "merged.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,v,w\n1,x,y\n", string(raw))

	_, err = os.Stat(UnmatchedPath(filepath.Join(dir, "merged.csv"), "_unmatched"))
	assert.True(t, os.IsNotExist(err))
}

func TestSave_Nil(t *testing.T) {
	assert.Error(t, Save(nil, t.TempDir(), "x.xlsx"))
}

func TestUnmatchedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "merged_unmatched.xlsx"), UnmatchedPath(filepath.Join("out", "merged.csv"), "_unmatched"))
	assert.Equal(t, "r-left.xlsx", UnmatchedPath("r.xlsx", "-left"))
}
