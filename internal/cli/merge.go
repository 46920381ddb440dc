package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nconklindev/tablemerge/internal/config"
	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/types"
	"github.com/nconklindev/tablemerge/internal/workflow"

	"github.com/spf13/cobra"
)

// mergeFlags are shared by every merge subcommand.
type mergeFlags struct {
	out       string
	sheetName string
	headerRow int
}

func (f *mergeFlags) register(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVarP(&f.out, "out", "o", filepath.Join(cfg.Output.Dir, cfg.Output.Name), "Output file (.xlsx or .csv)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", cfg.Output.Sheet, "Worksheet name for the result")
	cmd.Flags().IntVar(&f.headerRow, "header-row", cfg.Load.HeaderRow, "1-indexed header row for sources without @ROW; 0 detects it")
}

func newConcatCommand(cfg *config.Config) *cobra.Command {
	var (
		flags     mergeFlags
		tagSource bool
	)
	cmd := &cobra.Command{
		Use:   "concat SOURCE SOURCE...",
		Short: "Stack tables vertically, aligning columns by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, cfg, &flags, workflow.Request{
				Mode:       types.ModeConcatenate,
				TagSources: tagSource,
			}, args)
		},
	}
	flags.register(cmd, cfg)
	cmd.Flags().BoolVar(&tagSource, "tag-source", false, "Add source_file and source_sheet columns")
	return cmd
}

func newJoinCommand(cfg *config.Config) *cobra.Command {
	var (
		flags mergeFlags
		keys  []string
		how   string
	)
	cmd := &cobra.Command{
		Use:   "join SOURCE SOURCE...",
		Short: "Join tables on key columns (inner, outer, left or right)",
		Long: `Join two or more tables on shared key columns. Tables are folded left to
right. Rows whose key repeats within a source are flagged in a merge_note
column, and rows of later tables that found no partner are written to a
separate unmatched workbook.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jt, err := types.ParseJoinType(how)
			if err != nil {
				return err
			}
			return runMerge(cmd, cfg, &flags, workflow.Request{
				Mode: types.ModeJoin,
				Keys: keys,
				How:  jt,
			}, args)
		},
	}
	flags.register(cmd, cfg)
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "Key column (repeat or comma-separate for a compound key)")
	cmd.Flags().StringVar(&how, "how", string(types.JoinInner), "Join type: inner, outer, left or right")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newLookupCommand(cfg *config.Config) *cobra.Command {
	var (
		flags   mergeFlags
		keys    []string
		columns []string
	)
	cmd := &cobra.Command{
		Use:   "lookup PRIMARY LOOKUP",
		Short: "Bring columns from a lookup table into the primary table (VLOOKUP)",
		Long: `Add columns of the lookup table to every primary row with a matching key.
The primary table keeps its rows and order; the first matching lookup row
wins. Without --columns every non-key column of the lookup table is added.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := workflow.Request{
				Mode: types.ModeLookup,
				Keys: keys,
			}
			if cmd.Flags().Changed("columns") {
				req.Selected = columns
				req.RequireColumns = true
			}
			return runMerge(cmd, cfg, &flags, req, args)
		},
	}
	flags.register(cmd, cfg)
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "Key column (repeat or comma-separate for a compound key)")
	cmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "Lookup columns to add (default: all non-key columns)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// runMerge completes req from args and flags, runs and saves it, and
// prints the report.
func runMerge(cmd *cobra.Command, cfg *config.Config, flags *mergeFlags, req workflow.Request, args []string) error {
	if flags.headerRow < 0 {
		return fmt.Errorf("--header-row must be 0 or greater")
	}
	for _, arg := range args {
		req.Sources = append(req.Sources, parseSource(arg, flags.headerRow))
	}

	runner := workflow.NewRunner(cfg)
	runner.Sheet = flags.sheetName

	outcome, err := runner.Run(cmd.Context(), req, nil)
	if err != nil {
		return err
	}

	dir, name := filepath.Split(flags.out)
	if dir == "" {
		dir = "."
	}
	if err := runner.Save(outcome, dir, name); err != nil {
		return err
	}
	return emitJSON(cmd.OutOrStdout(), outcome.Report)
}

// parseSource splits FILE[:SHEET][@ROW]. The colon only separates a sheet
// when the part before it names a supported file, so drive letters survive.
// ROW is the 1-indexed header row of this source and overrides headerRow;
// 0 detects it.
func parseSource(arg string, headerRow int) types.SheetRef {
	if i := strings.LastIndex(arg, "@"); i > 0 {
		if row, err := strconv.Atoi(arg[i+1:]); err == nil && row >= 0 {
			arg, headerRow = arg[:i], row
		}
	}

	ref := types.SheetRef{Path: arg, HeaderRow: headerIndex(headerRow)}
	if i := strings.LastIndex(arg, ":"); i > 0 && sheet.IsSupported(arg[:i]) {
		ref.Path, ref.Sheet = arg[:i], arg[i+1:]
	}
	return ref
}

// headerIndex converts a 1-indexed header row to the loader's 0-indexed
// form; 0 requests detection.
func headerIndex(row int) int {
	if row == 0 {
		return sheet.AutoHeader
	}
	return row - 1
}

func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
