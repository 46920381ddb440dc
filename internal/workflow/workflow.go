// Package workflow runs one merge action end to end: it loads the source
// sheets, applies the chosen merge mode and writes the result together with
// any unmatched rows.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nconklindev/tablemerge/internal/config"
	"github.com/nconklindev/tablemerge/internal/logging"
	"github.com/nconklindev/tablemerge/internal/merge"
	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Share of the progress bar spent loading sources; merging takes the rest
// up to mergedProgress and saving finishes it.
const (
	loadProgress   = 0.7
	mergedProgress = 0.9
)

// Request describes one merge action.
type Request struct {
	Mode    types.Mode
	Sources []types.SheetRef

	// Keys and How apply to joins and lookups.
	Keys []string
	How  types.JoinType

	// Selected lists the lookup columns to bring in. nil selects every
	// non-key column of the lookup table; an empty slice selects none.
	Selected []string
	// RequireColumns rejects a lookup that would bring in no columns.
	RequireColumns bool

	// TagSources adds source_file and source_sheet columns to a
	// concatenation.
	TagSources bool
}

// Validate checks the request shape before any file is read.
func (r Request) Validate() error {
	if len(r.Sources) == 0 {
		return types.ErrEmptyInput
	}
	switch r.Mode {
	case types.ModeConcatenate:
	case types.ModeJoin:
		if len(r.Sources) < 2 {
			return &types.InsufficientTablesError{Need: 2, Got: len(r.Sources)}
		}
		if len(r.Keys) == 0 {
			return &types.NoCommonKeyError{}
		}
		if r.How != "" {
			if _, err := types.ParseJoinType(string(r.How)); err != nil {
				return err
			}
		}
	case types.ModeLookup:
		if len(r.Sources) < 2 {
			return &types.InsufficientTablesError{Need: 2, Got: len(r.Sources)}
		}
		if len(r.Sources) > 2 {
			return fmt.Errorf("lookup takes exactly 2 sheets, got %d", len(r.Sources))
		}
		if len(r.Keys) == 0 {
			return &types.NoCommonKeyError{}
		}
		if r.Selected != nil && len(r.Selected) == 0 && r.RequireColumns {
			return types.ErrEmptyColumnSelection
		}
	default:
		return fmt.Errorf("unknown merge mode %q", r.Mode)
	}
	return nil
}

// Outcome is a completed merge action.
type Outcome struct {
	ID      string
	Request Request
	// Tables are the loaded sources in request order.
	Tables []*table.Table
	Result *merge.Result
	Report types.MergeReport

	started time.Time
	log     *slog.Logger
}

// Preview returns the first n rows of the result.
func (o *Outcome) Preview(n int) *table.Table {
	return o.Result.Table.Head(n)
}

// Runner carries the settings shared by merge actions.
type Runner struct {
	// Concurrency bounds how many sources load at once.
	Concurrency int
	// Sheet names the result worksheet.
	Sheet string
	// UnmatchedSuffix is appended to the result name for the unmatched file.
	UnmatchedSuffix string
}

// NewRunner builds a Runner from configuration.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		Concurrency:     cfg.Load.Concurrency,
		Sheet:           cfg.Output.Sheet,
		UnmatchedSuffix: cfg.Output.UnmatchedSuffix,
	}
}

var defaultRunner = NewRunner(config.Default())

// Run executes req with default settings.
func Run(ctx context.Context, req Request, progressChan chan<- float64) (*Outcome, error) {
	return defaultRunner.Run(ctx, req, progressChan)
}

// Save writes o with default settings.
func Save(o *Outcome, dir, name string) error {
	return defaultRunner.Save(o, dir, name)
}

// Run loads every source of req and merges them. Progress in [0, 1) is
// sent on progressChan without blocking when it is non-nil.
func (r *Runner) Run(ctx context.Context, req Request, progressChan chan<- float64) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Mode == types.ModeJoin {
		how := types.JoinInner
		if req.How != "" {
			// Validate has accepted the spelling.
			how, _ = types.ParseJoinType(string(req.How))
		}
		req.How = how
	}

	o := &Outcome{
		ID:      uuid.NewString(),
		Request: req,
		started: time.Now(),
	}
	ctx = logging.WithMergeID(ctx, o.ID)
	o.log = logging.WithFields(ctx, "mode", req.Mode)
	o.log.Info("merge started", "sources", len(req.Sources))

	refs, tables, err := r.load(ctx, o.log, req.Sources, progressChan)
	if err != nil {
		o.log.Error("load failed", "error", err)
		return nil, err
	}
	o.Request.Sources = refs
	o.Tables = tables

	res, err := apply(o.Request, tables)
	if err != nil {
		o.log.Error("merge failed", "error", err)
		return nil, err
	}
	o.Result = res
	sendProgress(progressChan, mergedProgress)

	o.Report = types.MergeReport{
		MergeID:         o.ID,
		Mode:            req.Mode,
		Sources:         sourceNames(refs),
		Rows:            res.Table.NumRows(),
		Columns:         res.Table.NumCols(),
		DuplicateKeys:   res.Diagnostics.DuplicateKeys(),
		UnmatchedRows:   res.Diagnostics.UnmatchedCount(),
		DurationSeconds: time.Since(o.started).Seconds(),
	}

	o.log.Info("merge completed",
		"rows", o.Report.Rows,
		"columns", o.Report.Columns,
		"duplicate_keys", len(o.Report.DuplicateKeys),
		"unmatched_rows", o.Report.UnmatchedRows,
	)
	for _, d := range res.Diagnostics.Duplicates {
		o.log.Debug("duplicate key", "source", refs[d.Source].String(), "key", d.String(), "count", d.Count())
	}
	return o, nil
}

// load reads every source, at most Concurrency at a time. Sources without
// a sheet name are resolved to their first sheet.
func (r *Runner) load(ctx context.Context, log *slog.Logger, sources []types.SheetRef, progressChan chan<- float64) ([]types.SheetRef, []*table.Table, error) {
	refs := append([]types.SheetRef(nil), sources...)
	tables := make([]*table.Table, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.Concurrency))

	var (
		mu   sync.Mutex
		done int
	)
	for i := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if refs[i].Sheet == "" {
				names, err := sheet.SheetsFile(refs[i].Path)
				if err != nil {
					return err
				}
				refs[i].Sheet = names[0]
			}

			t, err := sheet.LoadFile(refs[i])
			if err != nil {
				return err
			}
			tables[i] = t
			log.Debug("source loaded", "source", refs[i].String(), "rows", t.NumRows(), "columns", t.NumCols())

			mu.Lock()
			done++
			sendProgress(progressChan, loadProgress*float64(done)/float64(len(refs)))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return refs, tables, nil
}

// apply runs the merge mode of req over the loaded tables.
func apply(req Request, tables []*table.Table) (*merge.Result, error) {
	switch req.Mode {
	case types.ModeConcatenate:
		var labels []merge.SourceLabel
		if req.TagSources {
			labels = make([]merge.SourceLabel, len(req.Sources))
			for i, ref := range req.Sources {
				labels[i] = merge.SourceLabel{File: ref.FileLabel(), Sheet: ref.Sheet}
			}
		}
		t, err := merge.Concatenate(tables, labels)
		if err != nil {
			return nil, err
		}
		return &merge.Result{Table: t}, nil

	case types.ModeJoin:
		how := req.How
		if how == "" {
			how = types.JoinInner
		}
		return merge.Join(tables, req.Keys, how)

	case types.ModeLookup:
		selected := req.Selected
		if selected == nil {
			selected = merge.LookupColumns(tables[merge.SecondarySource], req.Keys)
		}
		if len(selected) == 0 && req.RequireColumns {
			return nil, types.ErrEmptyColumnSelection
		}
		return merge.Lookup(tables[merge.PrimarySource], tables[merge.SecondarySource], req.Keys, selected)
	}
	return nil, fmt.Errorf("unknown merge mode %q", req.Mode)
}

// Save writes the result to dir/name and, when the merge left rows
// unmatched, writes them to a sibling workbook with one sheet per source.
// The output paths are recorded in o.Report.
func (r *Runner) Save(o *Outcome, dir, name string) error {
	if o == nil || o.Result == nil {
		return errors.New("nothing to save")
	}
	log := o.log
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	out := filepath.Join(dir, name)
	if err := sheet.WriteFile(out, sheet.Sheet{Name: r.Sheet, Table: o.Result.Table}); err != nil {
		log.Error("export failed", "file", out, "error", err)
		return err
	}
	o.Report.OutputFile = out
	log.Info("result saved", "file", out, "rows", o.Result.Table.NumRows())

	diag := o.Result.Diagnostics
	if diag.UnmatchedCount() > 0 {
		sheets := make([]sheet.Sheet, 0, len(diag.Unmatched))
		for i := range o.Request.Sources {
			u, ok := diag.UnmatchedFor(i)
			if !ok {
				continue
			}
			sheets = append(sheets, sheet.Sheet{Name: sourceName(o.Request.Sources, i), Table: u.Rows})
		}

		path := UnmatchedPath(out, r.UnmatchedSuffix)
		if err := sheet.WriteFile(path, sheets...); err != nil {
			log.Error("unmatched export failed", "file", path, "error", err)
			return err
		}
		o.Report.UnmatchedFile = path
		log.Info("unmatched rows saved", "file", path, "rows", diag.UnmatchedCount())
	}

	o.Report.DurationSeconds = time.Since(o.started).Seconds()
	return nil
}

// UnmatchedPath derives the unmatched rows file from the result path:
// "out/merged.csv" becomes "out/merged_unmatched.xlsx".
func UnmatchedPath(output, suffix string) string {
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return base + suffix + ".xlsx"
}

func sourceName(refs []types.SheetRef, i int) string {
	if i < 0 || i >= len(refs) {
		return fmt.Sprintf("table %d", i+1)
	}
	ref := refs[i]
	stem := strings.TrimSuffix(ref.FileLabel(), filepath.Ext(ref.Path))
	if ref.Sheet == "" || ref.Sheet == stem {
		return stem
	}
	return stem + " - " + ref.Sheet
}

func sourceNames(refs []types.SheetRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.String()
	}
	return out
}

func sendProgress(progressChan chan<- float64, p float64) {
	if progressChan == nil {
		return
	}
	select {
	case progressChan <- p:
	default:
	}
}
