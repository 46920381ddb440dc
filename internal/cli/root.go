// Package cli wires the tablemerge command tree. With no subcommand the
// interactive UI starts; the subcommands run a single merge from flags and
// print a JSON report.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nconklindev/tablemerge/internal/config"
	"github.com/nconklindev/tablemerge/internal/logging"
	"github.com/nconklindev/tablemerge/internal/ui"
	"github.com/nconklindev/tablemerge/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// Execute loads configuration and runs the command named by os.Args.
func Execute(version string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return NewRootCommand(cfg, version).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree around cfg.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "tablemerge",
		Short: "Merge spreadsheet tables by stacking, key join or lookup",
		Long: `Merge tables from xlsx and csv files.

Run without a subcommand for the guided interactive workflow. The concat,
join and lookup subcommands run one merge non-interactively and print a JSON
report. Sources are given as FILE or FILE:SHEET, optionally followed by
@ROW to set that source's 1-indexed header row (0 detects it), for example
book.xlsx:Q1@3.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Name() != "tablemerge" {
				logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), cfg)
		},
	}

	root.AddCommand(
		newSheetsCommand(),
		newConcatCommand(cfg),
		newJoinCommand(cfg),
		newLookupCommand(cfg),
	)
	return root
}

// runInteractive starts the TUI. It owns the terminal, so logs go to the
// configured log file instead of stderr.
func runInteractive(ctx context.Context, cfg *config.Config) error {
	w, err := logging.OpenFile(cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer w.Close()
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, w)
	slog.Info("interactive session started", "config", cfg.String())

	model := ui.InitialModel(cfg, workflow.NewRunner(cfg))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
