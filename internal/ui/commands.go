package ui

import (
	"context"

	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"

	tea "github.com/charmbracelet/bubbletea"
)

func loadSheets(paths []string) tea.Cmd {
	return func() tea.Msg {
		out := make([][]string, len(paths))
		for i, p := range paths {
			names, err := sheet.SheetsFile(p)
			if err != nil {
				return sheetsLoadedMsg{err: err}
			}
			out[i] = names
		}
		return sheetsLoadedMsg{sheets: out}
	}
}

// loadTables reads the chosen sheets so their columns can be offered as
// keys.
func loadTables(refs []types.SheetRef) tea.Cmd {
	return func() tea.Msg {
		tables := make([]*table.Table, len(refs))
		for i, ref := range refs {
			t, err := sheet.LoadFile(ref)
			if err != nil {
				return tablesLoadedMsg{err: err}
			}
			tables[i] = t
		}
		return tablesLoadedMsg{tables: tables}
	}
}

func (m Model) startMerge() (Model, tea.Cmd) {
	m.state = stateProcessing
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan mergeResultMsg, 1)

	cmd := tea.Batch(
		func() tea.Msg {
			// Capture everything the goroutine needs
			progressChan := m.progressChan
			resultChan := m.resultChan
			runner := m.runner
			req := m.request()
			dir, name := m.cfg.Output.Dir, m.cfg.Output.Name

			go func() {
				outcome, err := runner.Run(context.Background(), req, progressChan)
				if err == nil {
					err = runner.Save(outcome, dir, name)
				}
				if err == nil {
					select {
					case progressChan <- 1:
					default:
					}
				}

				resultChan <- mergeResultMsg{outcome: outcome, err: err}

				close(progressChan)
				close(resultChan)
			}()

			return waitForProgressMsg{}
		},
		waitForProgress(m.progressChan, m.resultChan),
		m.progress.Init(),
		m.spinner.Tick,
	)

	return m, cmd
}

func waitForProgress(progressChan chan float64, resultChan chan mergeResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			// Progress channel closed, check result
			res, ok := <-resultChan
			if ok {
				return mergeCompleteMsg(res)
			}
			return nil
		}

		return progressMsg(p)
	}
}
