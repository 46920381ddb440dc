package ui

import (
	"os"
	"slices"

	"github.com/nconklindev/tablemerge/internal/config"
	"github.com/nconklindev/tablemerge/internal/merge"
	"github.com/nconklindev/tablemerge/internal/sheet"
	"github.com/nconklindev/tablemerge/internal/table"
	"github.com/nconklindev/tablemerge/internal/types"
	"github.com/nconklindev/tablemerge/internal/workflow"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type state int

const (
	stateMode state = iota
	stateFilePicker
	stateLoadingSheets
	stateSheets
	stateLoadingTables
	stateKeys
	stateColumns
	stateProcessing
	stateComplete
	stateError
)

// source is a picked file and the sheet and header row chosen for it.
type source struct {
	path   string
	sheets []string
	sheet  int
	// headerRow is 1-indexed; 0 detects the header.
	headerRow int
}

func (s source) ref() types.SheetRef {
	ref := types.SheetRef{Path: s.path, HeaderRow: s.headerRow - 1}
	if s.headerRow == 0 {
		ref.HeaderRow = sheet.AutoHeader
	}
	if len(s.sheets) > 0 {
		ref.Sheet = s.sheets[s.sheet]
	}
	return ref
}

type Model struct {
	cfg    *config.Config
	runner *workflow.Runner

	state  state
	mode   types.Mode
	cursor int

	filepicker filepicker.Model
	sources    []source

	tables       []*table.Table
	candidates   []string
	keys         map[string]bool
	how          types.JoinType
	lookupCols   []string
	selectedCols map[string]bool
	tagSource    bool

	warning string
	outcome *workflow.Outcome
	err     error
	width   int
	height  int

	spinner      spinner.Model
	progress     progress.Model
	progressChan chan float64
	resultChan   chan mergeResultMsg
}

type sheetsLoadedMsg struct {
	sheets [][]string
	err    error
}

type tablesLoadedMsg struct {
	tables []*table.Table
	err    error
}

type mergeResultMsg struct {
	outcome *workflow.Outcome
	err     error
}

type mergeCompleteMsg struct {
	outcome *workflow.Outcome
	err     error
}

type progressMsg float64

type waitForProgressMsg struct{}

func InitialModel(cfg *config.Config, runner *workflow.Runner) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".xlsx", ".xlsm"}
	fp.CurrentDirectory, _ = os.Getwd()

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(accentSoft)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(accentSoft)
	fp.Styles.File = lipgloss.NewStyle().Foreground(plain)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	return Model{
		cfg:          cfg,
		runner:       runner,
		state:        stateMode,
		filepicker:   fp,
		how:          types.JoinInner,
		keys:         make(map[string]bool),
		selectedCols: make(map[string]bool),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SelectedStyle)),
		progress:     progress.New(progress.WithGradient("#2EC4B6", "#8DE4DB")),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// needed is the number of sources the mode requires before continuing.
func (m Model) needed() int {
	if m.mode == types.ModeConcatenate {
		return 1
	}
	return 2
}

// full reports whether the mode accepts no further sources. Only lookup
// has an upper bound.
func (m Model) full() bool {
	return m.mode == types.ModeLookup && len(m.sources) >= 2
}

const lookupLimitWarning = "A lookup uses exactly two files. Press x to remove the last one."

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Leave room for the title, picked files and help text
		m.filepicker.SetHeight(max(5, msg.Height-16))
		m.progress.Width = max(20, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.warning = ""

		switch m.state {
		case stateMode:
			return m.updateMode(msg)
		case stateFilePicker:
			if next, cmd, handled := m.updateFilePickerKeys(msg); handled {
				return next, cmd
			}
		case stateSheets:
			return m.updateSheets(msg)
		case stateKeys:
			return m.updateKeys(msg)
		case stateColumns:
			return m.updateColumns(msg)
		case stateComplete:
			switch msg.String() {
			case "r":
				fresh := InitialModel(m.cfg, m.runner)
				fresh.width, fresh.height = m.width, m.height
				fresh.progress.Width = m.progress.Width
				return fresh, nil
			case "q", "enter", "esc":
				return m, tea.Quit
			}
			return m, nil
		case stateError:
			switch msg.String() {
			case "q", "enter", "esc":
				return m, tea.Quit
			}
			return m, nil
		default:
			return m, nil
		}

	case sheetsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		for i := range m.sources {
			m.sources[i].sheets = msg.sheets[i]
			m.sources[i].sheet = 0
			m.sources[i].headerRow = m.cfg.Load.HeaderRow
		}
		m.cursor = 0
		m.state = stateSheets
		return m, nil

	case tablesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.tables = msg.tables
		m.candidates = merge.CommonColumns(msg.tables...)
		if len(m.candidates) == 0 {
			m.warning = "These sheets share no column names. Adjust the header rows or pick other sheets."
			m.state = stateSheets
			return m, nil
		}
		for k := range m.keys {
			if !slices.Contains(m.candidates, k) {
				delete(m.keys, k)
			}
		}
		m.cursor = 0
		m.state = stateKeys
		return m, nil

	case mergeCompleteMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.outcome = msg.outcome
		m.state = stateComplete
		return m, nil

	case spinner.TickMsg:
		switch m.state {
		case stateLoadingSheets, stateLoadingTables, stateProcessing:
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	// Handle filepicker updates
	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			return m.addSource(path)
		}

		return m, cmd
	}

	return m, nil
}

func (m Model) updateMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(types.Modes)-1 {
			m.cursor++
		}
	case "enter":
		m.mode = types.Modes[m.cursor]
		m.sources = nil
		m.cursor = 0
		m.state = stateFilePicker
		return m, m.filepicker.Init()
	}
	return m, nil
}

// updateFilePickerKeys handles the keys the file picker does not use
// itself. handled is false when the key should reach the picker.
func (m Model) updateFilePickerKeys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		return m, tea.Quit, true
	case "x":
		if len(m.sources) > 0 {
			m.sources = m.sources[:len(m.sources)-1]
		}
		return m, nil, true
	case "tab":
		if len(m.sources) < m.needed() {
			m.warning = types.Describe(&types.InsufficientTablesError{Need: m.needed(), Got: len(m.sources)})
			return m, nil, true
		}
		if m.mode == types.ModeLookup && len(m.sources) > 2 {
			m.warning = lookupLimitWarning
			return m, nil, true
		}
		next, cmd := m.loadSources()
		return next, cmd, true
	}
	return m, nil, false
}

func (m Model) addSource(path string) (tea.Model, tea.Cmd) {
	if m.full() {
		m.warning = lookupLimitWarning
		return m, nil
	}
	for _, s := range m.sources {
		if s.path == path {
			m.warning = "Already selected: " + shortenPath(path, 40)
			return m, nil
		}
	}
	m.sources = append(m.sources, source{path: path})

	if m.mode == types.ModeLookup && len(m.sources) == 2 {
		return m.loadSources()
	}
	return m, nil
}

func (m Model) loadSources() (Model, tea.Cmd) {
	paths := make([]string, len(m.sources))
	for i, s := range m.sources {
		paths[i] = s.path
	}
	m.state = stateLoadingSheets
	return m, tea.Batch(m.spinner.Tick, loadSheets(paths))
}

func (m Model) updateSheets(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	src := &m.sources[m.cursor]

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.cursor = 0
		m.state = stateFilePicker
		return m, m.filepicker.Init()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.sources)-1 {
			m.cursor++
		}
	case "right", "l":
		if n := len(src.sheets); n > 0 {
			src.sheet = (src.sheet + 1) % n
		}
	case "left", "h":
		if n := len(src.sheets); n > 0 {
			src.sheet = (src.sheet - 1 + n) % n
		}
	case "+", "=":
		src.headerRow++
	case "-":
		if src.headerRow > 0 {
			src.headerRow--
		}
	case "s":
		if m.mode == types.ModeConcatenate {
			m.tagSource = !m.tagSource
		}
	case "enter":
		if m.mode == types.ModeConcatenate {
			return m.startMerge()
		}
		refs := make([]types.SheetRef, len(m.sources))
		for i, s := range m.sources {
			refs[i] = s.ref()
		}
		m.state = stateLoadingTables
		return m, tea.Batch(m.spinner.Tick, loadTables(refs))
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.cursor = 0
		m.state = stateSheets
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.candidates)-1 {
			m.cursor++
		}
	case " ":
		c := m.candidates[m.cursor]
		m.keys[c] = !m.keys[c]
	case "t":
		if m.mode == types.ModeJoin {
			i := slices.Index(types.JoinTypes, m.how)
			m.how = types.JoinTypes[(i+1)%len(types.JoinTypes)]
		}
	case "enter":
		if len(m.selectedKeys()) == 0 {
			m.warning = types.Describe(&types.NoCommonKeyError{})
			return m, nil
		}
		if m.mode == types.ModeJoin {
			return m.startMerge()
		}

		m.lookupCols = merge.LookupColumns(m.tables[merge.SecondarySource], m.selectedKeys())
		if len(m.lookupCols) == 0 {
			m.warning = "The lookup table has no columns besides the key."
			return m, nil
		}
		m.selectedCols = make(map[string]bool, len(m.lookupCols))
		for _, c := range m.lookupCols {
			m.selectedCols[c] = true
		}
		m.cursor = 0
		m.state = stateColumns
	}
	return m, nil
}

func (m Model) updateColumns(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.cursor = 0
		m.state = stateKeys
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.lookupCols)-1 {
			m.cursor++
		}
	case " ":
		c := m.lookupCols[m.cursor]
		m.selectedCols[c] = !m.selectedCols[c]
	case "a":
		all := len(m.selectedColumns()) == len(m.lookupCols)
		for _, c := range m.lookupCols {
			m.selectedCols[c] = !all
		}
	case "enter":
		if len(m.selectedColumns()) == 0 {
			m.warning = types.Describe(types.ErrEmptyColumnSelection)
			return m, nil
		}
		return m.startMerge()
	}
	return m, nil
}

// selectedKeys returns the chosen keys in candidate order.
func (m Model) selectedKeys() []string {
	var out []string
	for _, c := range m.candidates {
		if m.keys[c] {
			out = append(out, c)
		}
	}
	return out
}

// selectedColumns returns the chosen lookup columns in table order.
func (m Model) selectedColumns() []string {
	out := []string{}
	for _, c := range m.lookupCols {
		if m.selectedCols[c] {
			out = append(out, c)
		}
	}
	return out
}

// request assembles the merge request from the choices made so far.
func (m Model) request() workflow.Request {
	req := workflow.Request{
		Mode:           m.mode,
		RequireColumns: true,
	}
	for _, s := range m.sources {
		req.Sources = append(req.Sources, s.ref())
	}

	switch m.mode {
	case types.ModeConcatenate:
		req.TagSources = m.tagSource
	case types.ModeJoin:
		req.Keys = m.selectedKeys()
		req.How = m.how
	case types.ModeLookup:
		req.Keys = m.selectedKeys()
		req.Selected = m.selectedColumns()
	}
	return req
}
