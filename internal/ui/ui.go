package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/perc/internal/formatter"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/desertthunder/perc/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	NewAnalysisView
	WatchView
	ResultView
)

// Lister loads the dashboard listing.
type Lister interface {
	List(ctx context.Context, opts models.ListOptions) (*models.AnalysisPage, error)
}

// dashboardPageSize matches the web dashboard's first page.
const dashboardPageSize = 20

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	lister  Lister
	engine  *tasks.AnalysisEngine
	tracker *tasks.Tracker

	width  int
	height int

	analysisList list.Model
	analyses     []models.Analysis
	snapshots    chan *models.Analysis

	input        textinput.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan doneResult
	progress     tasks.ProgressUpdate
	watching     string

	result  *models.Analysis
	err     error
	expired bool
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model. tracker may be nil, in which case list rows only change on refresh.
func NewModel(ctx context.Context, lister Lister, engine *tasks.AnalysisEngine, tracker *tasks.Tracker) *Model {
	analysisList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	analysisList.Title = "Analyses"
	analysisList.SetShowHelp(false)

	input := textinput.New()
	input.Placeholder = "https://example.com"
	input.CharLimit = 2048
	input.Prompt = "URL › "

	m := &Model{
		ctx:          ctx,
		view:         ListView,
		lister:       lister,
		engine:       engine,
		tracker:      tracker,
		analysisList: analysisList,
		input:        input,
		bar:          progress.New(progress.WithDefaultGradient()),
		help:         help.New(),
		keys:         newKeyMap(),
	}

	if tracker != nil {
		m.snapshots = make(chan *models.Analysis, 64)
		snapshots := m.snapshots
		tracker.OnUpdate = func(a *models.Analysis) {
			select {
			case snapshots <- a:
			default:
			}
		}
	}
	return m
}

// ViewState returns the active view.
func (m *Model) ViewState() ViewState { return m.view }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

// Init initializes the TUI by fetching the analysis list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchAnalyses(), m.waitForSnapshot())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.analysisList.SetSize(msg.Width-4, msg.Height-6)
		m.bar.Width = min(max(msg.Width-8, 10), 80)
		return m, nil

	case tea.KeyMsg:
		if m.expired {
			return m, tea.Quit
		}
		switch m.view {
		case ListView:
			return m.handleListKeys(msg)
		case NewAnalysisView:
			return m.handleInputKeys(msg)
		case WatchView:
			return m.handleWatchKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgAnalysesFetched:
		res := msg.data.(fetchResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		m.analyses = res.analyses
		if m.tracker != nil {
			m.tracker.Sync(m.ctx, res.analyses)
		}
		return m, m.analysisList.SetItems(analysisItems(res.analyses))

	case MsgSnapshot:
		a := msg.data.(*models.Analysis)
		cmd := m.applySnapshot(a)
		return m, tea.Batch(cmd, m.waitForSnapshot())

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		if a, ok := m.progress.Data.(*models.Analysis); ok && m.watching == "" {
			m.watching = a.ID
		}
		return m, m.waitForProgress()

	case MsgAnalysisDone:
		res := msg.data.(doneResult)
		m.progressChan = nil
		m.doneChan = nil
		m.result = res.analysis
		m.err = res.err
		if errors.Is(res.err, context.Canceled) {
			m.view = ListView
			m.err = nil
			return m, m.fetchAnalyses()
		}
		m.view = ResultView
		if res.analysis != nil {
			return m, m.applySnapshot(res.analysis)
		}
		return m, nil

	case MsgSessionExpired:
		m.expired = true
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		} else {
			m.err = shared.ErrSessionExpired
		}
		if m.tracker != nil {
			m.tracker.StopAll()
		}
		return m, nil
	}
	return m, nil
}

// applySnapshot replaces the matching list row with a.
func (m *Model) applySnapshot(a *models.Analysis) tea.Cmd {
	idx := slices.IndexFunc(m.analyses, func(x models.Analysis) bool { return x.ID == a.ID })
	if idx < 0 {
		return nil
	}
	m.analyses[idx] = *a
	return m.analysisList.SetItem(idx, analysisItem{analysis: *a})
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.analysisList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.analysisList, cmd = m.analysisList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.stopAll()
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchAnalyses()
	case key.Matches(msg, m.keys.create):
		m.view = NewAnalysisView
		m.err = nil
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		selected, ok := m.analysisList.SelectedItem().(analysisItem)
		if !ok {
			return m, nil
		}
		a := selected.analysis
		if a.Status.IsTerminal() {
			m.result = &a
			m.err = nil
			m.view = ResultView
			return m, nil
		}
		return m, m.startWatch(a.ID)
	}

	var cmd tea.Cmd
	m.analysisList, cmd = m.analysisList.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.stopAll()
		return m, tea.Quit
	case tea.KeyEsc:
		m.input.Blur()
		m.view = ListView
		return m, nil
	case tea.KeyEnter:
		url := strings.TrimSpace(m.input.Value())
		if _, err := shared.NormalizeURL(url); err != nil {
			m.err = err
			return m, nil
		}
		m.input.Blur()
		return m, m.startCreate(url)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleWatchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.stopAll()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.stopAll()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ListView
		m.result = nil
		m.err = nil
		return m, m.fetchAnalyses()
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ListView:
		m.analysisList, cmd = m.analysisList.Update(msg)
	case NewAnalysisView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) stopAll() {
	if m.tracker != nil {
		m.tracker.StopAll()
	}
}

func (m *Model) fetchAnalyses() tea.Cmd {
	if m.lister == nil {
		return nil
	}
	ctx, lister := m.ctx, m.lister
	return func() tea.Msg {
		page, err := lister.List(ctx, models.ListOptions{Page: 1, PerPage: dashboardPageSize})
		if err != nil {
			return analysesFetchedMsg(nil, err)
		}
		return analysesFetchedMsg(page.Analyses, nil)
	}
}

func (m *Model) waitForSnapshot() tea.Cmd {
	if m.snapshots == nil {
		return nil
	}
	ctx, snapshots := m.ctx, m.snapshots
	return func() tea.Msg {
		select {
		case a := <-snapshots:
			return snapshotMsg(a)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) startCreate(url string) tea.Cmd {
	return m.run("", func(progress chan<- tasks.ProgressUpdate) (*models.Analysis, error) {
		return m.engine.CreateWithProgress(m.ctx, url, "", progress)
	})
}

func (m *Model) startWatch(id string) tea.Cmd {
	return m.run(id, func(progress chan<- tasks.ProgressUpdate) (*models.Analysis, error) {
		return m.engine.Watch(m.ctx, id, progress)
	})
}

// run starts fn in the background and switches to the watch view.
func (m *Model) run(id string, fn func(chan<- tasks.ProgressUpdate) (*models.Analysis, error)) tea.Cmd {
	if m.engine == nil {
		m.err = fmt.Errorf("%w: analysis engine not initialized", shared.ErrServiceUnavailable)
		return nil
	}

	m.view = WatchView
	m.watching = id
	m.result = nil
	m.err = nil
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan doneResult, 1)

	progressChan, doneChan := m.progressChan, m.doneChan
	go func() {
		a, err := fn(progressChan)
		doneChan <- doneResult{analysis: a, err: err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	if progressChan == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			res := <-doneChan
			return analysisDoneMsg(res.analysis, res.err)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.expired {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			styles.help.Render("Run `perc auth login` to sign in again. Press any key to quit.")
	}

	switch m.view {
	case ListView:
		return m.renderList()
	case NewAnalysisView:
		return m.renderInput()
	case WatchView:
		return m.renderWatch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.create, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	body := m.analysisList.View()
	if m.err != nil {
		body = styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + body
	}
	if m.tracker != nil {
		if active := len(m.tracker.Active()); active > 0 {
			body += "\n" + styles.warn.Render(fmt.Sprintf("Tracking %d active analyses", active))
		}
	}
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

func (m *Model) renderInput() string {
	title := styles.title.Render("New Analysis")
	helpKeys := []key.Binding{key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")), m.keys.back}

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(m.err.Error())
	}
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, m.input.View(), errLine, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderWatch() string {
	label := "Analyzing"
	if m.watching != "" {
		label = fmt.Sprintf("Analyzing %s", m.watching)
	}
	title := styles.title.Render(label)

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s",
		title,
		m.bar.ViewAs(m.progress.Percent()),
		m.progress.Message,
		m.help.ShortHelpView([]key.Binding{m.keys.quit}),
	)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Analysis failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	a := m.result
	var title string
	if a.Status == models.StatusFailed {
		title = styles.err.Render("✗ Analysis Failed")
	} else {
		title = styles.ok.Render("✓ Analysis Complete")
	}

	lines := []string{
		fmt.Sprintf("ID:       %s", a.ID),
		fmt.Sprintf("URL:      %s", a.URL),
		fmt.Sprintf("Status:   %s", styles.Status(a.Status)),
		fmt.Sprintf("Progress: %.0f%%", a.Percent()),
	}
	if a.Profile != nil && a.Profile.Name != "" {
		lines = append(lines, fmt.Sprintf("Profile:  %s", a.Profile.Name))
	}
	if a.ProcessingTime != nil {
		lines = append(lines, fmt.Sprintf("Took:     %s", formatter.FormatDuration(*a.ProcessingTime)))
	}
	if r := a.Results; r != nil {
		lines = append(lines, fmt.Sprintf("Analyzers: %d/%d succeeded",
			r.Summary.SuccessfulAnalyzers, r.Summary.TotalAnalyzers))
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, styles.box.Render(strings.Join(lines, "\n")), helpView)
}
