package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/perc/internal/client"
	"github.com/desertthunder/perc/internal/interceptor"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/services"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/desertthunder/perc/internal/tasks"
	tu "github.com/desertthunder/perc/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	page *models.AnalysisPage
	err  error
}

func (s stubLister) List(context.Context, models.ListOptions) (*models.AnalysisPage, error) {
	return s.page, s.err
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleAnalyses() []models.Analysis {
	return []models.Analysis{
		{ID: "a1", URL: "https://example.com", Status: models.StatusCompleted},
		{ID: "a2", URL: "https://example.org", Status: models.StatusRunning,
			Progress: &models.Progress{ProgressPercentage: 40, CurrentAnalyzer: "seo"}},
	}
}

// runUntilDone executes progress commands until the watched job finishes.
func runUntilDone(t *testing.T, m *Model, cmd tea.Cmd) Msg {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for cmd != nil {
		msgCh := make(chan tea.Msg, 1)
		go func(c tea.Cmd) { msgCh <- c() }(cmd)

		var msg tea.Msg
		select {
		case msg = <-msgCh:
		case <-deadline:
			t.Fatal("timed out waiting for analysis to finish")
		}

		uiMsg, ok := msg.(Msg)
		require.True(t, ok, "unexpected message %T", msg)
		if uiMsg.kind == MsgAnalysisDone {
			return uiMsg
		}
		_, cmd = m.Update(uiMsg)
	}
	t.Fatal("command chain ended before completion")
	return Msg{}
}

func newBackendModel(t *testing.T) (*Model, *tu.FakeBackend) {
	t.Helper()
	backend := tu.NewFakeBackend()
	t.Cleanup(backend.Close)

	c, err := client.New(backend.URL)
	require.NoError(t, err)
	api := services.New(c, interceptor.New())
	_, err = api.Auth.Login(context.Background(), "test@example.com", "password")
	require.NoError(t, err)

	engine := tasks.NewAnalysisEngine(api.Analyses, nil, shared.NewDiscardLogger(), tasks.WithInterval(5*time.Millisecond))
	return NewModel(context.Background(), api.Analyses, engine, nil), backend
}

func TestModel(t *testing.T) {
	t.Run("Analyses Fetched", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{page: &models.AnalysisPage{Analyses: sampleAnalyses()}}, nil, nil)
		msg := m.fetchAnalyses()()
		m.Update(msg)

		assert.Equal(t, ListView, m.ViewState())
		assert.NoError(t, m.Err())
		assert.Len(t, m.analysisList.Items(), 2)
	})

	t.Run("Fetch Error", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{err: errors.New("boom")}, nil, nil)
		m.Update(m.fetchAnalyses()())

		assert.EqualError(t, m.Err(), "boom")
		assert.Contains(t, m.View(), "boom")
	})

	t.Run("Snapshot Replaces Row", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(analysesFetchedMsg(sampleAnalyses(), nil))

		m.Update(snapshotMsg(&models.Analysis{ID: "a2", URL: "https://example.org", Status: models.StatusCompleted}))

		item := m.analysisList.Items()[1].(analysisItem)
		assert.Equal(t, models.StatusCompleted, item.analysis.Status)
		assert.Equal(t, models.StatusCompleted, m.analyses[1].Status)
	})

	t.Run("Unknown Snapshot Is Ignored", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(analysesFetchedMsg(sampleAnalyses(), nil))
		m.Update(snapshotMsg(&models.Analysis{ID: "zzz", Status: models.StatusFailed}))
		assert.Len(t, m.analysisList.Items(), 2)
	})

	t.Run("Enter On Finished Analysis Shows Result", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(analysesFetchedMsg(sampleAnalyses(), nil))

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Equal(t, ResultView, m.ViewState())
		assert.Contains(t, m.View(), "Analysis Complete")

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Equal(t, ListView, m.ViewState())
	})

	t.Run("New Analysis Input", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(keyRunes("n"))
		require.Equal(t, NewAnalysisView, m.ViewState())

		m.Update(keyRunes("not a url"))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Error(t, m.Err())
		assert.Equal(t, NewAnalysisView, m.ViewState())

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Equal(t, ListView, m.ViewState())
	})

	t.Run("Missing Engine", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(keyRunes("n"))
		m.Update(keyRunes("https://example.com"))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.ErrorIs(t, m.Err(), shared.ErrServiceUnavailable)
	})

	t.Run("Session Expired", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(SessionExpiredMsg(shared.ErrSessionExpired))

		assert.ErrorIs(t, m.Err(), shared.ErrSessionExpired)
		assert.Contains(t, m.View(), "perc auth login")

		_, cmd := m.Update(keyRunes("x"))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("Quit", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		_, cmd := m.Update(keyRunes("q"))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("Window Size", func(t *testing.T) {
		m := NewModel(context.Background(), stubLister{}, nil, nil)
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		assert.Equal(t, 80, m.bar.Width)
	})
}

func TestModelAgainstBackend(t *testing.T) {
	t.Run("Create And Watch", func(t *testing.T) {
		m, _ := newBackendModel(t)
		m.Update(keyRunes("n"))
		m.Update(keyRunes("https://example.com"))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.Equal(t, WatchView, m.ViewState())

		done := runUntilDone(t, m, cmd)
		m.Update(done)

		require.NoError(t, m.Err())
		assert.Equal(t, ResultView, m.ViewState())
		require.NotNil(t, m.result)
		assert.Equal(t, models.StatusCompleted, m.result.Status)
		assert.Contains(t, m.View(), "https://example.com")
	})

	t.Run("Watch Active Row", func(t *testing.T) {
		m, backend := newBackendModel(t)
		backend.AddAnalysis(models.Analysis{ID: "job-1", URL: "https://example.net", Status: models.StatusRunning})
		backend.Script("job-1", models.StatusRunning, models.StatusFailed)

		m.Update(m.fetchAnalyses()())
		require.Len(t, m.analysisList.Items(), 1)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.Equal(t, WatchView, m.ViewState())

		m.Update(runUntilDone(t, m, cmd))
		assert.ErrorIs(t, m.Err(), shared.ErrAnalysisFailed)
		assert.Equal(t, ResultView, m.ViewState())
		assert.Contains(t, m.View(), "Analysis Failed")
	})
}
