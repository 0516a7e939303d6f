package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgAnalysesFetched MsgKind = iota
	MsgSnapshot
	MsgProgressUpdate
	MsgAnalysisDone
	MsgSessionExpired
)

type fetchResult struct {
	analyses []models.Analysis
	err      error
}

type doneResult struct {
	analysis *models.Analysis
	err      error
}

// analysesFetchedMsg is the constructor for [MsgAnalysesFetched]
func analysesFetchedMsg(analyses []models.Analysis, err error) Msg {
	return Msg{kind: MsgAnalysesFetched, data: fetchResult{analyses, err}}
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(a *models.Analysis) Msg {
	return Msg{kind: MsgSnapshot, data: a}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// analysisDoneMsg is the constructor for [MsgAnalysisDone]
func analysisDoneMsg(a *models.Analysis, err error) Msg {
	return Msg{kind: MsgAnalysisDone, data: doneResult{a, err}}
}

// SessionExpiredMsg tells the TUI that the session ended; it shows the error and quits on the next key.
func SessionExpiredMsg(err error) Msg {
	return Msg{kind: MsgSessionExpired, data: err}
}
