// Package ui implements an interactive terminal dashboard using bubbletea's Elm architecture.
//
// The TUI mirrors the web dashboard:
//  1. [ListView] : Browse recent analyses with live status for active jobs
//  2. [NewAnalysisView] : Submit a URL for analysis
//  3. [WatchView] : Follow a job's progress until it reaches a terminal status
//  4. [ResultView] : Display the outcome of a finished analysis
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Active rows are refreshed by a [tasks.Tracker] which runs one poller per active analysis; its snapshots reach the
// model through a buffered channel. Progress for the watched job flows through a channel from the AnalysisEngine.
//
// When the session can no longer be refreshed the model shows the error and quits on the next key press.
package ui
