package tasks

import (
	"fmt"

	"github.com/desertthunder/perc/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Percent reports Step/Total in the range [0, 1].
func (u ProgressUpdate) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	p := float64(u.Step) / float64(u.Total)
	return min(max(p, 0), 1)
}

// Operation phase enumeration
type Phase int

const (
	CreateAnalysis Phase = iota
	PollAnalysis
	AnalysisDone
	AnalysisFailed
	ExportReport
)

func (p Phase) String() string {
	switch p {
	case CreateAnalysis:
		return "create_analysis"
	case PollAnalysis:
		return "poll_analysis"
	case AnalysisDone:
		return "analysis_done"
	case AnalysisFailed:
		return "analysis_failed"
	case ExportReport:
		return "export_report"
	default:
		return ""
	}
}

func creatingUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateAnalysis,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Submitting %s for analysis...", url),
	}
}

func createdUpdate(a *models.Analysis) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateAnalysis,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Analysis created: %s (ID: %s)", a.URL, a.ID),
		Data:    a,
	}
}

// snapshotUpdate reports a poll result. Step and Total are analyzer counts when the backend
// reports them and a percentage otherwise.
func snapshotUpdate(a *models.Analysis) ProgressUpdate {
	step, total := int(a.Percent()), 100
	if p := a.Progress; p != nil && p.TotalAnalyzers > 0 {
		step, total = p.CompletedAnalyzers, p.TotalAnalyzers
	}

	msg := fmt.Sprintf("[%s] %.0f%%", a.Status, a.Percent())
	if current := a.CurrentAnalyzer(); current != "" {
		msg = fmt.Sprintf("%s - running %s", msg, current)
	}

	return ProgressUpdate{
		Phase:   PollAnalysis,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    a,
	}
}

func completedUpdate(a *models.Analysis) ProgressUpdate {
	if a.Status == models.StatusFailed {
		return ProgressUpdate{
			Phase:   AnalysisFailed,
			Step:    1,
			Total:   1,
			Message: fmt.Sprintf("✗ Analysis %s failed", a.ID),
			Data:    a,
		}
	}
	return ProgressUpdate{
		Phase:   AnalysisDone,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ Analysis %s completed", a.ID),
		Data:    a,
	}
}

func exportingReportUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting report %s...", step, total, id),
	}
}

func exportCompletedUpdate(step, total int, id string, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, id, path),
	}
}

func exportFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}
