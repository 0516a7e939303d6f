package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/perc/internal/models"
)

var (
	_ list.Item = analysisItem{}
)

// analysisItem wraps [models.Analysis] to implement [list.Item].
type analysisItem struct {
	analysis models.Analysis
}

func (i analysisItem) FilterValue() string { return i.analysis.URL }
func (i analysisItem) Title() string       { return i.analysis.URL }
func (i analysisItem) Description() string {
	a := i.analysis
	desc := fmt.Sprintf("%s • %.0f%%", a.Status, a.Percent())
	if current := a.CurrentAnalyzer(); current != "" && a.Status.IsActive() {
		desc = fmt.Sprintf("%s • %s", desc, current)
	}
	if !a.CreatedAt.IsZero() {
		desc = fmt.Sprintf("%s • %s", desc, a.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	return desc
}

func analysisItems(analyses []models.Analysis) []list.Item {
	items := make([]list.Item, len(analyses))
	for i, a := range analyses {
		items[i] = analysisItem{analysis: a}
	}
	return items
}
