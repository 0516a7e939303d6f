package models

import (
	"encoding/json"
	"time"
)

// ReportFormat selects the representation returned by the report endpoint.
type ReportFormat string

const (
	ReportJSON     ReportFormat = "json"
	ReportMarkdown ReportFormat = "markdown"
	ReportHTML     ReportFormat = "html"
)

// Valid reports whether f is a known format.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportJSON, ReportMarkdown, ReportHTML:
		return true
	}
	return false
}

// Ext returns the file extension for f.
func (f ReportFormat) Ext() string {
	switch f {
	case ReportMarkdown:
		return ".md"
	case ReportHTML:
		return ".html"
	default:
		return ".json"
	}
}

// Priority ranks findings and report sections.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// DetailedReport is the structured report for a completed analysis.
type DetailedReport struct {
	ID               string                       `json:"id"`
	URL              string                       `json:"url"`
	AnalysisDate     Timestamp                    `json:"analysis_date"`
	ExecutiveSummary ExecutiveSummary             `json:"executive_summary"`
	Sections         []ReportSection              `json:"sections"`
	Visualizations   map[string]VisualizationData `json:"visualizations,omitempty"`
}

// ExecutiveSummary is the scored headline of a report.
type ExecutiveSummary struct {
	OverallScore             float64  `json:"overall_score"`
	Grade                    string   `json:"grade"`
	KeyFindings              []string `json:"key_findings"`
	CriticalIssues           []string `json:"critical_issues"`
	QuickWins                []string `json:"quick_wins"`
	StrategicRecommendations []string `json:"strategic_recommendations"`
}

// ReportSection is one titled block of a report. Content is analyzer-specific.
type ReportSection struct {
	Title         string             `json:"title"`
	Content       json.RawMessage    `json:"content"`
	Priority      Priority           `json:"priority"`
	Visualization *VisualizationData `json:"visualization,omitempty"`
}

// VisualizationData describes a chart the web dashboard renders. The CLI only carries it through.
type VisualizationData struct {
	ChartType string          `json:"chart_type"`
	Data      json.RawMessage `json:"data"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// ReportExport is the outcome of writing one report to disk.
type ReportExport struct {
	AnalysisID string `json:"analysis_id"`
	Success    bool   `json:"success"`
	File       string `json:"file,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ReportManifest summarizes a bulk report export.
type ReportManifest struct {
	Format          ReportFormat   `json:"format"`
	OutputDirectory string         `json:"output_directory"`
	ExportedAt      time.Time      `json:"exported_at"`
	Total           int            `json:"total"`
	Successful      int            `json:"successful"`
	Failed          int            `json:"failed"`
	Reports         []ReportExport `json:"reports"`
}
