package models

import (
	"encoding/json"
	"sort"
)

// Status is the lifecycle state of an analysis job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusProcessing Status = "processing" // legacy API spelling of running
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether the job is queued or executing.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning || s == StatusProcessing
}

// AnalysisType selects the legacy analyzer pipeline.
type AnalysisType string

const (
	AnalysisTypeHomepage      AnalysisType = "homepage"
	AnalysisTypeCompetitor    AnalysisType = "competitor"
	AnalysisTypeTechSEO       AnalysisType = "tech_seo"
	AnalysisTypeAccessibility AnalysisType = "accessibility"
)

// Analysis is an analysis job as returned by both the legacy and v1 endpoints.
//
// v1 responses populate Progress, Results, and Profile. Legacy responses populate AnalysisType, AIAnalysis, Report, and Screenshots.
type Analysis struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Status      Status     `json:"status"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   *Timestamp `json:"updated_at,omitempty"`
	CompletedAt *Timestamp `json:"completed_at,omitempty"`

	Profile  *ProfileSummary `json:"profile,omitempty"`
	Progress *Progress       `json:"progress,omitempty"`
	Results  *Results        `json:"results,omitempty"`

	AnalysisType   AnalysisType    `json:"analysis_type,omitempty"`
	AIAnalysis     json.RawMessage `json:"ai_analysis,omitempty"`
	Report         *DetailedReport `json:"report,omitempty"`
	Screenshots    []string        `json:"screenshots,omitempty"`
	ProcessingTime *float64        `json:"processing_time,omitempty"`
}

// Percent returns the completion percentage, treating terminal jobs without progress as done.
func (a *Analysis) Percent() float64 {
	if a.Progress != nil {
		return a.Progress.ProgressPercentage
	}
	if a.Status.IsTerminal() {
		return 100
	}
	return 0
}

// CurrentAnalyzer returns the analyzer currently executing, if known.
func (a *Analysis) CurrentAnalyzer() string {
	if a.Progress == nil {
		return ""
	}
	return a.Progress.CurrentAnalyzer
}

// ProfileSummary is the profile embedded in an analysis response.
type ProfileSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Progress reports analyzer completion for a running job.
type Progress struct {
	TotalAnalyzers     int              `json:"total_analyzers"`
	CompletedAnalyzers int              `json:"completed_analyzers"`
	ProgressPercentage float64          `json:"progress_percentage"`
	CurrentAnalyzer    string           `json:"current_analyzer,omitempty"`
	AnalyzerStatus     []AnalyzerStatus `json:"analyzer_status"`
}

// AnalyzerStatus is the state of one analyzer within a job.
type AnalyzerStatus struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	StartedAt     *Timestamp `json:"started_at,omitempty"`
	ExecutionTime *float64   `json:"execution_time,omitempty"`
}

// Results holds the output of a completed v1 job.
type Results struct {
	AnalyzerResults map[string]json.RawMessage `json:"analyzer_results"`
	Summary         ResultSummary              `json:"summary"`
	Artifacts       []Artifact                 `json:"artifacts"`
}

// ResultSummary aggregates analyzer outcomes.
type ResultSummary struct {
	TotalAnalyzers      int `json:"total_analyzers"`
	SuccessfulAnalyzers int `json:"successful_analyzers"`
	FailedAnalyzers     int `json:"failed_analyzers"`
	TotalResults        int `json:"total_results"`
	CriticalIssues      int `json:"critical_issues"`
	Warnings            int `json:"warnings"`
	ArtifactsCount      int `json:"artifacts_count"`
}

// Artifact is a file produced by an analyzer, such as a screenshot.
type Artifact struct {
	Type     string          `json:"type"`
	Subtype  string          `json:"subtype,omitempty"`
	Path     string          `json:"path"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// CreateAnalysisRequest is the body of POST /api/v1/analyses.
type CreateAnalysisRequest struct {
	URL       string `json:"url"`
	ProfileID string `json:"profile_id,omitempty"`
}

// LegacyAnalysisRequest is the body of POST /analyze.
type LegacyAnalysisRequest struct {
	URL          string       `json:"url"`
	AnalysisType AnalysisType `json:"analysis_type,omitempty"`
}

// AnalysisPage is one page of GET /api/v1/analyses.
type AnalysisPage struct {
	Analyses []Analysis `json:"analyses"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PerPage  int        `json:"per_page"`
}

// ListOptions filters GET /api/v1/analyses. Zero values use the backend defaults.
type ListOptions struct {
	Page    int
	PerPage int
	Status  Status
}

// JobStatus is the background worker state for an analysis.
type JobStatus struct {
	TaskID string          `json:"task_id,omitempty"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Info   json.RawMessage `json:"info,omitempty"`
}

// MessageResponse is the acknowledgement returned by delete endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// RetryResponse is returned by POST /api/v1/analyses/{id}/retry.
type RetryResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// SortByCreatedDesc orders analyses newest first, in place.
func SortByCreatedDesc(analyses []Analysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.After(analyses[j].CreatedAt.Time)
	})
}
