package models

import "encoding/json"

// Profile is an analysis profile: a named set of analyzer configurations.
type Profile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	IsDefault       bool            `json:"is_default"`
	AnalyzerConfigs AnalyzerConfigs `json:"analyzer_configs"`
	CreatedAt       Timestamp       `json:"created_at"`
	UpdatedAt       *Timestamp      `json:"updated_at,omitempty"`
}

// AnalyzerConfigs lists the analyzers a profile runs.
type AnalyzerConfigs struct {
	Analyzers []AnalyzerConfig `json:"analyzers"`
}

// AnalyzerConfig pins one analyzer version and its settings.
type AnalyzerConfig struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// SystemHealth is returned by the monitoring health endpoint.
type SystemHealth struct {
	Status     string           `json:"status"`
	Timestamp  Timestamp        `json:"timestamp"`
	Components HealthComponents `json:"components"`
}

// Healthy reports whether the backend considers itself fully operational.
func (h SystemHealth) Healthy() bool {
	return h.Status == "healthy"
}

// HealthComponents holds the per-dependency health checks.
type HealthComponents struct {
	Database ComponentHealth `json:"database"`
	Celery   ComponentHealth `json:"celery"`
}

// ComponentHealth is one dependency's health.
type ComponentHealth struct {
	Status        string   `json:"status"`
	ResponseTime  string   `json:"response_time,omitempty"`
	ActiveWorkers int      `json:"active_workers,omitempty"`
	WorkerNames   []string `json:"worker_names,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// PerformanceMetrics summarizes analysis throughput over a time window.
type PerformanceMetrics struct {
	TimePeriodHours     int                   `json:"time_period_hours"`
	Summary             MetricsSummary        `json:"summary"`
	AnalyzerPerformance []AnalyzerPerformance `json:"analyzer_performance"`
	HourlyBreakdown     []HourlyBreakdown     `json:"hourly_breakdown"`
}

// MetricsSummary counts analyses by outcome.
type MetricsSummary struct {
	TotalAnalyses            int     `json:"total_analyses"`
	Completed                int     `json:"completed"`
	Failed                   int     `json:"failed"`
	Running                  int     `json:"running"`
	Pending                  int     `json:"pending"`
	SuccessRate              float64 `json:"success_rate"`
	AvgCompletionTimeSeconds float64 `json:"avg_completion_time_seconds"`
}

// AnalyzerPerformance is per-analyzer execution statistics.
type AnalyzerPerformance struct {
	Name             string  `json:"name"`
	TotalRuns        int     `json:"total_runs"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"success_rate"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	MaxExecutionTime float64 `json:"max_execution_time"`
	MinExecutionTime float64 `json:"min_execution_time"`
}

// HourlyBreakdown is analyses started and completed within one hour.
type HourlyBreakdown struct {
	Hour            string  `json:"hour"`
	AnalysesStarted int     `json:"analyses_started"`
	Completed       int     `json:"completed"`
	CompletionRate  float64 `json:"completion_rate"`
}

// SystemInfo describes the backend build.
type SystemInfo struct {
	Version            string   `json:"version"`
	Features           []string `json:"features"`
	AvailableAnalyzers []string `json:"available_analyzers"`
	TotalAnalyzerCount int      `json:"total_analyzer_count"`
}
