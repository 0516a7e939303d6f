package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisRecord is a locally cached snapshot of a backend [Analysis].
//
// Records are keyed by a local UUID and unique on the backend's analysis ID, so repeated snapshots of one job update the same row.
type AnalysisRecord struct {
	id              string
	sequence        int
	analysisID      string
	url             string
	status          Status
	progress        float64
	currentAnalyzer string
	results         string
	createdAt       time.Time
	updatedAt       time.Time
	completedAt     *time.Time
	deletedAt       *time.Time
}

// NewAnalysisRecord creates a record for analysisID. The ID is assigned by the repository on create.
func NewAnalysisRecord(sequence int, analysisID, url string, status Status) *AnalysisRecord {
	now := time.Now()
	return &AnalysisRecord{
		sequence:   sequence,
		analysisID: analysisID,
		url:        url,
		status:     status,
		createdAt:  now,
		updatedAt:  now,
	}
}

// RecordFromAnalysis builds a record from an API snapshot.
func RecordFromAnalysis(a *Analysis) (*AnalysisRecord, error) {
	r := NewAnalysisRecord(0, a.ID, a.URL, a.Status)
	if !a.CreatedAt.IsZero() {
		r.createdAt = a.CreatedAt.Time
	}
	if err := r.ApplySnapshot(a); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplySnapshot copies the mutable fields of a into r.
func (r *AnalysisRecord) ApplySnapshot(a *Analysis) error {
	r.status = a.Status
	r.progress = a.Percent()
	r.currentAnalyzer = a.CurrentAnalyzer()

	if a.CompletedAt != nil && !a.CompletedAt.IsZero() {
		t := a.CompletedAt.Time
		r.completedAt = &t
	} else if a.Status.IsTerminal() && r.completedAt == nil {
		t := time.Now()
		r.completedAt = &t
	}

	if a.Results != nil {
		data, err := json.Marshal(a.Results)
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		r.results = string(data)
	}
	return nil
}

func (r *AnalysisRecord) ID() string              { return r.id }
func (r *AnalysisRecord) Sequence() int           { return r.sequence }
func (r *AnalysisRecord) AnalysisID() string      { return r.analysisID }
func (r *AnalysisRecord) URL() string             { return r.url }
func (r *AnalysisRecord) Status() Status          { return r.status }
func (r *AnalysisRecord) Progress() float64       { return r.progress }
func (r *AnalysisRecord) CurrentAnalyzer() string { return r.currentAnalyzer }
func (r *AnalysisRecord) Results() string         { return r.results }
func (r *AnalysisRecord) CreatedAt() time.Time    { return r.createdAt }
func (r *AnalysisRecord) UpdatedAt() time.Time    { return r.updatedAt }
func (r *AnalysisRecord) CompletedAt() *time.Time { return r.completedAt }
func (r *AnalysisRecord) DeletedAt() *time.Time   { return r.deletedAt }

func (r *AnalysisRecord) SetID(id string)                { r.id = id }
func (r *AnalysisRecord) SetSequence(seq int)            { r.sequence = seq }
func (r *AnalysisRecord) SetStatus(s Status)             { r.status = s }
func (r *AnalysisRecord) SetProgress(p float64)          { r.progress = p }
func (r *AnalysisRecord) SetCurrentAnalyzer(name string) { r.currentAnalyzer = name }
func (r *AnalysisRecord) SetResults(results string)      { r.results = results }
func (r *AnalysisRecord) SetCreatedAt(t time.Time)       { r.createdAt = t }
func (r *AnalysisRecord) SetUpdatedAt(t time.Time)       { r.updatedAt = t }
func (r *AnalysisRecord) SetCompletedAt(t *time.Time)    { r.completedAt = t }
func (r *AnalysisRecord) SetDeletedAt(t *time.Time)      { r.deletedAt = t }

// Validate checks required fields and value ranges.
func (r *AnalysisRecord) Validate() error {
	if r.analysisID == "" {
		return fmt.Errorf("analysis_id is required")
	}
	if r.url == "" {
		return fmt.Errorf("url is required")
	}
	switch r.status {
	case StatusPending, StatusRunning, StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.progress < 0 || r.progress > 100 {
		return fmt.Errorf("progress must be between 0 and 100, got %v", r.progress)
	}
	return nil
}
