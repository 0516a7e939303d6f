package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/perc/internal/interceptor"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// LegacyService covers the pre-v1 /analyze and /analyses endpoints.
type LegacyService struct {
	*base
}

// Report is a rendered report. Structured is set for JSON; Body holds the raw payload for every format.
type Report struct {
	Format      models.ReportFormat
	ContentType string
	Body        []byte
	Structured  *models.DetailedReport
}

// Analyze submits url with an analysis type; the zero type lets the backend choose.
func (s *LegacyService) Analyze(ctx context.Context, rawURL string, analysisType models.AnalysisType) (*models.Analysis, error) {
	target, err := shared.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	req := models.LegacyAnalysisRequest{URL: target, AnalysisType: analysisType}
	return call[models.Analysis](ctx, s.base, interceptor.Options{}, http.MethodPost, "/analyze", req)
}

// List returns every analysis, newest first.
func (s *LegacyService) List(ctx context.Context) ([]models.Analysis, error) {
	analyses, err := get[[]models.Analysis](ctx, s.base, "/analyses")
	if err != nil {
		return nil, err
	}
	models.SortByCreatedDesc(*analyses)
	return *analyses, nil
}

// Get returns one analysis.
func (s *LegacyService) Get(ctx context.Context, id string) (*models.Analysis, error) {
	return get[models.Analysis](ctx, s.base, "/analyses/"+url.PathEscape(id))
}

// GetAnalysis satisfies the poller's fetcher contract.
func (s *LegacyService) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	return s.Get(ctx, id)
}

// Delete removes an analysis.
func (s *LegacyService) Delete(ctx context.Context, id string) error {
	return s.ic.Do(ctx, interceptor.Options{}, func(ctx context.Context) error {
		return s.client.Do(ctx, http.MethodDelete, "/analyses/"+url.PathEscape(id), nil, nil)
	})
}

// Report fetches the report for id in format.
func (s *LegacyService) Report(ctx context.Context, id string, format models.ReportFormat) (*Report, error) {
	if format == "" {
		format = models.ReportJSON
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}

	endpoint := fmt.Sprintf("/analyses/%s/report?format=%s", url.PathEscape(id), format)
	return interceptor.Call(ctx, s.ic, interceptor.Options{}, func(ctx context.Context) (*Report, error) {
		body, contentType, err := s.client.DoRaw(ctx, http.MethodGet, endpoint)
		if err != nil {
			return nil, err
		}

		report := &Report{Format: format, ContentType: contentType, Body: body}
		if format == models.ReportJSON {
			var structured models.DetailedReport
			if err := json.Unmarshal(body, &structured); err != nil {
				return nil, fmt.Errorf("failed to decode report: %w", err)
			}
			report.Structured = &structured
		}
		return report, nil
	})
}
