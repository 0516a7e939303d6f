package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/perc/internal/interceptor"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

const analysesV1 = "/api/v1/analyses"

// AnalysisService covers /api/v1/analyses.
type AnalysisService struct {
	*base
}

// Create submits url for analysis with an optional profile.
func (s *AnalysisService) Create(ctx context.Context, rawURL, profileID string) (*models.Analysis, error) {
	target, err := shared.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	req := models.CreateAnalysisRequest{URL: target, ProfileID: profileID}
	return call[models.Analysis](ctx, s.base, interceptor.Options{}, http.MethodPost, analysesV1, req)
}

// List returns one page of analyses.
func (s *AnalysisService) List(ctx context.Context, opts models.ListOptions) (*models.AnalysisPage, error) {
	page, perPage := opts.Page, opts.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if opts.Status != "" {
		params.Set("status", string(opts.Status))
	}

	return get[models.AnalysisPage](ctx, s.base, analysesV1+"?"+params.Encode())
}

// Get returns a single analysis with its progress.
func (s *AnalysisService) Get(ctx context.Context, id string) (*models.Analysis, error) {
	return get[models.Analysis](ctx, s.base, analysisPath(id))
}

// GetAnalysis satisfies the poller's fetcher contract.
func (s *AnalysisService) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	return s.Get(ctx, id)
}

// Delete removes an analysis.
func (s *AnalysisService) Delete(ctx context.Context, id string) (*models.MessageResponse, error) {
	return call[models.MessageResponse](ctx, s.base, interceptor.Options{}, http.MethodDelete, analysisPath(id), nil)
}

// Retry re-queues a failed analysis.
func (s *AnalysisService) Retry(ctx context.Context, id string) (*models.RetryResponse, error) {
	return call[models.RetryResponse](ctx, s.base, interceptor.Options{}, http.MethodPost, analysisPath(id)+"/retry", nil)
}

// JobStatus returns the background worker state for an analysis.
func (s *AnalysisService) JobStatus(ctx context.Context, id string) (*models.JobStatus, error) {
	return get[models.JobStatus](ctx, s.base, analysisPath(id)+"/job-status")
}

func analysisPath(id string) string {
	return fmt.Sprintf("%s/%s", analysesV1, url.PathEscape(id))
}
