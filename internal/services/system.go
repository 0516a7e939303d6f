package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/desertthunder/perc/internal/models"
)

// SystemService covers profiles, monitoring, and build info.
type SystemService struct {
	*base
}

// Profiles lists analysis profiles.
func (s *SystemService) Profiles(ctx context.Context) ([]models.Profile, error) {
	profiles, err := get[[]models.Profile](ctx, s.base, "/api/v1/profiles")
	if err != nil {
		return nil, err
	}
	return *profiles, nil
}

// Profile returns one analysis profile.
func (s *SystemService) Profile(ctx context.Context, id string) (*models.Profile, error) {
	return get[models.Profile](ctx, s.base, "/api/v1/profiles/"+url.PathEscape(id))
}

// Health reports backend and worker health.
func (s *SystemService) Health(ctx context.Context) (*models.SystemHealth, error) {
	return get[models.SystemHealth](ctx, s.base, "/api/v1/monitoring/health")
}

// Metrics returns analysis performance over the last hours; non-positive values use 24.
func (s *SystemService) Metrics(ctx context.Context, hours int) (*models.PerformanceMetrics, error) {
	if hours <= 0 {
		hours = 24
	}
	return get[models.PerformanceMetrics](ctx, s.base, fmt.Sprintf("/api/v1/monitoring/metrics/analysis-performance?hours=%d", hours))
}

// Info describes the backend build.
func (s *SystemService) Info(ctx context.Context) (*models.SystemInfo, error) {
	return get[models.SystemInfo](ctx, s.base, "/api/v1/info")
}
