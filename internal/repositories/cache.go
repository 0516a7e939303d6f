package repositories

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// CacheAdapter implements tasks.SnapshotCacher using AnalysisRepository.
//
// Every snapshot is upserted on the backend analysis ID. Failures are logged and dropped so a broken
// cache never interrupts polling.
type CacheAdapter struct {
	repo   *AnalysisRepository
	logger *log.Logger
}

// NewCacheAdapter creates a new CacheAdapter with the given repository. A nil logger discards.
func NewCacheAdapter(repo *AnalysisRepository, logger *log.Logger) *CacheAdapter {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &CacheAdapter{repo: repo, logger: logger}
}

// CacheAnalysis stores a snapshot. Cancelled contexts skip the write.
func (a *CacheAdapter) CacheAnalysis(ctx context.Context, analysis *models.Analysis) {
	if analysis == nil || ctx.Err() != nil {
		return
	}
	if _, err := a.repo.Upsert(analysis); err != nil {
		a.logger.Warn("failed to cache analysis", "id", analysis.ID, "error", err)
	}
}

// CacheAll stores every analysis in a listing and returns how many were written.
func (a *CacheAdapter) CacheAll(ctx context.Context, analyses []models.Analysis) int {
	written := 0
	for i := range analyses {
		if ctx.Err() != nil {
			break
		}
		if _, err := a.repo.Upsert(&analyses[i]); err != nil {
			a.logger.Warn("failed to cache analysis", "id", analyses[i].ID, "error", err)
			continue
		}
		written++
	}
	return written
}
