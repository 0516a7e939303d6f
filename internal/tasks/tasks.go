// package tasks implements analysis job orchestration against the backend.
//
// The core abstraction is AnalysisEngine, which submits analyses and follows them to a terminal status.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// AnalysisAPI is the slice of the backend the engine drives.
type AnalysisAPI interface {
	Fetcher
	Create(ctx context.Context, rawURL, profileID string) (*models.Analysis, error)
}

// SnapshotCacher persists analysis snapshots as they are observed.
//
// Implementations must not block for long and should swallow their own errors;
// a failing cache never interrupts polling.
type SnapshotCacher interface {
	CacheAnalysis(ctx context.Context, a *models.Analysis)
}

// AnalysisEngine submits analyses and watches them to completion.
type AnalysisEngine struct {
	api      AnalysisAPI
	cache    SnapshotCacher
	logger   *log.Logger
	pollOpts []PollerOption
}

// NewAnalysisEngine creates an engine. cache may be nil. pollOpts apply to every poller the engine starts.
func NewAnalysisEngine(api AnalysisAPI, cache SnapshotCacher, logger *log.Logger, pollOpts ...PollerOption) *AnalysisEngine {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &AnalysisEngine{
		api:      api,
		cache:    cache,
		logger:   logger,
		pollOpts: append([]PollerOption{WithLogger(logger)}, pollOpts...),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *AnalysisEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *AnalysisEngine) cacheSnapshot(ctx context.Context, a *models.Analysis) {
	if e.cache == nil || a == nil {
		return
	}
	e.cache.CacheAnalysis(ctx, a)
}

// CreateWithProgress submits url for analysis and polls the new job until it finishes.
//
// The terminal snapshot is returned. A job that ends in the failed status is returned together with
// [shared.ErrAnalysisFailed].
func (e *AnalysisEngine) CreateWithProgress(ctx context.Context, url, profileID string, progress chan<- ProgressUpdate) (*models.Analysis, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: analysis service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, creatingUpdate(url))

	analysis, err := e.api.Create(ctx, url, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	e.cacheSnapshot(ctx, analysis)
	e.sendProgress(progress, createdUpdate(analysis))
	e.logger.Info("analysis created", "id", analysis.ID, "url", analysis.URL)

	if analysis.Status.IsTerminal() {
		e.sendProgress(progress, completedUpdate(analysis))
		return finished(analysis)
	}
	return e.Watch(ctx, analysis.ID, progress)
}

// Watch polls an existing analysis until it reaches a terminal status or ctx is done.
func (e *AnalysisEngine) Watch(ctx context.Context, id string, progress chan<- ProgressUpdate) (*models.Analysis, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: analysis service not initialized", shared.ErrServiceUnavailable)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: analysis ID", shared.ErrMissingArgument)
	}

	type result struct {
		analysis *models.Analysis
		err      error
	}
	results := make(chan result, 1)

	poller := NewPoller(e.api, id, e.pollOpts...)
	poller.Start(ctx, Callbacks{
		OnUpdate: func(a *models.Analysis) {
			e.cacheSnapshot(ctx, a)
			e.sendProgress(progress, snapshotUpdate(a))
		},
		OnComplete: func(a *models.Analysis) {
			e.sendProgress(progress, completedUpdate(a))
			results <- result{analysis: a}
		},
		OnError: func(err error) {
			results <- result{err: err}
		},
	})

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("failed to poll analysis %s: %w", id, r.err)
		}
		e.logger.Info("analysis finished", "id", id, "status", r.analysis.Status)
		return finished(r.analysis)
	case <-ctx.Done():
		poller.Stop()
		return nil, ctx.Err()
	}
}

func finished(a *models.Analysis) (*models.Analysis, error) {
	if a.Status == models.StatusFailed {
		return a, fmt.Errorf("%w: %s", shared.ErrAnalysisFailed, a.ID)
	}
	return a, nil
}
