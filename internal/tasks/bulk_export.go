package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/perc/internal/formatter"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/services"
	"github.com/desertthunder/perc/internal/shared"
	"golang.org/x/time/rate"
)

// ManifestName is the manifest file written at the root of a bulk export.
const ManifestName = "export_manifest.json"

// Reporter fetches rendered reports.
type Reporter interface {
	Report(ctx context.Context, id string, format models.ReportFormat) (*services.Report, error)
}

// BulkExportOpts contains configuration for bulk report exports.
type BulkExportOpts struct {
	Format     models.ReportFormat // Report format: json, markdown, html
	OutputDir  string              // Base output directory (default: perc_reports_{epoch})
	NumWorkers int                 // Concurrent workers (default: 5)
	RateLimit  float64             // Requests per second (default: 5)
}

// reportJob is a fetched report waiting to be written.
type reportJob struct {
	id     string
	report *services.Report
}

// BulkExport fetches and writes the reports of many analyses concurrently with rate limiting and progress tracking.
//
// Fetches are paced by a single limiter; writes fan out to a worker pool. Individual failures are recorded in the
// manifest and do not abort the export.
func (e *AnalysisEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	reporter Reporter,
	ids []string,
	opts BulkExportOpts,
) (*models.ReportManifest, error) {
	if reporter == nil {
		return nil, fmt.Errorf("%w: report service not initialized", shared.ErrServiceUnavailable)
	}

	if opts.Format == "" {
		opts.Format = models.ReportJSON
	}
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("perc_reports_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := &models.ReportManifest{
		Format:          opts.Format,
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now().UTC(),
		Total:           len(ids),
		Reports:         make([]models.ReportExport, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan reportJob, len(ids))
	results := make(chan models.ReportExport, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if ctx.Err() != nil {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			e.sendProgress(prog, exportingReportUpdate(i+1, len(ids), id))

			report, err := reporter.Report(ctx, id, opts.Format)
			if err != nil {
				results <- models.ReportExport{
					AnalysisID: id,
					Error:      fmt.Sprintf("failed to fetch report: %v", err),
				}
				continue
			}

			jobs <- reportJob{id: id, report: report}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		manifest.Reports = append(manifest.Reports, res)

		if res.Success {
			manifest.Successful++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.AnalysisID, res.File))
		} else {
			manifest.Failed++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.AnalysisID, fmt.Errorf("%s", res.Error)))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestName)
	if err := formatter.WriteReportManifest(manifest, manifestPath); err != nil {
		return manifest, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return manifest, err
	}
	return manifest, nil
}

// exportWorker writes reports from the jobs channel until it is closed.
//
// The results channel is sized for every ID, so sends never block even after ctx is done.
func (e *AnalysisEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan reportJob,
	results chan<- models.ReportExport,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- models.ReportExport{AnalysisID: job.id, Error: ctx.Err().Error()}
			continue
		}
		results <- e.exportSingleReport(job, opts)
	}
}

// exportSingleReport writes one report to {OutputDir}/{id}{ext}.
func (e *AnalysisEngine) exportSingleReport(j reportJob, opts BulkExportOpts) models.ReportExport {
	result := models.ReportExport{AnalysisID: j.id}

	path := filepath.Join(opts.OutputDir, j.id+opts.Format.Ext())
	written, err := formatter.WriteReport(j.report.Body, path)
	if err != nil {
		result.Error = fmt.Sprintf("report write failed: %v", err)
		e.logger.Warn("report export failed", "id", j.id, "error", err)
		return result
	}

	result.File = written
	result.Success = true
	return result
}
