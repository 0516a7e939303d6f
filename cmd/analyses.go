package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/perc/internal/formatter"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/desertthunder/perc/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Analyze submits a URL and optionally follows it to completion.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	target, err := shared.NormalizeURL(rawURL)
	if err != nil {
		return err
	}

	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	analysisType := models.AnalysisType(cmd.String("type"))

	if !cmd.Bool("watch") {
		var a *models.Analysis
		if cmd.Bool("legacy") {
			a, err = r.api.Legacy.Analyze(ctx, target, analysisType)
		} else {
			a, err = r.api.Analyses.Create(ctx, target, cmd.String("profile"))
		}
		if err != nil {
			return fmt.Errorf("failed to create analysis: %w", err)
		}
		if c := r.cache(); c != nil {
			c.CacheAnalysis(ctx, a)
		}

		if cmd.Bool("json") {
			return r.writeJSON(a, true)
		}
		r.writePlain("✓ Analysis queued\n")
		r.writeAnalysis(a)
		return r.writePlainln("Follow it with: perc analyses watch %s", a.ID)
	}

	engine := r.analysisEngine()
	if cmd.Bool("legacy") {
		engine = r.newEngine(legacyAnalyses{LegacyService: r.api.Legacy, analysisType: analysisType})
	}

	r.logger.Info("starting analysis", "url", target)

	var result *models.Analysis
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.CreateWithProgress(ctx, target, cmd.String("profile"), progress)
		return runErr
	})
	return r.finishWatch(result, err, cmd.Bool("json"))
}

// finishWatch prints the terminal snapshot of a watched analysis.
func (r *Runner) finishWatch(a *models.Analysis, err error, asJSON bool) error {
	if a == nil {
		return err
	}

	if asJSON {
		if jsonErr := r.writeJSON(a, true); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	r.writePlain("\n")
	if a.Status == models.StatusFailed {
		r.writePlainHeader("Analysis Failed")
	} else {
		r.writePlainHeader("Analysis Complete!")
	}
	r.writeAnalysis(a)
	if a.ProcessingTime != nil {
		r.writePlain("Took:      %s\n", formatter.FormatDuration(*a.ProcessingTime))
	}
	return err
}

// AnalysesList lists analyses from the v1 or legacy endpoint and refreshes the local cache.
func (r *Runner) AnalysesList(ctx context.Context, cmd *cli.Command) error {
	format := formatter.ListFormat(strings.ToLower(cmd.String("format")))
	if format == "text" {
		format = formatter.FormatText
	}
	switch format {
	case formatter.FormatText, formatter.FormatJSON, formatter.FormatCSV, formatter.FormatMarkdown:
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, cmd.String("format"))
	}

	status := models.Status(strings.ToLower(cmd.String("status")))

	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	var analyses []models.Analysis
	total := 0
	if cmd.Bool("legacy") {
		all, err := r.api.Legacy.List(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
		}
		for _, a := range all {
			if status == "" || a.Status == status {
				analyses = append(analyses, a)
			}
		}
		total = len(analyses)
	} else {
		page, err := r.api.Analyses.List(ctx, models.ListOptions{
			Page:    int(cmd.Int("page")),
			PerPage: int(cmd.Int("per-page")),
			Status:  status,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
		}
		analyses = page.Analyses
		total = page.Total
	}

	if c := r.cache(); c != nil {
		cached := c.CacheAll(ctx, analyses)
		r.logger.Debug("cached listing", "count", cached)
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteListExport(analyses, format, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d analyses to %s\n", len(analyses), path)
	}

	data, err := formatter.ExportList(analyses, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}
	if format == formatter.FormatText && total > len(analyses) {
		r.writePlainln("Showing %d of %d; use --page to see more", len(analyses), total)
	}
	return nil
}

func (r *Runner) fetchAnalysis(ctx context.Context, id string, legacy bool) (*models.Analysis, error) {
	if legacy {
		return r.api.Legacy.Get(ctx, id)
	}
	return r.api.Analyses.Get(ctx, id)
}

func requireID(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", fmt.Errorf("%w: analysis ID", shared.ErrMissingArgument)
	}
	return id, nil
}

// AnalysesGet prints one analysis.
func (r *Runner) AnalysesGet(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	a, err := r.fetchAnalysis(ctx, id, cmd.Bool("legacy"))
	if err != nil {
		return err
	}
	if c := r.cache(); c != nil {
		c.CacheAnalysis(ctx, a)
	}

	if cmd.Bool("json") {
		return r.writeJSON(a, true)
	}
	r.writeAnalysis(a)
	return nil
}

// AnalysesDelete deletes an analysis on the backend and drops it from the local cache.
func (r *Runner) AnalysesDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	message := "Analysis deleted"
	if cmd.Bool("legacy") {
		err = r.api.Legacy.Delete(ctx, id)
	} else {
		var resp *models.MessageResponse
		resp, err = r.api.Analyses.Delete(ctx, id)
		if err == nil && resp.Message != "" {
			message = resp.Message
		}
	}
	if err != nil {
		return err
	}

	if repo, repoErr := r.repository(); repoErr == nil {
		if record, getErr := repo.GetByAnalysisID(id); getErr == nil {
			if delErr := repo.Delete(record.ID()); delErr != nil {
				r.logger.Warn("failed to drop cached analysis", "id", id, "error", delErr)
			}
		}
	}

	return r.writePlain("✓ %s\n", message)
}

// AnalysesRetry re-queues a failed analysis.
func (r *Runner) AnalysesRetry(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	resp, err := r.api.Analyses.Retry(ctx, id)
	if err != nil {
		return err
	}

	r.writePlain("✓ %s\n", resp.Message)
	if resp.TaskID != "" {
		r.writePlain("Task: %s\n", resp.TaskID)
	}
	return r.writePlain("Follow it with: perc analyses watch %s\n", id)
}

// AnalysesStatus prints the background job state.
func (r *Runner) AnalysesStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	status, err := r.api.Analyses.JobStatus(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	r.writePlain("Job:    %s\n", status.Status)
	if status.TaskID != "" {
		r.writePlain("Task:   %s\n", status.TaskID)
	}
	if len(status.Info) > 0 && string(status.Info) != "null" {
		r.writePlain("Info:   %s\n", status.Info)
	}
	return nil
}

// AnalysesWatch polls an existing analysis until it finishes.
func (r *Runner) AnalysesWatch(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	engine := r.analysisEngine()
	if cmd.Bool("legacy") {
		engine = r.newEngine(legacyAnalyses{LegacyService: r.api.Legacy})
	}

	r.writePlain("Watching %s (every %s)\n", id, r.config.Poller.Interval())

	var result *models.Analysis
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.Watch(ctx, id, progress)
		return runErr
	})
	return r.finishWatch(result, err, false)
}

// dashboardURL links to an analysis in the web dashboard.
func (r *Runner) dashboardURL(id string) string {
	return strings.TrimRight(r.config.Frontend.URL, "/") + "/analysis/" + id
}

// AnalysesReport downloads a report in the requested format.
func (r *Runner) AnalysesReport(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	format, err := parseReportFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	report, err := r.api.Legacy.Report(ctx, id, format)
	if err != nil {
		return err
	}

	body := report.Body
	if cmd.Bool("summary") {
		if report.Structured == nil {
			return fmt.Errorf("%w: --summary requires --format json", shared.ErrInvalidFlag)
		}
		if body, err = formatter.ReportToMarkdown(report.Structured); err != nil {
			return err
		}
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteReport(body, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Report saved to %s\n", path)
	} else if format == models.ReportJSON && !cmd.Bool("summary") {
		if err := r.writeRawJSON(body, true); err != nil {
			return err
		}
	} else if err := r.writeBytes(body); err != nil {
		return err
	}

	if cmd.Bool("open") {
		link := r.dashboardURL(id)
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			r.writePlain("Open %s in your browser\n", link)
		}
	}
	return nil
}

// AnalysesExportReports downloads the reports of the given analyses, or of every completed analysis on the first
// page when no IDs are given.
func (r *Runner) AnalysesExportReports(ctx context.Context, cmd *cli.Command) error {
	format, err := parseReportFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		page, err := r.api.Analyses.List(ctx, models.ListOptions{Page: 1, PerPage: 100, Status: models.StatusCompleted})
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
		}
		for _, a := range page.Analyses {
			ids = append(ids, a.ID)
		}
		if len(ids) == 0 {
			return r.writePlain("No completed analyses to export\n")
		}
	}

	opts := tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float64("rate"),
	}

	r.writePlain("Exporting %d reports...\n", len(ids))

	var manifest *models.ReportManifest
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		manifest, runErr = r.analysisEngine().BulkExport(ctx, progress, r.api.Legacy, ids, opts)
		return runErr
	})
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", manifest.OutputDirectory)
	r.writePlain("Exported:  %d/%d\n", manifest.Successful, manifest.Total)
	if manifest.Failed > 0 {
		r.writePlain("\nFailed to export %d reports:\n", manifest.Failed)
		for _, e := range manifest.Reports {
			if !e.Success {
				r.writePlain("  - %s: %s\n", e.AnalysisID, e.Error)
			}
		}
	}
	return nil
}

// AnalysesScreenshots downloads the screenshots of a legacy analysis.
func (r *Runner) AnalysesScreenshots(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	a, err := r.api.Legacy.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(a.Screenshots) == 0 {
		return r.writePlain("Analysis %s has no screenshots\n", id)
	}

	result, err := formatter.WriteScreenshots(a, r.client.BaseURL(), cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Saved %d screenshots to %s\n", len(result.Files), result.Directory)
	for _, failed := range result.Failed {
		r.writePlain("  ✗ %s\n", failed)
	}
	return nil
}
