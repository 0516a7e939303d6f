package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/urfave/cli/v3"
)

// cachedRecord is the JSON view of a cached analysis.
type cachedRecord struct {
	ID              string          `json:"id"`
	AnalysisID      string          `json:"analysis_id"`
	URL             string          `json:"url"`
	Status          models.Status   `json:"status"`
	Progress        float64         `json:"progress"`
	CurrentAnalyzer string          `json:"current_analyzer,omitempty"`
	Results         json.RawMessage `json:"results,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
	CompletedAt     string          `json:"completed_at,omitempty"`
}

func newCachedRecord(rec *models.AnalysisRecord) cachedRecord {
	out := cachedRecord{
		ID:              rec.ID(),
		AnalysisID:      rec.AnalysisID(),
		URL:             rec.URL(),
		Status:          rec.Status(),
		Progress:        rec.Progress(),
		CurrentAnalyzer: rec.CurrentAnalyzer(),
		CreatedAt:       rec.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       rec.UpdatedAt().Format("2006-01-02T15:04:05Z07:00"),
	}
	if rec.Results() != "" {
		out.Results = json.RawMessage(rec.Results())
	}
	if t := rec.CompletedAt(); t != nil {
		out.CompletedAt = t.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

// CacheList lists cached analyses, newest first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.repository()
	if err != nil {
		return err
	}

	records, err := repo.List(map[string]any{
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return r.writePlain("Cache is empty. Run 'perc analyses list' to populate it.\n")
	}

	for _, rec := range records {
		r.writePlain("%-4d %-36s %-10s %5.0f%%  %s\n", rec.Sequence(), rec.AnalysisID(), rec.Status(), rec.Progress(), rec.URL())
	}
	return nil
}

// CacheShow prints one cached analysis by its backend ID.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}

	repo, err := r.repository()
	if err != nil {
		return err
	}

	rec, err := repo.GetByAnalysisID(id)
	if err != nil {
		return err
	}

	view := newCachedRecord(rec)
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	r.writePlain("Analysis:  %s\n", view.AnalysisID)
	r.writePlain("URL:       %s\n", view.URL)
	r.writePlain("Status:    %s\n", view.Status)
	r.writePlain("Progress:  %.0f%%\n", view.Progress)
	if view.CurrentAnalyzer != "" {
		r.writePlain("Analyzer:  %s\n", view.CurrentAnalyzer)
	}
	r.writePlain("Cached:    %s\n", view.UpdatedAt)
	if view.CompletedAt != "" {
		r.writePlain("Completed: %s\n", view.CompletedAt)
	}
	return nil
}

// CacheClear removes every cached analysis.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.repository()
	if err != nil {
		return err
	}

	n, err := repo.Purge()
	if err != nil {
		return err
	}
	r.logger.Info("cache cleared", "removed", n)
	return r.writePlain("✓ Removed %d cached analyses\n", n)
}

// CacheRollback reverts the most recent cache migration.
func (r *Runner) CacheRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Cache schema rolled back to version %d\n", version)
}
