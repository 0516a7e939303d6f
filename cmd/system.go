package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/perc/internal/models"
	"github.com/urfave/cli/v3"
)

func componentLine(name string, c models.ComponentHealth) string {
	mark := "✓"
	if c.Status != "healthy" {
		mark = "✗"
	}
	line := fmt.Sprintf("%s %-9s %s", mark, name, c.Status)
	if c.ResponseTime != "" {
		line += " (" + c.ResponseTime + ")"
	}
	if c.ActiveWorkers > 0 {
		line += fmt.Sprintf(", %d workers", c.ActiveWorkers)
	}
	if c.Error != "" {
		line += ": " + c.Error
	}
	return line
}

// SystemHealth reports backend component health. It does not require a session.
func (r *Runner) SystemHealth(ctx context.Context, cmd *cli.Command) error {
	health, err := r.api.System.Health(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(health, true)
	}

	if health.Healthy() {
		r.writePlain("✓ Backend is healthy\n")
	} else {
		r.writePlain("✗ Backend is %s\n", health.Status)
	}
	r.writePlain("  %s\n", componentLine("database", health.Components.Database))
	r.writePlain("  %s\n", componentLine("celery", health.Components.Celery))
	return nil
}

// SystemMetrics prints analysis throughput for the requested window.
func (r *Runner) SystemMetrics(ctx context.Context, cmd *cli.Command) error {
	hours := int(cmd.Int("hours"))

	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	metrics, err := r.api.System.Metrics(ctx, hours)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(metrics, true)
	}

	s := metrics.Summary
	r.writePlainHeader(fmt.Sprintf("Last %d hours", metrics.TimePeriodHours))
	r.writePlain("Analyses:     %d (%d completed, %d failed, %d running, %d pending)\n",
		s.TotalAnalyses, s.Completed, s.Failed, s.Running, s.Pending)
	r.writePlain("Success rate: %.1f%%\n", s.SuccessRate)
	r.writePlain("Avg time:     %.1fs\n", s.AvgCompletionTimeSeconds)

	if len(metrics.AnalyzerPerformance) > 0 {
		r.writePlainln("Analyzers:")
		for _, a := range metrics.AnalyzerPerformance {
			r.writePlain("  %-20s %4d runs  %5.1f%% ok  avg %.2fs\n", a.Name, a.TotalRuns, a.SuccessRate, a.AvgExecutionTime)
		}
	}
	return nil
}

// SystemInfo prints the backend version and available analyzers.
func (r *Runner) SystemInfo(ctx context.Context, cmd *cli.Command) error {
	info, err := r.api.System.Info(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(info, true)
	}

	r.writePlain("Version:   %s\n", info.Version)
	r.writePlain("Analyzers: %d\n", info.TotalAnalyzerCount)
	if len(info.AvailableAnalyzers) > 0 {
		r.writePlain("  %s\n", strings.Join(info.AvailableAnalyzers, ", "))
	}
	if len(info.Features) > 0 {
		r.writePlain("Features:  %s\n", strings.Join(info.Features, ", "))
	}
	return nil
}

// SystemProfiles lists the analysis profiles usable with `analyze --profile`,
// or a single profile when an ID is given.
func (r *Runner) SystemProfiles(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	var profiles []models.Profile
	if id := cmd.Args().First(); id != "" {
		p, err := r.api.System.Profile(ctx, id)
		if err != nil {
			return err
		}
		profiles = []models.Profile{*p}
	} else {
		var err error
		if profiles, err = r.api.System.Profiles(ctx); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(profiles, true)
	}

	for _, p := range profiles {
		marker := " "
		if p.IsDefault {
			marker = "*"
		}
		names := make([]string, len(p.AnalyzerConfigs.Analyzers))
		for i, a := range p.AnalyzerConfigs.Analyzers {
			names[i] = a.Name
		}
		r.writePlain("%s %-12s %s\n", marker, p.ID, p.Name)
		if p.Description != "" {
			r.writePlain("    %s\n", p.Description)
		}
		if len(names) > 0 {
			r.writePlain("    analyzers: %s\n", strings.Join(names, ", "))
		}
	}
	return nil
}
